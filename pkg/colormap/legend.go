package colormap

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Calibration bar layout, in pixels.
const (
	legendLabels = 5
	legendMargin = 4
	legendBarW   = 12
	legendGap    = 3
)

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	return rgba
}

// legendLabelsFor returns the bar labels from top (hi) to bottom (lo),
// rounded to whole numbers.
func legendLabelsFor(lo, hi float64) []string {
	labels := make([]string, legendLabels)
	for i := range labels {
		v := hi - (hi-lo)*float64(i)/float64(legendLabels-1)
		labels[i] = strconv.FormatFloat(v, 'f', 0, 64)
	}
	return labels
}

// drawLegend paints a gradient bar with white value labels in the upper
// right corner. Parts that do not fit are clipped.
func drawLegend(dst *image.RGBA, pal [256]color.RGBA, lo, hi float64) {
	face := basicfont.Face7x13
	labels := legendLabelsFor(lo, hi)

	labelW := 0
	for _, l := range labels {
		labelW = max(labelW, font.MeasureString(face, l).Ceil())
	}
	lineH := face.Metrics().Height.Ceil()
	barH := max(lineH*(legendLabels-1), dst.Rect.Dy()/3)

	x0 := dst.Rect.Max.X - legendMargin - labelW - legendGap - legendBarW
	y0 := dst.Rect.Min.Y + legendMargin + lineH/2

	for y := 0; y < barH; y++ {
		idx := 255 - y*255/max(barH-1, 1)
		c := pal[idx]
		for x := 0; x < legendBarW; x++ {
			if (image.Point{x0 + x, y0 + y}).In(dst.Rect) {
				dst.SetRGBA(x0+x, y0+y, c)
			}
		}
	}

	d := &font.Drawer{Dst: dst, Src: image.White, Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	for i, l := range labels {
		y := y0 + i*(barH-1)/(legendLabels-1)
		d.Dot = fixed.P(x0+legendBarW+legendGap, y+ascent/2)
		d.DrawString(l)
	}
}

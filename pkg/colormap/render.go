// Package colormap paints per-region measurements onto a float canvas and
// renders it through an ImageJ-style lookup table with a calibration bar.
package colormap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"

	"plasmoquant/internal/models"
	"plasmoquant/pkg/results"
	"plasmoquant/pkg/roi"
)

// ErrNonNumericColumn is returned when asked to map an identity column.
var ErrNonNumericColumn = errors.New("column is not numeric")

// ColorMap is a float image where every region carries its measured value.
type ColorMap struct {
	// Param is the mapped column
	Param string

	// Image holds one channel with the reference image's slices and frames
	Image *models.Image

	// Min and Max are the display range (finite pixels only)
	Min, Max float64
}

// Title returns the map's title.
func (cm *ColorMap) Title() string {
	return cm.Image.Title
}

// Title builds the colour map title for a reference image and a column.
func Title(refTitle, param string) string {
	return refTitle + "_colorMap_for_" + param
}

// NumericColumns returns the table columns that can be mapped.
func NumericColumns(t *results.Table) []string {
	return t.MetricNames()
}

// Render paints, for every region i, the value of param in row i of table
// onto the pixels the region covers. Overlapping regions add up. The canvas
// has the size, slices and frames of ref and a single channel.
func Render(ref *models.Image, param string, regions *roi.Collection, table *results.Table, log logrus.FieldLogger) (*ColorMap, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if param == results.ColRoiName || param == results.ColStructure {
		return nil, fmt.Errorf("%w: %s", ErrNonNumericColumn, param)
	}
	values, err := table.Column(param)
	if err != nil {
		return nil, err
	}
	if len(values) < regions.Len() {
		return nil, fmt.Errorf("table has %d rows for %d regions", len(values), regions.Len())
	}

	canvas, err := models.NewImage(Title(ref.Title, param), ref.Width, ref.Height, 1, ref.Slices, ref.Frames)
	if err != nil {
		return nil, fmt.Errorf("failed to create canvas: %w", err)
	}

	for i := 0; i < regions.Len(); i++ {
		log.WithFields(logrus.Fields{"stage": "color map", "current": i + 1, "total": regions.Len()}).Debug("Processing ROI")

		r := regions.Get(i)
		plane := canvas.PlaneIndex(1, r.Position.Z, r.Position.T)
		m := r.Rasterize()
		rect := m.Rect.Intersect(image.Rect(0, 0, canvas.Width, canvas.Height))
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				if m.Pix[m.PixOffset(x, y)] != 0 {
					canvas.Add(plane, x, y, values[i])
				}
			}
		}
	}

	cm := &ColorMap{Param: param, Image: canvas}
	cm.ResetDisplayRange()
	return cm, nil
}

// ResetDisplayRange sets Min and Max to the extremes of the finite pixels.
// A canvas without finite pixels gets the range [0, 0].
func (cm *ColorMap) ResetDisplayRange() {
	finite := make([]float64, 0, cm.Image.Width*cm.Image.Height)
	for _, plane := range cm.Image.Planes {
		for _, v := range plane {
			f := float64(v)
			if !math.IsNaN(f) && !math.IsInf(f, 0) {
				finite = append(finite, f)
			}
		}
	}
	if len(finite) == 0 {
		cm.Min, cm.Max = 0, 0
		return
	}
	cm.Min, cm.Max = floats.Min(finite), floats.Max(finite)
}

// scale8 maps a value onto 0..255 over the display range.
func (cm *ColorMap) scale8(v float32) byte {
	f := float64(v)
	if math.IsNaN(f) || cm.Max <= cm.Min {
		return 0
	}
	s := (f - cm.Min) / (cm.Max - cm.Min) * 255
	return byte(math.Max(0, math.Min(255, math.Round(s))))
}

// Colorize renders every plane through lut, optionally with a calibration
// bar in the upper right corner.
func Colorize(cm *ColorMap, lut LUT, legend bool) ([]*image.RGBA, error) {
	im := cm.Image
	var pal [256]color.RGBA
	if legend {
		pal = lut.Palette()
	}

	out := make([]*image.RGBA, 0, im.NPlanes())
	gray := make([]byte, im.Width*im.Height)
	for p, plane := range im.Planes {
		for i, v := range plane {
			gray[i] = cm.scale8(v)
		}
		src, err := gocv.NewMatFromBytes(im.Height, im.Width, gocv.MatTypeCV8UC1, gray)
		if err != nil {
			return nil, fmt.Errorf("plane %d: %w", p, err)
		}
		colored := lut.apply(src)
		img, err := colored.ToImage()
		src.Close()
		colored.Close()
		if err != nil {
			return nil, fmt.Errorf("plane %d: %w", p, err)
		}

		rgba := toRGBA(img)
		if legend {
			drawLegend(rgba, pal, cm.Min, cm.Max)
		}
		out = append(out, rgba)
	}
	return out, nil
}

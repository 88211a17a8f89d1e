package quantify

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"plasmoquant/internal/models"
	"plasmoquant/pkg/roi"
)

// outside marks pixels excluded from the search.
const outside = -math.MaxFloat32

// FindMaxima locates the local maxima of an image plane inside a region,
// with zero prominence. Connected plateaus of equal value yield a single
// point: the plateau pixel closest to the plateau centroid. A plateau that
// touches an equal-valued pixel which is not itself a maximum is a shoulder
// and is rejected. A plane that is flat inside the region has no maxima.
// Points are returned in raster order of their plateau's first pixel.
func FindMaxima(im *models.Image, plane int, r *roi.Region) ([]roi.Point, error) {
	if r == nil {
		return nil, nil
	}
	m := r.Rasterize()
	rect := m.Rect.Intersect(image.Rect(0, 0, im.Width, im.Height))
	if rect.Empty() {
		return nil, nil
	}

	// One pixel of padding keeps every neighbourhood inside the Mat.
	w, h := rect.Dx()+2, rect.Dy()+2
	src := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	defer src.Close()

	lo, hi := math.Inf(1), math.Inf(-1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ix, iy := rect.Min.X+x-1, rect.Min.Y+y-1
			v := float32(outside)
			if (image.Point{ix, iy}).In(rect) && m.Pix[m.PixOffset(ix, iy)] != 0 {
				v = float32(im.At(plane, ix, iy))
				lo = math.Min(lo, float64(v))
				hi = math.Max(hi, float64(v))
			}
			src.SetFloatAt(y, x, v)
		}
	}
	if math.IsInf(lo, 1) || lo == hi {
		return nil, nil
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(src, &dilated, kernel)

	candidates := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := src.GetFloatAt(y, x)
			if v != outside && float64(v) > lo && v == dilated.GetFloatAt(y, x) {
				candidates[y*w+x] = 255
			}
		}
	}
	cand, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate mask: %w", err)
	}
	defer cand.Close()

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()
	n := gocv.ConnectedComponentsWithStats(cand, &labels, &stats, &centroids)

	type plateau struct {
		pixels   []image.Point
		shoulder bool
	}
	plateaus := make([]plateau, n)
	var order []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := int(labels.GetIntAt(y, x))
			if l == 0 {
				continue
			}
			if len(plateaus[l].pixels) == 0 {
				order = append(order, l)
			}
			plateaus[l].pixels = append(plateaus[l].pixels, image.Pt(x, y))
			if !plateaus[l].shoulder && touchesEqualNonMax(src, candidates, w, h, x, y) {
				plateaus[l].shoulder = true
			}
		}
	}

	var points []roi.Point
	for _, l := range order {
		p := plateaus[l]
		if p.shoulder {
			continue
		}
		cx, cy := centroids.GetDoubleAt(l, 0), centroids.GetDoubleAt(l, 1)
		best, bestD := p.pixels[0], math.Inf(1)
		for _, px := range p.pixels {
			dx, dy := float64(px.X)-cx, float64(px.Y)-cy
			if d := dx*dx + dy*dy; d < bestD {
				best, bestD = px, d
			}
		}
		points = append(points, roi.Point{
			X: float64(rect.Min.X + best.X - 1),
			Y: float64(rect.Min.Y + best.Y - 1),
		})
	}
	return points, nil
}

func touchesEqualNonMax(src gocv.Mat, candidates []byte, w, h, x, y int) bool {
	v := src.GetFloatAt(y, x)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			if candidates[ny*w+nx] == 0 && src.GetFloatAt(ny, nx) == v {
				return true
			}
		}
	}
	return false
}

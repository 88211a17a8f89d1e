package roi

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Scale adapts a region drawn on one image to an image whose size differs by
// the factor f. The region is translated by (f-1)*centroid and then scaled by
// f about its (translated) centroid, which amounts to scaling the whole
// coordinate frame: every vertex p maps to f*p.
func Scale(r *Region, f float64) *Region {
	if r == nil {
		return nil
	}
	c := r.Centroid()
	shift := Point{(f - 1) * c.X, (f - 1) * c.Y}
	pivot := Point{c.X + shift.X, c.Y + shift.Y}

	// Translation followed by a scale about pivot, as one homogeneous matrix.
	translate := mat.NewDense(3, 3, []float64{
		1, 0, shift.X,
		0, 1, shift.Y,
		0, 0, 1,
	})
	scaleAbout := mat.NewDense(3, 3, []float64{
		f, 0, pivot.X * (1 - f),
		0, f, pivot.Y * (1 - f),
		0, 0, 1,
	})
	var transform mat.Dense
	transform.Mul(scaleAbout, translate)

	out := r.Clone()
	switch r.Kind {
	case KindPolygon:
		for i, ring := range out.Rings {
			out.Rings[i] = applyTransform(&transform, ring)
		}
	case KindPoints:
		out.Points = applyTransform(&transform, out.Points)
	case KindMask:
		out.Mask = scaleMask(r.Mask, f)
	}
	return out
}

// applyTransform maps points through a 3x3 homogeneous transform.
func applyTransform(t mat.Matrix, pts []Point) []Point {
	if len(pts) == 0 {
		return pts
	}
	n := len(pts)
	h := mat.NewDense(3, n, nil)
	for i, p := range pts {
		h.Set(0, i, p.X)
		h.Set(1, i, p.Y)
		h.Set(2, i, 1)
	}
	var res mat.Dense
	res.Mul(t, h)

	out := make([]Point, n)
	for i := range out {
		out[i] = Point{res.At(0, i), res.At(1, i)}
	}
	return out
}

// scaleMask resamples a mask nearest-neighbour into the scaled bounding box.
func scaleMask(m *image.Gray, f float64) *image.Gray {
	if m == nil || m.Rect.Empty() || f <= 0 {
		return image.NewGray(image.Rectangle{})
	}
	rect := image.Rect(
		int(math.Floor(float64(m.Rect.Min.X)*f)),
		int(math.Floor(float64(m.Rect.Min.Y)*f)),
		int(math.Ceil(float64(m.Rect.Max.X)*f)),
		int(math.Ceil(float64(m.Rect.Max.Y)*f)),
	)
	w, h := max(rect.Dx(), 1), max(rect.Dy(), 1)
	rect.Max = image.Point{rect.Min.X + w, rect.Min.Y + h}

	resized := imaging.Resize(m, w, h, imaging.NearestNeighbor)
	out := image.NewGray(rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if resized.Pix[resized.PixOffset(x, y)] >= 128 {
				out.Pix[out.PixOffset(rect.Min.X+x, rect.Min.Y+y)] = 255
			}
		}
	}
	return trimGray(out)
}

// ScaleCollection returns a new collection holding every region of c scaled
// by f. Regions covering no pixel cannot be measured later; they are dropped
// (and logged) instead of scaled, keeping the remaining regions in order.
func ScaleCollection(c *Collection, f float64, log logrus.FieldLogger) *Collection {
	if log == nil {
		log = logrus.StandardLogger()
	}
	work := c.Clone()
	total := work.Len()

	// i stays put after a removal so the shifted neighbour is visited next.
	original := 0
	for i := 0; i < work.Len(); original++ {
		log.WithFields(logrus.Fields{"stage": "scaling", "current": original + 1, "total": total}).Debug("Processing ROI")

		r := work.Get(i)
		if r.Area() == 0 {
			_ = work.Remove(i)
			log.WithFields(logrus.Fields{"index": original, "name": r.Name}).
				Warn("Found one ROI with area=0.0 and removed it")
			continue
		}
		_ = work.Replace(i, Scale(r, f))
		i++
	}
	return work
}

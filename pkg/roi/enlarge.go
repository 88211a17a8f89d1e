package roi

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// distTolerance absorbs the fixed-point rounding of OpenCV's chamfer distances.
const distTolerance = 1e-3

// Enlarge grows (n > 0) or shrinks (n < 0) a region uniformly by n pixels.
// A nil region or n == 0 returns the input unchanged. Growing keeps every
// pixel whose Euclidean distance to the region is at most n; shrinking keeps
// the region pixels farther than |n| from the background. The result is a
// mask region carrying the input's name, color and position.
func Enlarge(r *Region, n int) (*Region, error) {
	if r == nil || n == 0 {
		return r, nil
	}

	m := r.Rasterize()
	if m.Rect.Empty() {
		return r.withMask(image.NewGray(image.Rectangle{})), nil
	}

	grow := n > 0
	margin := n
	if margin < 0 {
		margin = -margin
	}

	// Pad so the grown footprint and a background border both fit.
	rect := m.Rect.Inset(-(margin + 1))
	w, h := rect.Dx(), rect.Dy()

	// DistanceTransform measures the distance of non-zero pixels to the
	// nearest zero pixel, so the region is zero when growing and non-zero
	// when shrinking.
	buf := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inside := inMask(m, rect.Min.X+x, rect.Min.Y+y)
			if inside != grow {
				buf[y*w+x] = 255
			}
		}
	}

	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build mask for %q: %w", r.Name, err)
	}
	defer src.Close()

	dist := gocv.NewMat()
	defer dist.Close()
	labels := gocv.NewMat()
	defer labels.Close()
	gocv.DistanceTransform(src, &dist, &labels, gocv.DistL2, gocv.DistanceMask5, gocv.DistanceLabelCComp)

	limit := float32(margin) + distTolerance
	out := image.NewGray(rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inside := buf[y*w+x] == 0
			if !grow {
				inside = !inside
			}
			d := dist.GetFloatAt(y, x)

			keep := false
			if grow {
				keep = inside || d <= limit
			} else {
				keep = inside && d > limit
			}
			if keep {
				out.Pix[out.PixOffset(rect.Min.X+x, rect.Min.Y+y)] = 255
			}
		}
	}
	return r.withMask(trimGray(out)), nil
}

func inMask(m *image.Gray, x, y int) bool {
	if !(image.Point{x, y}).In(m.Rect) {
		return false
	}
	return m.Pix[m.PixOffset(x, y)] != 0
}

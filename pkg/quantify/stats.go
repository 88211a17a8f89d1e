package quantify

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"plasmoquant/internal/models"
	"plasmoquant/pkg/roi"
)

// Stats summarises the pixel values of one plane under a region.
type Stats struct {
	// Count is the number of covered pixels inside the image
	Count int
	// Sum is the total of the covered values
	Sum float64
	// Mean is Sum/Count, NaN when Count is 0
	Mean float64
}

// RegionPlane returns the plane a region is measured on: channel 1 at the
// region's slice and frame (unset positions select the first).
func RegionPlane(im *models.Image, r *roi.Region) int {
	if r == nil {
		return 0
	}
	return im.PlaneIndex(1, r.Position.Z, r.Position.T)
}

// Measure computes the statistics of the image plane under the region.
// Pixels of the region falling outside the image are ignored. A nil region
// covers nothing.
func Measure(im *models.Image, plane int, r *roi.Region) Stats {
	if r == nil {
		return Stats{Mean: math.NaN()}
	}
	values := regionValues(im, plane, r.Rasterize())
	if len(values) == 0 {
		return Stats{Mean: math.NaN()}
	}
	return Stats{Count: len(values), Sum: floats.Sum(values), Mean: stat.Mean(values, nil)}
}

func regionValues(im *models.Image, plane int, m *image.Gray) []float64 {
	rect := m.Rect.Intersect(image.Rect(0, 0, im.Width, im.Height))
	values := make([]float64, 0, rect.Dx()*rect.Dy())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if m.Pix[m.PixOffset(x, y)] != 0 {
				values = append(values, im.At(plane, x, y))
			}
		}
	}
	return values
}

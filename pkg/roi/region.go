// Package roi provides the region-of-interest model used to outline cells:
// polygon, mask and point-set regions, ordered collections, the geometric
// operations applied to them (scale, enlarge, union) and ImageJ RoiSet I/O.
package roi

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// Kind identifies how a region stores its geometry.
type Kind int

const (
	// KindPolygon is one or more closed rings filled with the even-odd rule.
	KindPolygon Kind = iota
	// KindMask is a pixel mask in image coordinates.
	KindMask
	// KindPoints is a set of single-pixel points.
	KindPoints
)

func (k Kind) String() string {
	switch k {
	case KindPolygon:
		return "Polygon"
	case KindMask:
		return "Mask"
	case KindPoints:
		return "Points"
	default:
		return "Unknown"
	}
}

// Point is a vertex in image coordinates (pixels, top-left origin).
type Point struct {
	X, Y float64
}

// Position is the 1-based stack position of a region. Zero means unset.
type Position struct {
	Z, T int
}

// Region is a named 2-D shape. Regions are treated as immutable: every
// operation in this package returns a new Region.
type Region struct {
	Name     string
	Color    color.NRGBA
	Position Position
	Kind     Kind

	// Rings holds polygon geometry (KindPolygon).
	Rings [][]Point
	// Points holds point-set geometry (KindPoints).
	Points []Point
	// Mask holds pixel geometry (KindMask); non-zero pixels are inside.
	Mask *image.Gray
}

// NewPolygon creates a single-ring polygon region.
func NewPolygon(name string, vertices []Point) *Region {
	ring := make([]Point, len(vertices))
	copy(ring, vertices)
	return &Region{Name: name, Kind: KindPolygon, Rings: [][]Point{ring}}
}

// NewRect creates an axis-aligned rectangular polygon region.
func NewRect(name string, x, y, w, h float64) *Region {
	return NewPolygon(name, []Point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}})
}

// NewPoints creates a point-set region.
func NewPoints(name string, pts []Point) *Region {
	cp := make([]Point, len(pts))
	copy(cp, pts)
	return &Region{Name: name, Kind: KindPoints, Points: cp}
}

// NewMask creates a mask region from a gray image whose bounds are in image
// coordinates. The mask is copied.
func NewMask(name string, m *image.Gray) *Region {
	return &Region{Name: name, Kind: KindMask, Mask: cloneGray(m)}
}

// Clone returns a deep copy of the region.
func (r *Region) Clone() *Region {
	if r == nil {
		return nil
	}
	out := *r
	if r.Rings != nil {
		out.Rings = make([][]Point, len(r.Rings))
		for i, ring := range r.Rings {
			out.Rings[i] = append([]Point(nil), ring...)
		}
	}
	if r.Points != nil {
		out.Points = append([]Point(nil), r.Points...)
	}
	if r.Mask != nil {
		out.Mask = cloneGray(r.Mask)
	}
	return &out
}

// WithName returns a copy of the region carrying a new name.
func (r *Region) WithName(name string) *Region {
	out := r.Clone()
	out.Name = name
	return out
}

// withMask returns a region carrying r's metadata and the mask m.
func (r *Region) withMask(m *image.Gray) *Region {
	return &Region{
		Name:     r.Name,
		Color:    r.Color,
		Position: r.Position,
		Kind:     KindMask,
		Mask:     m,
	}
}

// Bounds returns the integer pixel bounding box of the region footprint.
func (r *Region) Bounds() image.Rectangle {
	return r.Rasterize().Rect
}

// Area returns the number of pixels covered by the region. This is the area
// a measurement sees, so a sliver polygon that covers no pixel centre has
// area 0.
func (r *Region) Area() int {
	if r == nil {
		return 0
	}
	return countNonZero(r.Rasterize())
}

// GeometricArea returns the even-odd shoelace area of a polygon region and
// the pixel count for other kinds.
func (r *Region) GeometricArea() float64 {
	if r.Kind != KindPolygon {
		return float64(r.Area())
	}
	var total float64
	for _, ring := range r.Rings {
		total += math.Abs(signedArea(ring))
	}
	return total
}

// Centroid returns the contour centroid for polygons, the mean of points for
// point sets and the pixel-centre centroid for masks.
func (r *Region) Centroid() Point {
	switch r.Kind {
	case KindPolygon:
		var a, cx, cy float64
		for _, ring := range r.Rings {
			ra, rx, ry := ringMoments(ring)
			a += ra
			cx += rx
			cy += ry
		}
		if a != 0 {
			return Point{cx / (6 * a), cy / (6 * a)}
		}
		var all []Point
		for _, ring := range r.Rings {
			all = append(all, ring...)
		}
		return meanPoint(all)
	case KindPoints:
		return meanPoint(r.Points)
	default:
		m := r.Rasterize()
		var sx, sy float64
		var n int
		for y := m.Rect.Min.Y; y < m.Rect.Max.Y; y++ {
			for x := m.Rect.Min.X; x < m.Rect.Max.X; x++ {
				if m.GrayAt(x, y).Y != 0 {
					sx += float64(x) + 0.5
					sy += float64(y) + 0.5
					n++
				}
			}
		}
		if n == 0 {
			return Point{}
		}
		return Point{sx / float64(n), sy / float64(n)}
	}
}

// Contains reports whether pixel (x, y) belongs to the region.
func (r *Region) Contains(x, y int) bool {
	m := r.Rasterize()
	if !(image.Point{x, y}).In(m.Rect) {
		return false
	}
	return m.GrayAt(x, y).Y != 0
}

// Rasterize returns the pixel footprint of the region as a gray mask whose
// bounds are the footprint's bounding box in image coordinates. Polygons
// cover the pixels whose centres fall inside them (even-odd rule). Point
// (x, y) covers pixel (floor x, floor y).
func (r *Region) Rasterize() *image.Gray {
	if r == nil {
		return image.NewGray(image.Rectangle{})
	}
	switch r.Kind {
	case KindMask:
		if r.Mask == nil {
			return image.NewGray(image.Rectangle{})
		}
		return r.Mask
	case KindPoints:
		return rasterizePoints(r.Points)
	default:
		return rasterizeRings(r.Rings)
	}
}

func rasterizePoints(pts []Point) *image.Gray {
	if len(pts) == 0 {
		return image.NewGray(image.Rectangle{})
	}
	var rect image.Rectangle
	for i, p := range pts {
		px := image.Rect(int(math.Floor(p.X)), int(math.Floor(p.Y)), int(math.Floor(p.X))+1, int(math.Floor(p.Y))+1)
		if i == 0 {
			rect = px
		} else {
			rect = rect.Union(px)
		}
	}
	m := image.NewGray(rect)
	for _, p := range pts {
		m.Pix[m.PixOffset(int(math.Floor(p.X)), int(math.Floor(p.Y)))] = 255
	}
	return m
}

func rasterizeRings(rings [][]Point) *image.Gray {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, ring := range rings {
		for _, p := range ring {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return image.NewGray(image.Rectangle{})
	}

	x0, y0 := int(math.Floor(minX)), int(math.Floor(minY))
	x1, y1 := int(math.Ceil(maxX)), int(math.Ceil(maxY))
	full := image.NewGray(image.Rect(x0, y0, x1, y1))

	var xs []float64
	for y := y0; y < y1; y++ {
		yc := float64(y) + 0.5
		xs = xs[:0]
		for _, ring := range rings {
			n := len(ring)
			for i := 0; i < n; i++ {
				a, b := ring[i], ring[(i+1)%n]
				if (a.Y <= yc) != (b.Y <= yc) {
					xs = append(xs, a.X+(yc-a.Y)*(b.X-a.X)/(b.Y-a.Y))
				}
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			start := int(math.Ceil(xs[i] - 0.5))
			end := int(math.Ceil(xs[i+1] - 0.5))
			for x := max(start, x0); x < min(end, x1); x++ {
				full.Pix[full.PixOffset(x, y)] = 255
			}
		}
	}
	return trimGray(full)
}

// trimGray shrinks a mask to the bounding box of its set pixels.
func trimGray(m *image.Gray) *image.Gray {
	minX, minY := m.Rect.Max.X, m.Rect.Max.Y
	maxX, maxY := m.Rect.Min.X-1, m.Rect.Min.Y-1
	for y := m.Rect.Min.Y; y < m.Rect.Max.Y; y++ {
		for x := m.Rect.Min.X; x < m.Rect.Max.X; x++ {
			if m.Pix[m.PixOffset(x, y)] != 0 {
				minX = min(minX, x)
				maxX = max(maxX, x)
				minY = min(minY, y)
				maxY = max(maxY, y)
			}
		}
	}
	if maxX < minX {
		return image.NewGray(image.Rectangle{})
	}
	rect := image.Rect(minX, minY, maxX+1, maxY+1)
	if rect == m.Rect {
		return m
	}
	out := image.NewGray(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		copy(out.Pix[out.PixOffset(rect.Min.X, y):out.PixOffset(rect.Min.X, y)+rect.Dx()],
			m.Pix[m.PixOffset(rect.Min.X, y):m.PixOffset(rect.Min.X, y)+rect.Dx()])
	}
	return out
}

func cloneGray(m *image.Gray) *image.Gray {
	if m == nil {
		return nil
	}
	out := image.NewGray(m.Rect)
	for y := m.Rect.Min.Y; y < m.Rect.Max.Y; y++ {
		copy(out.Pix[out.PixOffset(m.Rect.Min.X, y):out.PixOffset(m.Rect.Min.X, y)+m.Rect.Dx()],
			m.Pix[m.PixOffset(m.Rect.Min.X, y):m.PixOffset(m.Rect.Min.X, y)+m.Rect.Dx()])
	}
	return out
}

func signedArea(ring []Point) float64 {
	a, _, _ := ringMoments(ring)
	return a
}

// ringMoments returns the signed area and the unnormalised first moments of
// a closed ring.
func ringMoments(ring []Point) (area, mx, my float64) {
	n := len(ring)
	for i := 0; i < n; i++ {
		p, q := ring[i], ring[(i+1)%n]
		cross := p.X*q.Y - q.X*p.Y
		area += cross
		mx += (p.X + q.X) * cross
		my += (p.Y + q.Y) * cross
	}
	return area / 2, mx, my
}

func meanPoint(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	return Point{sx / float64(len(pts)), sy / float64(len(pts))}
}

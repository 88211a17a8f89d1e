package roi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"unicode/utf16"
)

// ErrNotRoi is returned when data does not start with the ImageJ ROI magic.
var ErrNotRoi = errors.New("not an ImageJ roi")

// ImageJ .roi layout (big-endian).
const (
	offVersion      = 4
	offType         = 6
	offTop          = 8
	offLeft         = 10
	offBottom       = 12
	offRight        = 14
	offNCoordinates = 16
	offX1           = 18
	offY1           = 22
	offX2           = 26
	offY2           = 30
	offShapeRoiSize = 36
	offStrokeColor  = 40
	offOptions      = 50
	offPosition     = 56
	offHeader2      = 60
	headerSize      = 64

	h2ZPosition  = 8
	h2TPosition  = 12
	h2NameOffset = 16
	h2NameLength = 20
	header2Size  = 64

	optSubPixel = 128

	encodeVersion = 228
)

// ImageJ roi types.
const (
	typePolygon  = 0
	typeRect     = 1
	typeOval     = 2
	typeLine     = 3
	typeFreeLine = 4
	typePolyLine = 5
	typeFreehand = 7
	typeTraced   = 8
	typeAngle    = 9
	typePoint    = 10
)

// Path segment codes of composite (shape) rois.
const (
	segMoveTo  = 0
	segLineTo  = 1
	segQuadTo  = 2
	segCubicTo = 3
	segClose   = 4
)

// Decode parses one ImageJ .roi record. fallbackName is used when the record
// carries no name.
func Decode(data []byte, fallbackName string) (*Region, error) {
	if len(data) < headerSize || string(data[0:4]) != "Iout" {
		return nil, ErrNotRoi
	}
	be := binary.BigEndian
	i16 := func(off int) int { return int(int16(be.Uint16(data[off:]))) }
	i32 := func(off int) int { return int(int32(be.Uint32(data[off:]))) }
	f32 := func(off int) float64 { return float64(math.Float32frombits(be.Uint32(data[off:]))) }

	version := int(be.Uint16(data[offVersion:]))
	typ := int(data[offType])
	top, left := i16(offTop), i16(offLeft)
	bottom, right := i16(offBottom), i16(offRight)
	n := int(be.Uint16(data[offNCoordinates:]))
	shapeSize := i32(offShapeRoiSize)
	options := int(be.Uint16(data[offOptions:]))
	subPixel := version >= 222 && options&optSubPixel != 0

	r := &Region{Name: fallbackName, Color: argbToColor(uint32(i32(offStrokeColor)))}

	switch {
	case shapeSize > 0:
		if headerSize+4*shapeSize > len(data) {
			return nil, fmt.Errorf("truncated composite roi %q", fallbackName)
		}
		segs := make([]float64, shapeSize)
		for k := range segs {
			segs[k] = f32(headerSize + 4*k)
		}
		rings, err := ringsFromSegments(segs)
		if err != nil {
			return nil, fmt.Errorf("roi %q: %w", fallbackName, err)
		}
		r.Kind, r.Rings = KindPolygon, rings

	case typ == typeRect:
		r.Kind = KindPolygon
		r.Rings = NewRect("", float64(left), float64(top), float64(right-left), float64(bottom-top)).Rings

	case typ == typeOval:
		r.Kind = KindPolygon
		r.Rings = [][]Point{ellipse(float64(left), float64(top), float64(right-left), float64(bottom-top))}

	case typ == typeLine:
		r.Kind = KindPolygon
		r.Rings = [][]Point{{{f32(offX1), f32(offY1)}, {f32(offX2), f32(offY2)}}}

	case typ == typePolygon, typ == typeFreehand, typ == typeTraced,
		typ == typePolyLine, typ == typeFreeLine, typ == typeAngle, typ == typePoint:
		need := headerSize + 4*n
		if subPixel {
			need += 8 * n
		}
		if need > len(data) {
			return nil, fmt.Errorf("truncated roi %q: need %d bytes, have %d", fallbackName, need, len(data))
		}
		pts := make([]Point, n)
		for k := 0; k < n; k++ {
			if subPixel {
				pts[k] = Point{f32(headerSize + 4*n + 4*k), f32(headerSize + 8*n + 4*k)}
			} else {
				pts[k] = Point{float64(left + i16(headerSize+2*k)), float64(top + i16(headerSize+2*n+2*k))}
			}
		}
		if typ == typePoint {
			r.Kind, r.Points = KindPoints, pts
		} else {
			r.Kind, r.Rings = KindPolygon, [][]Point{pts}
		}

	default:
		return nil, fmt.Errorf("unsupported roi type %d in %q", typ, fallbackName)
	}

	if h2 := i32(offHeader2); version >= 218 && h2 > 0 && h2+header2Size <= len(data) {
		r.Position = Position{Z: i32(h2 + h2ZPosition), T: i32(h2 + h2TPosition)}
		nameOff, nameLen := i32(h2+h2NameOffset), i32(h2+h2NameLength)
		if nameOff > 0 && nameLen > 0 && nameOff+2*nameLen <= len(data) {
			chars := make([]uint16, nameLen)
			for k := range chars {
				chars[k] = be.Uint16(data[nameOff+2*k:])
			}
			r.Name = string(utf16.Decode(chars))
		}
	}
	if r.Position == (Position{}) {
		if pos := i32(offPosition); pos > 0 {
			r.Position.Z = pos
		}
	}
	return r, nil
}

// Encode serialises a region as an ImageJ .roi record. Single-ring polygons
// become sub-pixel polygons, point sets become multi-point rois, and
// multi-ring polygons and masks become composite (shape) rois.
func Encode(r *Region) ([]byte, error) {
	switch r.Kind {
	case KindPolygon:
		if len(r.Rings) == 1 {
			return encodeVertices(r, typePolygon, r.Rings[0])
		}
		return encodeShape(r, ringsToSegments(r.Rings))
	case KindPoints:
		return encodeVertices(r, typePoint, r.Points)
	case KindMask:
		return encodeShape(r, maskToSegments(r.Rasterize()))
	default:
		return nil, fmt.Errorf("cannot encode region kind %v", r.Kind)
	}
}

func encodeVertices(r *Region, typ int, pts []Point) ([]byte, error) {
	n := len(pts)
	if n > math.MaxUint16 {
		return nil, fmt.Errorf("roi %q has too many vertices (%d)", r.Name, n)
	}
	left, top, right, bottom := pointBounds(pts)

	h2 := headerSize + 12*n
	buf := make([]byte, h2+header2Size+2*len(utf16.Encode([]rune(r.Name))))
	writeHeader(buf, r, typ, top, left, bottom, right, n, 0, h2)

	be := binary.BigEndian
	for k, p := range pts {
		be.PutUint16(buf[headerSize+2*k:], uint16(int16(int(math.Floor(p.X))-left)))
		be.PutUint16(buf[headerSize+2*n+2*k:], uint16(int16(int(math.Floor(p.Y))-top)))
		be.PutUint32(buf[headerSize+4*n+4*k:], math.Float32bits(float32(p.X)))
		be.PutUint32(buf[headerSize+8*n+4*k:], math.Float32bits(float32(p.Y)))
	}
	writeHeader2(buf, r, h2)
	return buf, nil
}

func encodeShape(r *Region, segs []float64) ([]byte, error) {
	bounds := r.Rasterize().Rect
	h2 := headerSize + 4*len(segs)
	buf := make([]byte, h2+header2Size+2*len(utf16.Encode([]rune(r.Name))))
	writeHeader(buf, r, typeRect, bounds.Min.Y, bounds.Min.X, bounds.Max.Y, bounds.Max.X, 0, len(segs), h2)

	be := binary.BigEndian
	for k, v := range segs {
		be.PutUint32(buf[headerSize+4*k:], math.Float32bits(float32(v)))
	}
	writeHeader2(buf, r, h2)
	return buf, nil
}

func writeHeader(buf []byte, r *Region, typ, top, left, bottom, right, n, shapeSize, h2 int) {
	be := binary.BigEndian
	copy(buf[0:4], "Iout")
	be.PutUint16(buf[offVersion:], encodeVersion)
	buf[offType] = byte(typ)
	be.PutUint16(buf[offTop:], uint16(int16(top)))
	be.PutUint16(buf[offLeft:], uint16(int16(left)))
	be.PutUint16(buf[offBottom:], uint16(int16(bottom)))
	be.PutUint16(buf[offRight:], uint16(int16(right)))
	be.PutUint16(buf[offNCoordinates:], uint16(n))
	be.PutUint32(buf[offShapeRoiSize:], uint32(shapeSize))
	be.PutUint32(buf[offStrokeColor:], colorToARGB(r.Color))
	if shapeSize == 0 {
		be.PutUint16(buf[offOptions:], optSubPixel)
	}
	be.PutUint32(buf[offHeader2:], uint32(h2))
}

func writeHeader2(buf []byte, r *Region, h2 int) {
	be := binary.BigEndian
	be.PutUint32(buf[h2+h2ZPosition:], uint32(r.Position.Z))
	be.PutUint32(buf[h2+h2TPosition:], uint32(r.Position.T))
	chars := utf16.Encode([]rune(r.Name))
	if len(chars) == 0 {
		return
	}
	nameOff := h2 + header2Size
	be.PutUint32(buf[h2+h2NameOffset:], uint32(nameOff))
	be.PutUint32(buf[h2+h2NameLength:], uint32(len(chars)))
	for k, c := range chars {
		be.PutUint16(buf[nameOff+2*k:], c)
	}
}

// ringsFromSegments rebuilds closed rings from a flattened path. Curves are
// replaced by their end points.
func ringsFromSegments(segs []float64) ([][]Point, error) {
	var rings [][]Point
	var cur []Point
	flush := func() {
		if len(cur) > 0 {
			rings = append(rings, cur)
			cur = nil
		}
	}
	for i := 0; i < len(segs); {
		switch int(segs[i]) {
		case segMoveTo:
			if i+2 >= len(segs) {
				return nil, fmt.Errorf("truncated path")
			}
			flush()
			cur = []Point{{segs[i+1], segs[i+2]}}
			i += 3
		case segLineTo:
			if i+2 >= len(segs) {
				return nil, fmt.Errorf("truncated path")
			}
			cur = append(cur, Point{segs[i+1], segs[i+2]})
			i += 3
		case segQuadTo:
			if i+4 >= len(segs) {
				return nil, fmt.Errorf("truncated path")
			}
			cur = append(cur, Point{segs[i+3], segs[i+4]})
			i += 5
		case segCubicTo:
			if i+6 >= len(segs) {
				return nil, fmt.Errorf("truncated path")
			}
			cur = append(cur, Point{segs[i+5], segs[i+6]})
			i += 7
		case segClose:
			flush()
			i++
		default:
			return nil, fmt.Errorf("unknown path segment %v", segs[i])
		}
	}
	flush()
	return rings, nil
}

func ringsToSegments(rings [][]Point) []float64 {
	var segs []float64
	for _, ring := range rings {
		for k, p := range ring {
			op := segLineTo
			if k == 0 {
				op = segMoveTo
			}
			segs = append(segs, float64(op), p.X, p.Y)
		}
		segs = append(segs, segClose)
	}
	return segs
}

// maskToSegments outlines every horizontal run of set pixels as a rectangle.
// Runs never overlap, so the even-odd fill reproduces the mask exactly.
func maskToSegments(m *image.Gray) []float64 {
	var segs []float64
	for y := m.Rect.Min.Y; y < m.Rect.Max.Y; y++ {
		for x := m.Rect.Min.X; x < m.Rect.Max.X; {
			if m.Pix[m.PixOffset(x, y)] == 0 {
				x++
				continue
			}
			start := x
			for x < m.Rect.Max.X && m.Pix[m.PixOffset(x, y)] != 0 {
				x++
			}
			x0, x1, y0, y1 := float64(start), float64(x), float64(y), float64(y+1)
			segs = append(segs,
				segMoveTo, x0, y0,
				segLineTo, x1, y0,
				segLineTo, x1, y1,
				segLineTo, x0, y1,
				segClose)
		}
	}
	return segs
}

func ellipse(x, y, w, h float64) []Point {
	n := max(16, int(2*(w+h)))
	cx, cy := x+w/2, y+h/2
	pts := make([]Point, n)
	for k := range pts {
		a := 2 * math.Pi * float64(k) / float64(n)
		pts[k] = Point{cx + w/2*math.Cos(a), cy + h/2*math.Sin(a)}
	}
	return pts
}

func pointBounds(pts []Point) (left, top, right, bottom int) {
	if len(pts) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY))
}

func argbToColor(v uint32) color.NRGBA {
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: uint8(v >> 24)}
}

func colorToARGB(c color.NRGBA) uint32 {
	return uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

package imageio

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// TIFF tags used when reading and writing.
const (
	tagNewSubfileType  = 254
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagDescription     = 270
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagXResolution     = 282
	tagYResolution     = 283
	tagResolutionUnit  = 296
	tagSampleFormat    = 339
)

// TIFF field types.
const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

// Resolution units.
const (
	resUnitNone = 1
	resUnitInch = 2
	resUnitCm   = 3
)

// Sample formats.
const (
	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

type ifdEntry struct {
	typ   uint16
	count uint32
	data  []byte
}

// ifd is one image file directory.
type ifd struct {
	order   binary.ByteOrder
	entries map[uint16]ifdEntry
}

var typeSize = map[uint16]uint32{typeByte: 1, typeASCII: 1, typeShort: 2, typeLong: 4, typeRational: 8}

// parseTIFF walks the IFD chain of a TIFF file held in memory.
func parseTIFF(data []byte) ([]ifd, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("not a valid TIFF file")
	}
	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a valid TIFF file")
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, fmt.Errorf("not a valid TIFF file")
	}

	var dirs []ifd
	seen := make(map[uint32]bool)
	for off := order.Uint32(data[4:8]); off != 0; {
		if seen[off] || int(off)+2 > len(data) {
			return nil, fmt.Errorf("corrupt IFD chain at offset %d", off)
		}
		seen[off] = true

		n := int(order.Uint16(data[off:]))
		end := int(off) + 2 + 12*n
		if end+4 > len(data) {
			return nil, fmt.Errorf("truncated IFD at offset %d", off)
		}
		d := ifd{order: order, entries: make(map[uint16]ifdEntry, n)}
		for i := 0; i < n; i++ {
			e := data[int(off)+2+12*i:]
			tag, typ, count := order.Uint16(e[0:2]), order.Uint16(e[2:4]), order.Uint32(e[4:8])
			size, ok := typeSize[typ]
			if !ok {
				continue
			}
			total := size * count
			raw := e[8:12]
			if total > 4 {
				vo := order.Uint32(e[8:12])
				if uint64(vo)+uint64(total) > uint64(len(data)) {
					return nil, fmt.Errorf("tag %d points outside the file", tag)
				}
				raw = data[vo : vo+total]
			}
			d.entries[tag] = ifdEntry{typ: typ, count: count, data: raw[:total]}
		}
		dirs = append(dirs, d)
		off = order.Uint32(data[end:])
	}
	return dirs, nil
}

// uints returns the values of a BYTE, SHORT or LONG tag.
func (d ifd) uints(tag uint16) []uint32 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	out := make([]uint32, e.count)
	for i := range out {
		switch e.typ {
		case typeByte:
			out[i] = uint32(e.data[i])
		case typeShort:
			out[i] = uint32(d.order.Uint16(e.data[2*i:]))
		case typeLong:
			out[i] = d.order.Uint32(e.data[4*i:])
		default:
			return nil
		}
	}
	return out
}

// first returns the first value of a tag, or def when it is absent.
func (d ifd) first(tag uint16, def uint32) uint32 {
	if v := d.uints(tag); len(v) > 0 {
		return v[0]
	}
	return def
}

func (d ifd) rational(tag uint16) float64 {
	e, ok := d.entries[tag]
	if !ok || e.typ != typeRational {
		return 0
	}
	num, den := d.order.Uint32(e.data[0:4]), d.order.Uint32(e.data[4:8])
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func (d ifd) ascii(tag uint16) string {
	e, ok := d.entries[tag]
	if !ok || e.typ != typeASCII {
		return ""
	}
	return strings.TrimRight(string(e.data), "\x00")
}

// description holds the key=value pairs of an ImageJ image description.
type description map[string]string

func parseDescription(s string) description {
	if !strings.HasPrefix(s, "ImageJ=") {
		return nil
	}
	d := make(description)
	for _, line := range strings.Split(s, "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			d[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return d
}

func (d description) intOr(key string, def int) int {
	if v, err := strconv.Atoi(d[key]); err == nil && v > 0 {
		return v
	}
	return def
}

func (d description) floatValue(key string) (float64, bool) {
	v, err := strconv.ParseFloat(d[key], 64)
	return v, err == nil
}

package imageio

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"plasmoquant/internal/models"
)

// imagejVersion is written into the description so ImageJ reads the extents.
const imagejVersion = "1.54f"

// resolutionDenominator keeps pixel sizes precise in TIFF rationals.
const resolutionDenominator = 1000000

// EncodeFloatTIFF encodes every plane of im as a big-endian, uncompressed
// 32-bit float TIFF page. The first page carries an ImageJ description with
// the hyperstack extents, the unit and the display range [lo, hi].
func EncodeFloatTIFF(im *models.Image, lo, hi float64) ([]byte, error) {
	if im == nil || im.NPlanes() == 0 {
		return nil, fmt.Errorf("nothing to encode")
	}
	w, h := im.Width, im.Height
	desc := imagejDescription(im, lo, hi)
	cal := im.Calibration

	var buf bytes.Buffer
	be := binary.BigEndian
	buf.WriteString("MM")
	binary.Write(&buf, be, uint16(42))
	binary.Write(&buf, be, uint32(8))

	for p, plane := range im.Planes {
		type field struct {
			tag   uint16
			typ   uint16
			count uint32
			data  []byte
		}
		short := func(v uint16) []byte { return be.AppendUint16(nil, v) }
		long := func(v uint32) []byte { return be.AppendUint32(nil, v) }
		rational := func(v float64) []byte {
			num, den := resolutionRational(v)
			return be.AppendUint32(be.AppendUint32(nil, num), den)
		}

		fields := []field{
			{tagNewSubfileType, typeLong, 1, long(0)},
			{tagImageWidth, typeLong, 1, long(uint32(w))},
			{tagImageLength, typeLong, 1, long(uint32(h))},
			{tagBitsPerSample, typeShort, 1, short(32)},
			{tagPhotometric, typeShort, 1, short(1)},
			{tagStripOffsets, typeLong, 1, long(0)},
			{tagSamplesPerPixel, typeShort, 1, short(1)},
			{tagRowsPerStrip, typeLong, 1, long(uint32(h))},
			{tagStripByteCounts, typeLong, 1, long(uint32(4 * w * h))},
			{tagSampleFormat, typeShort, 1, short(sampleFloat)},
		}
		if p == 0 {
			fields = append(fields, field{tagDescription, typeASCII, uint32(len(desc) + 1), append([]byte(desc), 0)})
			if cal.Scaled() && cal.PixelWidth > 0 && cal.PixelHeight > 0 {
				fields = append(fields,
					field{tagXResolution, typeRational, 1, rational(1 / cal.PixelWidth)},
					field{tagYResolution, typeRational, 1, rational(1 / cal.PixelHeight)},
					field{tagResolutionUnit, typeShort, 1, short(resUnitNone)},
				)
			}
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].tag < fields[j].tag })

		// Layout: IFD, out-of-line values, pixel data.
		ifdStart := uint32(buf.Len())
		ifdSize := uint32(2 + 12*len(fields) + 4)
		extra := ifdStart + ifdSize
		var values []byte
		for i := range fields {
			if len(fields[i].data) > 4 {
				values = append(values, fields[i].data...)
				if len(values)%2 == 1 {
					values = append(values, 0)
				}
			}
		}
		pixels := extra + uint32(len(values))
		next := uint32(0)
		if p+1 < im.NPlanes() {
			next = pixels + uint32(4*w*h)
		}

		binary.Write(&buf, be, uint16(len(fields)))
		valueOff := extra
		for _, f := range fields {
			if f.tag == tagStripOffsets {
				f.data = long(pixels)
			}
			binary.Write(&buf, be, f.tag)
			binary.Write(&buf, be, f.typ)
			binary.Write(&buf, be, f.count)
			if len(f.data) > 4 {
				binary.Write(&buf, be, valueOff)
				valueOff += uint32(len(f.data) + len(f.data)%2)
			} else {
				var inline [4]byte
				copy(inline[:], f.data)
				buf.Write(inline[:])
			}
		}
		binary.Write(&buf, be, next)
		buf.Write(values)

		for _, v := range plane {
			binary.Write(&buf, be, math.Float32bits(v))
		}
	}
	return buf.Bytes(), nil
}

// resolutionRational expresses v as num/den, lowering the denominator from
// resolutionDenominator until the numerator fits in 32 bits.
func resolutionRational(v float64) (uint32, uint32) {
	den := uint32(resolutionDenominator)
	for den > 1 && math.Round(v*float64(den)) > math.MaxUint32 {
		den /= 10
	}
	return uint32(math.Min(math.Round(v*float64(den)), math.MaxUint32)), den
}

func imagejDescription(im *models.Image, lo, hi float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ImageJ=%s\n", imagejVersion)
	fmt.Fprintf(&b, "images=%d\n", im.NPlanes())
	if im.Channels > 1 {
		fmt.Fprintf(&b, "channels=%d\n", im.Channels)
	}
	if im.Slices > 1 {
		fmt.Fprintf(&b, "slices=%d\n", im.Slices)
	}
	if im.Frames > 1 {
		fmt.Fprintf(&b, "frames=%d\n", im.Frames)
	}
	if im.Channels > 1 || (im.Slices > 1 && im.Frames > 1) {
		b.WriteString("hyperstack=true\n")
	}
	if im.Calibration.Scaled() {
		fmt.Fprintf(&b, "unit=%s\n", strings.ReplaceAll(im.Calibration.UnitLabel(), "µ", `\u00B5`))
	}
	fmt.Fprintf(&b, "min=%s\n", strconv.FormatFloat(lo, 'f', -1, 64))
	fmt.Fprintf(&b, "max=%s\n", strconv.FormatFloat(hi, 'f', -1, 64))
	return b.String()
}

// EncodePNG encodes a rendered preview.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ZipEntry is one file of a zip bundle.
type ZipEntry struct {
	Name string
	Data []byte
}

// WriteZip stores the entries, in order, in a zip file at path.
func WriteZip(path string, entries ...ZipEntry) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish zip: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

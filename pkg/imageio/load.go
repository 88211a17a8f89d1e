// Package imageio loads microscopy images with their ImageJ calibration and
// writes float32 TIFF stacks and zip bundles the way ImageJ saves them.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"

	"plasmoquant/internal/models"
)

// Load reads an image file. Uncompressed grayscale TIFF stacks (8, 16 or 32
// bit, as ImageJ writes them) are read plane by plane; every other TIFF and
// PNG/JPEG file is decoded as a single plane. ImageJ calibration and
// hyperstack extents are taken from the TIFF metadata when present.
func Load(path string) (*models.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	im, err := Decode(data, title)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return im, nil
}

// Decode builds an image from encoded file contents.
func Decode(data []byte, title string) (*models.Image, error) {
	if dirs, err := parseTIFF(data); err == nil && len(dirs) > 0 {
		return decodeTIFF(data, dirs, title)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return FromImage(img, title)
}

func decodeTIFF(data []byte, dirs []ifd, title string) (*models.Image, error) {
	first := dirs[0]
	desc := parseDescription(first.ascii(tagDescription))

	var (
		im  *models.Image
		err error
	)
	if planes, w, h, ok := rawPlanes(data, dirs); ok {
		c, z, t := extents(desc, len(planes))
		im, err = models.NewImage(title, w, h, c, z, t)
		if err != nil {
			return nil, err
		}
		im.Planes = planes
	} else {
		img, _, derr := image.Decode(bytes.NewReader(data))
		if derr != nil {
			return nil, derr
		}
		im, err = FromImage(img, title)
		if err != nil {
			return nil, err
		}
	}
	im.Calibration = calibration(first, desc)
	return im, nil
}

// extents returns channels, slices and frames for n planes. The ImageJ
// description is trusted only when it accounts for every plane.
func extents(desc description, n int) (int, int, int) {
	c, z, t := desc.intOr("channels", 1), desc.intOr("slices", 1), desc.intOr("frames", 1)
	if c*z*t == n {
		return c, z, t
	}
	return 1, n, 1
}

// calibration reads the pixel size. ImageJ stores pixels per unit in the
// resolution tags and the unit name in the description.
func calibration(d ifd, desc description) models.Calibration {
	cal := models.DefaultCalibration()
	unit := desc["unit"]
	if unit == "" {
		switch d.first(tagResolutionUnit, resUnitInch) {
		case resUnitCm:
			unit = "cm"
		case resUnitInch:
			if d.rational(tagXResolution) != 0 {
				unit = "inch"
			}
		}
	}
	xres, yres := d.rational(tagXResolution), d.rational(tagYResolution)
	if unit == "" || xres == 0 {
		return cal
	}
	if yres == 0 {
		yres = xres
	}
	cal.PixelWidth = 1 / xres
	cal.PixelHeight = 1 / yres
	cal.Unit = strings.ReplaceAll(unit, `\u00B5`, "µ")
	return cal
}

// rawPlanes reads uncompressed single-sample pages of equal size.
func rawPlanes(data []byte, dirs []ifd) ([][]float32, int, int, bool) {
	w, h := int(dirs[0].first(tagImageWidth, 0)), int(dirs[0].first(tagImageLength, 0))
	if w <= 0 || h <= 0 {
		return nil, 0, 0, false
	}
	planes := make([][]float32, 0, len(dirs))
	for _, d := range dirs {
		if d.first(tagNewSubfileType, 0)&1 != 0 {
			continue // reduced-resolution thumbnail
		}
		if int(d.first(tagImageWidth, 0)) != w || int(d.first(tagImageLength, 0)) != h ||
			d.first(tagCompression, 1) != 1 || d.first(tagSamplesPerPixel, 1) != 1 {
			return nil, 0, 0, false
		}
		bits, format := d.first(tagBitsPerSample, 1), d.first(tagSampleFormat, sampleUint)
		if !(bits == 8 || bits == 16 || bits == 32) || (bits == 32 && format == sampleInt) {
			return nil, 0, 0, false
		}

		offsets, counts := d.uints(tagStripOffsets), d.uints(tagStripByteCounts)
		if len(offsets) == 0 || len(offsets) != len(counts) {
			return nil, 0, 0, false
		}
		var buf []byte
		for i, off := range offsets {
			if uint64(off)+uint64(counts[i]) > uint64(len(data)) {
				return nil, 0, 0, false
			}
			buf = append(buf, data[off:off+counts[i]]...)
		}
		bps := int(bits / 8)
		if len(buf) < w*h*bps {
			return nil, 0, 0, false
		}

		plane := make([]float32, w*h)
		for i := range plane {
			s := buf[i*bps:]
			switch {
			case bits == 8:
				plane[i] = float32(s[0])
			case bits == 16 && format == sampleInt:
				plane[i] = float32(int16(d.order.Uint16(s)))
			case bits == 16:
				plane[i] = float32(d.order.Uint16(s))
			case format == sampleFloat:
				plane[i] = math.Float32frombits(d.order.Uint32(s))
			default:
				plane[i] = float32(d.order.Uint32(s))
			}
		}
		planes = append(planes, plane)
	}
	return planes, w, h, len(planes) > 0
}

// FromImage converts a decoded image to a single-plane image. Gray and
// paletted images keep their raw values (the palette index for paletted
// images); colour images are reduced to luminance.
func FromImage(img image.Image, title string) (*models.Image, error) {
	b := img.Bounds()
	im, err := models.NewImage(title, b.Dx(), b.Dy(), 1, 1, 1)
	if err != nil {
		return nil, err
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px, py := b.Min.X+x, b.Min.Y+y
			var v float64
			switch src := img.(type) {
			case *image.Gray:
				v = float64(src.GrayAt(px, py).Y)
			case *image.Gray16:
				v = float64(src.Gray16At(px, py).Y)
			case *image.Paletted:
				v = float64(src.ColorIndexAt(px, py))
			default:
				v = float64(color.GrayModel.Convert(img.At(px, py)).(color.Gray).Y)
			}
			im.Set(0, x, y, v)
		}
	}
	return im, nil
}

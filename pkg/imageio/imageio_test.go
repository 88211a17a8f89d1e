package imageio

import (
	"archive/zip"
	"bytes"
	"image"
	"math"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"plasmoquant/internal/models"
)

func TestFloatTIFFRoundTrip(t *testing.T) {
	im, err := models.NewImage("stack", 3, 2, 1, 2, 1)
	if err != nil {
		t.Fatalf("Failed to create image: %v", err)
	}
	im.Calibration = models.Calibration{PixelWidth: 0.25, PixelHeight: 0.5, Unit: "µm"}
	for p := 0; p < im.NPlanes(); p++ {
		for i := range im.Planes[p] {
			im.Planes[p][i] = float32(p*10) + float32(i)*0.5
		}
	}

	data, err := EncodeFloatTIFF(im, 0, 12.5)
	if err != nil {
		t.Fatalf("EncodeFloatTIFF failed: %v", err)
	}

	got, err := Decode(data, "back")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Width != 3 || got.Height != 2 {
		t.Errorf("Expected 3x2, got %dx%d", got.Width, got.Height)
	}
	if got.Slices != 2 || got.Channels != 1 || got.Frames != 1 {
		t.Errorf("Expected 1x2x1 extents, got %dx%dx%d", got.Channels, got.Slices, got.Frames)
	}
	for p := range im.Planes {
		for i, v := range im.Planes[p] {
			if got.Planes[p][i] != v {
				t.Errorf("Plane %d pixel %d: expected %f, got %f", p, i, v, got.Planes[p][i])
			}
		}
	}
	if got.Calibration != im.Calibration {
		t.Errorf("Expected calibration %+v, got %+v", im.Calibration, got.Calibration)
	}

	dirs, err := parseTIFF(data)
	if err != nil {
		t.Fatalf("parseTIFF failed: %v", err)
	}
	desc := parseDescription(dirs[0].ascii(tagDescription))
	if v, ok := desc.floatValue("max"); !ok || v != 12.5 {
		t.Errorf("Expected max=12.5 in description, got %q", desc["max"])
	}
}

func TestDecodeUncalibrated(t *testing.T) {
	im, _ := models.NewImage("plain", 2, 2, 1, 1, 1)
	data, err := EncodeFloatTIFF(im, 0, 0)
	if err != nil {
		t.Fatalf("EncodeFloatTIFF failed: %v", err)
	}
	got, err := Decode(data, "plain")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Calibration != models.DefaultCalibration() {
		t.Errorf("Expected default calibration, got %+v", got.Calibration)
	}
}

func grayPattern() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, 4, 3))
	for i := range g.Pix {
		g.Pix[i] = uint8(i * 20)
	}
	return g
}

func TestFineCalibrationRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		size float64
		unit string
	}{
		{"Centimetre", 1e-05, "cm"},
		{"TinyPixels", 2.5e-07, "mm"},
		{"Coarse", 12.5, "micron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im, _ := models.NewImage("fine", 2, 2, 1, 1, 1)
			im.Calibration = models.Calibration{PixelWidth: tt.size, PixelHeight: tt.size, Unit: tt.unit}
			data, err := EncodeFloatTIFF(im, 0, 1)
			if err != nil {
				t.Fatalf("EncodeFloatTIFF failed: %v", err)
			}
			got, err := Decode(data, "fine")
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if math.Abs(got.Calibration.PixelWidth-tt.size)/tt.size > 1e-6 {
				t.Errorf("Expected pixel width %g, got %g", tt.size, got.Calibration.PixelWidth)
			}
			if got.Calibration.Unit != tt.unit {
				t.Errorf("Expected unit %s, got %s", tt.unit, got.Calibration.Unit)
			}
		})
	}
}

func TestDecodeEightBit(t *testing.T) {
	g := grayPattern()

	t.Run("PNG", func(t *testing.T) {
		data, err := EncodePNG(g)
		if err != nil {
			t.Fatalf("EncodePNG failed: %v", err)
		}
		checkGray(t, data, g)
	})

	t.Run("UncompressedTIFF", func(t *testing.T) {
		var buf bytes.Buffer
		if err := tiff.Encode(&buf, g, nil); err != nil {
			t.Fatalf("tiff.Encode failed: %v", err)
		}
		checkGray(t, buf.Bytes(), g)
	})

	t.Run("DeflateTIFF", func(t *testing.T) {
		var buf bytes.Buffer
		if err := tiff.Encode(&buf, g, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			t.Fatalf("tiff.Encode failed: %v", err)
		}
		checkGray(t, buf.Bytes(), g)
	})
}

func checkGray(t *testing.T, data []byte, want *image.Gray) {
	t.Helper()
	got, err := Decode(data, "gray")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.NPlanes() != 1 || got.Width != 4 || got.Height != 3 {
		t.Fatalf("Expected one 4x3 plane, got %d planes of %dx%d", got.NPlanes(), got.Width, got.Height)
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			if v := got.At(0, x, y); v != float64(want.GrayAt(x, y).Y) {
				t.Errorf("Pixel (%d,%d): expected %d, got %f", x, y, want.GrayAt(x, y).Y, v)
			}
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.tif")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestWriteZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.zip")
	err := WriteZip(path, ZipEntry{"a.tif", []byte("one")}, ZipEntry{"a.png", []byte("two")})
	if err != nil {
		t.Fatalf("WriteZip failed: %v", err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("Failed to open zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 2 || zr.File[0].Name != "a.tif" || zr.File[1].Name != "a.png" {
		t.Errorf("Expected entries [a.tif a.png], got %d entries", len(zr.File))
	}
}

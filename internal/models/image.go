package models

import (
	"fmt"
)

// DefaultUnit is the unit label of an uncalibrated image.
const DefaultUnit = "pixel"

// Calibration holds the physical size of a pixel
type Calibration struct {
	// PixelWidth is the width of one pixel in Unit
	PixelWidth float64

	// PixelHeight is the height of one pixel in Unit
	PixelHeight float64

	// Unit is the label of the physical unit (e.g. "micron")
	Unit string
}

// DefaultCalibration returns the 1 pixel = 1 pixel calibration
func DefaultCalibration() Calibration {
	return Calibration{PixelWidth: 1, PixelHeight: 1, Unit: DefaultUnit}
}

// PixelArea returns the physical area covered by one pixel
func (c Calibration) PixelArea() float64 {
	return c.PixelWidth * c.PixelHeight
}

// UnitLabel returns the unit, falling back to DefaultUnit when unset
func (c Calibration) UnitLabel() string {
	if c.Unit == "" {
		return DefaultUnit
	}
	return c.Unit
}

// Scaled reports whether the calibration differs from the pixel identity
func (c Calibration) Scaled() bool {
	return c.PixelWidth != 1 || c.PixelHeight != 1 || c.UnitLabel() != DefaultUnit
}

// Image is a multi-dimensional pixel buffer with its calibration.
// Planes are stored channel-fastest, then slice, then frame.
type Image struct {
	// Title is a display name, usually the file base name
	Title string

	// Width and Height are the plane dimensions in pixels
	Width, Height int

	// Channels, Slices and Frames are the hyperstack extents (all >= 1)
	Channels, Slices, Frames int

	// Planes holds Width*Height values per plane
	Planes [][]float32

	// Calibration is the physical pixel size
	Calibration Calibration
}

// NewImage allocates a zero-filled image
func NewImage(title string, width, height, channels, slices, frames int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if channels < 1 || slices < 1 || frames < 1 {
		return nil, fmt.Errorf("invalid image extents c=%d z=%d t=%d", channels, slices, frames)
	}

	n := channels * slices * frames
	planes := make([][]float32, n)
	for i := range planes {
		planes[i] = make([]float32, width*height)
	}

	return &Image{
		Title:       title,
		Width:       width,
		Height:      height,
		Channels:    channels,
		Slices:      slices,
		Frames:      frames,
		Planes:      planes,
		Calibration: DefaultCalibration(),
	}, nil
}

// NPlanes returns the number of stored planes
func (im *Image) NPlanes() int {
	return len(im.Planes)
}

// PlaneIndex converts 1-based (c, z, t) coordinates to a plane index.
// Out of range coordinates are clamped, as ImageJ does when positioning a stack.
func (im *Image) PlaneIndex(c, z, t int) int {
	c = clamp(c, 1, im.Channels)
	z = clamp(z, 1, im.Slices)
	t = clamp(t, 1, im.Frames)
	return (t-1)*im.Slices*im.Channels + (z-1)*im.Channels + (c - 1)
}

// InBounds reports whether (x, y) lies inside a plane
func (im *Image) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < im.Width && y < im.Height
}

// At returns the value at (x, y) of the given plane
func (im *Image) At(plane, x, y int) float64 {
	return float64(im.Planes[plane][y*im.Width+x])
}

// Set stores a value at (x, y) of the given plane
func (im *Image) Set(plane, x, y int, v float64) {
	im.Planes[plane][y*im.Width+x] = float32(v)
}

// Add adds v to the value at (x, y) of the given plane
func (im *Image) Add(plane, x, y int, v float64) {
	im.Planes[plane][y*im.Width+x] += float32(v)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

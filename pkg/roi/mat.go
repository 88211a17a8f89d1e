package roi

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// grayMat copies a non-empty mask into an 8-bit single-channel Mat owned by
// the caller.
func grayMat(m *image.Gray) (gocv.Mat, error) {
	w, h := m.Rect.Dx(), m.Rect.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), fmt.Errorf("empty mask")
	}
	buf := make([]byte, w*h)
	for y := 0; y < h; y++ {
		off := m.PixOffset(m.Rect.Min.X, m.Rect.Min.Y+y)
		copy(buf[y*w:(y+1)*w], m.Pix[off:off+w])
	}
	view, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer view.Close()
	return view.Clone(), nil
}

// matGray copies an 8-bit single-channel Mat into a mask whose top-left
// corner is at origin.
func matGray(mat gocv.Mat, origin image.Point) *image.Gray {
	rect := image.Rect(origin.X, origin.Y, origin.X+mat.Cols(), origin.Y+mat.Rows())
	return &image.Gray{Pix: mat.ToBytes(), Stride: mat.Cols(), Rect: rect}
}

// countNonZero returns the number of set pixels of a mask.
func countNonZero(m *image.Gray) int {
	mat, err := grayMat(m)
	if err != nil {
		return 0
	}
	defer mat.Close()
	return gocv.CountNonZero(mat)
}

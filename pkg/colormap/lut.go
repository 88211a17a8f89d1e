package colormap

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"strings"

	"gocv.io/x/gocv"
)

// ErrUnknownLUT is returned when a lookup table name is not supported.
var ErrUnknownLUT = errors.New("unknown lookup table")

// LUT maps 8-bit intensities to colours.
type LUT struct {
	Name     string
	colormap gocv.ColormapTypes
	identity bool
}

// ImageJ lookup table names and the OpenCV colour maps closest to them.
var luts = map[string]LUT{
	"Grays":    {Name: "Grays", identity: true},
	"Fire":     {Name: "Fire", colormap: gocv.ColormapHot},
	"Ice":      {Name: "Ice", colormap: gocv.ColormapOcean},
	"Spectrum": {Name: "Spectrum", colormap: gocv.ColormapHsv},
	"HSV":      {Name: "HSV", colormap: gocv.ColormapHsv},
	"Jet":      {Name: "Jet", colormap: gocv.ColormapJet},
	"Cool":     {Name: "Cool", colormap: gocv.ColormapCool},
	"Hot":      {Name: "Hot", colormap: gocv.ColormapHot},
	"Rainbow":  {Name: "Rainbow", colormap: gocv.ColormapRainbow},
	"Autumn":   {Name: "Autumn", colormap: gocv.ColormapAutumn},
	"Bone":     {Name: "Bone", colormap: gocv.ColormapBone},
	"Winter":   {Name: "Winter", colormap: gocv.ColormapWinter},
	"Summer":   {Name: "Summer", colormap: gocv.ColormapSummer},
	"Spring":   {Name: "Spring", colormap: gocv.ColormapSpring},
	"Pink":     {Name: "Pink", colormap: gocv.ColormapPink},
	"Parula":   {Name: "Parula", colormap: gocv.ColormapParula},
	"Ocean":    {Name: "Ocean", colormap: gocv.ColormapOcean},
}

// LookupLUT returns the table registered under name (case-insensitive).
func LookupLUT(name string) (LUT, error) {
	for k, l := range luts {
		if strings.EqualFold(k, strings.TrimSpace(name)) {
			return l, nil
		}
	}
	return LUT{}, fmt.Errorf("%w: %q", ErrUnknownLUT, name)
}

// LUTNames lists the supported table names, sorted.
func LUTNames() []string {
	names := make([]string, 0, len(luts))
	for k := range luts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// apply colours an 8-bit single-channel Mat. The result is a BGR Mat owned
// by the caller.
func (l LUT) apply(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	if l.identity {
		gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
		return dst
	}
	gocv.ApplyColorMap(src, &dst, l.colormap)
	return dst
}

// Palette returns the colour of every 8-bit intensity.
func (l LUT) Palette() [256]color.RGBA {
	var pal [256]color.RGBA
	src := gocv.NewMatWithSize(1, 256, gocv.MatTypeCV8UC1)
	defer src.Close()
	for i := 0; i < 256; i++ {
		src.SetUCharAt(0, i, uint8(i))
	}

	dst := l.apply(src)
	defer dst.Close()
	for i := 0; i < 256; i++ {
		v := dst.GetVecbAt(0, i)
		pal[i] = color.RGBA{R: v[2], G: v[1], B: v[0], A: 255}
	}
	return pal
}

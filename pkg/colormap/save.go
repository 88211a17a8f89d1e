package colormap

import (
	"fmt"

	"plasmoquant/pkg/imageio"
)

// Bundle returns the files stored for a colour map: the float stack as
// <title>.tif followed by one LUT-rendered PNG preview per plane.
func Bundle(cm *ColorMap, lut LUT, legend bool) ([]imageio.ZipEntry, error) {
	tif, err := imageio.EncodeFloatTIFF(cm.Image, cm.Min, cm.Max)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", cm.Title(), err)
	}
	entries := []imageio.ZipEntry{{Name: cm.Title() + ".tif", Data: tif}}

	previews, err := Colorize(cm, lut, legend)
	if err != nil {
		return nil, fmt.Errorf("failed to colorize %s: %w", cm.Title(), err)
	}
	for p, img := range previews {
		name := cm.Title() + ".png"
		if len(previews) > 1 {
			name = fmt.Sprintf("%s_%04d.png", cm.Title(), p+1)
		}
		data, err := imageio.EncodePNG(img)
		if err != nil {
			return nil, err
		}
		entries = append(entries, imageio.ZipEntry{Name: name, Data: data})
	}
	return entries, nil
}

// Save writes the bundle of a colour map to a zip file at path.
func Save(path string, cm *ColorMap, lut LUT, legend bool) error {
	entries, err := Bundle(cm, lut, legend)
	if err != nil {
		return err
	}
	return imageio.WriteZip(path, entries...)
}

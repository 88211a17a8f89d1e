package analysis

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"plasmoquant/internal/models"
	"plasmoquant/pkg/imageio"
	"plasmoquant/pkg/roi"
)

// Source lists the files of one analysis unit.
type Source struct {
	// OriWalls is the full-resolution wall channel
	OriWalls string

	// OriPDs is the full-resolution PD channel
	OriPDs string

	// ScaledWalls is the wall image the outlines were drawn on
	ScaledWalls string

	// SegmentedPDs is the binary PD mask, PDs appearing as single points
	SegmentedPDs string

	// Rois is the RoiSet holding the cell outlines
	Rois string
}

// paths returns the source paths in a fixed order.
func (s Source) paths() []string {
	return []string{s.OriWalls, s.OriPDs, s.ScaledWalls, s.SegmentedPDs, s.Rois}
}

// MissingInputError reports every input file that could not be found.
type MissingInputError struct {
	Missing []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing %d input file(s): %s", len(e.Missing), strings.Join(e.Missing, ", "))
}

// Loader opens the inputs of a unit.
type Loader interface {
	LoadImage(path string) (*models.Image, error)
	LoadRois(path string) (*roi.Collection, error)
}

// FileLoader reads TIFF/PNG images and ImageJ RoiSets from disk.
type FileLoader struct{}

// LoadImage implements Loader.
func (FileLoader) LoadImage(path string) (*models.Image, error) {
	return imageio.Load(path)
}

// LoadRois implements Loader.
func (FileLoader) LoadRois(path string) (*roi.Collection, error) {
	return roi.ReadFile(path)
}

// Unit holds the loaded inputs of one analysis. Units share no state.
type Unit struct {
	OriWalls     *models.Image
	OriPDs       *models.Image
	ScaledWalls  *models.Image
	SegmentedPDs *models.Image
	Rois         *roi.Collection
}

// SetSource checks that every file of src exists, then loads them. When any
// file is missing, each one is logged and nothing is loaded.
func SetSource(src Source, loader Loader, log logrus.FieldLogger) (*Unit, error) {
	if loader == nil {
		loader = FileLoader{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	var missing []string
	for _, p := range src.paths() {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		log.Warn("Missing at least one file")
		for _, p := range missing {
			log.WithField("path", p).Warn("File not found")
		}
		return nil, &MissingInputError{Missing: missing}
	}

	images := make([]*models.Image, 4)
	for i, p := range src.paths()[:4] {
		im, err := loader.LoadImage(p)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
		images[i] = im
	}
	rois, err := loader.LoadRois(src.Rois)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", src.Rois, err)
	}
	return NewUnit(images[0], images[1], images[2], images[3], rois)
}

// NewUnit builds a unit from images and outlines that are already loaded.
func NewUnit(oriWalls, oriPDs, scaledWalls, segmentedPDs *models.Image, rois *roi.Collection) (*Unit, error) {
	named := []struct {
		name string
		im   *models.Image
	}{
		{"original walls", oriWalls},
		{"original PDs", oriPDs},
		{"scaled walls", scaledWalls},
		{"segmented PDs", segmentedPDs},
	}
	for _, n := range named {
		if n.im == nil {
			return nil, fmt.Errorf("no %s image", n.name)
		}
	}
	if rois.Len() == 0 {
		return nil, fmt.Errorf("no cell outlines")
	}
	return &Unit{
		OriWalls:     oriWalls,
		OriPDs:       oriPDs,
		ScaledWalls:  scaledWalls,
		SegmentedPDs: segmentedPDs,
		Rois:         rois,
	}, nil
}

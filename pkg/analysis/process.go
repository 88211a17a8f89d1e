// Package analysis runs the plasmodesmata pipeline for one or many units:
// adapt the outlines to the full-resolution images, fuse them per tag,
// quantify, and save outlines, tables and colour maps.
package analysis

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"plasmoquant/internal/models"
	"plasmoquant/pkg/quantify"
	"plasmoquant/pkg/results"
	"plasmoquant/pkg/roi"
)

// Options holds the analysis parameters.
type Options struct {
	// WallMargin enlarges cell outlines before PDs are searched
	WallMargin int

	// PDMargin enlarges every PD before its signal is sampled
	PDMargin int

	// Separator splits ROI names into tag and the rest
	Separator string

	// CountPDsInEnlargedWalls counts PDs on the enlarged outlines
	CountPDsInEnlargedWalls bool

	// OutputDir receives the files of every unit run in a batch
	OutputDir string

	// LUT names the lookup table of colour map previews
	LUT string

	// Legend draws a calibration bar on colour map previews
	Legend bool
}

// DefaultOptions returns the usual margins (walls 2, PDs 1), "_" as
// separator and the Fire lookup table.
func DefaultOptions() Options {
	return Options{
		WallMargin: 2,
		PDMargin:   1,
		Separator:  "_",
		OutputDir:  ".",
		LUT:        "Fire",
		Legend:     true,
	}
}

// Result holds everything one unit produces.
type Result struct {
	// ScaleFactor maps outline coordinates onto the original images
	ScaleFactor float64

	// ScaledRois are the cell outlines on the original images
	ScaledRois *roi.Collection

	// TagRois holds one fused outline per tag
	TagRois *roi.Collection

	// Categories maps tags to their members in ScaledRois
	Categories roi.Categories

	// PerCell and PerTag are the measurements of ScaledRois and TagRois
	PerCell *results.Table
	PerTag  *results.Table

	// Reference is the image colour maps take their geometry from
	Reference *models.Image
}

// Analyzer runs the pipeline.
type Analyzer struct {
	Options   Options
	Log       logrus.FieldLogger
	Persister Persister
	Loader    Loader
}

// NewAnalyzer creates an analyzer writing files to disk and logging to the
// standard logger.
func NewAnalyzer(opts Options) *Analyzer {
	return &Analyzer{
		Options:   opts,
		Log:       logrus.StandardLogger(),
		Persister: FilePersister{},
		Loader:    FileLoader{},
	}
}

func (a *Analyzer) logger() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

// Process scales the unit's outlines to the original images, fuses them per
// tag and quantifies both sets.
func (a *Analyzer) Process(u *Unit, wallMargin, pdMargin int) (*Result, error) {
	if u == nil {
		return nil, fmt.Errorf("no unit to process")
	}
	if u.ScaledWalls.Width == 0 {
		return nil, fmt.Errorf("scaled walls image has zero width")
	}
	log := a.logger()
	start := time.Now()

	f := float64(u.OriWalls.Width) / float64(u.ScaledWalls.Width)

	log.WithField("factor", f).Info("Step 1: Scaling ROIs to the original images...")
	scaled := roi.ScaleCollection(u.Rois, f, log)

	log.Info("Step 2: Fusing ROIs per tag...")
	tagged, cats, err := roi.Fuse(scaled, a.Options.Separator, log)
	if err != nil {
		return nil, fmt.Errorf("failed to fuse ROIs: %w", err)
	}

	engine := &quantify.Engine{
		Mask:                 u.SegmentedPDs,
		Signal:               u.OriPDs,
		Separator:            a.Options.Separator,
		CountInEnlargedWalls: a.Options.CountPDsInEnlargedWalls,
		Log:                  log,
	}

	log.Info("Step 3: Quantifying per cell...")
	perCell, err := engine.Quantify(scaled, wallMargin, pdMargin)
	if err != nil {
		return nil, fmt.Errorf("failed to quantify cells: %w", err)
	}

	log.Info("Step 4: Quantifying per tag...")
	perTag, err := engine.Quantify(tagged, wallMargin, pdMargin)
	if err != nil {
		return nil, fmt.Errorf("failed to quantify tags: %w", err)
	}

	log.WithFields(logrus.Fields{
		"cells":   scaled.Len(),
		"tags":    len(cats.Tags),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("Processing complete")

	return &Result{
		ScaleFactor: f,
		ScaledRois:  scaled,
		TagRois:     tagged,
		Categories:  cats,
		PerCell:     perCell,
		PerTag:      perTag,
		Reference:   u.OriWalls,
	}, nil
}

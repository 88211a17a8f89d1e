// Package quantify measures plasmodesmata per region: cell area, PD count
// from the segmentation mask, and PD signal sampled around detected peaks.
package quantify

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"plasmoquant/internal/models"
	"plasmoquant/pkg/results"
	"plasmoquant/pkg/roi"
)

// MaskValue is the foreground value of a binary segmentation mask.
const MaskValue = 255

// Column headings that depend on the calibration unit and the margins.
func areaCellColumn(unit string) string    { return "Area_Cell_" + unit + "2" }
func densityColumn(unit string) string     { return "Nb_PDs_per_Cell_Area_" + unit + "2" }
func nbPDsColumn(wallMargin int) string    { return fmt.Sprintf("Nb_PDs_(enlarge=%d)", wallMargin) }
func meanSignalColumn(pdMargin int) string { return fmt.Sprintf("Mean_Signal_PDs_perPixel_(enlarge=%d)", pdMargin) }

func areaPDsColumn(unit string, pdMargin int) string {
	return fmt.Sprintf("Area_PDs_%s2_(enlarge=%d)", unit, pdMargin)
}

// Columns returns the metric headings Quantify emits, in order.
func Columns(cal models.Calibration, wallMargin, pdMargin int) []string {
	unit := cal.UnitLabel()
	return []string{
		areaCellColumn(unit),
		nbPDsColumn(wallMargin),
		areaPDsColumn(unit, pdMargin),
		densityColumn(unit),
		meanSignalColumn(pdMargin),
	}
}

// Engine measures regions against a binary PD mask and a PD signal image of
// the same geometry. Neither image is modified.
type Engine struct {
	// Mask is the binary (0/MaskValue) PD segmentation; its calibration
	// scales every area
	Mask *models.Image

	// Signal is the raw PD channel sampled around each detected PD
	Signal *models.Image

	// Separator splits region names into structure and the rest
	Separator string

	// CountInEnlargedWalls counts PDs over the enlarged wall region instead
	// of the region itself
	CountInEnlargedWalls bool

	// Log receives per-region progress
	Log logrus.FieldLogger
}

// NewEngine creates an engine logging to the standard logger.
func NewEngine(mask, signal *models.Image, separator string) *Engine {
	return &Engine{Mask: mask, Signal: signal, Separator: separator, Log: logrus.StandardLogger()}
}

// Quantify measures every region of c, in order, and returns one row per
// region. wallMargin enlarges each region before counting peaks; pdMargin
// enlarges every detected peak before sampling the signal.
func (e *Engine) Quantify(c *roi.Collection, wallMargin, pdMargin int) (*results.Table, error) {
	if e.Mask == nil || e.Signal == nil {
		return nil, fmt.Errorf("quantification needs both a mask and a signal image")
	}
	log := e.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	cal := e.Mask.Calibration
	pixelArea := cal.PixelArea()
	cols := Columns(cal, wallMargin, pdMargin)
	table := results.NewTable(cols...)

	for i := 0; i < c.Len(); i++ {
		r := c.Get(i)
		log.WithFields(logrus.Fields{"stage": "quantification", "current": i + 1, "total": c.Len()}).Debug("Processing ROI")

		row, err := e.measure(r, wallMargin, pdMargin)
		if err != nil {
			return nil, fmt.Errorf("failed to quantify %q: %w", r.Name, err)
		}

		err = table.AddRow(r.Name, roi.Structure(r.Name, e.Separator),
			results.Metric{Name: cols[0], Value: float64(row.cellCount) * pixelArea},
			results.Metric{Name: cols[1], Value: float64(row.nPDs)},
			results.Metric{Name: cols[2], Value: float64(row.pdCount) * pixelArea},
			results.Metric{Name: cols[3], Value: float64(row.nPDs) / (float64(row.pdCount) * pixelArea)},
			results.Metric{Name: cols[4], Value: row.pdMean},
		)
		if err != nil {
			return nil, err
		}
	}
	return table, nil
}

type measurement struct {
	cellCount int
	nPDs      int
	pdCount   int
	pdMean    float64
}

func (e *Engine) measure(r *roi.Region, wallMargin, pdMargin int) (measurement, error) {
	plane := RegionPlane(e.Mask, r)
	cell := Measure(e.Mask, plane, r)

	enlarged, err := roi.Enlarge(r, wallMargin)
	if err != nil {
		return measurement{}, fmt.Errorf("failed to enlarge wall: %w", err)
	}

	counted := cell
	if e.CountInEnlargedWalls {
		counted = Measure(e.Mask, plane, enlarged)
	}
	nPDs := int(math.Floor(counted.Sum / MaskValue))

	peaks, err := FindMaxima(e.Mask, plane, enlarged)
	if err != nil {
		return measurement{}, fmt.Errorf("failed to find PDs: %w", err)
	}

	var sampling *roi.Region
	if len(peaks) > 0 {
		sampling, err = roi.Enlarge(roi.NewPoints(r.Name, peaks), pdMargin)
		if err != nil {
			return measurement{}, fmt.Errorf("failed to enlarge PDs: %w", err)
		}
		sampling.Position = r.Position
	}
	pd := Measure(e.Signal, RegionPlane(e.Signal, r), sampling)

	return measurement{
		cellCount: cell.Count,
		nPDs:      nPDs,
		pdCount:   pd.Count,
		pdMean:    pd.Mean,
	}, nil
}

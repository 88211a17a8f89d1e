package analysis

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"plasmoquant/pkg/colormap"
	"plasmoquant/pkg/results"
	"plasmoquant/pkg/roi"
)

// Persister stores the outputs of a unit.
type Persister interface {
	SaveRegions(path string, c *roi.Collection) error
	SaveTable(path string, t *results.Table) error
	SaveColorMap(path string, cm *colormap.ColorMap, lut colormap.LUT, legend bool) error
}

// FilePersister writes RoiSet zips, CSV tables and colour map zips.
type FilePersister struct{}

// SaveRegions implements Persister.
func (FilePersister) SaveRegions(path string, c *roi.Collection) error {
	return roi.WriteFile(path, c)
}

// SaveTable implements Persister.
func (FilePersister) SaveTable(path string, t *results.Table) error {
	return results.WriteFile(path, t)
}

// SaveColorMap implements Persister.
func (FilePersister) SaveColorMap(path string, cm *colormap.ColorMap, lut colormap.LUT, legend bool) error {
	return colormap.Save(path, cm, lut, legend)
}

// Output file name suffixes.
const (
	suffixScaledRois    = "_scaledRoisWalls.zip"
	suffixTagRois       = "_scaledRoisWallsPerTag.zip"
	suffixPerCell       = "_resultsPerCell.csv"
	suffixPerTag        = "_resultsPerTag.csv"
	colorMapPerCell     = "_ColorMap_perIndividualCell_"
	colorMapPerTag      = "_ColorMap_perTagAsOneCell_"
	colorMapZipFileType = ".zip"
)

// OutputNames returns, in writing order, the file names Save produces for
// basename and the given tables.
func OutputNames(basename string, perCell, perTag *results.Table) []string {
	names := []string{
		basename + suffixScaledRois,
		basename + suffixTagRois,
		basename + suffixPerCell,
		basename + suffixPerTag,
	}
	for _, p := range colormap.NumericColumns(perCell) {
		names = append(names, basename+colorMapPerCell+p+colorMapZipFileType)
	}
	for _, p := range colormap.NumericColumns(perTag) {
		names = append(names, basename+colorMapPerTag+p+colorMapZipFileType)
	}
	return names
}

// Save writes the outlines, both tables and one colour map per numeric
// column of each table to outDir, every name prefixed by basename.
func (a *Analyzer) Save(res *Result, outDir, basename, lutName string) error {
	if res == nil {
		return fmt.Errorf("nothing to save")
	}
	log := a.logger()
	p := a.Persister
	if p == nil {
		p = FilePersister{}
	}
	lut, err := colormap.LookupLUT(lutName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := func(suffix string) string { return filepath.Join(outDir, basename+suffix) }

	log.Info("Step 5: Saving ROIs and results...")
	if err := p.SaveRegions(path(suffixScaledRois), res.ScaledRois); err != nil {
		return fmt.Errorf("failed to save scaled ROIs: %w", err)
	}
	if err := p.SaveRegions(path(suffixTagRois), res.TagRois); err != nil {
		return fmt.Errorf("failed to save tag ROIs: %w", err)
	}
	if err := p.SaveTable(path(suffixPerCell), res.PerCell); err != nil {
		return fmt.Errorf("failed to save per-cell results: %w", err)
	}
	if err := p.SaveTable(path(suffixPerTag), res.PerTag); err != nil {
		return fmt.Errorf("failed to save per-tag results: %w", err)
	}

	log.Info("Step 6: Rendering color maps...")
	sets := []struct {
		kind    string
		regions *roi.Collection
		table   *results.Table
	}{
		{colorMapPerCell, res.ScaledRois, res.PerCell},
		{colorMapPerTag, res.TagRois, res.PerTag},
	}
	for _, s := range sets {
		for _, param := range colormap.NumericColumns(s.table) {
			cm, err := colormap.Render(res.Reference, param, s.regions, s.table, log)
			if err != nil {
				return fmt.Errorf("failed to render color map for %s: %w", param, err)
			}
			target := path(s.kind + param + colorMapZipFileType)
			if err := p.SaveColorMap(target, cm, lut, a.Options.Legend); err != nil {
				return fmt.Errorf("failed to save color map for %s: %w", param, err)
			}
			log.WithFields(logrus.Fields{"param": param, "path": target}).Debug("Saved color map")
		}
	}
	return nil
}

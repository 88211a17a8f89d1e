package analysis

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"plasmoquant/internal/models"
	"plasmoquant/pkg/colormap"
	"plasmoquant/pkg/imageio"
	"plasmoquant/pkg/results"
	"plasmoquant/pkg/roi"
)

func plane(t *testing.T, title string, w, h int, fill float64) *models.Image {
	t.Helper()
	im, err := models.NewImage(title, w, h, 1, 1, 1)
	if err != nil {
		t.Fatalf("Failed to create image: %v", err)
	}
	for i := range im.Planes[0] {
		im.Planes[0][i] = float32(fill)
	}
	return im
}

// fixtureUnit builds a 40x40 unit whose outlines were drawn on a 20x20
// image: two A cells, one B cell, an untagged cell and a sliver.
func fixtureUnit(t *testing.T) *Unit {
	t.Helper()
	oriWalls := plane(t, "walls", 40, 40, 0)
	scaledWalls := plane(t, "walls_small", 20, 20, 0)
	oriPDs := plane(t, "pds", 40, 40, 10)
	mask := plane(t, "mask", 40, 40, 0)
	mask.Set(0, 5, 5, 255)
	mask.Set(0, 10, 10, 255)
	mask.Set(0, 25, 5, 255)

	rois := roi.NewCollection(
		roi.NewRect("A_cell1", 1, 1, 8, 8),
		roi.NewRect("thin_sliver", 15, 15, 0.1, 3),
		roi.NewRect("A_cell2", 11, 1, 8, 8),
		roi.NewRect("B_cell1", 1, 11, 8, 8),
		roi.NewRect("lonely", 11, 11, 4, 4),
	)
	u, err := NewUnit(oriWalls, oriPDs, scaledWalls, mask, rois)
	if err != nil {
		t.Fatalf("NewUnit failed: %v", err)
	}
	return u
}

func quietAnalyzer() *Analyzer {
	log, _ := test.NewNullLogger()
	a := NewAnalyzer(DefaultOptions())
	a.Log = log
	return a
}

func metric(t *testing.T, tbl *results.Table, row int, name string) float64 {
	t.Helper()
	v, err := tbl.Value(row, name)
	if err != nil {
		t.Fatalf("Value(%d, %s) failed: %v", row, name, err)
	}
	return v
}

func TestProcess(t *testing.T) {
	res, err := quietAnalyzer().Process(fixtureUnit(t), 2, 1)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if res.ScaleFactor != 2 {
		t.Errorf("Expected scale factor 2, got %f", res.ScaleFactor)
	}
	wantCells := []string{"A_cell1", "A_cell2", "B_cell1", "lonely"}
	if got := res.ScaledRois.Names(); !reflect.DeepEqual(got, wantCells) {
		t.Errorf("Expected cells %v, got %v", wantCells, got)
	}
	if !reflect.DeepEqual(res.Categories.Tags, []string{"A", "B"}) {
		t.Errorf("Expected tags [A B], got %v", res.Categories.Tags)
	}

	t.Run("PerCell", func(t *testing.T) {
		tbl := res.PerCell
		if tbl.Len() != 4 {
			t.Fatalf("Expected 4 rows, got %d", tbl.Len())
		}
		if v := metric(t, tbl, 0, "Area_Cell_pixel2"); v != 256 {
			t.Errorf("Expected A_cell1 area 256, got %f", v)
		}
		if v := metric(t, tbl, 0, "Nb_PDs_(enlarge=2)"); v != 2 {
			t.Errorf("Expected 2 PDs in A_cell1, got %f", v)
		}
		if v := metric(t, tbl, 0, "Area_PDs_pixel2_(enlarge=1)"); v != 10 {
			t.Errorf("Expected PD area 10 in A_cell1, got %f", v)
		}
		if v := metric(t, tbl, 0, "Mean_Signal_PDs_perPixel_(enlarge=1)"); v != 10 {
			t.Errorf("Expected mean signal 10, got %f", v)
		}
		if v := metric(t, tbl, 1, "Nb_PDs_(enlarge=2)"); v != 1 {
			t.Errorf("Expected 1 PD in A_cell2, got %f", v)
		}
		if v := metric(t, tbl, 2, "Mean_Signal_PDs_perPixel_(enlarge=1)"); !math.IsNaN(v) {
			t.Errorf("Expected NaN signal for B_cell1, got %f", v)
		}
		if tbl.Rows[3].Structure != "lonely" {
			t.Errorf("Expected structure lonely, got %s", tbl.Rows[3].Structure)
		}
	})

	t.Run("PerTag", func(t *testing.T) {
		tbl := res.PerTag
		if tbl.Len() != 2 {
			t.Fatalf("Expected 2 rows, got %d", tbl.Len())
		}
		if tbl.Rows[0].RoiName != "A" || tbl.Rows[1].RoiName != "B" {
			t.Errorf("Expected rows A, B, got %s, %s", tbl.Rows[0].RoiName, tbl.Rows[1].RoiName)
		}
		if v := metric(t, tbl, 0, "Area_Cell_pixel2"); v != 512 {
			t.Errorf("Expected A area 512, got %f", v)
		}
		if v := metric(t, tbl, 0, "Nb_PDs_(enlarge=2)"); v != 3 {
			t.Errorf("Expected 3 PDs in A, got %f", v)
		}
		if v := metric(t, tbl, 1, "Area_Cell_pixel2"); v != 256 {
			t.Errorf("Expected B area 256, got %f", v)
		}
	})
}

func TestProcessLogsRemovedRegion(t *testing.T) {
	log, hook := test.NewNullLogger()
	a := NewAnalyzer(DefaultOptions())
	a.Log = log
	if _, err := a.Process(fixtureUnit(t), 2, 1); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	found := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["name"] == "thin_sliver" {
			found = true
		}
	}
	if !found {
		t.Error("Expected a warning naming the removed sliver")
	}
}

type recordingPersister struct {
	paths []string
}

func (p *recordingPersister) SaveRegions(path string, _ *roi.Collection) error {
	p.paths = append(p.paths, filepath.Base(path))
	return nil
}

func (p *recordingPersister) SaveTable(path string, _ *results.Table) error {
	p.paths = append(p.paths, filepath.Base(path))
	return nil
}

func (p *recordingPersister) SaveColorMap(path string, _ *colormap.ColorMap, _ colormap.LUT, _ bool) error {
	p.paths = append(p.paths, filepath.Base(path))
	return nil
}

func TestSaveFileNames(t *testing.T) {
	a := quietAnalyzer()
	rec := &recordingPersister{}
	a.Persister = rec

	res, err := a.Process(fixtureUnit(t), 2, 1)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if err := a.Save(res, t.TempDir(), "plant1", "Fire"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	want := []string{
		"plant1_scaledRoisWalls.zip",
		"plant1_scaledRoisWallsPerTag.zip",
		"plant1_resultsPerCell.csv",
		"plant1_resultsPerTag.csv",
		"plant1_ColorMap_perIndividualCell_Area_Cell_pixel2.zip",
		"plant1_ColorMap_perIndividualCell_Nb_PDs_(enlarge=2).zip",
		"plant1_ColorMap_perIndividualCell_Area_PDs_pixel2_(enlarge=1).zip",
		"plant1_ColorMap_perIndividualCell_Nb_PDs_per_Cell_Area_pixel2.zip",
		"plant1_ColorMap_perIndividualCell_Mean_Signal_PDs_perPixel_(enlarge=1).zip",
		"plant1_ColorMap_perTagAsOneCell_Area_Cell_pixel2.zip",
		"plant1_ColorMap_perTagAsOneCell_Nb_PDs_(enlarge=2).zip",
		"plant1_ColorMap_perTagAsOneCell_Area_PDs_pixel2_(enlarge=1).zip",
		"plant1_ColorMap_perTagAsOneCell_Nb_PDs_per_Cell_Area_pixel2.zip",
		"plant1_ColorMap_perTagAsOneCell_Mean_Signal_PDs_perPixel_(enlarge=1).zip",
	}
	if !reflect.DeepEqual(rec.paths, want) {
		t.Errorf("Expected files\n%v\ngot\n%v", want, rec.paths)
	}
	if got := OutputNames("plant1", res.PerCell, res.PerTag); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected OutputNames to match Save, got %v", got)
	}
}

func TestSaveUnknownLUT(t *testing.T) {
	a := quietAnalyzer()
	a.Persister = &recordingPersister{}
	res, err := a.Process(fixtureUnit(t), 2, 1)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if err := a.Save(res, t.TempDir(), "x", "NoSuchLUT"); !errors.Is(err, colormap.ErrUnknownLUT) {
		t.Errorf("Expected ErrUnknownLUT, got %v", err)
	}
}

func TestNewUnitValidation(t *testing.T) {
	im := plane(t, "im", 4, 4, 0)
	rois := roi.NewCollection(roi.NewRect("a", 0, 0, 2, 2))

	if _, err := NewUnit(nil, im, im, im, rois); err == nil {
		t.Error("Expected error for a missing image")
	}
	if _, err := NewUnit(im, im, im, im, roi.NewCollection()); err == nil {
		t.Error("Expected error for empty outlines")
	}
	if _, err := NewUnit(im, im, im, im, rois); err != nil {
		t.Errorf("Expected a valid unit, got %v", err)
	}
}

func TestSetSourceReportsEveryMissingFile(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "walls.tif")
	if err := os.WriteFile(present, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	src := Source{
		OriWalls:     present,
		OriPDs:       filepath.Join(dir, "pds.tif"),
		ScaledWalls:  filepath.Join(dir, "small.tif"),
		SegmentedPDs: filepath.Join(dir, "mask.tif"),
		Rois:         filepath.Join(dir, "RoiSet.zip"),
	}
	log, hook := test.NewNullLogger()

	_, err := SetSource(src, nil, log)
	var missing *MissingInputError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingInputError, got %v", err)
	}
	if len(missing.Missing) != 4 {
		t.Errorf("Expected 4 missing files, got %v", missing.Missing)
	}
	if len(hook.AllEntries()) != 5 {
		t.Errorf("Expected 5 log entries, got %d", len(hook.AllEntries()))
	}
}

// writeSource stores the fixture unit on disk and returns its source.
func writeSource(t *testing.T, dir string) Source {
	t.Helper()
	u := fixtureUnit(t)
	src := Source{
		OriWalls:     filepath.Join(dir, "walls.tif"),
		OriPDs:       filepath.Join(dir, "pds.tif"),
		ScaledWalls:  filepath.Join(dir, "walls_small.tif"),
		SegmentedPDs: filepath.Join(dir, "mask.tif"),
		Rois:         filepath.Join(dir, "RoiSet.zip"),
	}
	images := map[string]*models.Image{
		src.OriWalls:     u.OriWalls,
		src.OriPDs:       u.OriPDs,
		src.ScaledWalls:  u.ScaledWalls,
		src.SegmentedPDs: u.SegmentedPDs,
	}
	for path, im := range images {
		data, err := imageio.EncodeFloatTIFF(im, 0, 255)
		if err != nil {
			t.Fatalf("EncodeFloatTIFF failed: %v", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
	if err := roi.WriteFile(src.Rois, u.Rois); err != nil {
		t.Fatalf("Failed to write rois: %v", err)
	}
	return src
}

func TestRunBatch(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	good := writeSource(t, in)

	a := quietAnalyzer()
	a.Options.OutputDir = out
	jobs := []Job{
		{Basename: "good", Source: good},
		{Basename: "missing", Source: Source{OriWalls: filepath.Join(in, "nope.tif")}},
		{Basename: "again", Source: good},
	}
	res := a.RunBatch(jobs, 2)

	if len(res) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(res))
	}
	for _, i := range []int{0, 2} {
		if res[i].Err != nil {
			t.Errorf("Job %s failed: %v", res[i].Job.Basename, res[i].Err)
		}
	}
	var missing *MissingInputError
	if !errors.As(res[1].Err, &missing) {
		t.Errorf("Expected MissingInputError for the second job, got %v", res[1].Err)
	}

	tbl, err := results.ReadFile(filepath.Join(out, "good_resultsPerCell.csv"))
	if err != nil {
		t.Fatalf("Failed to read per-cell results: %v", err)
	}
	if tbl.Len() != 4 {
		t.Errorf("Expected 4 rows in the saved table, got %d", tbl.Len())
	}
	tags, err := roi.ReadFile(filepath.Join(out, "good_scaledRoisWallsPerTag.zip"))
	if err != nil {
		t.Fatalf("Failed to read tag ROIs: %v", err)
	}
	if !reflect.DeepEqual(tags.Names(), []string{"A", "B"}) {
		t.Errorf("Expected saved tags [A B], got %v", tags.Names())
	}
	for _, name := range OutputNames("again", res[2].Result.PerCell, res[2].Result.PerTag) {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}

type panickingLoader struct{}

func (panickingLoader) LoadImage(string) (*models.Image, error)  { panic("corrupt input") }
func (panickingLoader) LoadRois(string) (*roi.Collection, error) { panic("corrupt input") }

func TestRunBatchRecoversPanics(t *testing.T) {
	a := quietAnalyzer()
	a.Loader = panickingLoader{}
	a.Options.OutputDir = t.TempDir()

	res := a.RunBatch([]Job{{Basename: "boom", Source: writeSource(t, t.TempDir())}}, 1)
	if res[0].Err == nil || !strings.Contains(res[0].Err.Error(), "corrupt input") {
		t.Errorf("Expected the panic as an error, got %v", res[0].Err)
	}
}

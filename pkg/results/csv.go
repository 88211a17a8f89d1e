package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// FormatValue renders a metric the way the CSV files store it. Non-finite
// values use the NaN / Infinity / -Infinity spelling.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// ParseValue is the inverse of FormatValue. It also accepts Go's own
// spellings of the non-finite values.
func ParseValue(s string) (float64, error) {
	switch strings.TrimSpace(s) {
	case "NaN", "nan":
		return math.NaN(), nil
	case "Infinity", "+Infinity", "Inf", "+Inf", "inf":
		return math.Inf(1), nil
	case "-Infinity", "-Inf", "-inf":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Write stores the table as CSV with a heading row.
func Write(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headings()); err != nil {
		return fmt.Errorf("failed to write headings: %w", err)
	}
	record := make([]string, 2+len(t.metrics))
	for _, r := range t.Rows {
		record[0], record[1] = r.RoiName, r.Structure
		for j, name := range t.metrics {
			record[2+j] = FormatValue(r.Metrics[name])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %q: %w", r.RoiName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile stores the table as a CSV file at path.
func WriteFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read parses a CSV produced by Write. A leading row-number column, as
// written by ImageJ's results tables, is skipped.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	headings, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read headings: %w", err)
	}

	skip := 0
	if len(headings) > 0 && strings.TrimSpace(headings[0]) == "" {
		skip = 1
	}
	headings = headings[skip:]
	if len(headings) < 2 || headings[0] != ColRoiName || headings[1] != ColStructure {
		return nil, fmt.Errorf("expected %s,%s as first columns, got %v", ColRoiName, ColStructure, headings)
	}
	names := headings[2:]

	t := NewTable(names...)
	if t.metrics == nil {
		t.metrics = []string{}
	}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		record = record[skip:]

		metrics := make([]Metric, len(names))
		for j, name := range names {
			v, err := ParseValue(record[2+j])
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, name, err)
			}
			metrics[j] = Metric{Name: name, Value: v}
		}
		if err := t.AddRow(record[0], record[1], metrics...); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return t, nil
}

// ReadFile parses the CSV file at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

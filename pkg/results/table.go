// Package results holds the measurement table produced for each analysis unit
// and its CSV form.
package results

import (
	"fmt"
)

// Identity column headings.
const (
	ColRoiName   = "RoiName"
	ColStructure = "Structure"
)

// Metric is one named numeric value of a row.
type Metric struct {
	Name  string
	Value float64
}

// Row is one measured region.
type Row struct {
	RoiName   string
	Structure string
	Metrics   map[string]float64
}

// Table is an ordered list of rows sharing one metric schema. The first row
// added fixes the metric columns and their order.
type Table struct {
	Rows    []Row
	metrics []string
}

// NewTable creates an empty table. When metric names are given they fix
// the schema up front, so even a table without rows has its columns.
func NewTable(metrics ...string) *Table {
	if len(metrics) == 0 {
		return &Table{}
	}
	return &Table{metrics: append([]string(nil), metrics...)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// AddRow appends a row. Every row after the first must carry exactly the
// metrics of the first, in the same order.
func (t *Table) AddRow(roiName, structure string, metrics ...Metric) error {
	if len(t.Rows) == 0 && t.metrics == nil {
		t.metrics = make([]string, len(metrics))
		for i, m := range metrics {
			if m.Name == ColRoiName || m.Name == ColStructure {
				return fmt.Errorf("metric name %q is reserved", m.Name)
			}
			t.metrics[i] = m.Name
		}
	} else if err := t.checkSchema(metrics); err != nil {
		return fmt.Errorf("row %q: %w", roiName, err)
	}

	values := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		values[m.Name] = m.Value
	}
	t.Rows = append(t.Rows, Row{RoiName: roiName, Structure: structure, Metrics: values})
	return nil
}

func (t *Table) checkSchema(metrics []Metric) error {
	if len(metrics) != len(t.metrics) {
		return fmt.Errorf("expected %d metrics, got %d", len(t.metrics), len(metrics))
	}
	for i, m := range metrics {
		if m.Name != t.metrics[i] {
			return fmt.Errorf("expected metric %q at position %d, got %q", t.metrics[i], i, m.Name)
		}
	}
	return nil
}

// MetricNames returns the metric columns in order.
func (t *Table) MetricNames() []string {
	return append([]string(nil), t.metrics...)
}

// Headings returns every column heading: the identity columns followed by
// the metrics.
func (t *Table) Headings() []string {
	return append([]string{ColRoiName, ColStructure}, t.metrics...)
}

// HasMetric reports whether the table carries the metric column name.
func (t *Table) HasMetric(name string) bool {
	for _, m := range t.metrics {
		if m == name {
			return true
		}
	}
	return false
}

// Value returns the metric name of row i.
func (t *Table) Value(i int, name string) (float64, error) {
	if i < 0 || i >= len(t.Rows) {
		return 0, fmt.Errorf("row %d out of range [0,%d)", i, len(t.Rows))
	}
	v, ok := t.Rows[i].Metrics[name]
	if !ok {
		return 0, fmt.Errorf("no column %q", name)
	}
	return v, nil
}

// Column returns the values of a metric column in row order.
func (t *Table) Column(name string) ([]float64, error) {
	if !t.HasMetric(name) {
		return nil, fmt.Errorf("no column %q", name)
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Metrics[name]
	}
	return out, nil
}

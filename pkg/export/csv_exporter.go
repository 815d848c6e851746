package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is the tabular content of an export.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Validate rejects tables whose rows do not match the column count.
func (t Table) Validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// CSV renders tables as RFC 4180 CSV.
type CSV struct{}

// NewCSV builds a CSV renderer.
func NewCSV() *CSV {
	return &CSV{}
}

// ContentType of the rendered document.
func (CSV) ContentType() string { return "text/csv; charset=utf-8" }

// Extension of the rendered document.
func (CSV) Extension() string { return "csv" }

// Render writes the header row followed by every data row.
func (CSV) Render(table Table) ([]byte, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(table.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

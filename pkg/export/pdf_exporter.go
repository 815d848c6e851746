package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth  = 277.0 // A4 landscape minus margins
	rowHeight  = 7.0
	headHeight = 8.0
)

// PDF renders tables as a landscape A4 document, repeating the header on each page.
type PDF struct{}

// NewPDF builds a PDF renderer.
func NewPDF() *PDF {
	return &PDF{}
}

// ContentType of the rendered document.
func (PDF) ContentType() string { return "application/pdf" }

// Extension of the rendered document.
func (PDF) Extension() string { return "pdf" }

// Render draws the title and the table.
func (PDF) Render(table Table) ([]byte, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	doc := gofpdf.New("L", "mm", "A4", "")
	doc.SetMargins(10, 12, 10)
	doc.SetAutoPageBreak(true, 12)
	colWidth := pageWidth / float64(len(table.Columns))

	header := func() {
		doc.SetFont("Arial", "B", 10)
		doc.SetFillColor(230, 230, 230)
		for _, col := range table.Columns {
			doc.CellFormat(colWidth, headHeight, col, "1", 0, "C", true, 0, "")
		}
		doc.Ln(-1)
		doc.SetFont("Arial", "", 9)
	}
	doc.SetHeaderFunc(func() {
		if doc.PageNo() > 1 {
			header()
		}
	})

	doc.AddPage()
	if table.Title != "" {
		doc.SetFont("Arial", "B", 14)
		doc.CellFormat(0, 10, table.Title, "", 1, "L", false, 0, "")
		doc.Ln(2)
	}
	header()
	if len(table.Rows) == 0 {
		doc.CellFormat(pageWidth, rowHeight, "No sessions in this range", "1", 1, "C", false, 0, "")
	}
	for _, row := range table.Rows {
		for _, cell := range row {
			doc.CellFormat(colWidth, rowHeight, cell, "1", 0, "", false, 0, "")
		}
		doc.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := doc.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

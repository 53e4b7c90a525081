package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a TimetableSheet into a landscape grid PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF with days as rows and periods as columns.
func (e *PDFExporter) Render(sheet TimetableSheet) ([]byte, error) {
	if len(sheet.Periods) == 0 {
		return nil, fmt.Errorf("pdf requires at least one period column")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if sheet.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(sheet.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	dayColWidth := 30.0
	colWidth := (277.0 - dayColWidth) / float64(len(sheet.Periods))

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(dayColWidth, 8, "Day", "1", 0, "C", false, 0, "")
	for _, period := range sheet.Periods {
		pdf.CellFormat(colWidth, 8, fmt.Sprintf("P%d", period), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for day := 1; day <= 6; day++ {
		pdf.CellFormat(dayColWidth, 7, DayName(day), "1", 0, "", false, 0, "")
		for _, period := range sheet.Periods {
			pdf.CellFormat(colWidth, 7, sheet.cell(day, period), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

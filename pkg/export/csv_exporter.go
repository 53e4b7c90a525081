package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter renders a TimetableSheet into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces one CSV row per day with a leading day column.
func (e *CSVExporter) Render(sheet TimetableSheet) ([]byte, error) {
	if len(sheet.Periods) == 0 {
		return nil, fmt.Errorf("csv requires at least one period column")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	header := make([]string, 0, len(sheet.Periods)+1)
	header = append(header, "Day")
	for _, period := range sheet.Periods {
		header = append(header, fmt.Sprintf("Period %d", period))
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for day := 1; day <= 6; day++ {
		record := make([]string, 0, len(sheet.Periods)+1)
		record = append(record, DayName(day))
		for _, period := range sheet.Periods {
			record = append(record, sheet.cell(day, period))
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

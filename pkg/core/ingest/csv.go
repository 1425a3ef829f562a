package ingest

import (
	"encoding/csv"
	"fmt"
	"io"

	"forensic_audit/pkg/core/calc"
)

// DecodeCSV decodes a CSV table whose first row is the header.
func DecodeCSV(r io.Reader, opts Options) ([]calc.FinancialRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	lines, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return decodeStringTable(lines, opts)
}

// decodeStringTable treats lines[0] as the header row.
func decodeStringTable(lines [][]string, opts Options) ([]calc.FinancialRecord, error) {
	if len(lines) < 2 {
		return nil, ErrEmptyTable
	}
	rows := make([][]any, 0, len(lines)-1)
	for _, line := range lines[1:] {
		row := make([]any, len(line))
		for i, cell := range line {
			row[i] = cell
		}
		rows = append(rows, row)
	}
	return decodeRows(lines[0], rows, opts)
}

package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"forensic_audit/pkg/core/calc"
)

// DecodeXLSX decodes one sheet of a workbook. The first sheet is used when
// sheet is empty. The first row is the header; blank rows are skipped.
func DecodeXLSX(r io.Reader, sheet string, opts Options) ([]calc.FinancialRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyTable
		}
		sheet = sheets[0]
	}

	lines, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return decodeStringTable(lines, opts)
}

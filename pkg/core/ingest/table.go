package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"forensic_audit/pkg/core/calc"
)

var (
	// ErrEmptyTable is returned when the input has no data rows.
	ErrEmptyTable = errors.New("table has no data rows")
	// ErrNoPeriodColumn is returned when no Year/Period column is present.
	ErrNoPeriodColumn = errors.New("table has no Year column")
	// ErrRaggedColumns is returned when column arrays differ in length.
	ErrRaggedColumns = errors.New("columns have different lengths")
	// ErrMalformed is returned for input that is not a table at all.
	ErrMalformed = errors.New("malformed table")
)

// Options controls decoding.
type Options struct {
	// FillMissing sets absent line items to zero instead of leaving them
	// unset for calc.Compute to reject.
	FillMissing bool
}

// CellError reports a cell that could not be decoded.
type CellError struct {
	Row    int // 1-based data row
	Column string
	Value  string
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("row %d, column %q: cannot parse %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

var errNotNumeric = errors.New("not a number")

// decodeRows converts a header plus data rows into records. Cells may be
// strings, json.Number, float64 or nil.
func decodeRows(headers []string, rows [][]any, opts Options) ([]calc.FinancialRecord, error) {
	cols := make([]column, len(headers))
	hasPeriod := false
	for i, h := range headers {
		cols[i] = lookupColumn(h)
		if cols[i].kind == columnPeriod {
			hasPeriod = true
		}
	}
	if !hasPeriod {
		return nil, ErrNoPeriodColumn
	}

	records := make([]calc.FinancialRecord, 0, len(rows))
	for r, row := range rows {
		if blankRow(row) {
			continue
		}
		var rec calc.FinancialRecord
		for i, col := range cols {
			if i >= len(row) || col.kind == columnIgnored {
				continue
			}
			cell := row[i]
			switch col.kind {
			case columnEntity:
				rec.Entity = cellString(cell)
			case columnPeriod:
				p, err := parsePeriod(cell)
				if err != nil {
					return nil, &CellError{Row: r + 1, Column: headers[i], Value: cellString(cell), Err: err}
				}
				rec.Period = p
			case columnLineItem:
				v, ok, err := parseAmount(cell)
				if err != nil {
					return nil, &CellError{Row: r + 1, Column: headers[i], Value: cellString(cell), Err: err}
				}
				if ok {
					rec.Set(col.item, v)
				}
			}
		}
		if opts.FillMissing {
			fillMissing(&rec)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}
	return records, nil
}

// ZeroFill returns a copy of records with every absent line item set to
// zero. The input is left untouched.
func ZeroFill(records []calc.FinancialRecord) []calc.FinancialRecord {
	out := make([]calc.FinancialRecord, len(records))
	copy(out, records)
	for i := range out {
		fillMissing(&out[i])
	}
	return out
}

// fillMissing zeroes every absent line item.
func fillMissing(rec *calc.FinancialRecord) {
	for _, li := range calc.LineItems {
		if _, ok := rec.Get(li); !ok {
			rec.Set(li, 0)
		}
	}
}

func blankRow(row []any) bool {
	for _, c := range row {
		if strings.TrimSpace(cellString(c)) != "" {
			return false
		}
	}
	return true
}

func cellString(c any) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// parseAmount reads a money cell. Accepts thousands separators, currency
// symbols and accounting negatives such as "(1,200)".
// Blank, "-", "n/a" and null are absent, not zero.
func parseAmount(c any) (float64, bool, error) {
	switch v := c.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return v, true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, errNotNumeric
		}
		return f, true, nil
	case bool:
		return 0, false, errNotNumeric
	}

	s := strings.TrimSpace(cellString(c))
	switch strings.ToLower(s) {
	case "", "-", "--", "n/a", "na", "null", "none":
		return 0, false, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', '€', '£', '¥', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, errNotNumeric
	}
	if negative {
		f = -f
	}
	return f, true, nil
}

const (
	minYear = 1
	maxYear = 9999
)

// parsePeriod reads a fiscal year such as 2021, "2021", "FY2021" or 2021.0.
func parsePeriod(c any) (int, error) {
	s := strings.ToUpper(cellString(c))
	s = strings.TrimPrefix(s, "FY")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing year")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, errors.New("year must be a whole number")
	}
	if f < minYear || f > maxYear {
		return 0, fmt.Errorf("year must be between %d and %d", minYear, maxYear)
	}
	return int(f), nil
}

// IsTableError reports whether err came from decoding rather than I/O.
func IsTableError(err error) bool {
	var cellErr *CellError
	return errors.As(err, &cellErr) ||
		errors.Is(err, ErrEmptyTable) ||
		errors.Is(err, ErrNoPeriodColumn) ||
		errors.Is(err, ErrRaggedColumns) ||
		errors.Is(err, ErrMalformed)
}

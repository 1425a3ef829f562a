package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"forensic_audit/pkg/core/calc"
)

// DecodeJSON decodes line items in any of the shapes callers produce:
//
//	{"Year": [2020, 2021], "Sales": [5000, 6000], ...}   column-oriented (extraction output)
//	[{"year": 2020, "sales": 5000, ...}, ...]            row-oriented
//	{"records": [{...}, ...]}                             wrapped rows
//
// In the column-oriented form a scalar value applies to every row, which is
// how a single "Company" name is usually given.
func DecodeJSON(data []byte, opts Options) ([]calc.FinancialRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch v := doc.(type) {
	case []any:
		return decodeRowObjects(v, opts)
	case map[string]any:
		for k, inner := range v {
			if strings.EqualFold(k, "records") {
				if rows, ok := inner.([]any); ok {
					return decodeRowObjects(rows, opts)
				}
			}
		}
		return decodeColumnObject(v, opts)
	default:
		return nil, fmt.Errorf("%w: expected object or array, got %T", ErrMalformed, doc)
	}
}

func decodeRowObjects(items []any, opts Options) ([]calc.FinancialRecord, error) {
	// Union of keys across rows keeps the header order stable.
	seen := map[string]bool{}
	var headers []string
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: row %d is %T, expected object", ErrMalformed, i+1, it)
		}
		for _, k := range sortedKeys(obj) {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}

	rows := make([][]any, len(items))
	for i, it := range items {
		obj := it.(map[string]any)
		row := make([]any, len(headers))
		for j, h := range headers {
			row[j] = obj[h]
		}
		rows[i] = row
	}
	return decodeRows(headers, rows, opts)
}

func decodeColumnObject(obj map[string]any, opts Options) ([]calc.FinancialRecord, error) {
	headers := sortedKeys(obj)

	n := -1
	for _, h := range headers {
		arr, ok := obj[h].([]any)
		if !ok {
			continue
		}
		if n >= 0 && len(arr) != n {
			return nil, fmt.Errorf("%w: %q has %d values, expected %d", ErrRaggedColumns, h, len(arr), n)
		}
		n = len(arr)
	}
	if n < 0 {
		// Plain object: a single row.
		n = 1
	}

	rows := make([][]any, n)
	for i := range rows {
		row := make([]any, len(headers))
		for j, h := range headers {
			if arr, ok := obj[h].([]any); ok {
				row[j] = arr[i]
			} else {
				row[j] = obj[h]
			}
		}
		rows[i] = row
	}
	return decodeRows(headers, rows, opts)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

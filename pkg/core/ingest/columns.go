// Package ingest decodes tables of financial line items (JSON, CSV, XLSX)
// into calc.FinancialRecord values.
package ingest

import (
	"strings"
	"unicode"

	"forensic_audit/pkg/core/calc"
)

// columnKind says what a header maps to.
type columnKind int

const (
	columnIgnored columnKind = iota
	columnEntity
	columnPeriod
	columnLineItem
)

type column struct {
	kind columnKind
	item calc.LineItem
}

// synonyms lists extra header spellings beyond each line item's display name
// and JSON key.
var synonyms = map[calc.LineItem][]string{
	calc.NetReceivables:          {"Receivables", "Accounts Receivable", "Accounts Receivable Net", "Trade Receivables"},
	calc.Sales:                   {"Revenue", "Revenues", "Net Sales", "Total Revenue"},
	calc.COGS:                    {"Cost of Sales", "Cost of Revenue", "Cost of Goods"},
	calc.CurrentAssets:           {"Total Current Assets"},
	calc.PPE:                     {"Gross PPE", "PPE Gross", "Property Plant and Equipment"},
	calc.NetPPE:                  {"PPE Net", "Net Property Plant and Equipment"},
	calc.Securities:              {"Marketable Securities", "Short Term Investments"},
	calc.DepreciationExpense:     {"Depreciation", "Depreciation and Amortization"},
	calc.SGAExpenses:             {"SGA", "SGA Expense", "Selling General and Administrative"},
	calc.TotalDebt:               {"Debt", "Total Borrowings"},
	calc.IncomeFromContinuingOps: {"Income from Continuing Ops", "Income Continuing Operations"},
	calc.CashFromOperations:      {"Operating Cash Flow", "Cash Flow from Operations", "Net Cash from Operating Activities", "CFO"},
}

var entityHeaders = []string{"Company", "Entity", "Ticker", "Company Name"}
var periodHeaders = []string{"Year", "Period", "Fiscal Year", "FY"}

var headerIndex = buildHeaderIndex()

func buildHeaderIndex() map[string]column {
	idx := make(map[string]column)
	for _, h := range entityHeaders {
		idx[normalizeHeader(h)] = column{kind: columnEntity}
	}
	for _, h := range periodHeaders {
		idx[normalizeHeader(h)] = column{kind: columnPeriod}
	}
	for _, li := range calc.LineItems {
		c := column{kind: columnLineItem, item: li}
		idx[normalizeHeader(li.String())] = c
		idx[normalizeHeader(li.Key())] = c
		for _, s := range synonyms[li] {
			idx[normalizeHeader(s)] = c
		}
	}
	return idx
}

// normalizeHeader folds case and drops everything but letters and digits,
// so "SG&A Expenses", "sga_expenses" and "SGA Expenses" compare equal.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lookupColumn resolves a header, ignoring unknown columns.
func lookupColumn(header string) column {
	if c, ok := headerIndex[normalizeHeader(header)]; ok {
		return c
	}
	return column{kind: columnIgnored}
}

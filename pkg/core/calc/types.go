// Package calc implements the Beneish M-Score engine.
// This file defines the input and output records of the engine.
package calc

import (
	"fmt"
	"math"
)

// =============================================================================
// LINE ITEMS
// =============================================================================

// LineItem identifies one of the thirteen financial statement fields the
// M-Score needs.
type LineItem int

const (
	NetReceivables LineItem = iota
	Sales
	COGS
	CurrentAssets
	PPE
	NetPPE
	Securities
	TotalAssets
	DepreciationExpense
	SGAExpenses
	TotalDebt
	IncomeFromContinuingOps
	CashFromOperations
)

// LineItems lists every line item in column order.
var LineItems = []LineItem{
	NetReceivables, Sales, COGS, CurrentAssets, PPE, NetPPE, Securities,
	TotalAssets, DepreciationExpense, SGAExpenses, TotalDebt,
	IncomeFromContinuingOps, CashFromOperations,
}

var lineItemNames = [...]string{
	"Net Receivables",
	"Sales",
	"Cost of Goods Sold",
	"Current Assets",
	"PPE",
	"Net PPE",
	"Securities",
	"Total Assets",
	"Depreciation Expense",
	"SG&A Expenses",
	"Total Debt",
	"Income from Continuing Operations",
	"Cash from Operations",
}

var lineItemKeys = [...]string{
	"net_receivables",
	"sales",
	"cogs",
	"current_assets",
	"ppe",
	"net_ppe",
	"securities",
	"total_assets",
	"depreciation_expense",
	"sga_expenses",
	"total_debt",
	"income_from_continuing_ops",
	"cash_from_operations",
}

// String returns the statement label, e.g. "Total Assets".
func (li LineItem) String() string {
	if li < 0 || int(li) >= len(lineItemNames) {
		return fmt.Sprintf("LineItem(%d)", int(li))
	}
	return lineItemNames[li]
}

// Key returns the snake_case JSON key, e.g. "total_assets".
func (li LineItem) Key() string {
	if li < 0 || int(li) >= len(lineItemKeys) {
		return ""
	}
	return lineItemKeys[li]
}

// Required reports whether the line item must be present on every record.
// Securities is the only optional item and defaults to zero.
func (li LineItem) Required() bool {
	return li != Securities
}

// =============================================================================
// INPUT
// =============================================================================

// FinancialRecord is one reporting period of one entity.
// A nil line item means the value was not supplied.
type FinancialRecord struct {
	Entity string `json:"company,omitempty"` // empty: single implicit entity
	Period int    `json:"year"`              // fiscal year

	NetReceivables          *float64 `json:"net_receivables"`
	Sales                   *float64 `json:"sales"`
	COGS                    *float64 `json:"cogs"`
	CurrentAssets           *float64 `json:"current_assets"`
	PPE                     *float64 `json:"ppe"`
	NetPPE                  *float64 `json:"net_ppe"`
	Securities              *float64 `json:"securities"`
	TotalAssets             *float64 `json:"total_assets"`
	DepreciationExpense     *float64 `json:"depreciation_expense"`
	SGAExpenses             *float64 `json:"sga_expenses"`
	TotalDebt               *float64 `json:"total_debt"`
	IncomeFromContinuingOps *float64 `json:"income_from_continuing_ops"`
	CashFromOperations      *float64 `json:"cash_from_operations"`
}

// Field returns a pointer to the storage of a line item.
func (r *FinancialRecord) Field(li LineItem) **float64 {
	switch li {
	case NetReceivables:
		return &r.NetReceivables
	case Sales:
		return &r.Sales
	case COGS:
		return &r.COGS
	case CurrentAssets:
		return &r.CurrentAssets
	case PPE:
		return &r.PPE
	case NetPPE:
		return &r.NetPPE
	case Securities:
		return &r.Securities
	case TotalAssets:
		return &r.TotalAssets
	case DepreciationExpense:
		return &r.DepreciationExpense
	case SGAExpenses:
		return &r.SGAExpenses
	case TotalDebt:
		return &r.TotalDebt
	case IncomeFromContinuingOps:
		return &r.IncomeFromContinuingOps
	case CashFromOperations:
		return &r.CashFromOperations
	}
	return nil
}

// Get returns the value of a line item and whether it was supplied.
func (r *FinancialRecord) Get(li LineItem) (float64, bool) {
	p := r.Field(li)
	if p == nil || *p == nil {
		return 0, false
	}
	return **p, true
}

// Set stores a value for a line item.
func (r *FinancialRecord) Set(li LineItem, v float64) {
	if p := r.Field(li); p != nil {
		*p = Float(v)
	}
}

// Float returns a pointer to v. Convenient for building records by hand.
func Float(v float64) *float64 {
	return &v
}

// =============================================================================
// OUTPUT
// =============================================================================

// Classification is the manipulation-likelihood band of an M-Score.
// The zero value means the score was undefined.
type Classification string

const (
	Unlikely  Classification = "Unlikely"
	Possible  Classification = "Possible"
	Likely    Classification = "Likely"
	Undefined Classification = ""
)

// Indices holds the eight Beneish variables for one period.
// NaN marks an index that could not be computed.
type Indices struct {
	DSRI float64 // Days Sales in Receivables Index
	GMI  float64 // Gross Margin Index
	AQI  float64 // Asset Quality Index
	SGI  float64 // Sales Growth Index
	DEPI float64 // Depreciation Index
	SGAI float64 // SG&A Expenses Index
	LVGI float64 // Leverage Index
	TATA float64 // Total Accruals to Total Assets
}

// ScoreRecord is the M-Score of one entity period that has a prior period.
// Undefined values are NaN and encode as JSON null.
type ScoreRecord struct {
	Entity string
	Period int
	Indices
	MScore         float64
	Classification Classification
}

// Defined reports whether the record carries a usable score.
func (s ScoreRecord) Defined() bool {
	return !math.IsNaN(s.MScore) && s.Classification != Undefined
}

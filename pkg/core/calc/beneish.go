package calc

import (
	"math"
)

// Classification thresholds. Both bounds belong to the "Possible" band.
const (
	UnlikelyBelow = -2.22
	LikelyAbove   = -1.78
)

// Compute returns the Beneish M-Score of every entity period that has a prior
// period, ordered by (Entity, Period).
//
// The first period of each entity has no baseline and is omitted. Zero
// denominators never fail: the affected index, the score and the
// classification become undefined (NaN / Undefined) for that row only.
// A malformed record aborts the call with an *InputError.
func Compute(records []FinancialRecord) ([]ScoreRecord, error) {
	sorted, err := Normalize(records)
	if err != nil {
		return nil, err
	}

	l := newLedger(sorted)
	out := make([]ScoreRecord, 0, len(sorted))
	l.pairs(func(cur, prev *ledgerRow) {
		idx := computeIndices(&cur.v, &prev.v)
		score := MScore(idx)
		out = append(out, ScoreRecord{
			Entity:         cur.entity,
			Period:         cur.period,
			Indices:        idx,
			MScore:         score,
			Classification: Classify(score),
		})
	})
	return out, nil
}

// computeIndices derives the eight variables from a period and its prior.
func computeIndices(cur, prev *values) Indices {
	idx := Indices{
		// 1. DSRI: (Receivables_t / Sales_t) / (Receivables_t-1 / Sales_t-1)
		DSRI: div(
			div(cur[NetReceivables], cur[Sales]),
			div(prev[NetReceivables], prev[Sales]),
		),

		// 2. GMI: GrossMargin_t-1 / GrossMargin_t. A deteriorating margin gives GMI > 1.
		GMI: div(grossMargin(prev), grossMargin(cur)),

		// 3. AQI: share of assets other than current assets, net PP&E and securities.
		AQI: div(assetQuality(cur), assetQuality(prev)),

		// 4. SGI: Sales_t / Sales_t-1
		SGI: div(cur[Sales], prev[Sales]),

		// 5. DEPI: DepRate_t-1 / DepRate_t. A slowing depreciation rate gives DEPI > 1.
		DEPI: div(depreciationRate(prev), depreciationRate(cur)),

		// 6. SGAI: (SGA_t / Sales_t) / (SGA_t-1 / Sales_t-1)
		SGAI: div(
			div(cur[SGAExpenses], cur[Sales]),
			div(prev[SGAExpenses], prev[Sales]),
		),

		// 7. LVGI: (Debt_t / Assets_t) / (Debt_t-1 / Assets_t-1)
		LVGI: div(
			div(cur[TotalDebt], cur[TotalAssets]),
			div(prev[TotalDebt], prev[TotalAssets]),
		),

		// 8. TATA: (Income from continuing ops - CFO) / Total Assets, current period only.
		TATA: div(cur[IncomeFromContinuingOps]-cur[CashFromOperations], cur[TotalAssets]),
	}
	return idx.finite()
}

// grossMargin = (Sales - COGS) / Sales
func grossMargin(v *values) float64 {
	return div(v[Sales]-v[COGS], v[Sales])
}

// assetQuality = 1 - (CurrentAssets + NetPPE + Securities) / TotalAssets
func assetQuality(v *values) float64 {
	return 1 - div(v[CurrentAssets]+v[NetPPE]+v[Securities], v[TotalAssets])
}

// depreciationRate = Depreciation / (Depreciation + NetPPE)
func depreciationRate(v *values) float64 {
	return div(v[DepreciationExpense], v[DepreciationExpense]+v[NetPPE])
}

// MScore combines the indices with the coefficients of Beneish (1999):
// M = -4.84 + 0.92*DSRI + 0.528*GMI + 0.404*AQI + 0.892*SGI + 0.115*DEPI - 0.172*SGAI + 4.679*TATA - 0.327*LVGI
// Any undefined index makes the score undefined.
func MScore(i Indices) float64 {
	for _, v := range [...]float64{i.DSRI, i.GMI, i.AQI, i.SGI, i.DEPI, i.SGAI, i.LVGI, i.TATA} {
		if !isDefined(v) {
			return math.NaN()
		}
	}
	m := -4.84 +
		0.920*i.DSRI +
		0.528*i.GMI +
		0.404*i.AQI +
		0.892*i.SGI +
		0.115*i.DEPI -
		0.172*i.SGAI +
		4.679*i.TATA -
		0.327*i.LVGI
	if !isDefined(m) {
		return math.NaN()
	}
	return m
}

// Classify maps a score to its likelihood band.
//
//	score < -2.22           Unlikely
//	-2.22 <= score <= -1.78 Possible
//	score > -1.78           Likely
//
// An undefined score stays Undefined.
func Classify(score float64) Classification {
	switch {
	case !isDefined(score):
		return Undefined
	case score < UnlikelyBelow:
		return Unlikely
	case score <= LikelyAbove:
		return Possible
	default:
		return Likely
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// div divides, returning NaN when the denominator is zero or either operand
// is already undefined.
func div(numerator, denominator float64) float64 {
	if denominator == 0 || math.IsNaN(numerator) || math.IsNaN(denominator) {
		return math.NaN()
	}
	return numerator / denominator
}

func isDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finite replaces infinities with NaN so callers only ever see one
// representation of "undefined".
func (i Indices) finite() Indices {
	for _, p := range [...]*float64{&i.DSRI, &i.GMI, &i.AQI, &i.SGI, &i.DEPI, &i.SGAI, &i.LVGI, &i.TATA} {
		if !isDefined(*p) {
			*p = math.NaN()
		}
	}
	return i
}

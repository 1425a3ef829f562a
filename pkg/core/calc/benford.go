package calc

import (
	"math"
	"strconv"
)

// benfordExpected is the first-digit frequency predicted by Benford's law,
// log10(1 + 1/d), indexed by digit-1.
var benfordExpected = [9]float64{
	0.30103, 0.17609, 0.12494, 0.09691, 0.07918,
	0.06695, 0.05799, 0.05115, 0.04576,
}

// MAD bands for the first-digit test. Small statement sets are noisy, so the
// bands are looser than the ones used for full ledgers.
const (
	BenfordMarginalMAD    = 0.010
	BenfordNonconformMAD  = 0.015
	BenfordMinimumSamples = 10
)

// BenfordLevel grades how closely leading digits follow Benford's law.
type BenfordLevel string

const (
	BenfordInsufficient BenfordLevel = "Insufficient Data"
	BenfordConforming   BenfordLevel = "Conforming"
	BenfordMarginal     BenfordLevel = "Marginal"
	BenfordNonconform   BenfordLevel = "Nonconforming"
)

// BenfordResult is the first-digit distribution of a set of amounts.
type BenfordResult struct {
	Counts      [9]int       `json:"counts"`      // index 0 is digit 1
	Frequencies [9]float64   `json:"frequencies"` // observed share per digit
	Expected    [9]float64   `json:"expected"`
	Total       int          `json:"total"`
	MAD         float64      `json:"mad"` // mean absolute deviation from Expected
	Level       BenfordLevel `json:"level"`
	Flagged     bool         `json:"flagged"`
}

// FirstDigitTest runs the Benford first-digit test. Amounts with absolute
// value below 1, NaN and infinities are skipped. Fewer than
// BenfordMinimumSamples usable amounts yields BenfordInsufficient.
func FirstDigitTest(values []float64) BenfordResult {
	res := BenfordResult{Expected: benfordExpected}
	for _, v := range values {
		if d, ok := leadingDigit(v); ok {
			res.Counts[d-1]++
			res.Total++
		}
	}
	if res.Total < BenfordMinimumSamples {
		res.Level = BenfordInsufficient
		return res
	}

	sum := 0.0
	for i, n := range res.Counts {
		res.Frequencies[i] = float64(n) / float64(res.Total)
		sum += math.Abs(res.Frequencies[i] - benfordExpected[i])
	}
	res.MAD = sum / 9

	switch {
	case res.MAD > BenfordNonconformMAD:
		res.Level = BenfordNonconform
		res.Flagged = true
	case res.MAD > BenfordMarginalMAD:
		res.Level = BenfordMarginal
	default:
		res.Level = BenfordConforming
	}
	return res
}

// LineItemValues collects every supplied line-item amount across records.
func LineItemValues(records []FinancialRecord) []float64 {
	var out []float64
	for i := range records {
		for _, li := range LineItems {
			if v, ok := records[i].Get(li); ok {
				out = append(out, v)
			}
		}
	}
	return out
}

func leadingDigit(v float64) (int, bool) {
	v = math.Abs(v)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 1 {
		return 0, false
	}
	// 'e' formatting puts the leading significant digit first.
	s := strconv.FormatFloat(v, 'e', -1, 64)
	return int(s[0] - '0'), true
}

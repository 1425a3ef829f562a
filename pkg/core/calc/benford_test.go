package calc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadingDigit(t *testing.T) {
	tests := []struct {
		in   float64
		want int
		ok   bool
	}{
		{1234, 1, true},
		{-987.5, 9, true},
		{5e12, 5, true},
		{1, 1, true},
		{0.7, 0, false},
		{0, 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
	}
	for _, tt := range tests {
		d, ok := leadingDigit(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, d, "%v", tt.in)
	}
}

func TestFirstDigitTest_Insufficient(t *testing.T) {
	res := FirstDigitTest([]float64{100, 200, 0.5})
	assert.Equal(t, BenfordInsufficient, res.Level)
	assert.Equal(t, 2, res.Total)
	assert.False(t, res.Flagged)
	assert.Zero(t, res.MAD)
}

func TestFirstDigitTest_Conforming(t *testing.T) {
	// 1000 amounts drawn to match the expected shares exactly.
	counts := [9]int{301, 176, 125, 97, 79, 67, 58, 51, 46}
	var values []float64
	for i, n := range counts {
		for j := 0; j < n; j++ {
			values = append(values, float64(i+1)*1000+float64(j))
		}
	}

	res := FirstDigitTest(values)
	require.Equal(t, 1000, res.Total)
	assert.Equal(t, counts, res.Counts)
	assert.Less(t, res.MAD, 0.001)
	assert.Equal(t, BenfordConforming, res.Level)
	assert.False(t, res.Flagged)
}

func TestFirstDigitTest_Nonconforming(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 9000 + float64(i)
	}

	res := FirstDigitTest(values)
	assert.Equal(t, 20, res.Counts[8])
	assert.InDelta(t, 1.0, res.Frequencies[8], 1e-12)
	assert.Equal(t, BenfordNonconform, res.Level)
	assert.True(t, res.Flagged)
}

func TestLineItemValues(t *testing.T) {
	records := []FinancialRecord{
		{Period: 2020, Sales: Float(5000), TotalAssets: Float(15000)},
		{Period: 2021, Sales: Float(6000)},
	}
	assert.ElementsMatch(t, []float64{5000, 15000, 6000}, LineItemValues(records))
}

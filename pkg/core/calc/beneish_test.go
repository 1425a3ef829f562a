package calc

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FIXTURES
// =============================================================================

// year2020 and year2021 are the reference single-entity scenario.
func year2020() FinancialRecord {
	return FinancialRecord{
		Period:                  2020,
		NetReceivables:          Float(1000),
		Sales:                   Float(5000),
		COGS:                    Float(3000),
		CurrentAssets:           Float(2000),
		PPE:                     Float(8000),
		NetPPE:                  Float(7000),
		Securities:              Float(0),
		TotalAssets:             Float(15000),
		DepreciationExpense:     Float(500),
		SGAExpenses:             Float(400),
		TotalDebt:               Float(5000),
		IncomeFromContinuingOps: Float(1000),
		CashFromOperations:      Float(800),
	}
}

func year2021() FinancialRecord {
	return FinancialRecord{
		Period:                  2021,
		NetReceivables:          Float(1200),
		Sales:                   Float(6000),
		COGS:                    Float(3600),
		CurrentAssets:           Float(2400),
		PPE:                     Float(8500),
		NetPPE:                  Float(7400),
		Securities:              Float(0),
		TotalAssets:             Float(16000),
		DepreciationExpense:     Float(550),
		SGAExpenses:             Float(450),
		TotalDebt:               Float(5500),
		IncomeFromContinuingOps: Float(1100),
		CashFromOperations:      Float(900),
	}
}

func withEntity(r FinancialRecord, entity string) FinancialRecord {
	r.Entity = entity
	return r
}

const tolerance = 1e-9

// =============================================================================
// REFERENCE SCENARIO
// =============================================================================

func TestCompute_ReferenceScenario(t *testing.T) {
	scores, err := Compute([]FinancialRecord{year2021(), year2020()})
	require.NoError(t, err)
	require.Len(t, scores, 1, "2020 has no prior period and must be omitted")

	s := scores[0]
	assert.Equal(t, 2021, s.Period)
	assert.Empty(t, s.Entity)

	assert.InDelta(t, 1.0, s.DSRI, tolerance)
	assert.InDelta(t, 1.0, s.GMI, tolerance)
	assert.InDelta(t, 0.96875, s.AQI, tolerance)    // (1-9800/16000) / (1-9000/15000)
	assert.InDelta(t, 1.2, s.SGI, tolerance)        // 6000 / 5000
	assert.InDelta(t, 0.963636363636, s.DEPI, 1e-9) // (500/7500) / (550/7950)
	assert.InDelta(t, 0.9375, s.SGAI, tolerance)
	assert.InDelta(t, 1.03125, s.LVGI, tolerance)
	assert.InDelta(t, 0.0125, s.TATA, tolerance) // (1100-900) / 16000

	expected := -4.84 + 0.92*s.DSRI + 0.528*s.GMI + 0.404*s.AQI + 0.892*s.SGI +
		0.115*s.DEPI - 0.172*s.SGAI + 4.679*s.TATA - 0.327*s.LVGI
	assert.InDelta(t, expected, s.MScore, tolerance)
	assert.InDelta(t, -2.259388068, s.MScore, 1e-8)
	assert.Equal(t, Unlikely, s.Classification)
	assert.True(t, s.Defined())
}

func TestCompute_ThreeYearsKeepsOrder(t *testing.T) {
	y2022 := year2021()
	y2022.Period = 2022
	y2022.Sales = Float(9000)

	scores, err := Compute([]FinancialRecord{y2022, year2020(), year2021()})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 2021, scores[0].Period)
	assert.Equal(t, 2022, scores[1].Period)
	assert.InDelta(t, 1.5, scores[1].SGI, tolerance, "2022 compares against 2021, not 2020")
}

func TestCompute_NonContiguousPeriodsUsePreviousAvailable(t *testing.T) {
	later := year2021()
	later.Period = 2024

	scores, err := Compute([]FinancialRecord{year2020(), later})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 2024, scores[0].Period)
	assert.InDelta(t, 1.2, scores[0].SGI, tolerance)
}

func TestCompute_EmptyAndSingleRecord(t *testing.T) {
	scores, err := Compute(nil)
	require.NoError(t, err)
	assert.NotNil(t, scores)
	assert.Empty(t, scores)

	scores, err = Compute([]FinancialRecord{year2020()})
	require.NoError(t, err)
	assert.Empty(t, scores)
}

// =============================================================================
// GROUPING
// =============================================================================

func TestCompute_GroupingIsolation(t *testing.T) {
	a20 := withEntity(year2020(), "A")
	a21 := withEntity(year2021(), "A")
	b20 := withEntity(year2020(), "B")
	b21 := withEntity(year2021(), "B")
	// Distinct growth per entity shows which prior each row was compared to.
	b21.Sales = Float(10000)

	scores, err := Compute([]FinancialRecord{b21, a21, b20, a20})
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.Equal(t, "A", scores[0].Entity)
	assert.Equal(t, 2021, scores[0].Period)
	assert.InDelta(t, 1.2, scores[0].SGI, tolerance)

	assert.Equal(t, "B", scores[1].Entity)
	assert.Equal(t, 2021, scores[1].Period)
	assert.InDelta(t, 2.0, scores[1].SGI, tolerance)

	for _, s := range scores {
		assert.NotEqual(t, 2020, s.Period, "first period of %s must not be scored", s.Entity)
	}
}

func TestCompute_FirstPeriodPerEntityNeverScored(t *testing.T) {
	var records []FinancialRecord
	for _, e := range []string{"X", "Y", "Z"} {
		records = append(records, withEntity(year2020(), e), withEntity(year2021(), e))
	}
	scores, err := Compute(records)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	for _, s := range scores {
		assert.Equal(t, 2021, s.Period)
	}
}

// =============================================================================
// UNDEFINED VALUES
// =============================================================================

func TestCompute_ZeroPriorDenominators(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(prev *FinancialRecord)
		undefined []string
	}{
		{
			name:      "prior sales",
			mutate:    func(p *FinancialRecord) { p.Sales = Float(0) },
			undefined: []string{"DSRI", "GMI", "SGI", "SGAI"},
		},
		{
			name:      "prior receivables",
			mutate:    func(p *FinancialRecord) { p.NetReceivables = Float(0) },
			undefined: []string{"DSRI"},
		},
		{
			name:      "prior total assets",
			mutate:    func(p *FinancialRecord) { p.TotalAssets = Float(0) },
			undefined: []string{"AQI", "LVGI"},
		},
		{
			name:      "prior debt",
			mutate:    func(p *FinancialRecord) { p.TotalDebt = Float(0) },
			undefined: []string{"LVGI"},
		},
		{
			name:      "prior sga",
			mutate:    func(p *FinancialRecord) { p.SGAExpenses = Float(0) },
			undefined: []string{"SGAI"},
		},
		{
			name: "prior depreciation base",
			mutate: func(p *FinancialRecord) {
				p.DepreciationExpense = Float(0)
				p.NetPPE = Float(0)
			},
			undefined: []string{"DEPI"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := year2020()
			tt.mutate(&prev)

			var scores []ScoreRecord
			require.NotPanics(t, func() {
				var err error
				scores, err = Compute([]FinancialRecord{prev, year2021()})
				require.NoError(t, err)
			})
			require.Len(t, scores, 1)
			s := scores[0]

			got := map[string]float64{
				"DSRI": s.DSRI, "GMI": s.GMI, "AQI": s.AQI, "SGI": s.SGI,
				"DEPI": s.DEPI, "SGAI": s.SGAI, "LVGI": s.LVGI, "TATA": s.TATA,
			}
			want := map[string]bool{}
			for _, name := range tt.undefined {
				want[name] = true
			}
			for name, v := range got {
				if want[name] {
					assert.True(t, math.IsNaN(v), "%s should be undefined, got %v", name, v)
				} else {
					assert.False(t, math.IsNaN(v), "%s should be defined", name)
				}
			}
			assert.True(t, math.IsNaN(s.MScore))
			assert.Equal(t, Undefined, s.Classification)
			assert.False(t, s.Defined())
		})
	}
}

func TestCompute_ZeroCurrentGrossMargin(t *testing.T) {
	cur := year2021()
	cur.COGS = cur.Sales

	scores, err := Compute([]FinancialRecord{year2020(), cur})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	s := scores[0]
	assert.True(t, math.IsNaN(s.GMI))
	assert.False(t, math.IsNaN(s.DSRI))
	assert.False(t, math.IsNaN(s.SGI))
	assert.True(t, math.IsNaN(s.MScore))
	assert.Equal(t, Undefined, s.Classification)
}

func TestCompute_ZeroCurrentTotalAssets(t *testing.T) {
	cur := year2021()
	cur.TotalAssets = Float(0)

	scores, err := Compute([]FinancialRecord{year2020(), cur})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.True(t, math.IsNaN(scores[0].TATA))
	assert.True(t, math.IsNaN(scores[0].AQI))
	assert.True(t, math.IsNaN(scores[0].LVGI))
	assert.True(t, math.IsNaN(scores[0].MScore))
}

func TestCompute_UndefinedIsolatedToRow(t *testing.T) {
	broken := withEntity(year2020(), "A")
	broken.Sales = Float(0)

	scores, err := Compute([]FinancialRecord{
		broken, withEntity(year2021(), "A"),
		withEntity(year2020(), "B"), withEntity(year2021(), "B"),
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.False(t, scores[0].Defined())
	assert.True(t, scores[1].Defined())
}

func TestCompute_NoInfinities(t *testing.T) {
	cur := year2021()
	cur.Sales = Float(1e-320) // pushes the receivables ratio past the float range

	scores, err := Compute([]FinancialRecord{year2020(), cur})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	s := scores[0]
	for _, v := range []float64{s.DSRI, s.GMI, s.AQI, s.SGI, s.DEPI, s.SGAI, s.LVGI, s.TATA, s.MScore} {
		assert.False(t, math.IsInf(v, 0))
	}
}

// =============================================================================
// INPUT ERRORS
// =============================================================================

func TestCompute_MissingTotalAssets(t *testing.T) {
	bad := year2021()
	bad.TotalAssets = nil

	scores, err := Compute([]FinancialRecord{year2020(), bad})
	require.Error(t, err)
	assert.Nil(t, scores)

	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "Total Assets", inputErr.Field)
	assert.Equal(t, 1, inputErr.Index)
	assert.Equal(t, 2021, inputErr.Period)
	assert.Contains(t, err.Error(), "Total Assets")
}

func TestCompute_MissingSecuritiesDefaultsToZero(t *testing.T) {
	prev, cur := year2020(), year2021()
	prev.Securities = nil
	cur.Securities = nil

	scores, err := Compute([]FinancialRecord{prev, cur})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.InDelta(t, 0.96875, scores[0].AQI, tolerance)
}

func TestCompute_DuplicatePeriod(t *testing.T) {
	_, err := Compute([]FinancialRecord{year2020(), year2021(), year2021()})
	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, PeriodField, inputErr.Field)
}

// =============================================================================
// CLASSIFICATION & DETERMINISM
// =============================================================================

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Classification
	}{
		{-2.23, Unlikely},
		{-2.22, Possible},
		{-2.0, Possible},
		{-1.78, Possible},
		{-1.77, Likely},
		{0, Likely},
		{math.NaN(), Undefined},
		{math.Inf(1), Undefined},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "score %v", tt.score)
	}
}

func TestMScore_UndefinedIndexPropagates(t *testing.T) {
	idx := Indices{DSRI: 1, GMI: 1, AQI: 1, SGI: 1, DEPI: 1, SGAI: 1, LVGI: 1, TATA: 0}
	assert.InDelta(t, -4.84+0.92+0.528+0.404+0.892+0.115-0.172-0.327, MScore(idx), tolerance)

	idx.DEPI = math.NaN()
	assert.True(t, math.IsNaN(MScore(idx)))
}

func TestCompute_Deterministic(t *testing.T) {
	broken := withEntity(year2020(), "B")
	broken.Sales = Float(0)
	input := []FinancialRecord{
		withEntity(year2021(), "A"), withEntity(year2020(), "A"),
		broken, withEntity(year2021(), "B"),
	}

	first, err := Compute(input)
	require.NoError(t, err)
	second, err := Compute(input)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("Compute is not deterministic (-first +second):\n%s", diff)
	}
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	prev, cur := year2020(), year2021()
	prev.Securities = nil
	input := []FinancialRecord{cur, prev}

	_, err := Compute(input)
	require.NoError(t, err)
	assert.Equal(t, 2021, input[0].Period)
	assert.Nil(t, input[1].Securities)
}

func TestCompute_ConcurrentCallers(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]float64, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scores, err := Compute([]FinancialRecord{year2020(), year2021()})
			if err == nil && len(scores) == 1 {
				results[i] = scores[0].MScore
			}
		}(i)
	}
	wg.Wait()
	for _, m := range results {
		assert.InDelta(t, -2.259388068, m, 1e-8)
	}
}

// =============================================================================
// JSON
// =============================================================================

func TestScoreRecord_JSONNulls(t *testing.T) {
	broken := year2020()
	broken.Sales = Float(0)
	scores, err := Compute([]FinancialRecord{broken, year2021()})
	require.NoError(t, err)

	data, err := json.Marshal(scores)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	row := decoded[0]
	assert.Nil(t, row["sgi"])
	assert.Nil(t, row["m_score"])
	assert.Nil(t, row["classification"])
	assert.NotNil(t, row["tata"])
	assert.NotContains(t, row, "company")
	assert.EqualValues(t, 2021, row["year"])

	var back []ScoreRecord
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(scores, back, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("decoded records differ (-want +got):\n%s", diff)
	}
}

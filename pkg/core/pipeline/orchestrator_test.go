package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forensic_audit/pkg/core/agent"
	"forensic_audit/pkg/core/calc"
	"forensic_audit/pkg/core/config"
	"forensic_audit/pkg/core/document"
	"forensic_audit/pkg/core/store"
)

// --- Mocks ---

type MockProvider struct {
	mu    sync.Mutex
	calls int
	Reply string
	Block bool
}

func (m *MockProvider) GenerateResponse(ctx context.Context, _, _ string, _ map[string]interface{}) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.Reply, nil
}

func (m *MockProvider) AdaptInstructions(raw string) string { return raw }

func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recorder struct {
	events []Event
}

func (r *recorder) emit(e Event) { r.events = append(r.events, e) }

func (r *recorder) steps() []string {
	var out []string
	for _, e := range r.events {
		out = append(out, e.Step+":"+e.Status)
	}
	return out
}

const modelReply = `{"Year": [2020, 2021], "Net Receivables": [1000, 1200], "Sales": [5000, 6000],
"Cost of Goods Sold": [3000, 3600], "Current Assets": [2000, 2400], "PPE": [8000, 8500],
"Net PPE": [7000, 7400], "Securities": [0, 0], "Total Assets": [15000, 16000],
"Depreciation Expense": [500, 550], "SG&A Expenses": [400, 450], "Total Debt": [5000, 5500],
"Income from Continuing Operations": [1000, 1100], "Cash from Operations": [800, 900]}
END`

func newTestOrchestrator(t *testing.T, p *MockProvider, opts Options) *Orchestrator {
	t.Helper()
	return newCachedOrchestrator(t, p, store.NewExtractionCache(nil, t.TempDir(), nil), opts)
}

func newCachedOrchestrator(t *testing.T, p *MockProvider, cache *store.ExtractionCache, opts Options) *Orchestrator {
	t.Helper()
	mgr, err := agent.NewManager(agent.Config{}, nil)
	require.NoError(t, err)
	mgr.Register("mock", p)
	require.NoError(t, mgr.SetGlobalProvider("mock"))
	return NewOrchestrator(mgr, cache, opts, nil)
}

// replyWithout drops one column from modelReply.
func replyWithout(t *testing.T, column string) string {
	t.Helper()
	start := strings.Index(modelReply, `"`+column+`"`)
	require.GreaterOrEqual(t, start, 0)
	end := start + strings.Index(modelReply[start:], "]") + 1
	if modelReply[end] == ',' {
		end++
	}
	return modelReply[:start] + modelReply[end:]
}

func TestRun_DocumentThenCacheHit(t *testing.T) {
	p := &MockProvider{Reply: modelReply}
	o := newTestOrchestrator(t, p, Options{})
	up := Upload{Name: "annual-report.txt", Data: []byte("Sales 2021 6000, Sales 2020 5000")}

	rec := &recorder{}
	res, err := o.Run(context.Background(), up, rec.emit)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "mock", res.Provider)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Scores, 1)
	assert.Equal(t, calc.Unlikely, res.Scores[0].Classification)
	assert.Equal(t, []string{
		"read:started", "read:done",
		"cache:done",
		"extract:started", "extract:done",
		"store:done",
		"score:started", "score:done",
		"complete:done",
	}, rec.steps())
	assert.Equal(t, "miss", rec.events[2].Detail)

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, res.Scores, last.Data)

	again, err := o.Run(context.Background(), up, nil)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, 1, p.Calls(), "second run is served from the cache")
	assert.NotEqual(t, res.RunID, again.RunID)
	assert.InDelta(t, res.Scores[0].MScore, again.Scores[0].MScore, 1e-12)
}

func TestRun_DocumentMissingColumnScoresWithDefaults(t *testing.T) {
	p := &MockProvider{Reply: replyWithout(t, "Cash from Operations")}
	o := newTestOrchestrator(t, p, Options{FillMissing: config.Default().Extraction.FillMissing})

	res, err := o.Run(context.Background(), Upload{Name: "annual-report.txt", Data: []byte("no cash flow statement")}, nil)
	require.NoError(t, err)
	require.Len(t, res.Scores, 1)
	assert.True(t, res.Scores[0].Defined())
	assert.InDelta(t, 0.06875, res.Scores[0].TATA, 1e-9) // (1100-0) / 16000
}

func TestRun_CacheKeepsUnfilledRecords(t *testing.T) {
	p := &MockProvider{Reply: replyWithout(t, "Cash from Operations")}
	cache := store.NewExtractionCache(nil, t.TempDir(), nil)
	up := Upload{Name: "annual-report.txt", Data: []byte("no cash flow statement")}

	filled := newCachedOrchestrator(t, p, cache, Options{FillMissing: true})
	_, err := filled.Run(context.Background(), up, nil)
	require.NoError(t, err)

	strict := newCachedOrchestrator(t, p, cache, Options{})
	rec := &recorder{}
	_, err = strict.Run(context.Background(), up, rec.emit)
	var inputErr *calc.InputError
	require.True(t, errors.As(err, &inputErr), "strict run on a cached entry: %v", err)
	assert.Contains(t, rec.steps(), "cache:done")
	assert.Equal(t, "hit", rec.events[2].Detail)
	assert.Equal(t, 1, p.Calls())
}

func TestRun_TabularSkipsModel(t *testing.T) {
	p := &MockProvider{}
	o := newTestOrchestrator(t, p, Options{})
	csv := "Year,Sales,Total Assets\n2020,5000,15000\n2021,6000,16000\n"

	rec := &recorder{}
	_, err := o.Run(context.Background(), Upload{Name: "figures.csv", Data: []byte(csv)}, rec.emit)
	var inputErr *calc.InputError
	require.True(t, errors.As(err, &inputErr), "missing line items surface as input errors: %v", err)
	assert.Equal(t, 0, p.Calls())
	assert.Equal(t, "error:error", rec.steps()[len(rec.steps())-1])

	o = newTestOrchestrator(t, p, Options{FillMissing: true})
	res, err := o.Run(context.Background(), Upload{Name: "figures.csv", Data: []byte(csv)}, nil)
	require.NoError(t, err)
	require.Len(t, res.Scores, 1)
	assert.False(t, res.Scores[0].Defined(), "zero-filled prior denominators leave the score undefined")
	assert.Equal(t, calc.Undefined, res.Scores[0].Classification)
}

func TestRun_UnsupportedDocument(t *testing.T) {
	o := newTestOrchestrator(t, &MockProvider{}, Options{})
	rec := &recorder{}
	_, err := o.Run(context.Background(), Upload{Name: "logo.bin", Data: []byte("\x89PNG\r\n\x1a\n\x00\x00")}, rec.emit)
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, StepError, last.Step)
	assert.True(t, strings.HasPrefix(last.Detail, StepRead+":"))
}

func TestRun_ExtractionTimeout(t *testing.T) {
	p := &MockProvider{Block: true}
	o := newTestOrchestrator(t, p, Options{Timeout: 20 * time.Millisecond})
	_, err := o.Run(context.Background(), Upload{Name: "doc.md", Data: []byte("# Sales\n6000")}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScore(t *testing.T) {
	o := NewOrchestrator(nil, nil, Options{}, nil)
	scores, err := o.Score(nil)
	require.NoError(t, err)
	assert.NotNil(t, scores)
	assert.Empty(t, scores)
}

// Package pipeline runs an uploaded document through text extraction, the
// extraction cache, the language model and the M-Score engine.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"forensic_audit/pkg/core/agent"
	"forensic_audit/pkg/core/calc"
	"forensic_audit/pkg/core/document"
	"forensic_audit/pkg/core/extract"
	"forensic_audit/pkg/core/ingest"
	"forensic_audit/pkg/core/llm"
	"forensic_audit/pkg/core/store"
)

// Step names reported in events.
const (
	StepRead     = "read"
	StepParse    = "parse"
	StepCache    = "cache"
	StepExtract  = "extract"
	StepStore    = "store"
	StepScore    = "score"
	StepComplete = "complete"
	StepError    = "error"
)

// Event statuses.
const (
	StatusStarted = "started"
	StatusDone    = "done"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Event is a single progress update for a run.
type Event struct {
	Step     string `json:"step"`
	Status   string `json:"status"`
	Detail   string `json:"detail"`
	TimingMs int64  `json:"timing_ms"`
	Data     any    `json:"data,omitempty"` // scores on "complete"
}

// EmitFunc receives progress events. It is called from the Run goroutine.
type EmitFunc func(Event)

// Upload is one user-supplied file.
type Upload struct {
	Name string
	Data []byte
}

// Result is the outcome of a run.
type Result struct {
	RunID    string                 `json:"run_id"`
	Document string                 `json:"document"`
	Provider string                 `json:"provider,omitempty"`
	Cached   bool                   `json:"cached"`
	Records  []calc.FinancialRecord `json:"records"`
	Scores   []calc.ScoreRecord     `json:"scores"`
}

// ProviderSource resolves the provider used for extraction.
// *agent.Manager implements it.
type ProviderSource interface {
	GetProvider(agentType string) llm.Provider
	ProviderNameFor(agentType string) string
}

// ExtractionCache is the subset of *store.ExtractionCache the pipeline uses.
type ExtractionCache interface {
	Get(ctx context.Context, digest, provider string) (*store.CacheEntry, error)
	Put(ctx context.Context, entry *store.CacheEntry) error
}

// Options tunes an Orchestrator.
type Options struct {
	Prompts     extract.PromptSource
	PromptID    string
	FillMissing bool
	Timeout     time.Duration // per-run limit on the extraction call; 0 means none
}

// Orchestrator manages the end-to-end flow for uploads.
type Orchestrator struct {
	providers ProviderSource
	cache     ExtractionCache
	opts      Options
	log       *zap.Logger
}

// NewOrchestrator creates an orchestrator. cache may be nil.
func NewOrchestrator(providers ProviderSource, cache ExtractionCache, opts Options, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{providers: providers, cache: cache, opts: opts, log: log.Named("pipeline")}
}

// Score runs the M-Score engine on already structured records.
func (o *Orchestrator) Score(records []calc.FinancialRecord) ([]calc.ScoreRecord, error) {
	return calc.Compute(records)
}

// Run processes one upload. Tabular files (JSON, CSV, XLSX) are decoded
// directly; documents go through the language model.
func (o *Orchestrator) Run(ctx context.Context, up Upload, emit EmitFunc) (*Result, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	res := &Result{RunID: uuid.NewString(), Document: up.Name}
	log := o.log.With(zap.String("run_id", res.RunID), zap.String("document", up.Name))
	start := time.Now()

	fail := func(step string, err error) (*Result, error) {
		emit(Event{Step: StepError, Status: StatusError, Detail: fmt.Sprintf("%s: %v", step, err), TimingMs: since(start)})
		log.Warn("run failed", zap.String("step", step), zap.Error(err))
		return nil, err
	}

	var err error
	if isTabular(up.Name) {
		res.Records, err = o.parseTable(up, emit)
	} else {
		res.Records, err = o.extractDocument(ctx, up, res, emit, log)
	}
	if err != nil {
		return fail(stepOf(err), err)
	}

	t := time.Now()
	emit(Event{Step: StepScore, Status: StatusStarted, Detail: fmt.Sprintf("%d records", len(res.Records))})
	res.Scores, err = o.Score(res.Records)
	if err != nil {
		return fail(StepScore, err)
	}
	emit(Event{Step: StepScore, Status: StatusDone, Detail: fmt.Sprintf("%d periods scored", len(res.Scores)), TimingMs: since(t)})

	emit(Event{Step: StepComplete, Status: StatusDone, TimingMs: since(start), Data: res.Scores})
	log.Info("run complete",
		zap.Bool("cached", res.Cached),
		zap.Int("records", len(res.Records)),
		zap.Int("scores", len(res.Scores)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// stepError tags an error with the step it came from.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func stepOf(err error) string {
	var se *stepError
	if errors.As(err, &se) {
		return se.step
	}
	return StepError
}

func (o *Orchestrator) parseTable(up Upload, emit EmitFunc) ([]calc.FinancialRecord, error) {
	t := time.Now()
	emit(Event{Step: StepParse, Status: StatusStarted, Detail: up.Name})

	opts := ingest.Options{FillMissing: o.opts.FillMissing}
	var (
		records []calc.FinancialRecord
		err     error
	)
	switch strings.ToLower(filepath.Ext(up.Name)) {
	case ".csv":
		records, err = ingest.DecodeCSV(bytes.NewReader(up.Data), opts)
	case ".xlsx":
		records, err = ingest.DecodeXLSX(bytes.NewReader(up.Data), "", opts)
	default:
		records, err = ingest.DecodeJSON(up.Data, opts)
	}
	if err != nil {
		return nil, &stepError{StepParse, err}
	}
	emit(Event{Step: StepParse, Status: StatusDone, Detail: fmt.Sprintf("%d rows", len(records)), TimingMs: since(t)})
	return records, nil
}

func (o *Orchestrator) extractDocument(ctx context.Context, up Upload, res *Result, emit EmitFunc, log *zap.Logger) ([]calc.FinancialRecord, error) {
	t := time.Now()
	emit(Event{Step: StepRead, Status: StatusStarted, Detail: up.Name})
	doc, err := document.Extract(up.Name, up.Data)
	if err != nil {
		return nil, &stepError{StepRead, err}
	}
	emit(Event{Step: StepRead, Status: StatusDone, Detail: fmt.Sprintf("%s, %d chars", doc.Format, len(doc.Text)), TimingMs: since(t)})

	provider := o.providers.GetProvider(agent.AgentExtractor)
	res.Provider = o.providers.ProviderNameFor(agent.AgentExtractor)
	if provider == nil {
		return nil, &stepError{StepExtract, fmt.Errorf("no provider configured for extraction")}
	}

	if o.cache != nil {
		t = time.Now()
		entry, err := o.cache.Get(ctx, doc.Digest, res.Provider)
		if err != nil {
			log.Warn("cache lookup failed", zap.Error(err))
		}
		if entry != nil {
			res.Cached = true
			emit(Event{Step: StepCache, Status: StatusDone, Detail: "hit", TimingMs: since(t)})
			return o.fill(entry.Records), nil
		}
		emit(Event{Step: StepCache, Status: StatusDone, Detail: "miss", TimingMs: since(t)})
	}

	t = time.Now()
	emit(Event{Step: StepExtract, Status: StatusStarted, Detail: res.Provider})
	extractCtx := ctx
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}
	// The cache holds records as the model returned them; fill runs after.
	ex := &extract.Extractor{
		Provider: provider,
		Prompts:  o.opts.Prompts,
		PromptID: o.opts.PromptID,
		Log:      log,
	}
	records, err := ex.Extract(extractCtx, doc.Text)
	if err != nil {
		return nil, &stepError{StepExtract, err}
	}
	emit(Event{Step: StepExtract, Status: StatusDone, Detail: fmt.Sprintf("%d periods", len(records)), TimingMs: since(t)})

	if o.cache != nil {
		t = time.Now()
		entry := &store.CacheEntry{Digest: doc.Digest, Provider: res.Provider, DocumentName: up.Name, Records: records}
		if err := o.cache.Put(ctx, entry); err != nil {
			log.Warn("cache store failed", zap.Error(err))
			emit(Event{Step: StepStore, Status: StatusSkipped, Detail: err.Error(), TimingMs: since(t)})
		} else {
			emit(Event{Step: StepStore, Status: StatusDone, TimingMs: since(t)})
		}
	}
	return o.fill(records), nil
}

func (o *Orchestrator) fill(records []calc.FinancialRecord) []calc.FinancialRecord {
	if !o.opts.FillMissing {
		return records
	}
	return ingest.ZeroFill(records)
}

func isTabular(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".csv", ".xlsx":
		return true
	}
	return false
}

func since(t time.Time) int64 { return time.Since(t).Milliseconds() }

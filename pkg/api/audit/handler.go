// Package audit serves the M-Score audit API over HTTP and WebSocket.
package audit

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"forensic_audit/pkg/core/calc"
	"forensic_audit/pkg/core/ingest"
	"forensic_audit/pkg/core/pipeline"
	"forensic_audit/pkg/core/report"
)

// Options configures the handlers.
type Options struct {
	MaxUploadBytes int64
	FillMissing    bool // default for requests that do not say
	AllowedOrigins []string
	PongWait       time.Duration // idle limit for WebSocket clients; pings go out at 9/10 of it
}

// Handler holds dependencies for the audit endpoints.
type Handler struct {
	pipeline *pipeline.Orchestrator
	opts     Options
	log      *zap.Logger
}

func NewHandler(p *pipeline.Orchestrator, opts Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	return &Handler{pipeline: p, opts: opts, log: log.Named("audit")}
}

// HandleUpload accepts a multipart "file" and returns its M-Scores.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		h.fail(w, "upload", fmt.Errorf("invalid upload: %w", err), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing form field \"file\"")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, "upload", err, 0)
		return
	}

	res, err := h.pipeline.Run(r.Context(), pipeline.Upload{Name: header.Filename, Data: data}, nil)
	if err != nil {
		h.fail(w, "upload", err, 0)
		return
	}
	writeSuccess(w, res.Scores)
}

// HandleScore scores records posted as JSON. ?fill_missing=true zero-fills
// absent line items.
func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	scores, ok := h.scoreBody(w, r)
	if !ok {
		return
	}
	writeSuccess(w, scores)
}

// HandleReport scores records and renders them. ?format=markdown (default)
// or ?format=html; ?benford=true appends the first-digit test.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "html" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}

	benford, _ := strconv.ParseBool(r.URL.Query().Get("benford"))

	records, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	scores, err := h.pipeline.Score(records)
	if err != nil {
		h.fail(w, "report", err, 0)
		return
	}

	md := report.Markdown(scores)
	if benford {
		md += "\n" + report.BenfordMarkdown(calc.FirstDigitTest(calc.LineItemValues(records)))
	}
	if format == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = io.WriteString(w, md)
		return
	}
	html, err := report.HTML(md)
	if err != nil {
		h.fail(w, "report", err, 0)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

// HandleBenford runs the first-digit test over every line-item amount in the
// posted records.
func (h *Handler) HandleBenford(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes))
	if err != nil {
		h.fail(w, "benford", err, 0)
		return
	}
	records, err := ingest.DecodeJSON(body, ingest.Options{})
	if err != nil {
		h.fail(w, "benford", err, 0)
		return
	}
	writeSuccess(w, calc.FirstDigitTest(calc.LineItemValues(records)))
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) scoreBody(w http.ResponseWriter, r *http.Request) ([]calc.ScoreRecord, bool) {
	records, ok := h.decodeBody(w, r)
	if !ok {
		return nil, false
	}
	scores, err := h.pipeline.Score(records)
	if err != nil {
		h.fail(w, "score", err, 0)
		return nil, false
	}
	return scores, true
}

// decodeBody reads records from a POST body, honoring ?fill_missing.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request) ([]calc.FinancialRecord, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, false
	}

	fill := h.opts.FillMissing
	if v := r.URL.Query().Get("fill_missing"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "fill_missing must be true or false")
			return nil, false
		}
		fill = b
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes))
	if err != nil {
		h.fail(w, "score", err, 0)
		return nil, false
	}
	records, err := ingest.DecodeJSON(body, ingest.Options{FillMissing: fill})
	if err != nil {
		h.fail(w, "score", err, 0)
		return nil, false
	}
	return records, true
}

// fail logs err and writes the error envelope. status 0 derives it from err.
func (h *Handler) fail(w http.ResponseWriter, op string, err error, status int) {
	if s := statusFor(err); status == 0 || s != http.StatusInternalServerError {
		status = s
	}
	if status >= 500 {
		h.log.Error("request failed", zap.String("op", op), zap.Error(err))
	} else {
		h.log.Info("request rejected", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

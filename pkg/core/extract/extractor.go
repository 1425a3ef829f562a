// Package extract asks a language model for the M-Score line items in a
// document and decodes its answer.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"forensic_audit/pkg/core/calc"
	"forensic_audit/pkg/core/ingest"
	"forensic_audit/pkg/core/llm"
	"forensic_audit/pkg/core/prompt"
	"forensic_audit/pkg/core/utils"
)

// ErrEmptyCompletion is returned when the model answers with nothing usable.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// PromptSource is satisfied by *prompt.Registry.
type PromptSource interface {
	GetPrompt(id string) (*prompt.PromptTemplate, error)
	GetSchema(id string) (*prompt.ResponseSchema, error)
}

// Extractor turns document text into financial records.
type Extractor struct {
	Provider    llm.Provider
	Prompts     PromptSource
	PromptID    string // defaults to prompt.LineItemsID
	FillMissing bool
	Log         *zap.Logger
}

// Extract renders the extraction prompt for text, calls the provider and
// decodes the completion.
func (e *Extractor) Extract(ctx context.Context, text string) ([]calc.FinancialRecord, error) {
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}
	if e.Provider == nil {
		return nil, fmt.Errorf("extractor has no provider")
	}

	id := e.PromptID
	if id == "" {
		id = prompt.LineItemsID
	}
	prompts := e.Prompts
	if prompts == nil {
		prompts = prompt.Get()
	}
	pt, err := prompts.GetPrompt(id)
	if err != nil {
		return nil, err
	}

	userPrompt, err := prompt.RenderUserPrompt(pt, prompt.Vars{"DocumentText": text})
	if err != nil {
		return nil, err
	}

	options := map[string]interface{}{
		llm.OptResponseFormat: llm.JSONMode(),
		llm.OptTemperature:    0.0,
	}
	if len(pt.Stop) > 0 {
		options["stop"] = pt.Stop
	}

	systemPrompt := e.Provider.AdaptInstructions(pt.SystemPrompt)
	completion, err := e.Provider.GenerateResponse(ctx, userPrompt, systemPrompt, options)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	log.Debug("extraction completion received", zap.Int("chars", len(completion)))

	records, data, err := decode(completion, ingest.Options{FillMissing: e.FillMissing})
	if err != nil {
		return nil, err
	}
	if pt.ResponseSchemaID != "" {
		if schema, err := prompts.GetSchema(pt.ResponseSchemaID); err == nil {
			if missing := schema.MissingKeys(data); len(missing) > 0 {
				log.Warn("extraction answer lacks required keys",
					zap.String("schema", schema.ID), zap.Strings("missing", missing))
			}
		}
	}
	return records, nil
}

// Decode cleans a raw completion and decodes it into records.
func Decode(completion string, opts ingest.Options) ([]calc.FinancialRecord, error) {
	records, _, err := decode(completion, opts)
	return records, err
}

// decode also returns the repaired JSON the records came from.
func decode(completion string, opts ingest.Options) ([]calc.FinancialRecord, []byte, error) {
	cleaned := utils.CleanMarkdown(utils.TrimAfterMarker(completion, prompt.EndMarker))
	if cleaned == "" {
		return nil, nil, ErrEmptyCompletion
	}

	data, err := utils.SmartParse(cleaned)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot parse completion %q: %w", excerpt(cleaned), err)
	}

	records, err := ingest.DecodeJSON(data, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot decode completion %q: %w", excerpt(cleaned), err)
	}
	return records, data, nil
}

func excerpt(s string) string {
	const max = 120
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

package llm

import (
	"context"
	"errors"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// ErrMissingAPIKey is returned when a hosted provider has no key configured.
var ErrMissingAPIKey = errors.New("API_KEY_MISSING")

// Option keys understood by every provider.
const (
	OptModel          = "model"
	OptTemperature    = "temperature"
	OptMaxTokens      = "max_tokens"
	OptResponseFormat = "response_format" // map{"type": "json_object"}
)

// JSONMode is the options entry asking for a JSON-only completion.
func JSONMode() map[string]interface{} {
	return map[string]interface{}{"type": "json_object"}
}

func wantsJSON(options map[string]interface{}) bool {
	if val, ok := options[OptResponseFormat].(map[string]interface{}); ok {
		return val["type"] == "json_object"
	}
	return false
}

func optString(options map[string]interface{}, key, fallback string) string {
	if val, ok := options[key].(string); ok && val != "" {
		return val
	}
	return fallback
}

func optFloat(options map[string]interface{}, key string, fallback float64) float64 {
	switch val := options[key].(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	}
	return fallback
}

func optInt(options map[string]interface{}, key string, fallback int) int {
	switch val := options[key].(type) {
	case int:
		return val
	case float64:
		return int(val)
	}
	return fallback
}

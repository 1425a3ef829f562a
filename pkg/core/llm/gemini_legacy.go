package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiLegacyProvider talks to Gemini through the older generative-ai-go
// client. Some deployments still pin it for models the new SDK rejects.
type GeminiLegacyProvider struct {
	Model     string
	APIKeyEnv string
}

var _ Provider = (*GeminiLegacyProvider)(nil)

func (p *GeminiLegacyProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	keyEnv := p.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "GEMINI_API_KEY"
	}
	apiKey := optString(options, "api_key", os.Getenv(keyEnv))
	if apiKey == "" {
		return "", fmt.Errorf("%w: %s environment variable not set", ErrMissingAPIKey, keyEnv)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	name := p.Model
	if name == "" {
		name = "gemini-1.5-flash"
	}
	model := client.GenerativeModel(optString(options, OptModel, name))
	model.SetTemperature(float32(optFloat(options, OptTemperature, 0.1)))
	if n := optInt(options, OptMaxTokens, 0); n > 0 {
		model.SetMaxOutputTokens(int32(n))
	}
	if wantsJSON(options) {
		model.ResponseMIMEType = "application/json"
	}
	if systemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}

func (p *GeminiLegacyProvider) AdaptInstructions(raw string) string {
	return raw
}

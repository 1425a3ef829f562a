package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Known OpenAI-compatible endpoints. "local" is a llama.cpp server.
var chatDefaults = map[string]struct {
	baseURL string
	model   string
	keyEnv  string
}{
	"openai":   {"https://api.openai.com/v1", "gpt-4o-mini", "OPENAI_API_KEY"},
	"deepseek": {"https://api.deepseek.com", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"qwen":     {"https://dashscope.aliyuncs.com/compatible-mode/v1", "qwen-max", "DASHSCOPE_API_KEY"},
	"local":    {"http://127.0.0.1:8080/v1", "local", ""},
}

// ChatCompletionProvider calls any server speaking the OpenAI
// /chat/completions protocol.
type ChatCompletionProvider struct {
	Name      string // used in error codes and to pick defaults
	BaseURL   string
	Model     string
	APIKeyEnv string // empty means no Authorization header
	Client    *http.Client
}

var _ Provider = (*ChatCompletionProvider)(nil)

// NewChatCompletionProvider fills unset fields from the defaults for name.
func NewChatCompletionProvider(name, baseURL, model, apiKeyEnv string) *ChatCompletionProvider {
	d, known := chatDefaults[name]
	if baseURL == "" {
		baseURL = d.baseURL
	}
	if model == "" {
		model = d.model
	}
	if apiKeyEnv == "" && known {
		apiKeyEnv = d.keyEnv
	}
	return &ChatCompletionProvider{
		Name:      name,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Model:     model,
		APIKeyEnv: apiKeyEnv,
		Client:    &http.Client{Timeout: 5 * time.Minute},
	}
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	Stream         bool            `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

func (p *ChatCompletionProvider) code(suffix string) string {
	name := p.Name
	if name == "" {
		name = "chat"
	}
	return strings.ToUpper(name) + "_" + suffix
}

func (p *ChatCompletionProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	var apiKey string
	if p.APIKeyEnv != "" {
		apiKey = optString(options, "api_key", os.Getenv(p.APIKeyEnv))
		if apiKey == "" {
			return "", fmt.Errorf("%w: please set %s", ErrMissingAPIKey, p.APIKeyEnv)
		}
	}
	if p.BaseURL == "" {
		return "", fmt.Errorf("%s: no base url configured", p.code("CONFIG_ERROR"))
	}

	var messages []Message
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	reqBody := chatRequest{
		Model:       optString(options, OptModel, p.Model),
		Messages:    messages,
		Temperature: optFloat(options, OptTemperature, 0.1),
		MaxTokens:   optInt(options, OptMaxTokens, 0),
	}
	if wantsJSON(options) {
		reqBody.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	if stop, ok := options["stop"].([]string); ok {
		reqBody.Stop = stop
	}

	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.code("MARSHAL_ERROR"), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/chat/completions", bytes.NewReader(jsonBytes))
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.code("REQ_CREATE_ERROR"), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.code("API_CALL_ERROR"), err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.code("READ_BODY_ERROR"), err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: status=%d body=%s", p.code("API_ERROR"), res.StatusCode, truncate(body, 512))
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("%s: %w", p.code("UNMARSHAL_ERROR"), err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("%s: %s", p.code("API_ERROR"), response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%s: %s", p.code("NO_CHOICES"), truncate(body, 512))
	}
	return response.Choices[0].Message.Content, nil
}

func (p *ChatCompletionProvider) AdaptInstructions(raw string) string {
	return raw
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

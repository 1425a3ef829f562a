// Package prompt holds the prompt library used for model calls. Prompts and
// response schemas live as JSON under resources/ and override the built-ins.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"text/template"
)

// PromptTemplate is one prompt as stored on disk.
type PromptTemplate struct {
	ID               string           `json:"id"` // "<category>.<name>", e.g. "extraction.line_items"
	Name             string           `json:"name"`
	Category         string           `json:"category"`
	Description      string           `json:"description"`
	SystemPrompt     string           `json:"system_prompt"`
	UserPromptTmpl   string           `json:"user_prompt_template"` // text/template source
	ResponseSchemaID string           `json:"response_schema_ref"`
	Variables        []PromptVariable `json:"variables"`
	Stop             []string         `json:"stop,omitempty"`
	Version          string           `json:"version"`
}

// PromptVariable declares a template variable.
type PromptVariable struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default"`
}

// Validate checks that pt can be registered and rendered.
func (pt *PromptTemplate) Validate() error {
	if pt.ID == "" {
		return fmt.Errorf("prompt ID cannot be empty")
	}
	if pt.SystemPrompt == "" && pt.UserPromptTmpl == "" {
		return fmt.Errorf("prompt %s has neither a system prompt nor a user template", pt.ID)
	}
	if _, err := template.New(pt.ID).Parse(pt.UserPromptTmpl); err != nil {
		return fmt.Errorf("prompt %s: bad user template: %w", pt.ID, err)
	}
	return nil
}

// Vars are the values a user template is rendered with.
type Vars map[string]any

// ResponseSchema is a JSON Schema the model's answer should satisfy. Only the
// top-level required keys are enforced.
type ResponseSchema struct {
	ID          string
	Title       string
	Description string
	Required    []string
	Raw         json.RawMessage
}

// ParseSchema reads a JSON Schema document.
func ParseSchema(id string, data []byte) (*ResponseSchema, error) {
	var doc struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Required    []string `json:"required"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema %s: %w", id, err)
	}
	return &ResponseSchema{
		ID:          id,
		Title:       doc.Title,
		Description: doc.Description,
		Required:    doc.Required,
		Raw:         append(json.RawMessage(nil), data...),
	}, nil
}

// MissingKeys lists the required keys absent from a JSON object answer, in
// sorted order. Non-object answers are left to the decoder and yield nil.
func (s *ResponseSchema) MissingKeys(answer []byte) []string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(answer, &obj); err != nil {
		return nil
	}
	var missing []string
	for _, k := range s.Required {
		if v, ok := obj[k]; !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}

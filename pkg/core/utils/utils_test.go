package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanMarkdown(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `  {"a": 1} `, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n[1, 2]\n```", `[1, 2]`},
		{"chatter", "Here you go:\n```json\n{\"a\": 1}\n```\nHope it helps", `{"a": 1}`},
		{"inline fence", "```{\"a\": 1}```", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanMarkdown(tt.in))
		})
	}
}

func TestTrimAfterMarker(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, TrimAfterMarker("{\"a\": 1}\nEND\nignored", "END"))
	assert.Equal(t, `{"a": 1}`, TrimAfterMarker(`{"a": 1}END`, "END"))
	assert.Equal(t, `{"a": 1}`, TrimAfterMarker(`{"a": 1}`, "END"))
}

func TestSmartParse(t *testing.T) {
	out, err := SmartParse(`{"Year": [2020, 2021]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Year": [2020, 2021]}`, string(out))

	out, err = SmartParse(`{'Year': [2020, 2021,], "Sales": [1, 2]`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Year": [2020, 2021], "Sales": [1, 2]}`, string(out))
}

func TestParseHJSON(t *testing.T) {
	out, err := ParseHJSON("{\n  # comment\n  Year: [2020]\n}")
	require.NoError(t, err)
	assert.JSONEq(t, `{"Year": [2020]}`, out)
}

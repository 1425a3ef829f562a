package utils

import (
	"strings"
)

// CleanMarkdown strips an outer markdown code block (```json ... ```) and
// any text around it.
func CleanMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)

	start := strings.Index(cleaned, "```")
	if start < 0 {
		return cleaned
	}
	body := cleaned[start+3:]
	// Drop the info string ("json", "markdown", ...).
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if info := strings.TrimSpace(body[:nl]); !strings.ContainsAny(info, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// TrimAfterMarker cuts s at the first line that is exactly marker.
func TrimAfterMarker(s, marker string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) == marker {
			return strings.TrimSpace(strings.Join(lines[:i], "\n"))
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), marker))
}

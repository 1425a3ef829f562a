package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON attempts to fix common JSON errors from LLM outputs.
// Supported repairs:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed arrays/objects
// - Trailing commas
// - Comments in JSON
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %w", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
// Hjson supports comments, unquoted keys and strings, optional commas and
// multiline strings.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %w", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %w", err)
	}
	return string(jsonBytes), nil
}

// SmartParse tries multiple parsing strategies and returns standard JSON.
// Order of attempts:
// 1. Standard JSON
// 2. JSON repair
// 3. Hjson (most lenient)
func SmartParse(input string) ([]byte, error) {
	if json.Valid([]byte(input)) {
		return []byte(input), nil
	}

	repaired, repairErr := RepairJSON(input)
	if repairErr == nil && json.Valid([]byte(repaired)) && repaired != `""` {
		return []byte(repaired), nil
	}

	hjsonResult, err := ParseHJSON(input)
	if err == nil {
		return []byte(hjsonResult), nil
	}

	return nil, fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed: %w", err)
}

package database

import (
	"encoding/json"
	"fmt"
)

// JSONB encodes value as JSON text for a `$n::jsonb` parameter.
func JSONB(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal jsonb value: %w", err)
	}
	return string(data), nil
}

// ParseJSONBRecord decodes a JSONB column holding an object.
// A NULL column yields a nil map.
func ParseJSONBRecord(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("jsonb value is not an object: %w", err)
	}
	return record, nil
}

// ParseJSONBArray decodes a JSONB column holding an array.
// A NULL column yields a nil slice.
func ParseJSONBArray(raw []byte) ([]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("jsonb value is not an array: %w", err)
	}
	return items, nil
}

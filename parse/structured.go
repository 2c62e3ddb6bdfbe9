// Package parse turns raw LLM completion text into structured mappings,
// tolerating markdown fences, trailing commas and surrounding prose.
package parse

import (
	"encoding/json"
	"log"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// Mapping parses text into a map. It never fails: on irrecoverable parse
// errors the caller-supplied fallback is returned unchanged. Callers must
// supply a semantically reasonable fallback, not an empty map, so the
// pipeline degrades gracefully.
func Mapping(text string, fallback map[string]any) map[string]any {
	if m, ok := tryParse(text); ok {
		return m
	}

	cleaned := Clean(text)
	if m, ok := tryParse(cleaned); ok {
		return m
	}

	// Last resort: jsonrepair handles unquoted keys, single quotes, cut-off
	// documents and similar LLM artifacts.
	if repaired, err := jsonrepair.JSONRepair(cleaned); err == nil {
		if m, ok := tryParse(repaired); ok {
			return m
		}
	}

	log.Printf("⚠️  structured parse failed, using fallback (%d chars of raw text)", len(text))
	return fallback
}

// Clean strips markdown code fences, extraneous prose around the outermost
// JSON object, and trailing commas before closing braces/brackets.
func Clean(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	// Cut leading/trailing prose down to the outermost object.
	if start := strings.Index(s, "{"); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndex(s, "}"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}

	return trailingCommaRe.ReplaceAllString(s, "$1")
}

func tryParse(text string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, false
	}
	if m == nil {
		return nil, false
	}
	return m, true
}

// String reads a string field from a parsed mapping.
func String(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Int reads a numeric field, accepting the float64 that encoding/json
// produces as well as native ints.
func Int(m map[string]any, key string, fallback int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return fallback
}

// Float reads a numeric field as float64.
func Float(m map[string]any, key string, fallback float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// StringSlice reads a []string field from a parsed mapping.
func StringSlice(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// FloatSlice reads a []float64 field from a parsed mapping.
func FloatSlice(m map[string]any, key string) []float64 {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case float64:
			out = append(out, v)
		case int:
			out = append(out, float64(v))
		}
	}
	return out
}

// MapSlice reads a []map field from a parsed mapping.
func MapSlice(m map[string]any, key string) []map[string]any {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if mm, ok := item.(map[string]any); ok {
			out = append(out, mm)
		}
	}
	return out
}

// Map reads a nested object field from a parsed mapping.
func Map(m map[string]any, key string) map[string]any {
	if mm, ok := m[key].(map[string]any); ok {
		return mm
	}
	return nil
}

// Bool reads a boolean field, also accepting "true"/"false" strings.
func Bool(m map[string]any, key string, fallback bool) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		if strings.EqualFold(v, "true") {
			return true
		}
		if strings.EqualFold(v, "false") {
			return false
		}
	}
	return fallback
}

// Package json provides JSON extraction utilities for parsing LLM responses.
//
// Models often wrap JSON in markdown fences or surround it with commentary.
// This package locates and parses the JSON object inside such responses.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract returns the JSON object portion of a model response.
// It handles three patterns:
//  1. a pure JSON response
//  2. JSON wrapped in a markdown code fence (```json ... ```)
//  3. a JSON object embedded in surrounding text
//
// Only objects are handled, not top-level arrays.
func Extract(response string) (string, error) {
	candidate := stripFence(response)

	if json.Valid([]byte(candidate)) && strings.HasPrefix(strings.TrimSpace(candidate), "{") {
		return candidate, nil
	}

	if obj, ok := scanObject(candidate); ok {
		return obj, nil
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no valid JSON object in response: %q", preview)
}

// Unmarshal extracts the JSON object from a model response and decodes it
// into the provided destination.
func Unmarshal(response string, dest any) error {
	obj, err := Extract(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), dest); err != nil {
		return fmt.Errorf("decode extracted JSON: %w", err)
	}
	return nil
}

// Decode is the generic form of Unmarshal.
func Decode[T any](response string) (T, error) {
	var result T
	err := Unmarshal(response, &result)
	return result, err
}

// stripFence removes a surrounding markdown code fence, if present.
func stripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop a language tag on the opening fence line ("json", "JSON", ...)
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 && !strings.ContainsAny(trimmed[:idx], "{}") {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// scanObject finds the first balanced top-level JSON object in s.
// Braces inside string literals are skipped; candidates are verified with
// the encoding/json parser before being accepted.
func scanObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if json.Valid([]byte(candidate)) {
						return candidate, true
					}
					i = len(s) // balanced but invalid: try the next '{'
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start = start + 1 + next
	}
	return "", false
}

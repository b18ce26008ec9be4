package jsonutil

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrEmptyInput = errors.New("empty input")

// DecodeWithFallback decodes raw into out. It first tries the input as-is,
// then falls back to the contents of the first ```json code fence. Model
// output frequently wraps JSON in a fence even when asked not to.
func DecodeWithFallback(raw string, out any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyInput
	}
	directErr := json.Unmarshal([]byte(raw), out)
	if directErr == nil {
		return nil
	}
	fenced, ok := extractCodeFence(raw)
	if !ok {
		return directErr
	}
	return json.Unmarshal([]byte(fenced), out)
}

func extractCodeFence(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start < 0 {
		return "", false
	}
	rest := raw[start+3:]
	if newline := strings.IndexByte(rest, '\n'); newline >= 0 {
		lang := strings.ToLower(strings.TrimSpace(rest[:newline]))
		if lang != "" && lang != "json" {
			return "", false
		}
		rest = rest[newline+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	body := strings.TrimSpace(rest[:end])
	if body == "" {
		return "", false
	}
	return body, true
}

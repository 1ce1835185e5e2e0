package llm

import (
	"errors"
	"strings"
)

// ErrNoJSON indicates a model response from which no JSON object could
// be recovered.
var ErrNoJSON = errors.New("llm: response contains no JSON object")

// ExtractJSONObject recovers the JSON object embedded in a model
// response. Models frequently wrap structured output in markdown
// fences or surround it with prose; callers unmarshal the returned
// slice themselves so parse failures stay first-class errors.
func ExtractJSONObject(text string) ([]byte, error) {
	t := strings.TrimSpace(text)

	if i := strings.Index(t, "```json"); i >= 0 {
		rest := t[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			t = strings.TrimSpace(rest[:j])
		}
	} else if i := strings.Index(t, "```"); i >= 0 {
		rest := t[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			t = strings.TrimSpace(rest[:j])
		}
	}

	if !strings.HasPrefix(t, "{") {
		start := strings.Index(t, "{")
		end := strings.LastIndex(t, "}")
		if start < 0 || end <= start {
			return nil, ErrNoJSON
		}
		t = t[start : end+1]
	}
	return []byte(t), nil
}

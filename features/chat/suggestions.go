package chat

import (
	"encoding/json"
	"regexp"
	"strings"
)

// defaultSuggestions pads the suggestion set when the model returns fewer
// than three usable questions.
var defaultSuggestions = []string{
	"What is the main purpose of this document?",
	"What are the key findings?",
	"What are the key recommendations?",
}

var listPrefixRe = regexp.MustCompile(`^[\s*\-\d.]+`)

// ParseSuggestions extracts exactly three questions from model output. It
// first tries a strict JSON array parse on the first `[...]` span; if that
// fails it falls back to splitting lines and stripping list markers. The
// result is deduplicated and padded from the defaults to exactly three.
func ParseSuggestions(raw string) []string {
	raw = strings.TrimSpace(raw)

	var parsed []string
	jsonText := raw
	if start, end := strings.Index(raw, "["), strings.LastIndex(raw, "]"); start >= 0 && end > start {
		jsonText = raw[start : end+1]
	}
	var arr []interface{}
	if err := json.Unmarshal([]byte(jsonText), &arr); err == nil {
		for _, v := range arr {
			if s, ok := v.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					parsed = append(parsed, s)
				}
			}
		}
	} else {
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(listPrefixRe.ReplaceAllString(line, ""))
			if line != "" {
				parsed = append(parsed, line)
			}
		}
	}

	suggestions := make([]string, 0, 3)
	seen := make(map[string]bool)
	for _, s := range parsed {
		if len(suggestions) >= 3 {
			break
		}
		if !seen[s] {
			seen[s] = true
			suggestions = append(suggestions, s)
		}
	}

	for _, q := range defaultSuggestions {
		if len(suggestions) >= 3 {
			break
		}
		if !seen[q] {
			seen[q] = true
			suggestions = append(suggestions, q)
		}
	}
	return suggestions
}

package completion

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	codeBlockRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	objectArrayRe   = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)
	arrayRe         = regexp.MustCompile(`(?s)\[.*\]`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON finds the JSON value in a completion's text. It tries, in
// order, the first fenced code block, the outermost array of objects, the
// outermost array of any kind (so a bare "[]" after prose is found), and the
// whole text.
func ExtractJSON(text string) (json.RawMessage, error) {
	var candidates []string
	if m := codeBlockRe.FindStringSubmatch(text); len(m) > 1 {
		candidates = append(candidates, m[1])
	}
	if m := objectArrayRe.FindString(text); m != "" {
		candidates = append(candidates, m)
	}
	if m := arrayRe.FindString(text); m != "" {
		candidates = append(candidates, m)
	}
	candidates = append(candidates, strings.TrimSpace(text))

	for _, c := range candidates {
		if raw, ok := validJSON(c); ok {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w (raw: %s)", ErrResponseNotParseable, truncate(strings.TrimSpace(text), 200))
}

// validJSON accepts s as-is or with trailing commas removed.
func validJSON(s string) (json.RawMessage, bool) {
	if s == "" {
		return nil, false
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), true
	}
	cleaned := trailingCommaRe.ReplaceAllString(s, "$1")
	if json.Valid([]byte(cleaned)) {
		return json.RawMessage(cleaned), true
	}
	return nil, false
}

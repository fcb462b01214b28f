package gemini

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/recipetube/backend/internal/domain"
)

var (
	fencedBlockRegex = regexp.MustCompile("(?s)```(?i:json)?(.*?)```")
	errNoJSON        = errors.New("no JSON object in response")
)

// braceSpan returns the text from the first '{' to the last '}'
func braceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// ParseResponse locates the JSON object in a model answer and decodes it.
// A fenced code block wins over a bare {...} span.
func ParseResponse(text string) (domain.RecipeFields, error) {
	if strings.TrimSpace(text) == "" {
		return domain.RecipeFields{}, &domain.ExtractionError{Reason: domain.ExtractionEmpty}
	}

	candidate := ""
	if m := fencedBlockRegex.FindStringSubmatch(text); m != nil {
		candidate = strings.TrimSpace(m[1])
	} else if span, ok := braceSpan(text); ok {
		candidate = span
	}
	if candidate == "" {
		return domain.RecipeFields{}, &domain.ExtractionError{Reason: domain.ExtractionMalformed, Err: errNoJSON}
	}

	fields, err := decodeObject(candidate)
	if err != nil {
		// fenced block with prose around the object
		span, ok := braceSpan(candidate)
		if !ok {
			return domain.RecipeFields{}, &domain.ExtractionError{Reason: domain.ExtractionMalformed, Err: err}
		}
		if fields, err = decodeObject(span); err != nil {
			return domain.RecipeFields{}, &domain.ExtractionError{Reason: domain.ExtractionMalformed, Err: err}
		}
	}

	return fields.Normalize(), nil
}

// decodeObject accepts only a JSON object, so literals such as null fail
func decodeObject(s string) (domain.RecipeFields, error) {
	var fields domain.RecipeFields
	if !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return fields, errNoJSON
	}
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return domain.RecipeFields{}, err
	}
	return fields, nil
}

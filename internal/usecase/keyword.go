package usecase

import (
	"strings"
	"unicode/utf8"
)

// DefaultQuerySuffix narrows YouTube searches to recipe videos
const DefaultQuerySuffix = "レシピ 料理"

// maxKeywordRunes caps keywords sent upstream and used as cache keys
const maxKeywordRunes = 100

// KeywordNormalizer turns user input into cache keys, stat keys and YouTube queries
type KeywordNormalizer struct {
	querySuffix string
}

// NewKeywordNormalizer creates a normalizer that appends querySuffix to queries
func NewKeywordNormalizer(querySuffix string) *KeywordNormalizer {
	return &KeywordNormalizer{querySuffix: strings.TrimSpace(querySuffix)}
}

// Normalize lowercases the keyword and collapses whitespace, including the
// ideographic space. The result is empty when there is nothing to search for.
func (n *KeywordNormalizer) Normalize(keyword string) string {
	cleaned := strings.Join(strings.Fields(strings.ToLower(keyword)), " ")

	if utf8.RuneCountInString(cleaned) > maxKeywordRunes {
		runes := []rune(cleaned)
		cleaned = string(runes[:maxKeywordRunes])
		// prefer cutting at a word boundary
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > len(cleaned)/2 {
			cleaned = cleaned[:lastSpace]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}

// BuildQuery returns the YouTube query for an already normalized keyword
func (n *KeywordNormalizer) BuildQuery(normalized string) string {
	if n.querySuffix == "" {
		return normalized
	}
	return normalized + " " + n.querySuffix
}

package store

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// identifierRegex matches alphanumeric runs (including underscores), the
// shape of a source identifier before it gets split into sub-words.
var identifierRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

var stopWordSet struct {
	once sync.Once
	m    map[string]struct{}
}

// codeStopWords returns the default stop-word set as a lookup map, built
// once lazily rather than reconstructed from DefaultBM25Config().StopWords
// on every indexFTSLocked/Search call.
func codeStopWords() map[string]struct{} {
	stopWordSet.once.Do(func() {
		words := DefaultBM25Config().StopWords
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			m[strings.ToLower(w)] = struct{}{}
		}
		stopWordSet.m = m
	})
	return stopWordSet.m
}

// TokenizeCode converts a chunk's text into the lowercase, code-aware term
// list that feeds the FTS5 index and BM25 queries: identifiers are split on
// camelCase/PascalCase/snake_case boundaries, language keywords are dropped,
// and tokens shorter than two characters are discarded as too noisy to rank.
func TokenizeCode(text string) []string {
	stop := codeStopWords()
	var tokens []string

	for _, word := range identifierRegex.FindAllString(text, -1) {
		for _, part := range splitIdentifier(word) {
			lower := strings.ToLower(part)
			if len(lower) < 2 {
				continue
			}
			if _, isStop := stop[lower]; isStop {
				continue
			}
			tokens = append(tokens, lower)
		}
	}

	return tokens
}

// splitIdentifier breaks a snake_case identifier into its underscore-joined
// parts, then splits each part on camelCase/PascalCase boundaries.
func splitIdentifier(token string) []string {
	if !strings.Contains(token, "_") {
		return splitCamelCase(token)
	}

	var result []string
	for _, part := range strings.Split(token, "_") {
		if part != "" {
			result = append(result, splitCamelCase(part)...)
		}
	}
	return result
}

// splitCamelCase splits camelCase and PascalCase identifiers, keeping runs of
// uppercase letters together so acronyms survive as single tokens.
//
//	splitCamelCase("getUserByID")     -> ["get", "User", "By", "ID"]
//	splitCamelCase("parseHTTPRequest") -> ["parse", "HTTP", "Request"]
func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if (prevLower || nextLower) && current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

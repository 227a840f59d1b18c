package retrieval

import "regexp"

var wordPattern = regexp.MustCompile(`\w+`)

// tokenize lowercases text and splits it into a set of word tokens. Used by
// the sources that score by token overlap rather than an index.
func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, match := range wordPattern.FindAllString(text, -1) {
		tokens[lower(match)] = struct{}{}
	}
	return tokens
}

// overlapScore returns the fraction of query tokens present in the content
// token set. Zero means no overlap.
func overlapScore(queryTokens, contentTokens map[string]struct{}) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	overlap := 0
	for token := range queryTokens {
		if _, ok := contentTokens[token]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryTokens))
}

// lower is an ASCII-aware lowercase; Thai codepoints have no case and pass
// through unchanged.
func lower(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}

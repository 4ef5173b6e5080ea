package storage

import "strings"

// Stop words filtered out of keyword queries and document tokens.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "i": true, "my": true,
}

// TokenizeAndFilter splits text into words, lowercases, trims punctuation,
// and removes stop words.
func TokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// KeywordOverlap counts how many distinct query tokens appear in the
// document. Both inputs are tokenized and stop-word filtered.
func KeywordOverlap(document, query string) int {
	queryWords := TokenizeAndFilter(query)
	if len(queryWords) == 0 {
		return 0
	}

	docWords := TokenizeAndFilter(document)
	docWordSet := make(map[string]bool, len(docWords))
	for _, word := range docWords {
		docWordSet[word] = true
	}

	seen := make(map[string]bool, len(queryWords))
	matched := 0
	for _, qWord := range queryWords {
		if seen[qWord] {
			continue
		}
		seen[qWord] = true
		if docWordSet[qWord] {
			matched++
		}
	}
	return matched
}

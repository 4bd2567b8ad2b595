package rerank

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// Stop words ignored when matching query terms against document fields.
// Contraction tails split off by the tokenizer are included.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "how": true, "which": true, "who": true,
	"s": true, "ll": true, "re": true, "m": true, "n't": true,
}

// Tokenizing only; the tagger and entity model stay unloaded.
var tokenizeOnly = []prose.DocOpt{
	prose.WithSegmentation(false),
	prose.WithTagging(false),
	prose.WithExtraction(false),
}

// tokenizeAndFilter splits text into lowercase words and drops punctuation
// and stop words.
func tokenizeAndFilter(text string) []string {
	doc, err := prose.NewDocument(text, tokenizeOnly...)
	if err != nil {
		return fallbackTokens(text)
	}
	tokens := doc.Tokens()
	filtered := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if word := cleanTerm(tok.Text); word != "" {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

func fallbackTokens(text string) []string {
	var out []string
	for _, field := range strings.Fields(text) {
		if word := cleanTerm(field); word != "" {
			out = append(out, word)
		}
	}
	return out
}

func cleanTerm(token string) string {
	word := strings.ToLower(strings.Trim(token, ".,!?;:'\"-()[]{}$"))
	if word == "" || stopWords[word] {
		return ""
	}
	return word
}

// termSet returns the filtered terms of every text as a set.
func termSet(texts ...string) map[string]bool {
	set := make(map[string]bool)
	for _, text := range texts {
		for _, word := range tokenizeAndFilter(text) {
			set[word] = true
		}
	}
	return set
}

// coverage returns the fraction of terms present in set.
func coverage(terms []string, set map[string]bool) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, term := range terms {
		if set[term] {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

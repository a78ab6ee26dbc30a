// Package retrieval implements the search and answer-synthesis pipeline:
// a lexical term-overlap scorer over stored chunks, a completion writer
// that cites the chunks it draws from, and the entity extractor used for
// graph builds.
package retrieval

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/mistakeknot/recall/internal/core"
)

const DefaultSearchLimit = 10

// Score returns the lexical overlap between query and text in [0, 1]:
// the fraction of distinct query terms that occur in the text.
func Score(query, text string) float64 {
	terms := tokenize(query)
	if len(terms) == 0 {
		return 0
	}
	have := make(map[string]bool, len(terms))
	for _, tok := range tokenize(text) {
		have[tok] = true
	}
	matched := 0
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		if have[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}

// TopK scores chunks against query and returns the best-scoring limit
// results in descending score order. Zero-score chunks are dropped.
// Ties break on chunk ID so ordering is stable.
func TopK(query string, chunks []core.Chunk, limit int) []core.SearchResult {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	results := make([]core.SearchResult, 0, len(chunks))
	for _, ch := range chunks {
		s := Score(query, ch.Text)
		if s == 0 {
			continue
		}
		results = append(results, core.SearchResult{
			ID:         ch.ID,
			DocumentID: ch.DocumentID,
			Score:      s,
			Text:       ch.Text,
			Metadata:   ch.Metadata,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Completion synthesizes an answer from the retrieved results, citing
// each source it uses with a [[citation:N]] marker. N is the 1-based
// position of the source in results.
func Completion(query string, results []core.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No indexed content matched %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the indexed documents, here is what relates to %q:\n\n", query)
	for n, res := range results {
		fmt.Fprintf(&b, "- %s [[citation:%d]]\n", summarize(res.Text), n+1)
	}
	return b.String()
}

// summarize trims a chunk down to its first sentence, capped at 200
// characters.
func summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if i := strings.IndexAny(text, ".!?"); i >= 0 && i < len(text)-1 {
		text = text[:i+1]
	}
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

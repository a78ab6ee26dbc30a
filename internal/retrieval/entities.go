package retrieval

import (
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/mistakeknot/recall/internal/core"
)

// ExtractEntities pulls named entities and co-occurrence relationships
// out of the given chunks. Entities are capitalized word runs; two
// entities appearing in the same chunk get a co_occurs_with
// relationship weighted by how often they co-occur.
func ExtractEntities(chunks []core.Chunk) ([]core.GraphEntity, []core.GraphRelationship) {
	type entityInfo struct {
		id       string
		mentions int
		chunkIDs map[string]bool
	}
	entities := make(map[string]*entityInfo)
	pairWeight := make(map[[2]string]int)

	for _, ch := range chunks {
		names := entityNames(ch.Text)
		seen := make(map[string]bool, len(names))
		for _, name := range names {
			info, ok := entities[name]
			if !ok {
				info = &entityInfo{id: uuid.NewString(), chunkIDs: make(map[string]bool)}
				entities[name] = info
			}
			info.mentions++
			info.chunkIDs[ch.ID] = true
			seen[name] = true
		}
		distinct := make([]string, 0, len(seen))
		for name := range seen {
			distinct = append(distinct, name)
		}
		sort.Strings(distinct)
		for i := 0; i < len(distinct); i++ {
			for j := i + 1; j < len(distinct); j++ {
				pairWeight[[2]string{distinct[i], distinct[j]}]++
			}
		}
	}

	names := make([]string, 0, len(entities))
	for name := range entities {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]core.GraphEntity, 0, len(names))
	for _, name := range names {
		info := entities[name]
		out = append(out, core.GraphEntity{
			ID:           info.id,
			Name:         name,
			MentionCount: info.mentions,
		})
	}

	pairs := make([][2]string, 0, len(pairWeight))
	for pair := range pairWeight {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	rels := make([]core.GraphRelationship, 0, len(pairs))
	for _, pair := range pairs {
		rels = append(rels, core.GraphRelationship{
			ID:        uuid.NewString(),
			SubjectID: entities[pair[0]].id,
			ObjectID:  entities[pair[1]].id,
			Predicate: "co_occurs_with",
			Weight:    float64(pairWeight[pair]),
		})
	}
	return out, rels
}

// entityNames finds maximal runs of capitalized words. A lone
// capitalized word opening a sentence carries no signal and is
// skipped, but a name can open a sentence too: a sentence-initial
// capitalized word followed by another capitalized word starts a run.
func entityNames(text string) []string {
	var names []string
	words := strings.Fields(text)
	sentenceStart := true
	var run []string
	flush := func() {
		if len(run) > 0 {
			names = append(names, strings.Join(run, " "))
			run = nil
		}
	}
	for idx, word := range words {
		trimmed := trimWord(word)
		capitalized := trimmed != "" && unicode.IsUpper([]rune(trimmed)[0])
		switch {
		case capitalized && !sentenceStart:
			run = append(run, trimmed)
		case capitalized && sentenceStart && len(run) > 0:
			// Continuation of a run across a false sentence boundary
			// (e.g. an abbreviation) still counts.
			run = append(run, trimmed)
		case capitalized && sentenceStart && word == trimmed && nextCapitalized(words, idx):
			run = append(run, trimmed)
		default:
			flush()
		}
		sentenceStart = strings.ContainsAny(word, ".!?")
	}
	flush()
	return names
}

func trimWord(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func nextCapitalized(words []string, idx int) bool {
	if idx+1 >= len(words) {
		return false
	}
	next := trimWord(words[idx+1])
	return next != "" && unicode.IsUpper([]rune(next)[0])
}

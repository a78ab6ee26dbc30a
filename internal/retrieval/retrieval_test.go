package retrieval

import (
	"strings"
	"testing"

	"github.com/mistakeknot/recall/internal/core"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name  string
		query string
		text  string
		want  float64
	}{
		{"full overlap", "vector search", "Vector search over embeddings.", 1},
		{"half overlap", "vector search", "a search engine", 0.5},
		{"no overlap", "vector search", "unrelated words entirely", 0},
		{"empty query", "", "anything", 0},
		{"case insensitive", "VECTOR", "vector", 1},
		{"repeated query terms count once", "go go go", "go", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.query, tc.text); got != tc.want {
				t.Fatalf("Score(%q, %q) = %v, want %v", tc.query, tc.text, got, tc.want)
			}
		})
	}
}

func TestTopK(t *testing.T) {
	chunks := []core.Chunk{
		{ID: "c1", DocumentID: "d1", Text: "vector search over embeddings"},
		{ID: "c2", DocumentID: "d1", Text: "search only"},
		{ID: "c3", DocumentID: "d2", Text: "nothing relevant here"},
	}
	results := TopK("vector search", chunks, 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "c1" || results[1].ID != "c2" {
		t.Fatalf("order: %s then %s", results[0].ID, results[1].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("scores should descend: %v %v", results[0].Score, results[1].Score)
	}

	t.Run("limit truncates", func(t *testing.T) {
		if got := TopK("vector search", chunks, 1); len(got) != 1 {
			t.Fatalf("expected 1 result, got %d", len(got))
		}
	})

	t.Run("tie breaks on id", func(t *testing.T) {
		tied := []core.Chunk{
			{ID: "b", Text: "alpha"},
			{ID: "a", Text: "alpha"},
		}
		got := TopK("alpha", tied, 10)
		if got[0].ID != "a" {
			t.Fatalf("expected id tie-break, got %s first", got[0].ID)
		}
	})
}

func TestCompletionCitesEachSource(t *testing.T) {
	results := []core.SearchResult{
		{ID: "c1", Text: "Go is a compiled language."},
		{ID: "c2", Text: "Go has goroutines."},
	}
	out := Completion("go", results)
	if !strings.Contains(out, "[[citation:1]]") || !strings.Contains(out, "[[citation:2]]") {
		t.Fatalf("missing citation markers: %q", out)
	}
	if strings.Contains(out, "[[citation:3]]") {
		t.Fatalf("citation beyond source count: %q", out)
	}
}

func TestCompletionEmptyResults(t *testing.T) {
	out := Completion("anything", nil)
	if strings.Contains(out, "citation") {
		t.Fatalf("no-result answer must not cite: %q", out)
	}
	if out == "" {
		t.Fatal("expected a fallback answer")
	}
}

func TestExtractEntities(t *testing.T) {
	chunks := []core.Chunk{
		{ID: "c1", Text: "The engine was designed by Ada Lovelace and Charles Babbage in London."},
		{ID: "c2", Text: "Later, Ada Lovelace wrote the first program."},
	}
	entities, rels := ExtractEntities(chunks)

	byName := map[string]core.GraphEntity{}
	for _, e := range entities {
		byName[e.Name] = e
	}
	ada, ok := byName["Ada Lovelace"]
	if !ok {
		t.Fatalf("missing Ada Lovelace in %v", names(entities))
	}
	if ada.MentionCount != 2 {
		t.Fatalf("Ada mentions = %d, want 2", ada.MentionCount)
	}
	if _, ok := byName["Charles Babbage"]; !ok {
		t.Fatalf("missing Charles Babbage in %v", names(entities))
	}
	if _, ok := byName["The"]; ok {
		t.Fatal("sentence-initial word must not become an entity")
	}

	var found bool
	for _, r := range rels {
		if r.Predicate != "co_occurs_with" {
			t.Fatalf("predicate: %s", r.Predicate)
		}
		if (r.SubjectID == ada.ID || r.ObjectID == ada.ID) && r.Weight >= 1 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a co-occurrence involving Ada Lovelace")
	}
}

func TestExtractEntitiesSentenceOpeners(t *testing.T) {
	chunks := []core.Chunk{
		{ID: "c1", Text: "Ada Lovelace worked with Charles Babbage on an engine. Analytical Engine designs followed later. She published notes."},
	}
	entities, _ := ExtractEntities(chunks)

	byName := map[string]core.GraphEntity{}
	for _, e := range entities {
		byName[e.Name] = e
	}
	for _, want := range []string{"Ada Lovelace", "Charles Babbage", "Analytical Engine"} {
		if _, ok := byName[want]; !ok {
			t.Errorf("missing %s in %v", want, names(entities))
		}
	}
	if _, ok := byName["She"]; ok {
		t.Error("lone sentence-initial word must not become an entity")
	}
}

func names(entities []core.GraphEntity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Name
	}
	return out
}

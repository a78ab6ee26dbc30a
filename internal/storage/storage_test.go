package storage

import (
	"context"
	"testing"
	"time"

	"github.com/mistakeknot/recall/internal/core"
)

func TestInMemoryUsers(t *testing.T) {
	m := NewInMemory()
	u, err := m.CreateUser(core.User{Email: "a@example.com", Role: core.RoleUser})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if _, err := m.CreateUser(core.User{Email: "A@Example.com"}); err != ErrConflict {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
	got, err := m.GetUserByEmail("a@example.com")
	if err != nil || got.ID != u.ID {
		t.Fatalf("lookup by email: %v %v", got, err)
	}
	if err := m.DeleteUser(u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.GetUser(u.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestInMemoryDocumentsAndCollections(t *testing.T) {
	m := NewInMemory()
	coll, err := m.CreateCollection(core.Collection{Name: "papers", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	doc, err := m.CreateDocument(core.Document{OwnerID: "u1", Title: "intro"}, []core.Chunk{
		{Text: "first chunk"},
		{Text: "second chunk"},
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := m.AddDocumentToCollection(coll.ID, doc.ID); err != nil {
		t.Fatalf("add to collection: %v", err)
	}

	got, err := m.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if len(got.CollectionIDs) != 1 || got.CollectionIDs[0] != coll.ID {
		t.Fatalf("expected collection membership, got %v", got.CollectionIDs)
	}

	chunks, total, err := m.DocumentChunks(doc.ID, 0, 0)
	if err != nil || total != 2 || len(chunks) != 2 {
		t.Fatalf("chunks: %v total=%d len=%d", err, total, len(chunks))
	}
	if chunks[0].Ordinal != 0 || chunks[1].Ordinal != 1 {
		t.Fatalf("expected ordinals 0,1 got %d,%d", chunks[0].Ordinal, chunks[1].Ordinal)
	}

	text, err := m.DocumentText(doc.ID)
	if err != nil || text != "first chunk\n\nsecond chunk" {
		t.Fatalf("document text: %q %v", text, err)
	}

	scoped, err := m.SearchableChunks("u1", coll.ID)
	if err != nil || len(scoped) != 2 {
		t.Fatalf("searchable chunks: %v len=%d", err, len(scoped))
	}
	other, err := m.SearchableChunks("someone-else", "")
	if err != nil || len(other) != 0 {
		t.Fatalf("expected no chunks for other owner, got %d", len(other))
	}

	if err := m.DeleteDocument(doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	docs, total, err := m.CollectionDocuments(coll.ID, 0, 0)
	if err != nil || total != 0 || len(docs) != 0 {
		t.Fatalf("expected empty collection after delete, got total=%d", total)
	}
}

func TestInMemoryRefreshTokenPurge(t *testing.T) {
	m := NewInMemory()
	now := time.Now().UTC()
	_ = m.SaveRefreshToken(core.RefreshToken{Token: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour)})
	_ = m.SaveRefreshToken(core.RefreshToken{Token: "dead", UserID: "u1", ExpiresAt: now.Add(-time.Hour)})

	n, err := m.PurgeExpiredRefreshTokens(context.Background(), now)
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
	if _, err := m.GetRefreshToken("live"); err != nil {
		t.Fatalf("live token should survive: %v", err)
	}
	if _, err := m.GetRefreshToken("dead"); err != ErrNotFound {
		t.Fatalf("dead token should be purged, got %v", err)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	page, total := Paginate(items, 0, 2)
	if total != 5 || len(page) != 2 || page[0] != 1 {
		t.Fatalf("first page wrong: %v total=%d", page, total)
	}
	page, _ = Paginate(items, 4, 2)
	if len(page) != 1 || page[0] != 5 {
		t.Fatalf("last page wrong: %v", page)
	}
	page, _ = Paginate(items, 10, 2)
	if len(page) != 0 {
		t.Fatalf("expected empty page past the end, got %v", page)
	}
	page, _ = Paginate(items, 1, 0)
	if len(page) != 4 {
		t.Fatalf("limit 0 should return the rest, got %v", page)
	}
}

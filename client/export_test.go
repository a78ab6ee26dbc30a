package client

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func exportServer(t *testing.T, docs []Document) (*httptest.Server, *[]string) {
	t.Helper()
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		offset, limit := 0, DefaultLimit
		fmt.Sscanf(r.URL.Query().Get("offset"), "%d", &offset)
		fmt.Sscanf(r.URL.Query().Get("limit"), "%d", &limit)
		end := offset + limit
		if end > len(docs) {
			end = len(docs)
		}
		page := []Document{}
		if offset < len(docs) {
			page = docs[offset:end]
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results":       page,
			"total_entries": len(docs),
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &offsets
}

func TestExportPagesThroughAllDocuments(t *testing.T) {
	docs := make([]Document, 5)
	for i := range docs {
		docs[i] = Document{ID: fmt.Sprintf("doc-%d", i), Title: fmt.Sprintf("Title %d", i)}
	}
	srv, offsets := exportServer(t, docs)
	c := New(srv.URL)

	var buf strings.Builder
	err := c.Documents.Export(context.Background(), &buf, ExportOptions{
		Columns:       []string{"id", "title"},
		IncludeHeader: true,
		PageSize:      2,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("got %d records, want header + 5 rows", len(records))
	}
	if records[0][0] != "id" || records[0][1] != "title" {
		t.Fatalf("header = %v", records[0])
	}
	if records[1][0] != "doc-0" || records[5][1] != "Title 4" {
		t.Fatalf("rows = %v", records[1:])
	}
	if want := []string{"", "2", "4"}; fmt.Sprint(*offsets) != fmt.Sprint(want) {
		t.Fatalf("requested offsets %v, want %v", *offsets, want)
	}
}

func TestExportQuotesEveryField(t *testing.T) {
	docs := []Document{
		{ID: "d1", Title: `He said "go", then left` + "\nnew line"},
	}
	srv, _ := exportServer(t, docs)
	c := New(srv.URL)

	var buf strings.Builder
	err := c.Documents.Export(context.Background(), &buf, ExportOptions{
		Columns: []string{"id", "title"},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, `"d1",`) {
		t.Fatalf("id field not quoted: %q", out)
	}
	if !strings.Contains(out, `""go""`) {
		t.Fatalf("embedded quotes not doubled: %q", out)
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if records[0][1] != docs[0].Title {
		t.Fatalf("title did not round trip: %q", records[0][1])
	}

	// Every field, even plain ones, is wrapped in quotes.
	for _, line := range strings.Split(strings.TrimRight(out, "\r\n"), "\r\n") {
		if !strings.HasPrefix(line, `"`) {
			t.Fatalf("line not fully quoted: %q", line)
		}
	}
}

func TestExportFilter(t *testing.T) {
	docs := []Document{
		{ID: "keep-1", IngestionStatus: "success"},
		{ID: "drop-1", IngestionStatus: "pending"},
		{ID: "keep-2", IngestionStatus: "success"},
	}
	srv, _ := exportServer(t, docs)
	c := New(srv.URL)

	var buf strings.Builder
	err := c.Documents.Export(context.Background(), &buf, ExportOptions{
		Columns: []string{"id"},
		Filter: func(d Document) bool {
			return d.IngestionStatus == "success"
		},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 2 || records[0][0] != "keep-1" || records[1][0] != "keep-2" {
		t.Fatalf("records = %v", records)
	}
}

func TestExportHeaderOnlyWhenEmpty(t *testing.T) {
	srv, _ := exportServer(t, nil)
	c := New(srv.URL)

	var buf strings.Builder
	err := c.Documents.Export(context.Background(), &buf, ExportOptions{IncludeHeader: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\r\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want header only", len(lines))
	}
	if !strings.Contains(lines[0], `"id"`) {
		t.Fatalf("header = %q", lines[0])
	}
}

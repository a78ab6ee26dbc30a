package client

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// DefaultLimit is the page size the server applies when a listing
// request carries no limit.
const DefaultLimit = 10

// Pagination describes the page a ListResult covers.
type Pagination struct {
	Offset int
	Limit  int
	Total  int
}

// HasNextPage reports whether entries remain past this page.
func (p Pagination) HasNextPage() bool {
	return p.Offset+p.Limit < p.Total
}

// NextOffset returns the offset of the following page.
func (p Pagination) NextOffset() int {
	return p.Offset + p.Limit
}

// ExportOptions controls CSV export.
type ExportOptions struct {
	// Columns selects and orders the output columns. Empty means the
	// default document columns.
	Columns []string
	// Filter, when set, keeps only rows it returns true for. Filtering
	// happens client-side after each page is fetched.
	Filter func(Document) bool
	// IncludeHeader emits the column names as the first record, even
	// when no rows match.
	IncludeHeader bool
	// PageSize is the server page size to walk with; zero means
	// DefaultLimit.
	PageSize int
}

var defaultExportColumns = []string{
	"id", "owner_id", "title", "content_type", "ingestion_status", "size_bytes", "created_at",
}

// exportCSV pages through fetch and writes one CSV record per row.
// Every field is quoted so embedded commas, quotes, and newlines
// survive round trips.
func exportCSV(ctx context.Context, w io.Writer, opts ExportOptions, fetch func(context.Context, ListOptions) (ListResult[Document], error), row func(Document) map[string]string) error {
	columns := opts.Columns
	if len(columns) == 0 {
		columns = defaultExportColumns
	}
	if opts.IncludeHeader {
		if err := writeCSVRecord(w, columns); err != nil {
			return err
		}
	}
	page := ListOptions{Limit: opts.PageSize}
	for {
		result, err := fetch(ctx, page)
		if err != nil {
			return err
		}
		for _, doc := range result.Results {
			if opts.Filter != nil && !opts.Filter(doc) {
				continue
			}
			fields := row(doc)
			record := make([]string, len(columns))
			for i, col := range columns {
				record[i] = fields[col]
			}
			if err := writeCSVRecord(w, record); err != nil {
				return err
			}
		}
		if !result.Pagination.HasNextPage() {
			return nil
		}
		page.Offset = result.Pagination.NextOffset()
		page.Limit = result.Pagination.Limit
	}
}

// writeCSVRecord quotes unconditionally; encoding/csv only quotes when
// forced, and the export format promises quoting on every field.
func writeCSVRecord(w io.Writer, fields []string) error {
	quoted := make([]string, len(fields))
	for i, field := range fields {
		quoted[i] = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	if _, err := fmt.Fprintf(w, "%s\r\n", strings.Join(quoted, ",")); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

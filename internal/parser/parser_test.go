// internal/parser/parser_test.go
//
// Unit-tests for registry dispatch and the concrete parsers.
//
// Run: go test ./internal/parser -v

package parser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/yanizio/portalsync/internal/source"
)

// fakeFetcher serves canned bytes and records which path was taken.
type fakeFetcher struct {
	raw      []byte
	exported []byte
	err      error

	fetched  bool
	exportAs string
}

func (f *fakeFetcher) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	f.fetched = true
	return f.raw, f.err
}

func (f *fakeFetcher) Export(ctx context.Context, fileID, mimeType string) ([]byte, error) {
	f.exportAs = mimeType
	return f.exported, f.err
}

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()

	cases := []struct {
		mime string
		want string
	}{
		{"application/vnd.google-apps.spreadsheet", "*parser.SpreadsheetParser"},
		{"text/csv", "*parser.SpreadsheetParser"},
		{"text/markdown", "*parser.MarkdownParser"},
		{"application/vnd.google-apps.document", "*parser.DocumentParser"},
		{"application/pdf", "*parser.MetadataParser"},
		{"video/mp4", "*parser.MetadataParser"},
		{"text/plain", "*parser.TextParser"},
		{"application/x-something-odd", "*parser.MetadataParser"}, // fallback
	}
	for _, c := range cases {
		p := r.Lookup(c.mime)
		if p == nil {
			t.Fatalf("Lookup(%q) = nil", c.mime)
		}
		if got := typeName(p); got != c.want {
			t.Errorf("Lookup(%q) = %s, want %s", c.mime, got, c.want)
		}
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *SpreadsheetParser:
		return "*parser.SpreadsheetParser"
	case *MarkdownParser:
		return "*parser.MarkdownParser"
	case *DocumentParser:
		return "*parser.DocumentParser"
	case *TextParser:
		return "*parser.TextParser"
	case *MetadataParser:
		return "*parser.MetadataParser"
	}
	return "unknown"
}

func TestSpreadsheetParser_ExportsHostedSheets(t *testing.T) {
	f := &fakeFetcher{exported: []byte("name,amount\nroads,1200\nparks,300\n")}
	meta := source.FileMetadata{
		ID:       "f-1",
		Name:     "Budget 2026",
		MIMEType: "application/vnd.google-apps.spreadsheet",
	}

	doc, err := (&SpreadsheetParser{}).Parse(context.Background(), meta, f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.exportAs != "text/csv" {
		t.Errorf("exported as %q, want text/csv", f.exportAs)
	}
	if doc.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", doc.RowCount)
	}
	if len(doc.Columns) != 2 || doc.Columns[0] != "name" {
		t.Errorf("Columns = %v", doc.Columns)
	}
	if doc.Rows[0]["amount"] != "1200" {
		t.Errorf("Rows[0][amount] = %q", doc.Rows[0]["amount"])
	}
}

func TestMarkdownParser_TitleFromFirstH1(t *testing.T) {
	f := &fakeFetcher{raw: []byte("intro line\n\n# Council Minutes\n\nbody *text*\n")}
	meta := source.FileMetadata{
		ID:           "f-2",
		Name:         "minutes.md",
		MIMEType:     "text/markdown",
		ModifiedTime: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	doc, err := (&MarkdownParser{}).Parse(context.Background(), meta, f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Title != "Council Minutes" {
		t.Errorf("Title = %q, want Council Minutes", doc.Title)
	}
	if !strings.Contains(doc.HTML, "<em>text</em>") {
		t.Errorf("HTML missing rendered emphasis: %q", doc.HTML)
	}
}

func TestMarkdownParser_TitleFallsBackToFileName(t *testing.T) {
	f := &fakeFetcher{raw: []byte("no headings here\n")}
	meta := source.FileMetadata{ID: "f-3", Name: "notice.md", MIMEType: "text/markdown"}

	doc, err := (&MarkdownParser{}).Parse(context.Background(), meta, f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Title != "notice" {
		t.Errorf("Title = %q, want notice", doc.Title)
	}
}

func TestDocumentParser_CapsContent(t *testing.T) {
	long := strings.Repeat("x", 2000)
	f := &fakeFetcher{exported: []byte(long)}
	meta := source.FileMetadata{
		ID:       "f-4",
		Name:     "Ordinance 42",
		MIMEType: "application/vnd.google-apps.document",
	}

	doc, err := (&DocumentParser{}).Parse(context.Background(), meta, f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Content) != contentCap {
		t.Errorf("len(Content) = %d, want %d", len(doc.Content), contentCap)
	}
	if len(doc.Preview) != previewCap {
		t.Errorf("len(Preview) = %d, want %d", len(doc.Preview), previewCap)
	}
}

func TestDocumentParser_TruncatesOnRuneBoundary(t *testing.T) {
	// 3-byte runes; the 500-byte cap falls mid-rune and must back up.
	long := strings.Repeat("€", 300)
	f := &fakeFetcher{exported: []byte(long)}
	meta := source.FileMetadata{
		ID:       "f-7",
		Name:     "Résolution 7",
		MIMEType: "application/vnd.google-apps.document",
	}

	doc, err := (&DocumentParser{}).Parse(context.Background(), meta, f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !utf8.ValidString(doc.Content) {
		t.Error("Content contains a split rune")
	}
	if !utf8.ValidString(doc.Preview) {
		t.Error("Preview contains a split rune")
	}
	if len(doc.Content) > contentCap {
		t.Errorf("len(Content) = %d, exceeds %d", len(doc.Content), contentCap)
	}
}

func TestParsers_PropagateFetchFailure(t *testing.T) {
	f := &fakeFetcher{err: errors.New("source offline")}
	meta := source.FileMetadata{ID: "f-5", Name: "a.md", MIMEType: "text/markdown"}

	if _, err := (&MarkdownParser{}).Parse(context.Background(), meta, f); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestMetadataParser_NeverFetches(t *testing.T) {
	f := &fakeFetcher{err: errors.New("must not be called")}
	meta := source.FileMetadata{
		ID:            "f-6",
		Name:          "flyer.pdf",
		MIMEType:      "application/pdf",
		ViewLink:      "https://example.com/view",
		DownloadLink:  "https://example.com/dl",
		ThumbnailLink: "https://example.com/thumb",
	}

	doc, err := (&MetadataParser{Kind: "pdf"}).Parse(context.Background(), meta, f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.fetched {
		t.Error("metadata parser fetched content")
	}
	if doc.Title != "flyer" || doc.DownloadLink == "" {
		t.Errorf("unexpected doc: %+v", doc)
	}
}

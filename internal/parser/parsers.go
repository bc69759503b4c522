// internal/parser/parsers.go
//
// Concrete parsers: spreadsheet, markdown, document, text, and the
// metadata-only fallback.
//
// Context
// -------
// Each parser mirrors one content family the service publishes.  Hosted
// spreadsheets and documents are exported through the source (Sheets →
// CSV, Docs → plain text) because they have no raw byte form; everything
// else downloads as-is.  Long document bodies are capped — fragments are
// previews with a view link, not full mirrors.
//
// Notes
// -----
// • Markdown is rendered with goldmark in its default (safe) mode, which
//   drops raw inline HTML; the output can be embedded without a second
//   escaping pass.
// • All parsers return (nil, err) on failure; the orchestrator converts
//   either signal into a per-file error record.
package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"

	"github.com/yanizio/portalsync/internal/source"
)

const (
	contentCap = 500
	previewCap = 200
)

//
// Spreadsheet
//

// SpreadsheetParser parses hosted sheets and CSV files into rows.
type SpreadsheetParser struct{}

func (p *SpreadsheetParser) Parse(ctx context.Context, meta source.FileMetadata, fetch Fetcher) (*Document, error) {
	var raw []byte
	var err error
	if meta.MIMEType == "application/vnd.google-apps.spreadsheet" {
		raw, err = fetch.Export(ctx, meta.ID, "text/csv")
	} else {
		raw, err = fetch.Fetch(ctx, meta.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("spreadsheet %s: %w", meta.Name, err)
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("spreadsheet %s: parse csv: %w", meta.Name, err)
	}

	var columns []string
	var rows []map[string]string
	if len(records) > 0 {
		columns = records[0]
		for _, rec := range records[1:] {
			row := make(map[string]string, len(columns))
			for i, col := range columns {
				if i < len(rec) {
					row[col] = rec[i]
				}
			}
			rows = append(rows, row)
		}
	}

	return &Document{
		Type:         "spreadsheet",
		Name:         meta.Name,
		Title:        trimExtension(meta.Name),
		Rows:         rows,
		RowCount:     len(rows),
		Columns:      columns,
		MIMEType:     meta.MIMEType,
		Size:         meta.Size,
		LastModified: meta.ModifiedTime,
		ViewLink:     meta.ViewLink,
	}, nil
}

//
// Markdown
//

// MarkdownParser renders markdown bodies and lifts the first H1 as the
// title.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(ctx context.Context, meta source.FileMetadata, fetch Fetcher) (*Document, error) {
	raw, err := fetch.Fetch(ctx, meta.ID)
	if err != nil {
		return nil, fmt.Errorf("markdown %s: %w", meta.Name, err)
	}
	content := string(raw)

	title := strings.TrimSuffix(meta.Name, ".md")
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "# ") {
			title = strings.TrimSpace(line[2:])
			break
		}
	}

	var buf bytes.Buffer
	if err := goldmark.Convert(raw, &buf); err != nil {
		return nil, fmt.Errorf("markdown %s: render: %w", meta.Name, err)
	}

	return &Document{
		Type:         "markdown",
		Name:         meta.Name,
		Title:        title,
		Content:      content,
		HTML:         buf.String(),
		MIMEType:     meta.MIMEType,
		Size:         meta.Size,
		LastModified: meta.ModifiedTime,
		ViewLink:     meta.ViewLink,
	}, nil
}

//
// Document
//

// DocumentParser handles hosted documents (exported as plain text) and
// word-processor files (metadata only; their binary form is not worth
// mirroring into a preview).
type DocumentParser struct{}

func (p *DocumentParser) Parse(ctx context.Context, meta source.FileMetadata, fetch Fetcher) (*Document, error) {
	content := "[Document - view at source]"
	if meta.MIMEType == "application/vnd.google-apps.document" {
		raw, err := fetch.Export(ctx, meta.ID, "text/plain")
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", meta.Name, err)
		}
		content = string(raw)
	}

	return &Document{
		Type:         "document",
		Name:         meta.Name,
		Title:        trimExtension(meta.Name),
		Content:      truncate(content, contentCap),
		Preview:      truncate(content, previewCap),
		MIMEType:     meta.MIMEType,
		Size:         meta.Size,
		LastModified: meta.ModifiedTime,
		ViewLink:     meta.ViewLink,
	}, nil
}

//
// Plain text
//

// TextParser downloads small text files whole.
type TextParser struct{}

func (p *TextParser) Parse(ctx context.Context, meta source.FileMetadata, fetch Fetcher) (*Document, error) {
	raw, err := fetch.Fetch(ctx, meta.ID)
	if err != nil {
		return nil, fmt.Errorf("text %s: %w", meta.Name, err)
	}
	content := string(raw)

	return &Document{
		Type:         "text",
		Name:         meta.Name,
		Title:        meta.Name,
		Content:      content,
		Preview:      truncate(content, previewCap),
		MIMEType:     meta.MIMEType,
		Size:         meta.Size,
		LastModified: meta.ModifiedTime,
		ViewLink:     meta.ViewLink,
	}, nil
}

//
// Metadata-only fallback
//

// MetadataParser records links and size without fetching content.  It
// serves PDFs, videos, and any MIME type nobody registered.
type MetadataParser struct {
	// Kind tags the resulting document ("pdf", "video", "document").
	Kind string
}

func (p *MetadataParser) Parse(ctx context.Context, meta source.FileMetadata, fetch Fetcher) (*Document, error) {
	return &Document{
		Type:          p.Kind,
		Name:          meta.Name,
		Title:         trimExtension(meta.Name),
		MIMEType:      meta.MIMEType,
		Size:          meta.Size,
		LastModified:  meta.ModifiedTime,
		ViewLink:      meta.ViewLink,
		DownloadLink:  meta.DownloadLink,
		ThumbnailLink: meta.ThumbnailLink,
	}, nil
}

//
// helpers
//

func trimExtension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// truncate cuts s to at most n bytes, backing up to the nearest rune
// boundary so the result is always valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

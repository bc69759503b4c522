// internal/parser/parser.go
//
// Content-parser capability and MIME-type registry.
//
// Context
// -------
// The orchestrator dispatches each listed file to a parser selected by
// its MIME type.  Dispatch is an explicit registry — exact tokens first,
// then prefix rules (`video/`, `text/`), then one designated fallback —
// rather than ad hoc branching, so new types are a Register call away.
//
// A parser converts file metadata plus fetched bytes into a Document,
// the structured payload persisted in sync_data and later rendered into
// a fragment.  A nil Document and a returned error are treated
// identically by the orchestrator: both are a parse failure for that
// one file.
//
// Notes
// -----
// • Parsers must not mutate the source; they read through the Fetcher.
// • Lookup never returns nil — unregistered types get the fallback.
package parser

import (
	"context"
	"strings"
	"time"

	"github.com/yanizio/portalsync/internal/source"
)

// Fetcher is the slice of source.Source a parser needs: raw download
// plus export for source-native types.
type Fetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
	Export(ctx context.Context, fileID, mimeType string) ([]byte, error)
}

// Document is the structured result of parsing one file.  Only the
// fields relevant to the file's type are populated; the whole struct is
// stored as JSON in sync_data.data.
type Document struct {
	Type          string              `json:"type"`
	Name          string              `json:"name"`
	Title         string              `json:"title"`
	Content       string              `json:"content,omitempty"`
	Preview       string              `json:"preview,omitempty"`
	HTML          string              `json:"html,omitempty"`
	Rows          []map[string]string `json:"rows,omitempty"`
	RowCount      int                 `json:"row_count,omitempty"`
	Columns       []string            `json:"columns,omitempty"`
	MIMEType      string              `json:"mime_type"`
	Size          int64               `json:"size,omitempty"`
	LastModified  time.Time           `json:"last_modified"`
	ViewLink      string              `json:"view_link,omitempty"`
	DownloadLink  string              `json:"download_link,omitempty"`
	ThumbnailLink string              `json:"thumbnail_link,omitempty"`
}

// Parser converts one file into a Document.
type Parser interface {
	Parse(ctx context.Context, meta source.FileMetadata, fetch Fetcher) (*Document, error)
}

// Registry maps MIME-type tokens to parsers with one fallback for
// everything unregistered.
type Registry struct {
	exact    map[string]Parser
	prefixes []prefixRule
	fallback Parser
}

type prefixRule struct {
	prefix string
	parser Parser
}

// NewRegistry returns a registry pre-loaded with the standard parser
// set: spreadsheets, markdown, documents, PDFs, plain text, and video,
// with metadata-only parsing as the fallback.
func NewRegistry() *Registry {
	r := &Registry{
		exact:    make(map[string]Parser),
		fallback: &MetadataParser{Kind: "document"},
	}

	sheet := &SpreadsheetParser{}
	r.Register("application/vnd.google-apps.spreadsheet", sheet)
	r.Register("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", sheet)
	r.Register("text/csv", sheet)

	r.Register("text/markdown", &MarkdownParser{})

	doc := &DocumentParser{}
	r.Register("application/vnd.google-apps.document", doc)
	r.Register("application/vnd.openxmlformats-officedocument.wordprocessingml.document", doc)

	r.Register("application/pdf", &MetadataParser{Kind: "pdf"})

	r.RegisterPrefix("video/", &MetadataParser{Kind: "video"})
	r.RegisterPrefix("text/", &TextParser{})

	return r
}

// Register binds an exact MIME token to a parser.
func (r *Registry) Register(mimeType string, p Parser) { r.exact[mimeType] = p }

// RegisterPrefix binds a MIME prefix (checked after exact tokens, in
// registration order) to a parser.
func (r *Registry) RegisterPrefix(prefix string, p Parser) {
	r.prefixes = append(r.prefixes, prefixRule{prefix: prefix, parser: p})
}

// Lookup selects the parser for a MIME type.  Never nil.
func (r *Registry) Lookup(mimeType string) Parser {
	if p, ok := r.exact[mimeType]; ok {
		return p
	}
	for _, rule := range r.prefixes {
		if strings.HasPrefix(mimeType, rule.prefix) {
			return rule.parser
		}
	}
	return r.fallback
}

// internal/fragment/renderer.go
//
// Static fragment renderer.
//
// Context
// -------
// Converts a parsed Document into a self-contained HTML card, and a set
// of cards into the folder-level aggregate fragment that gets published
// as `<output>/<folder>.html`.  Rendering goes through html/template so
// every untrusted string — file names, titles, spreadsheet cells — is
// contextually escaped before it reaches published output.
//
// Workflow
//   •  Render builds a cardView from the Document and executes the card
//      template; the caller receives template.HTML so the surrounding
//      template does not double-escape the markup.
//   •  RenderAggregate wraps already-rendered cards in a grid container,
//      or emits the empty-state paragraph when a folder has no active
//      records.
//   •  WriteComponent persists the aggregate to the tenant's output
//      path; it is the only function here that touches the filesystem.
//
// Style
//   Output HTML is deliberately plain – no framework classes – so site
//   themes can style via element selectors or the class hooks below.

package fragment

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/yanizio/portalsync/internal/parser"
)

const cardTemplate = `<div class="card {{.TypeClass}}" data-file-type="{{.Type}}">
    <div class="card-icon">{{.Icon}}</div>
    {{- if .Thumbnail}}
    <img src="{{.Thumbnail}}" alt="{{.Title}}" class="card-thumbnail">
    {{- end}}
    <h3><a href="{{.ViewLink}}" target="_blank" rel="noopener">{{.Title}}</a></h3>
    {{- if .Preview}}
    <div class="card-preview">{{.Preview}}</div>
    {{- end}}
    <div class="card-meta">
        {{- if .RowCount}}
        <span class="row-count">{{.RowCount}} rows</span>
        {{- end}}
        <span class="date">{{.Date}}</span>
        {{- if .Size}}
        <span class="size">{{.Size}}</span>
        {{- end}}
    </div>
    <div class="card-actions">
        <a href="{{.ViewLink}}" target="_blank" rel="noopener" class="btn btn-secondary">{{.Action}}</a>
        {{- if .DownloadLink}}
        <a href="{{.DownloadLink}}" target="_blank" rel="noopener" class="btn btn-secondary">Download</a>
        {{- end}}
    </div>
</div>`

// cardView is the escaped-on-execute view model for one card.
type cardView struct {
	Type         string
	TypeClass    string
	Icon         string
	Title        string
	Preview      string
	RowCount     int
	Date         string
	Size         string
	ViewLink     string
	DownloadLink string
	Thumbnail    string
	Action       string
}

// Renderer turns documents into fragments.  Pure except WriteComponent;
// safe for concurrent use.
type Renderer struct {
	card *template.Template
}

// New parses the card template once.  Panics on a malformed template,
// which is a programming error, not runtime input.
func New() *Renderer {
	return &Renderer{
		card: template.Must(template.New("card").Parse(cardTemplate)),
	}
}

// Render produces the card fragment for one document.
func (r *Renderer) Render(doc parser.Document) (template.HTML, error) {
	view := cardView{
		Type:         doc.Type,
		TypeClass:    typeClass(doc.Type),
		Icon:         typeIcon(doc.Type),
		Title:        doc.Title,
		Preview:      doc.Preview,
		RowCount:     doc.RowCount,
		Date:         formatDate(doc.LastModified),
		Size:         formatSize(doc.Size),
		ViewLink:     doc.ViewLink,
		DownloadLink: doc.DownloadLink,
		Thumbnail:    doc.ThumbnailLink,
		Action:       typeAction(doc.Type),
	}
	if view.Title == "" {
		view.Title = "Untitled"
	}
	if view.ViewLink == "" {
		view.ViewLink = "#"
	}
	if view.DownloadLink == view.ViewLink {
		view.DownloadLink = ""
	}

	var buf bytes.Buffer
	if err := r.card.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render card %q: %w", doc.Name, err)
	}
	return template.HTML(buf.String()), nil
}

// RenderAggregate wraps rendered cards in the folder grid.  An empty
// set renders the published empty state, never an empty file.
func (r *Renderer) RenderAggregate(cards []template.HTML) template.HTML {
	if len(cards) == 0 {
		return template.HTML(`<p><em>No files available at this time.</em></p>`)
	}
	var buf bytes.Buffer
	buf.WriteString("<div class=\"grid\">\n")
	for _, c := range cards {
		buf.WriteString(string(c))
		buf.WriteByte('\n')
	}
	buf.WriteString("</div>")
	return template.HTML(buf.String())
}

// WriteComponent publishes the aggregate fragment as
// `<outputDir>/<folderName>.html`, creating the directory as needed.
func (r *Renderer) WriteComponent(outputDir, folderName string, frag template.HTML) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %q: %w", outputDir, err)
	}
	path := filepath.Join(outputDir, folderName+".html")
	if err := os.WriteFile(path, []byte(frag), 0o644); err != nil {
		return fmt.Errorf("write component %q: %w", path, err)
	}
	return nil
}

//
// view helpers
//

func typeClass(t string) string {
	switch t {
	case "spreadsheet":
		return "data-card"
	case "markdown":
		return "article-card"
	case "video":
		return "video-card"
	default:
		return "document-card"
	}
}

func typeIcon(t string) string {
	switch t {
	case "spreadsheet":
		return "📊"
	case "markdown":
		return "📝"
	case "video":
		return "🎥"
	default:
		return "📄"
	}
}

func typeAction(t string) string {
	switch t {
	case "spreadsheet":
		return "View Data"
	case "markdown":
		return "Read More"
	case "video":
		return "Watch"
	default:
		return "View"
	}
}

func formatDate(ts time.Time) string {
	if ts.IsZero() {
		return "Unknown"
	}
	return ts.Format("January 2, 2006")
}

func formatSize(n int64) string {
	if n <= 0 {
		return ""
	}
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}

// internal/fragment/renderer_test.go
//
// Unit-tests for the fragment renderer: escaping of hostile input,
// aggregate cardinality, the empty state, and component publication.
//
// Run: go test ./internal/fragment -v

package fragment

import (
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yanizio/portalsync/internal/parser"
)

func TestRender_EscapesHostileTitle(t *testing.T) {
	r := New()
	doc := parser.Document{
		Type:         "document",
		Name:         "evil.pdf",
		Title:        `<script>alert("x")</script>`,
		ViewLink:     "https://example.com/view",
		LastModified: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	frag, err := r.Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := string(frag)
	if strings.Contains(out, "<script>") {
		t.Fatalf("unescaped script tag in output:\n%s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Errorf("expected escaped title, got:\n%s", out)
	}
}

func TestRender_JavascriptHrefNeutralized(t *testing.T) {
	r := New()
	doc := parser.Document{
		Type:     "document",
		Title:    "click me",
		ViewLink: "javascript:alert(1)",
	}

	frag, err := r.Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(string(frag), `href="javascript:`) {
		t.Fatalf("javascript: URL survived escaping:\n%s", frag)
	}
}

func TestRender_SpreadsheetMeta(t *testing.T) {
	r := New()
	doc := parser.Document{
		Type:         "spreadsheet",
		Title:        "Budget 2026",
		RowCount:     42,
		ViewLink:     "https://example.com/sheet",
		LastModified: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}

	frag, err := r.Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := string(frag)
	if !strings.Contains(out, "42 rows") {
		t.Errorf("missing row count:\n%s", out)
	}
	if !strings.Contains(out, "January 15, 2026") {
		t.Errorf("missing formatted date:\n%s", out)
	}
	if !strings.Contains(out, "View Data") {
		t.Errorf("missing spreadsheet action:\n%s", out)
	}
}

func TestRenderAggregate_Cardinality(t *testing.T) {
	r := New()
	cards := []template.HTML{"<div>a</div>", "<div>b</div>", "<div>c</div>"}

	out := string(r.RenderAggregate(cards))
	if got := strings.Count(out, "<div>"); got != 3 {
		t.Errorf("aggregate embeds %d cards, want 3", got)
	}
	if !strings.HasPrefix(out, `<div class="grid">`) {
		t.Errorf("missing grid wrapper:\n%s", out)
	}
}

func TestRenderAggregate_EmptyState(t *testing.T) {
	r := New()
	out := string(r.RenderAggregate(nil))
	if !strings.Contains(out, "No files available") {
		t.Errorf("missing empty state:\n%s", out)
	}
}

func TestWriteComponent(t *testing.T) {
	r := New()
	dir := t.TempDir()

	if err := r.WriteComponent(filepath.Join(dir, "components"), "budgets", "<div>x</div>"); err != nil {
		t.Fatalf("WriteComponent: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "components", "budgets.html"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(raw) != "<div>x</div>" {
		t.Errorf("content = %q", raw)
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, ""},
		{512, "512.0 B"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}
	for _, c := range cases {
		if got := formatSize(c.in); got != c.want {
			t.Errorf("formatSize(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

package views

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"regexp"
	"strings"

	reqcontext "github.com/medinfo-ai/medinfo/context"
)

// Layout and partial globs parsed ahead of every page.
var sharedPatterns = []string{"layouts/*.gohtml", "partials/*.gohtml"}

// Template is a page bound to the shared layout.
type Template struct {
	tmpl *template.Template
}

// Flash holds the one-line messages shown above the page content.
type Flash struct {
	Error   string
	Warning string
	Success string
	Info    string
}

// TemplateData is what every page receives.
type TemplateData struct {
	Title     string
	CSRFField template.HTML
	Flash     Flash

	// Page-specific payload
	Data interface{}

	CurrentPath   string
	RequestID     string
	IsDevelopment bool
}

// FuncMap returns the helpers available to every template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"markdown":  markdownToHTML,
		"textClass": textClass,
	}
}

// ParseFS parses the shared layout and partials plus the given pages from
// fsys. Pages define "content" and are rendered through "base".
func ParseFS(fsys fs.FS, pages ...string) (*Template, error) {
	patterns := append(append([]string{}, sharedPatterns...), pages...)

	tmpl, err := template.New("").Funcs(FuncMap()).ParseFS(fsys, patterns...)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if tmpl.Lookup("base") == nil {
		return nil, errors.New(`parse templates: no "base" layout defined`)
	}
	return &Template{tmpl: tmpl}, nil
}

// MustParseFS panics when the templates do not parse.
func MustParseFS(fsys fs.FS, pages ...string) *Template {
	tmpl, err := ParseFS(fsys, pages...)
	if err != nil {
		panic(err)
	}
	return tmpl
}

func (t *Template) Execute(w io.Writer, data *TemplateData) error {
	return t.tmpl.ExecuteTemplate(w, "base", data)
}

// ExecuteHTTP renders the page with status. Output is buffered so a template
// error still produces a clean 500.
func (t *Template) ExecuteHTTP(w http.ResponseWriter, r *http.Request, status int, data *TemplateData) {
	if data == nil {
		data = &TemplateData{}
	}
	data.CurrentPath = r.URL.Path
	data.RequestID = reqcontext.RequestID(r.Context())

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		reqcontext.Logger(r.Context()).WithError(err).Error("template execution failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// markdownToHTML renders the small subset of markdown the advice text uses:
// bold spans, "-" or "*" bullets and line breaks. Everything else is escaped.
func markdownToHTML(s string) template.HTML {
	escaped := html.EscapeString(strings.TrimSpace(s))
	escaped = boldPattern.ReplaceAllString(escaped, "<strong>$1</strong>")

	lines := strings.Split(escaped, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			lines[i] = "• " + trimmed[2:]
		}
	}
	return template.HTML(strings.Join(lines, "<br>"))
}

// textClass maps a treatment color to its text utility class.
func textClass(color string) string {
	switch color {
	case "green":
		return "text-emerald-600"
	case "orange":
		return "text-amber-600"
	default:
		return "text-red-600"
	}
}

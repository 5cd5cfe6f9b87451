// Package viewerpage renders the standalone HTML viewer written by the
// createViewer tool.
package viewerpage

import (
	"bytes"
	_ "embed"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DefaultTitle is used when no title is given.
const DefaultTitle = "3D Model Viewer"

//go:embed viewer.html.tmpl
var pageSource string

var pageTemplate = template.Must(template.New("viewer").Parse(pageSource))

// Page holds the values substituted into the viewer template.
type Page struct {
	Title     string
	ModelName string
	GLBPath   string
}

// NewPage builds a page for glbPath. An empty title falls back to DefaultTitle.
func NewPage(glbPath, title string) Page {
	if title == "" {
		title = DefaultTitle
	}
	return Page{
		Title:     title,
		ModelName: filepath.Base(glbPath),
		GLBPath:   glbPath,
	}
}

// Render writes the HTML document to w.
func (p Page) Render(w io.Writer) error {
	if err := pageTemplate.Execute(w, p); err != nil {
		return errors.Wrap(err, "failed to render viewer page")
	}
	return nil
}

// WriteFile renders the page and writes it to path, replacing any existing file.
func (p Page) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := p.Render(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

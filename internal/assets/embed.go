// Package assets holds the worker's built-in fallback content: the offline
// page (authored in Markdown, rendered once to HTML) and the image
// placeholder returned when an image can't be fetched or found in cache.
package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
)

//go:embed offline.md
var offlineMarkdown []byte

//go:embed offline.html.tmpl
var offlineTemplate string

//go:embed placeholder.svg
var placeholderSVG []byte

// Content types for the built-in fallbacks.
const (
	HTMLContentType = "text/html; charset=utf-8"
	SVGContentType  = "image/svg+xml"
)

var (
	offlineOnce sync.Once
	offlineHTML []byte
	offlineErr  error
)

var pageTemplate = template.Must(template.New("offline").Parse(offlineTemplate))

// OfflinePage returns the rendered built-in offline page.
// The Markdown is converted once and reused.
func OfflinePage() ([]byte, error) {
	offlineOnce.Do(func() {
		offlineHTML, offlineErr = RenderPage("MindMatters is offline", offlineMarkdown)
	})
	return offlineHTML, offlineErr
}

// RenderPage converts Markdown into a standalone HTML page.
func RenderPage(title string, md []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert(md, &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	var out bytes.Buffer
	data := struct {
		Title   string
		Content template.HTML
	}{
		Title:   title,
		Content: template.HTML(body.String()),
	}
	if err := pageTemplate.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return out.Bytes(), nil
}

// Placeholder returns the SVG served for images that are unavailable offline.
func Placeholder() []byte {
	return placeholderSVG
}

// ContentTypeFor returns the MIME type for a request path.
// Falls back to "application/octet-stream" if the extension is unknown.
func ContentTypeFor(p string) string {
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case "", ".html", ".htm":
		return HTMLContentType
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".svg":
		return SVGContentType
	case ".webmanifest":
		return "application/manifest+json"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

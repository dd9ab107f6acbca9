// Package html renders the static landing page.
package html

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog"
)

//go:embed templates/index.html
var templates embed.FS

// Page holds the landing page, rendered once at startup.
type Page struct {
	body   []byte
	logger zerolog.Logger
}

type pageData struct {
	Title      string
	UploadURL  string
	GalleryURL string
}

func NewPage(logger zerolog.Logger) (*Page, error) {
	tmpl, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, pageData{
		Title:      "Spotted Lanternfly Sightings",
		UploadURL:  "/api/v1/upload",
		GalleryURL: "/api/v1/gallery",
	})
	if err != nil {
		return nil, err
	}

	return &Page{body: buf.Bytes(), logger: logger}, nil
}

func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(p.body); err != nil {
		p.logger.Debug().Err(err).Msg("failed to write landing page")
	}
}

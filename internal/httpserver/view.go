package httpserver

import (
	"bytes"
	"embed"
	"html/template"
	"log"
	"net/http"
)

//go:embed web/*.html
var embeddedWeb embed.FS

// html/template escapes file names in both text and attribute context.
var pages = template.Must(template.ParseFS(embeddedWeb, "web/*.html"))

type fileRow struct {
	Name  string
	Href  string
	Size  string
	Thumb template.URL // data: URI, empty if none
}

type indexData struct {
	Folder string
	Files  []fileRow
}

type uploadedData struct {
	Count  int
	Failed int
}

func renderHTML(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("render %s: %v", name, err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

package report

import (
	"embed"
	"encoding/json"
	"html/template"

	"resume-zip-analyzer/internal/resume"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names understood by Templates.
const (
	IndexPage   = "index.html"
	ResultsPage = "results.html"
)

// Templates parses the upload and results pages.
func Templates() *template.Template {
	return template.Must(template.New("pages").Funcs(template.FuncMap{
		"recordJSON": recordJSON,
	}).ParseFS(templateFS, "templates/*.html"))
}

// IndexData feeds the upload page.
type IndexData struct {
	Title string
	Error string
}

// ResultsData feeds the results page.
type ResultsData struct {
	Title  string
	Report *resume.Report
}

func recordJSON(rec *resume.Record) string {
	if rec == nil {
		return "{}"
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

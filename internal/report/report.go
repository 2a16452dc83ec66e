// Package report renders the peripheral solguard-report.html artifact
// from a finished run's scan results and scored narratives. No core
// logic lives here — only presentation over already-computed data.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/solguard/solguard/internal/domain"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

// Data is the top-level template input.
type Data struct {
	Narratives    []domain.Narrative
	Scans         []domain.ScanResult
	GeneratedAt   time.Time
	ShowRelevance bool
}

var funcs = template.FuncMap{
	"totalFindings": func(n domain.Narrative) int {
		total := 0
		for _, fs := range n.RepoFindings {
			total += len(fs)
		}
		return total
	},
}

// Render writes solguard-report.html-shaped HTML to w from data.
func Render(w io.Writer, data Data) error {
	tmpl, err := template.New("report.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/report.html.tmpl")
	if err != nil {
		return fmt.Errorf("report: parse template: %w", err)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("report: execute template: %w", err)
	}
	return nil
}

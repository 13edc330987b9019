// Package report renders a stored contract analysis as a plain-text report.
package report

import (
	"io"
	"text/template"
	"time"

	"github.com/ericksa/lexiguard/internal/analysis"
	"github.com/ericksa/lexiguard/internal/store"
)

// clauseWidth is how many runes of each clause the report shows.
const clauseWidth = 100

const tmpl = `Contract Risk Analysis Report
=============================

File: {{.Record.Filename}}
Date: {{.Generated.Format "2006-01-02 15:04:05"}}
Overall Risk Score: {{.Record.RiskScore}}
Summary: {{.Record.Summary}}

Identified Risks
----------------
{{- if not .Record.Risks}}
No significant risks detected.
{{- else}}
{{- range .Record.Risks}}
- {{.Type}} ({{.Level}})
  Clause: {{truncate .Clause}}...
  Explanation: {{.Explanation}}
{{- end}}
{{- end}}
`

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"truncate": func(s string) string { return analysis.Snippet(s, clauseWidth) },
}).Parse(tmpl))

type view struct {
	Record    *store.Record
	Generated time.Time
}

// Render writes the report for rec, dated now.
func Render(w io.Writer, rec *store.Record) error {
	return RenderAt(w, rec, time.Now())
}

// RenderAt writes the report for rec with an explicit generation time.
func RenderAt(w io.Writer, rec *store.Record, generated time.Time) error {
	return reportTemplate.Execute(w, view{Record: rec, Generated: generated})
}

// Package report persists the final comparison output: the canonical
// JSON document plus an optional self-contained HTML rendering.
package report

import (
	"bytes"
	"fmt"
	"html/template"

	"fwbench/internal/bench"
	"fwbench/internal/logging"
	"fwbench/internal/store"
)

// Generator writes comparison reports through the results store.
type Generator struct {
	store *store.Store
}

// NewGenerator returns a generator backed by st.
func NewGenerator(st *store.Store) *Generator {
	return &Generator{store: st}
}

// Generate saves the report JSON and, when withHTML is set, an HTML
// rendering alongside it. The JSON document is the source of truth;
// an HTML rendering failure does not fail the run.
func (g *Generator) Generate(report bench.ComparisonReport, withHTML bool) error {
	if err := g.store.SaveReport(report); err != nil {
		return err
	}
	logging.Report("run %s: report saved (%d subjects, %d top performers)",
		report.RunID, len(report.Table), len(report.TopPerformers))

	if !withHTML {
		return nil
	}
	html, err := RenderHTML(report)
	if err != nil {
		logging.Report("run %s: html rendering failed: %v", report.RunID, err)
		return nil
	}
	if err := g.store.SaveReportHTML(report.RunID, html); err != nil {
		logging.Report("run %s: html save failed: %v", report.RunID, err)
	}
	return nil
}

// RenderHTML renders the report as one standalone HTML page.
func RenderHTML(report bench.ComparisonReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, report); err != nil {
		return nil, fmt.Errorf("render report %s: %w", report.RunID, err)
	}
	return buf.Bytes(), nil
}

var pageTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"score": func(s bench.Score) string {
		if !s.Valid {
			return "—"
		}
		return fmt.Sprintf("%.1f", s.Value)
	},
	"status": func(st bench.OutcomeStatus) string { return string(st) },
}).Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Benchmark Report {{.RunID}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 960px; color: #222; }
h1 { font-size: 1.4rem; }
table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
th { background: #f4f4f4; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
.status-ok { color: #1a7f37; }
.status-partial { color: #9a6700; }
.status-failed { color: #cf222e; }
.status-missing { color: #888; }
.errors { color: #cf222e; font-size: 0.85rem; }
ul { margin: 0.3rem 0; }
footer { color: #888; font-size: 0.8rem; margin-top: 2rem; }
</style>
</head>
<body>
<h1>Framework Benchmark — Run {{.RunID}}</h1>

<h2>Comparison</h2>
<table>
<tr><th>Subject</th><th>Overall</th><th>Loading</th><th>Runtime</th><th>Bundle</th><th>Memory</th><th>Tests</th></tr>
{{range .Table}}
<tr>
<td>{{if .Display}}{{.Display}}{{else}}{{.Subject}}{{end}}</td>
<td class="num">{{score .Scores.Overall}}</td>
<td class="num">{{score .Scores.Loading}}</td>
<td class="num">{{score .Scores.Runtime}}</td>
<td class="num">{{score .Scores.Bundle}}</td>
<td class="num">{{score .Scores.Memory}}</td>
<td>{{range $tt, $st := .TestState}}<span class="status-{{status $st}}">{{$tt}}: {{status $st}}</span> {{end}}</td>
</tr>
{{if .Errors}}<tr><td colspan="7" class="errors">{{range .Errors}}{{.}}<br>{{end}}</td></tr>{{end}}
{{end}}
</table>

{{if .TopPerformers}}
<h2>Top Performers</h2>
<ul>
{{range .TopPerformers}}
<li><strong>{{.Subject}}</strong> — {{printf "%.1f" .Overall}}{{if .LeadingIn}} (leads: {{range $i, $d := .LeadingIn}}{{if $i}}, {{end}}{{$d}}{{end}}){{end}}</li>
{{end}}
</ul>
{{end}}

{{if .Insights.Notable}}
<h2>Notable</h2>
<ul>
{{range .Insights.Notable}}<li>{{.}}</li>{{end}}
</ul>
{{end}}

{{if .Insights.Recommendations}}
<h2>Recommendations</h2>
<ul>
{{range .Insights.Recommendations}}<li><strong>{{.Subject}}</strong>: {{.Detail}}</li>{{end}}
</ul>
{{end}}

<footer>Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</footer>
</body>
</html>
`

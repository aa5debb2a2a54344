package report

import (
	"html/template"
	"io"
)

// HTML renders the report as a standalone page for the serve mode. The job
// set is the same one every other renderer uses.
func (r *Report) HTML(w io.Writer) error {
	return page.Execute(w, r)
}

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Failed jobs - {{.JobName}}</title>
<style>
body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; max-width: 1000px; margin: 0 auto; padding: 20px; background: #f8f9fa; }
.header { background: #343a40; color: #fff; padding: 16px; border-radius: 6px; }
.stats { display: flex; gap: 16px; margin: 16px 0; }
.stat { background: #fff; padding: 8px 14px; border-radius: 6px; border-left: 4px solid #0969da; }
.job { background: #fff; border-radius: 6px; padding: 14px; margin-bottom: 14px; box-shadow: 0 1px 3px rgba(0,0,0,.1); }
.job h3 { margin: 0 0 8px; font-size: 15px; }
.meta { color: #656d76; font-size: 13px; margin-bottom: 6px; }
.unresolved { color: #bf8700; }
.download_failed, .download_timed_out { color: #d1242f; }
.downloaded { color: #1a7f37; }
.timestamp { text-align: right; color: #656d76; font-size: 12px; margin-top: 16px; }
</style>
</head>
<body>
<div class="header"><h1>Failed jobs: {{.JobName}}</h1></div>
<div class="stats">
  <div class="stat"><strong>{{.Summary.TotalJobs}}</strong> total</div>
  <div class="stat"><strong>{{.Summary.FailedJobs}}</strong> failed</div>
  <div class="stat"><strong>{{.Summary.ResolvedJobs}}</strong> resolved</div>
  {{with .Summary.Downloads}}<div class="stat"><strong>{{.Succeeded}}/{{.Attempted}}</strong> downloaded</div>{{end}}
</div>
{{if not .Jobs}}<div class="job"><h3>No failed jobs found</h3></div>{{end}}
{{range .Jobs}}
<div class="job">
  <h3>Build {{.ID}} <span class="{{.Disposition}}">[{{.Disposition}}]</span></h3>
  {{if .Started.Valid}}<div class="meta">Started: {{.Started.Time.UTC.Format "2006-01-02T15:04:05Z07:00"}}</div>{{end}}
  {{if .ArtifactURL.Valid}}<div class="meta"><a href="{{.ArtifactURL.String}}">Artifacts</a></div>{{end}}
  {{if .StorageURI.Valid}}<div class="meta">Storage: {{.StorageURI.String}}</div>{{end}}
  {{if .PRNumber.Valid}}<div class="meta">PR #{{.PRNumber.Int64}}</div>{{end}}
  {{if .ResolveError.Valid}}<div class="meta unresolved">{{.ResolveError.String}}</div>{{end}}
  {{with .Download}}{{if .Stderr.Valid}}<div class="meta download_failed">{{.Stderr.String}}</div>{{end}}{{end}}
</div>
{{end}}
<div class="timestamp">Generated {{.GeneratedAt.UTC.Format "2006-01-02 15:04:05"}} UTC (run {{.RunID}})</div>
</body>
</html>`))

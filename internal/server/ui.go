package server

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/caevv/lgstats/internal/report"
	"github.com/caevv/lgstats/internal/snapshot"
)

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(templateFuncs).Parse(dashboardTemplate))

// handleDashboard serves the main dashboard HTML page
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := DashboardData{
		Title:   "lgstats",
		Version: version,
		Uptime:  s.Uptime(),
	}

	if s.engine != nil {
		data.Snapshot = s.engine.Latest()
	}

	if s.scheduler != nil {
		tasks, err := s.scheduler.GetTasks(ctx)
		if err != nil {
			s.logger.Error("failed to get tasks for dashboard", "error", err)
		} else {
			data.Tasks = tasks
		}
	}

	if s.store != nil {
		runs, err := s.store.GetRuns(ctx, 20)
		if err != nil {
			s.logger.Error("failed to get runs for dashboard", "error", err)
		} else {
			data.Runs = runs
		}
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		s.logger.Error("failed to render dashboard template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleCharts renders the latest snapshot as a chart page
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, snap); err != nil {
		s.logger.Error("failed to render charts", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// DashboardData holds data for the dashboard template
type DashboardData struct {
	Title    string
	Version  string
	Uptime   string
	Snapshot *snapshot.Snapshot
	Tasks    []TaskSummary
	Runs     []RunSummary
}

// templateFuncs provides custom template functions
var templateFuncs = template.FuncMap{
	"formatTime": func(t *time.Time) string {
		if t == nil {
			return "N/A"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "N/A"
		}
		return humanize.Time(t)
	},
	"comma": humanize.Comma,
	"formatDuration": func(ms float64) string {
		duration := time.Duration(ms) * time.Millisecond
		if duration < time.Second {
			return duration.String()
		}
		return duration.Round(time.Millisecond).String()
	},
	"statusBadge": func(status string) template.HTML {
		switch status {
		case "success":
			return template.HTML(`<span class="badge badge-success">success</span>`)
		case "failure":
			return template.HTML(`<span class="badge badge-danger">failure</span>`)
		case "running":
			return template.HTML(`<span class="badge badge-info">running</span>`)
		default:
			return template.HTML(`<span class="badge badge-secondary">` + template.HTMLEscapeString(status) + `</span>`)
		}
	},
	"truncate": func(s string, max int) string {
		if len(s) <= max {
			return s
		}
		return s[:max] + "..."
	},
}

// dashboardTemplate is the main dashboard HTML template
const dashboardTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #f5f5f5; color: #333; line-height: 1.6; }
        .container { max-width: 1200px; margin: 0 auto; padding: 20px; }
        header { background: #2c3e50; color: white; padding: 20px 0; margin-bottom: 30px; }
        header h1 { font-size: 28px; margin-bottom: 5px; }
        header .meta { font-size: 14px; opacity: 0.8; }
        header a { color: white; }
        .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 20px; margin-bottom: 30px; }
        .stat-card { background: white; padding: 20px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .stat-card h3 { font-size: 14px; color: #7f8c8d; margin-bottom: 8px; text-transform: uppercase; }
        .stat-card .value { font-size: 32px; font-weight: bold; color: #2c3e50; }
        .section { background: white; padding: 25px; border-radius: 8px; margin-bottom: 30px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .section h2 { font-size: 20px; margin-bottom: 20px; color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px; }
        table { width: 100%; border-collapse: collapse; }
        th { background: #f8f9fa; text-align: left; padding: 12px; font-weight: 600; border-bottom: 2px solid #dee2e6; }
        td { padding: 12px; border-bottom: 1px solid #dee2e6; }
        .badge { display: inline-block; padding: 4px 8px; border-radius: 4px; font-size: 12px; font-weight: 600; text-transform: uppercase; }
        .badge-success { background: #d4edda; color: #155724; }
        .badge-danger { background: #f8d7da; color: #721c24; }
        .badge-info { background: #d1ecf1; color: #0c5460; }
        .badge-secondary { background: #e2e3e5; color: #383d41; }
        .empty { text-align: center; padding: 40px; color: #7f8c8d; }
        code { background: #f8f9fa; padding: 2px 6px; border-radius: 3px; font-family: monospace; font-size: 13px; }
    </style>
</head>
<body>
    <header>
        <div class="container">
            <h1>{{.Title}}</h1>
            <div class="meta">Version: {{.Version}} | Uptime: {{.Uptime}} | <a href="/charts">Charts</a> | <a href="/api/snapshot">Snapshot</a></div>
        </div>
    </header>

    <div class="container">
        {{with .Snapshot}}
        <div class="stats">
            <div class="stat-card"><h3>Jobs</h3><div class="value">{{comma .TotalJobCount}}</div></div>
            <div class="stat-card"><h3>Tasks</h3><div class="value">{{comma .TotalTaskCount}}</div></div>
            <div class="stat-card"><h3>Errors</h3><div class="value">{{comma .TotalErrorCount}}</div></div>
            <div class="stat-card"><h3>Avg Job Time</h3><div class="value">{{.AvgJobTime}}s</div></div>
            <div class="stat-card"><h3>Adapters</h3><div class="value">{{len .Adapters}}</div></div>
        </div>
        <div class="section">
            <h2>Top Users</h2>
            <table>
                <thead><tr><th>User</th><th>Jobs</th></tr></thead>
                <tbody>
                    {{range .TopUsers}}<tr><td>{{.User}}</td><td>{{comma .Count}}</td></tr>{{end}}
                </tbody>
            </table>
            <p class="meta">Computed at {{.LastRunTime}}</p>
        </div>
        {{else}}
        <div class="section"><div class="empty">No snapshot yet</div></div>
        {{end}}

        <div class="section">
            <h2>Schedule ({{len .Tasks}})</h2>
            {{if .Tasks}}
            <table>
                <thead><tr><th>Task</th><th>Schedule</th><th>Last Run</th><th>Next Run</th><th>Runs</th><th>Last Error</th></tr></thead>
                <tbody>
                    {{range .Tasks}}
                    <tr>
                        <td>{{.ID}}</td>
                        <td><code>{{.Schedule}}</code></td>
                        <td>{{formatTime .LastRun}}</td>
                        <td>{{formatTime .NextRun}}</td>
                        <td>{{.RunCount}}</td>
                        <td>{{truncate .LastError 60}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
            {{else}}
            <div class="empty">No scheduled tasks</div>
            {{end}}
        </div>

        <div class="section">
            <h2>Recent Runs ({{len .Runs}})</h2>
            {{if .Runs}}
            <table>
                <thead><tr><th>Run ID</th><th>Trigger</th><th>Started</th><th>Duration</th><th>Jobs</th><th>Skipped</th><th>Status</th></tr></thead>
                <tbody>
                    {{range .Runs}}
                    <tr>
                        <td><a href="/api/runs/{{.RunID}}"><code>{{truncate .RunID 12}}</code></a></td>
                        <td>{{.Trigger}}</td>
                        <td>{{ago .StartTime}}</td>
                        <td>{{formatDuration .Duration}}</td>
                        <td>{{comma .TotalJobCount}}</td>
                        <td>{{.Diagnostics.Skipped}}</td>
                        <td>{{statusBadge .Status}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
            {{else}}
            <div class="empty">No runs yet</div>
            {{end}}
        </div>
    </div>
</body>
</html>`

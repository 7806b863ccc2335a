package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/chamber-logger/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"stateClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Chamber Logger</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Chamber Logger</h1>

<h2>Chamber</h2>
<table>
<tr><th>State</th><td id="state" class="{{stateClass .State}}">{{.State}}</td></tr>
<tr><th>Session started</th><td>{{stamp .Chamber.SessionStart}}</td></tr>
<tr><th>Last reading</th><td>{{stamp .Chamber.LastSeen}}</td></tr>
<tr><th>Last sample</th><td>{{stamp .Chamber.LastWrite}}</td></tr>
<tr><th>Last archive</th><td>{{if .Chamber.LastArchive}}{{.Chamber.LastArchive}}{{else}}-{{end}}</td></tr>
<tr><th>Keep-alive</th><td>{{if .KeepAlive}}armed{{else}}stopped{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic</th><td>{{.Config.Topic}}</td></tr>
</table>

<h2>Sessions</h2>
<table>
<tr><th>ON</th><td>{{.Chamber.Counts.On}}</td></tr>
<tr><th>OFF</th><td>{{.Chamber.Counts.Off}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Elapsed}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Log interval</th><td>{{.Config.LogIntervalSec}}s</td></tr>
<tr><th>OFF timeout</th><td>{{.Config.TimeoutOffSec}}s</td></tr>
<tr><th>Keep-alive interval</th><td>{{.Config.KeepAliveSec}}s</td></tr>
<tr><th>Timezone</th><td>UTC{{printf "%+d" .Config.TimezoneOffset}}</td></tr>
<tr><th>Storage</th><td>{{.Config.Storage}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	state := string(snap.Chamber.State)
	if state == "" {
		state = "UNKNOWN"
	}
	data := struct {
		status.Snapshot
		Elapsed time.Duration
		State   string
	}{
		Snapshot: snap,
		Elapsed:  snap.Uptime(),
		State:    state,
	}
	return indexTmpl.Execute(w, data)
}

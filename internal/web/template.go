package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/door-monitor/internal/history"
	"github.com/sweeney/door-monitor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"age": func(d time.Duration) string {
		if d < 0 {
			return "never"
		}
		d = d.Truncate(time.Second)
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds ago", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds ago", m, s)
		}
		return fmt.Sprintf("%ds ago", s)
	},
	"unix": func(ts int64) string {
		return time.Unix(ts, 0).UTC().Format(time.RFC3339)
	},
	"stateOf": func(open bool) string {
		if open {
			return "OPEN"
		}
		return "CLOSED"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.open { color: green; font-weight: bold; }
.closed { color: #b00; font-weight: bold; }
.yes { color: green; }
.no { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>{{.Title}}<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Door</h2>
<table>
<tr><th>State</th><td id="door-state" class="{{if .Open}}open{{else}}closed{{end}}">{{stateOf .Open}}</td></tr>
<tr><th>Last update</th><td id="door-age">{{age .Age}}</td></tr>
<tr><th>Updates received</th><td id="door-updates">{{.Updates}}</td></tr>
</table>

<h2>Monitor</h2>
<table>
<tr><th>Running</th><td class="{{if .Running}}yes{{else}}no{{end}}">{{if .Running}}yes{{else}}no{{end}}</td></tr>
<tr><th>Receiver</th><td class="{{if .Listening}}yes{{else}}no{{end}}">{{if .Listening}}listening{{else}}stopped{{end}}</td></tr>
<tr><th>Linked targets</th><td>{{.LinkedTargets}}</td></tr>
<tr><th>History</th><td>{{.HistoryLen}} entries</td></tr>
</table>

<h2>Recent changes</h2>
{{if .Recent}}<table>
{{range .Recent}}<tr><th class="{{if .IsOpen}}open{{else}}closed{{end}}">{{stateOf .IsOpen}}</th><td>{{unix .Timestamp}}</td></tr>
{{end}}</table>
{{else}}<p>No changes recorded.</p>
{{end}}
<p><a href="/index.json">JSON</a> · <a href="/api/history?page=0">History</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var stateEl = document.getElementById("door-state");
  var ageEl = document.getElementById("door-age");
  var updatesEl = document.getElementById("door-updates");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        if (msg.type !== "state") { return; }
        var s = msg.data;
        stateEl.textContent = s.state;
        stateEl.className = s.open ? "open" : "closed";
        ageEl.textContent = s.age_seconds < 0 ? "never" : s.age_seconds + "s ago";
        updatesEl.textContent = s.updates;
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

type indexData struct {
	status.View
	Title  string
	Age    time.Duration // shadows Snapshot.Age, which needs an argument
	Recent []history.Point
}

func renderHTML(w io.Writer, data indexData) error {
	return indexTmpl.Execute(w, data)
}

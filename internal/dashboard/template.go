package dashboard

import (
	"fmt"
	"html/template"
	"io"

	"github.com/sweeney/complex-monitor/internal/status"
)

var funcs = template.FuncMap{
	"reading": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.1f", *v)
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}

var indexTmpl = template.Must(template.New("index").Funcs(funcs).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Config.Identity}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.CONNECTED { color: green; }
.CONNECTING { color: orange; }
.DISCONNECTED { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>{{.Config.Identity}}<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Readings</h2>
<table>
<tr><th>Temperature</th><td id="data_temp">{{reading .Readings.Temperature}}</td></tr>
<tr><th>Humidity</th><td id="data_humidity">{{reading .Readings.Humidity}}</td></tr>
<tr><th>Uptime</th><td id="data_uptime">{{.Uptime}}</td></tr>
</table>

<h2>Cloud</h2>
<table>
<tr><th>Broker</th><td id="data_cloud" class="{{orUnknown (printf "%s" .Connection.Status)}}">{{orUnknown (printf "%s" .Connection.Status)}}</td></tr>
<tr><th>Endpoint</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic</th><td>{{.Config.Topic}}</td></tr>
<tr><th>Indicator</th><td id="data_led">{{if .Indicator}}{{.Indicator}}{{else}}OFF{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Phase</th><td id="data_phase">{{orUnknown (printf "%s" .Phase)}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boot</th><td>{{.BootID}}</td></tr>
<tr><th>Published</th><td>{{.Counts.Published}}</td></tr>
<tr><th>Dropped presses</th><td>{{.Counts.DroppedPresses}}</td></tr>
</table>

<p><a href="/index.json">JSON</a>{{if .Editable}} · <a href="/config">Config</a>{{end}} · <a href="/metrics">Metrics</a></p>

<script>
(function() {
  var dot = document.getElementById("live-dot");
  function text(id, v) {
    document.getElementById(id).textContent = (v === undefined || v === null) ? "-" : v;
  }
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var source = new EventSource("/events");
  source.onopen = function() { setDot("ok", "live"); };
  source.onerror = function() { setDot("err", "offline"); };

  source.addEventListener("data", function(e) {
    try {
      var d = JSON.parse(e.data);
      text("data_temp", d.temperature === undefined ? undefined : d.temperature.toFixed(1));
      text("data_humidity", d.humidity === undefined ? undefined : d.humidity.toFixed(1));
      text("data_uptime", d.uptime);
    } catch (err) {}
  });

  source.addEventListener("status", function(e) {
    try {
      var s = JSON.parse(e.data).status;
      var cloud = document.getElementById("data_cloud");
      cloud.textContent = s.broker.state;
      cloud.className = s.broker.state;
      text("data_led", s.indicator);
      text("data_phase", s.phase);
    } catch (err) {}
  });
})();
</script>
</body>
</html>
`

func renderIndex(w io.Writer, snap status.Snapshot, editable bool) error {
	data := struct {
		status.Snapshot
		Editable bool
	}{snap, editable}
	return indexTmpl.Execute(w, data)
}

var configTmpl = template.Must(template.New("config").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Configuration</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
label { display: block; margin-top: 1em; }
input { width: 100%; }
.error { color: red; }
</style>
</head>
<body>
<h1>Configuration</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/config">
<input type="hidden" name="token" value="{{.Token}}">
<label>Identity <input name="identity" value="{{.Form.Identity}}"></label>
<label>Web port <input name="web_port" value="{{.Form.WebPort}}"></label>
<label>Broker endpoint <input name="broker_endpoint" value="{{.Form.BrokerEndpoint}}"></label>
<label>Broker port <input name="broker_port" value="{{.Form.BrokerPort}}"></label>
<label>Broker topic <input name="broker_topic" value="{{.Form.BrokerTopic}}"></label>
<p><button type="submit">Save</button></p>
</form>
<p><a href="/">Back</a></p>
</body>
</html>
`))

var doneTmpl = template.Must(template.New("done").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Configuration saved</title></head>
<body style="font-family: monospace; max-width: 600px; margin: 2em auto;">
<h1>Configuration saved</h1>
<p>The new settings take effect after the device restarts.</p>
<p><a href="/">Back</a></p>
</body>
</html>
`))

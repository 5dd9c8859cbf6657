package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/atx-powerctl/internal/mqtt"
	"github.com/sweeney/atx-powerctl/internal/status"
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
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
	"stateClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		case "":
			return "unknown"
		}
		return "busy"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>ATX Power Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.busy { color: orange; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>ATX Power Controller</h1>

<h2>Power</h2>
<table>
<tr><th>State</th><td id="state" class="{{stateClass (printf "%s" .State)}}">{{printf "%s" .State}}</td></tr>
<tr><th>Power enable</th><td class="{{if .Outputs.PowerEnable}}on{{else}}off{{end}}">{{onOff .Outputs.PowerEnable}}</td></tr>
<tr><th>Shutdown request</th><td class="{{if .Outputs.ShutdownRequest}}busy{{else}}off{{end}}">{{onOff .Outputs.ShutdownRequest}}</td></tr>
<tr><th>Indicator</th><td>{{onOff .Outputs.Indicator}}</td></tr>
{{with .LastStep}}<tr><th>Last step</th><td>{{.Cause}}: {{printf "%s" .From}} &rarr; {{printf "%s" .To}} ({{.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}})</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Confirmed presses</th><td>{{.Counts.Presses}}</td></tr>
<tr><th>Boots</th><td>{{.Counts.Boots}}</td></tr>
<tr><th>Shutdown requests</th><td>{{.Counts.Shutdowns}}</td></tr>
<tr><th>Forced power-offs</th><td>{{.Counts.ForcedOffs}}</td></tr>
<tr><th>SBC on / off</th><td>{{.Counts.SBCOn}} / {{.Counts.SBCOff}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic</th><td>{{.Topic}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Backend</th><td>{{.Config.Backend}}{{if .Config.Chip}} ({{.Config.Chip}}){{end}}</td></tr>
<tr><th>Event policy</th><td>{{.Config.EventPolicy}}</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
<tr><th>Timer</th><td>{{.Config.TicksPerSecond}} ticks/s</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Topic  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Topic:    mqtt.Topic,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

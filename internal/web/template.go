package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/zonelight/internal/logic"
	"github.com/sweeney/zonelight/internal/status"
	"github.com/sweeney/zonelight/internal/strip"
)

// zoneRow is one band of a zone table.
type zoneRow struct {
	From  int
	To    int
	Color string
}

func zoneRows(zones []int, palette logic.Palette) []zoneRow {
	var rows []zoneRow
	for i := 0; i+1 < len(zones); i++ {
		row := zoneRow{From: zones[i], To: zones[i+1]}
		if i < len(palette) {
			row.Color = strip.Hex(palette[i])
		}
		rows = append(rows, row)
	}
	return rows
}

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
	"css": func(s string) template.CSS {
		return template.CSS(s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Zone Light</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.connected { color: green; }
.disconnected { color: red; }
#strip { display: flex; gap: 2px; background: #111; padding: 6px; border-radius: 4px; min-height: 14px; }
.led { flex: 1; height: 14px; border-radius: 2px; background: #000; }
.swatch { display: inline-block; width: 1em; height: 1em; vertical-align: middle; border: 1px solid #999; }
</style>
</head>
<body>
<h1>Zone Light</h1>

<div id="strip">{{if .Status.Display}}{{range .Status.Display.Frame}}<div class="led" style="background: {{css .}}"></div>{{end}}{{end}}</div>

<h2>State</h2>
<table>
<tr><th>State</th><td id="state">{{.Status.State}}</td></tr>
<tr><th>Channel</th><td id="channel">{{if .Status.Channel}}{{.Status.Channel}}{{else}}none{{end}}</td></tr>
<tr><th>Zone</th><td id="zone">{{with .Status.Display}}{{if .Zone}}{{.Zone}}{{else}}-{{end}}{{else}}-{{end}}</td></tr>
<tr><th>Paired</th><td>{{if .Status.Paired}}yes{{else}}no{{end}}</td></tr>
<tr><th>Power</th><td id="power">{{with .Status.Readings.Power}}{{.Value}} W{{else}}-{{end}}</td></tr>
<tr><th>Heart rate</th><td id="heart-rate">{{with .Status.Readings.HeartRate}}{{.Value}} bpm{{else}}-{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
{{if .Status.MQTT.Broker}}<tr><th>MQTT</th><td class="{{if .Status.MQTT.Connected}}connected{{else}}disconnected{{end}}">{{if .Status.MQTT.Connected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Status.MQTT.Broker}}</td></tr>{{end}}
{{if .Status.BLE.Enabled}}<tr><th>Bluetooth</th><td class="{{if .Status.BLE.Connected}}connected{{else}}disconnected{{end}}">{{if .Status.BLE.Connected}}connected{{else}}disconnected{{end}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Power readings</th><td>{{.Status.Counts.PowerReadings}}</td></tr>
<tr><th>Heart rate readings</th><td>{{.Status.Counts.HeartRateReadings}}</td></tr>
<tr><th>Dropped</th><td>{{.Status.Counts.Dropped}}</td></tr>
<tr><th>Emissions</th><td>{{.Status.Counts.Emissions}}</td></tr>
<tr><th>Flashes</th><td>{{.Status.Counts.Flashes}}</td></tr>
<tr><th>Failovers</th><td>{{.Status.Counts.Failovers}}</td></tr>
</table>

<h2>Power zones</h2>
<table>
{{range .PowerZones}}<tr><th>{{.From}}-{{.To}} W</th><td><span class="swatch" style="background: {{css .Color}}"></span> {{.Color}}</td></tr>
{{end}}</table>

<h2>Heart rate zones</h2>
<table>
{{range .HeartRateZones}}<tr><th>{{.From}}-{{.To}} bpm</th><td><span class="swatch" style="background: {{css .Color}}"></span> {{.Color}}</td></tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.Status.StartTime}}</td></tr>
<tr><th>Mode</th><td>{{.Status.Config.Mode}}</td></tr>
<tr><th>Smoothing</th><td>{{if .Status.Config.Smoothing}}{{.Status.Config.AverageSamples}} samples{{else}}off{{end}}</td></tr>
<tr><th>Time delay</th><td>{{.Status.Config.TimeDelaySeconds}}s</td></tr>
<tr><th>LEDs</th><td>{{.Status.Config.LEDs}} ({{.Status.Config.LEDDriver}})</td></tr>
<tr><th>HTTP</th><td>{{.Status.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
<script>
(function() {
  var stripEl = document.getElementById("strip");

  function text(id, value) {
    document.getElementById(id).textContent = value;
  }

  function refresh() {
    fetch("/index.json").then(function(r) { return r.json(); }).then(function(j) {
      var s = j.status;
      text("state", s.state);
      text("channel", s.channel || "none");
      text("zone", s.display && s.display.zone ? s.display.zone : "-");
      text("power", s.readings.power ? s.readings.power.value + " W" : "-");
      text("heart-rate", s.readings.heart_rate ? s.readings.heart_rate.value + " bpm" : "-");
      var frame = s.display ? s.display.frame : [];
      while (stripEl.children.length > frame.length) stripEl.removeChild(stripEl.lastChild);
      while (stripEl.children.length < frame.length) {
        var led = document.createElement("div");
        led.className = "led";
        stripEl.appendChild(led);
      }
      for (var i = 0; i < frame.length; i++) stripEl.children[i].style.background = frame[i];
    }).catch(function() {});
  }

  setInterval(refresh, 2000);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		Status         status.StatusInner
		Uptime         time.Duration
		PowerZones     []zoneRow
		HeartRateZones []zoneRow
	}{
		Status:         status.Build(snap),
		Uptime:         snap.Uptime(),
		PowerZones:     zoneRows(snap.Config.PowerZones, snap.Config.Palette),
		HeartRateZones: zoneRows(snap.Config.HeartRateZones, snap.Config.Palette),
	}
	indexTmpl.Execute(w, data)
}

package health

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// RenderDashboardHTML returns the HTML status page served at GET /.
func RenderDashboardHTML(health CollectResult) string {
	b, _ := json.Marshal(health)
	jsonStr := string(b)
	// Escape for embedding in a JS template literal: \ ` $
	jsonStr = strings.ReplaceAll(jsonStr, "\\", "\\\\")
	jsonStr = strings.ReplaceAll(jsonStr, "`", "\\`")
	jsonStr = strings.ReplaceAll(jsonStr, "$", "\\$")

	headline := "All Systems Operational"
	if health.Status != "ok" {
		headline = "System Issues Detected"
	}

	lastReqMethod, lastReqPath := "-", "-"
	if m, ok := health.Traffic.LastRequest.(map[string]interface{}); ok {
		if v, ok := m["method"].(string); ok {
			lastReqMethod = v
		}
		if v, ok := m["path"].(string); ok {
			lastReqPath = v
		}
	}

	var deps strings.Builder
	for _, name := range []string{"database", "redis", "broker"} {
		d := health.Dependencies[name]
		class := "ok"
		if d.Status != "connected" {
			class = "err"
		}
		ping := "--"
		if p, ok := d.PingMs.(*int64); ok && p != nil {
			ping = fmt.Sprint(*p)
		}
		deps.WriteString(`<div class="row"><span>` + name + `</span><span id="pill-` + name + `" class="pill ` + class + `">` +
			html.EscapeString(d.Status) + ` · <span id="ping-` + name + `">` + ping + `</span> ms</span></div>`)
	}

	sweep := "<div class=\"row\"><span>No sweep recorded</span></div>"
	if m, ok := health.LastSweep.(map[string]interface{}); ok {
		var sb strings.Builder
		for _, k := range []string{"started_at", "tranches_settled", "tranches_funded", "tranches_unfunded", "failures"} {
			sb.WriteString(`<div class="row"><span>` + strings.ReplaceAll(k, "_", " ") + `</span><span>` + html.EscapeString(fmt.Sprint(m[k])) + `</span></div>`)
		}
		sweep = sb.String()
	}

	return `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Brickshare · Settlement API Status</title>
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <style>
    :root { --brand: #1F4E79; --dark: #1B2631; --muted: #64748b; --bg: #F7F9FB; }
    body { background: var(--bg); color: var(--dark); font-family: system-ui, sans-serif; margin: 0; display: flex; justify-content: center; padding: 40px 20px; }
    .container { width: 100%; max-width: 1000px; }
    h1 { font-size: 44px; font-weight: 900; letter-spacing: -2px; margin: 0 0 8px; color: var(--brand); }
    h1.issue { color: #B91C1C; }
    .subtext { color: var(--muted); font-weight: 700; margin-bottom: 30px; }
    .grid { display: grid; grid-template-columns: repeat(3, 1fr); background: white; border-radius: 24px; box-shadow: 0 20px 60px -20px rgba(31,78,121,0.2); }
    .col { padding: 36px; border-right: 1px solid #eef2f6; }
    .col:last-child { border-right: none; }
    .label { text-transform: uppercase; font-size: 11px; font-weight: 900; letter-spacing: 2px; color: #94a3b8; margin-bottom: 20px; }
    .big { font-size: 38px; font-weight: 900; margin-bottom: 10px; }
    .row { display: flex; justify-content: space-between; padding: 7px 0; border-bottom: 1px solid #f3f5f8; font-size: 14px; font-weight: 700; }
    .pill { padding: 4px 10px; border-radius: 8px; font-size: 11px; }
    .ok { background: rgba(31,78,121,0.08); color: var(--brand); }
    .err { background: rgba(239,68,68,0.08); color: #EF4444; }
    .footer { margin-top: 20px; font-family: monospace; font-size: 13px; display: flex; justify-content: space-between; }
    a { color: var(--brand); font-weight: 800; }
    @media (max-width: 900px) { .grid { grid-template-columns: 1fr; } .col { border-right: none; } }
  </style>
</head>
<body>
  <div class="container">
    <h1 id="headline" class="` + html.EscapeString(health.Status) + `">` + headline + `</h1>
    <p class="subtext">Capital-call settlement engine. Raw data: <a href="/health/json">/health/json</a> · <a href="/health/errors">/health/errors</a> · <a href="/metrics">/metrics</a></p>
    <div class="grid">
      <div class="col">
        <div class="label">Traffic</div>
        <div class="big" id="total-req">` + fmt.Sprint(health.Traffic.TotalRequests) + `</div>
        <div class="row"><span>Successful</span><span>` + fmt.Sprint(health.Traffic.SuccessCount) + `</span></div>
        <div class="row"><span>Failed</span><span>` + fmt.Sprint(health.Traffic.FailedCount) + `</span></div>
        <div class="row"><span>Success Rate</span><span>` + html.EscapeString(health.Traffic.SuccessRate) + `%</span></div>
        <div class="row"><span>Avg Latency</span><span>` + html.EscapeString(fmt.Sprint(health.Traffic.AvgResponseTime)) + `ms</span></div>
      </div>
      <div class="col">
        <div class="label">Dependencies</div>
        ` + deps.String() + `
        <div class="row"><span>Goroutines</span><span>` + fmt.Sprint(health.Runtime.Goroutines) + `</span></div>
        <div class="row"><span>Heap Used</span><span>` + fmt.Sprint(health.Runtime.Memory.HeapUsed) + ` MB</span></div>
      </div>
      <div class="col">
        <div class="label">Last Sweep</div>
        ` + sweep + `
      </div>
    </div>
    <div class="footer">
      <span>LAST INBOUND <b>` + html.EscapeString(lastReqMethod) + `</b> ` + html.EscapeString(lastReqPath) + `</span>
      <span>` + html.EscapeString(health.Runtime.Platform) + ` · ` + html.EscapeString(health.Runtime.GoVersion) + `</span>
    </div>
  </div>
  <script>
    const initial = JSON.parse(` + "`" + jsonStr + "`" + `);
    async function tick() {
      try {
        const d = await (await fetch('/health/json')).json();
        document.getElementById('total-req').innerText = d.traffic.totalRequests;
        const hl = document.getElementById('headline');
        hl.className = d.status;
        hl.innerText = d.status === 'ok' ? 'All Systems Operational' : 'System Issues Detected';
      } catch (e) {}
    }
    if (initial.status) setInterval(tick, 15000);
  </script>
</body>
</html>`
}

package web

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"sqlstress/internal/pool"
	"sqlstress/internal/runner"
)

type pageData struct {
	Request      runner.Config
	Result       *runner.Result
	RunError     string
	EvictMessage string
	PoolMessage  string
	Conn         *pool.ConnectionStatus
	Pool         *pool.Stats
	Target       Target
}

const stylesheet = `
body { font-family: system-ui, sans-serif; margin: 0; background: #1a1a1a; color: #fafafa; }
main { max-width: 1100px; margin: 0 auto; padding: 1.5rem; }
h1 { color: #7d56f4; }
.card { border: 1px solid #3c3c3c; border-radius: 8px; padding: 1rem; margin-bottom: 1rem; }
.grid { display: grid; grid-template-columns: repeat(4, 1fr); gap: .5rem; }
.muted { color: #767676; }
.ok { color: #04b575; }
.err { color: #ff5f87; }
label { display: block; margin-top: .5rem; }
textarea, input, select { width: 100%; background: #262626; color: #fafafa; border: 1px solid #3c3c3c; padding: .3rem; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #3c3c3c; padding: .25rem .5rem; text-align: left; }
button { margin-top: .75rem; background: #7d56f4; color: #fff; border: 0; padding: .4rem 1rem; border-radius: 4px; }
`

func indexPage(d pageData) gomponents.Node {
	return html.Doctype(html.HTML(
		html.Lang("en"),
		html.Head(
			html.Meta(html.Charset("utf-8")),
			html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
			html.TitleEl(gomponents.Text("SQL Stress")),
			html.StyleEl(gomponents.Raw(stylesheet)),
		),
		html.Body(
			html.Main(
				html.H1(gomponents.Text("SQL Stress")),
				targetCard(d),
				connectionCard(d.Conn),
				poolCard(d),
				runForm(d.Request),
				runErrorCard(d.RunError),
				resultCard(d.Result),
			),
		),
	))
}

func targetCard(d pageData) gomponents.Node {
	t := d.Target
	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Database")),
		html.Table(html.TBody(
			kvRow("Driver", t.Driver),
			kvRow("Server", t.Server),
			kvRow("Database", t.Database),
			kvRow("DSN", t.DSN),
		)),
	)
}

func connectionCard(st *pool.ConnectionStatus) gomponents.Node {
	if st == nil {
		return html.Div(
			html.Class("card"),
			html.Form(html.Method("post"), html.Action("/test-connection"),
				html.Button(html.Type("submit"), gomponents.Text("Test connection")),
			),
		)
	}

	status := html.Strong(html.Class("ok"), gomponents.Text("✅ SUCCESS"))
	if !st.OK {
		status = html.Strong(html.Class("err"), gomponents.Text("❌ FAILED"))
	}

	rows := []gomponents.Node{
		kvRow("Message", st.Message),
		kvRow("Latency", st.Latency.Round(time.Microsecond).String()),
	}
	if st.Product != "" {
		rows = append(rows, kvRow("Product", st.Product))
	}
	if st.Driver != "" {
		rows = append(rows, kvRow("Driver", st.Driver))
	}
	if st.ErrorType != "" {
		rows = append(rows, kvRow("Error", st.ErrorType))
	}
	if st.Hint != "" {
		rows = append(rows, kvRow("Hint", st.Hint))
	}

	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Connection "), status),
		html.Table(html.TBody(gomponents.Group(rows))),
		html.Form(html.Method("post"), html.Action("/test-connection"),
			html.Button(html.Type("submit"), gomponents.Text("Test again")),
		),
	)
}

func poolCard(d pageData) gomponents.Node {
	var stats gomponents.Node = html.P(html.Class("muted"), gomponents.Text("Pool statistics are not available for this provider."))
	minIdle, maxPool := "", ""
	if p := d.Pool; p != nil {
		stats = html.Div(
			html.Class("grid"),
			metric("Active", strconv.Itoa(p.Active)),
			metric("Idle", strconv.Itoa(p.Idle)),
			metric("Total", strconv.Itoa(p.Total)),
			metric("Waits", strconv.FormatInt(p.WaitCount, 10)),
		)
		minIdle, maxPool = strconv.Itoa(p.MinIdle), strconv.Itoa(p.MaxPool)
	}

	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Connection pool")),
		stats,
		messageLine(d.EvictMessage),
		messageLine(d.PoolMessage),
		html.Form(html.Method("post"), html.Action("/evict"),
			html.Button(html.Type("submit"), gomponents.Text("Evict idle connections")),
		),
		html.Form(html.Method("post"), html.Action("/pool"),
			html.Label(gomponents.Text("Min idle"), html.Input(html.Type("number"), html.Name("minIdle"), html.Value(minIdle))),
			html.Label(gomponents.Text("Max pool"), html.Input(html.Type("number"), html.Name("maxPool"), html.Value(maxPool))),
			html.Button(html.Type("submit"), gomponents.Text("Update pool")),
		),
	)
}

func runForm(cfg runner.Config) gomponents.Node {
	modes := []runner.ResultMode{runner.ResultNone, runner.ResultScalar, runner.ResultRows}
	options := make([]gomponents.Node, 0, len(modes))
	for _, m := range modes {
		options = append(options, optionSelectedValue(m.String(), cfg.ResultMode.String(), strings.ToUpper(m.String())))
	}

	rate := ""
	if cfg.TargetRate > 0 {
		rate = strconv.FormatFloat(cfg.TargetRate, 'f', -1, 64)
	}

	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Run")),
		html.Form(
			html.Method("post"),
			html.Action("/run"),
			html.Label(gomponents.Text("SQL"),
				html.Textarea(html.Name("sqlText"), gomponents.Attr("rows", "6"), gomponents.Text(cfg.SQL)),
			),
			html.Div(
				html.Class("grid"),
				numberInput("Iterations", "iterations", cfg.Iterations),
				numberInput("Concurrency", "concurrency", cfg.Concurrency),
				numberInput("Delay (ms)", "delayMs", cfg.DelayMs),
				numberInput("Timeout (s)", "timeoutSeconds", cfg.TimeoutSec),
				html.Label(gomponents.Text("Result mode"), html.Select(html.Name("resultMode"), gomponents.Group(options))),
				numberInput("Max rows", "maxRows", cfg.MaxRows),
				html.Label(gomponents.Text("Rate (q/s, optional)"), html.Input(html.Type("text"), html.Name("rate"), html.Value(rate))),
				html.Label(gomponents.Text("Templated SQL"),
					html.Input(html.Type("checkbox"), html.Name("templated"), html.Value("on"), gomponents.If(cfg.Templated, html.Checked())),
				),
			),
			html.Button(html.Type("submit"), gomponents.Text("Run")),
		),
	)
}

func runErrorCard(msg string) gomponents.Node {
	if msg == "" {
		return nil
	}
	return html.Div(
		html.Class("card"),
		html.H2(html.Class("err"), gomponents.Text("Run failed")),
		html.Pre(gomponents.Text(msg)),
	)
}

func resultCard(res *runner.Result) gomponents.Node {
	if res == nil {
		return nil
	}

	title := "Result"
	if res.Cancelled {
		title += " (cancelled)"
	}

	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text(title)),
		html.P(html.Class("muted"), gomponents.Textf("Run %s, %s mode", res.ID, res.ResultMode)),
		html.Div(
			html.Class("grid"),
			metric("Iterations", strconv.Itoa(res.TotalIterations)),
			metric("Concurrency", strconv.Itoa(res.Concurrency)),
			metric("Success", strconv.Itoa(res.SuccessCount)),
			metric("Errors", strconv.Itoa(res.ErrorCount)),
			metric("Duration", fmt.Sprintf("%d ms", res.DurationMs)),
			metric("Throughput", fmt.Sprintf("%.2f q/s", res.ThroughputQPS)),
			metric("Avg", fmt.Sprintf("%d ms", res.AvgMs)),
			metric("P50", fmt.Sprintf("%d ms", res.P50Ms)),
			metric("P95", fmt.Sprintf("%d ms", res.P95Ms)),
			metric("P99", fmt.Sprintf("%d ms", res.P99Ms)),
			metric("Min", fmt.Sprintf("%d ms", res.MinMs)),
			metric("Max", fmt.Sprintf("%d ms", res.MaxMs)),
		),
		errorSamples(res.ErrorSamples),
		sampleRows(res.SampleRows),
	)
}

func errorSamples(samples []string) gomponents.Node {
	if len(samples) == 0 {
		return nil
	}
	items := make([]gomponents.Node, 0, len(samples))
	for _, s := range samples {
		items = append(items, html.Li(html.Class("err"), gomponents.Text(s)))
	}
	return html.Div(
		html.H2(gomponents.Text("Error samples")),
		html.Ul(gomponents.Group(items)),
	)
}

func sampleRows(rows [][]string) gomponents.Node {
	if len(rows) == 0 {
		return nil
	}
	body := make([]gomponents.Node, 0, len(rows))
	for i := range rows {
		cells := make([]gomponents.Node, 0, len(rows[i])+1)
		cells = append(cells, html.Td(html.Class("muted"), gomponents.Text(strconv.Itoa(i+1))))
		for j := range rows[i] {
			cells = append(cells, html.Td(gomponents.Text(rows[i][j])))
		}
		body = append(body, html.Tr(gomponents.Group(cells)))
	}
	return html.Div(
		html.H2(gomponents.Textf("Sample rows (%d)", len(rows))),
		html.Table(html.TBody(gomponents.Group(body))),
	)
}

func kvRow(k, v string) gomponents.Node {
	return html.Tr(html.Th(gomponents.Text(k)), html.Td(gomponents.Text(v)))
}

func metric(label, value string) gomponents.Node {
	return html.Div(
		html.P(html.Class("muted"), gomponents.Text(label)),
		html.Strong(gomponents.Text(value)),
	)
}

func numberInput(label, name string, v int) gomponents.Node {
	return html.Label(
		gomponents.Text(label),
		html.Input(html.Type("number"), html.Name(name), html.Value(strconv.Itoa(v))),
	)
}

func messageLine(msg string) gomponents.Node {
	if msg == "" {
		return nil
	}
	return html.P(html.Class("ok"), gomponents.Text(msg))
}

func optionSelectedValue(value, selected, label string) gomponents.Node {
	if value == selected {
		return html.Option(html.Value(value), html.Selected(), gomponents.Text(label))
	}
	return html.Option(html.Value(value), gomponents.Text(label))
}

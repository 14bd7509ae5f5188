package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sqlstress/internal/runner"
	"sqlstress/internal/tui/styles"
)

const maxColWidth = 24

// ResultView shows the aggregated result of the last finished run.
type ResultView struct {
	Result *runner.Result
	Err    error
	Table  table.Model

	Width  int
	Height int
}

func NewResultView() ResultView {
	t := table.New(table.WithFocused(true), table.WithHeight(8))
	s := table.DefaultStyles()
	s.Header = styles.TableHeader
	s.Selected = styles.TableSelected
	t.SetStyles(s)
	return ResultView{Table: t}
}

// SetResult replaces the shown run. A nil result with err shows the failure.
func (m *ResultView) SetResult(res *runner.Result, err error) {
	m.Result = res
	m.Err = err
	cols, rows := sampleTable(res)
	// Rows must be cleared before columns shrink.
	m.Table.SetRows(nil)
	m.Table.SetColumns(cols)
	m.Table.SetRows(rows)
	m.Table.GotoTop()
}

// sampleTable pads every row to the widest row so the table never indexes
// past a short row.
func sampleTable(res *runner.Result) ([]table.Column, []table.Row) {
	if res == nil || len(res.SampleRows) == 0 {
		return nil, nil
	}
	width := 0
	for _, r := range res.SampleRows {
		width = max(width, len(r))
	}
	cols := make([]table.Column, width+1)
	cols[0] = table.Column{Title: "#", Width: 4}
	for i := 1; i <= width; i++ {
		cols[i] = table.Column{Title: fmt.Sprintf("col%d", i), Width: 6}
	}

	rows := make([]table.Row, len(res.SampleRows))
	for i, r := range res.SampleRows {
		row := make(table.Row, width+1)
		row[0] = fmt.Sprintf("%d", i+1)
		for j, cell := range r {
			cell = styles.Truncate(strings.ReplaceAll(cell, "\n", " "), maxColWidth)
			row[j+1] = cell
			cols[j+1].Width = max(cols[j+1].Width, len([]rune(cell)))
		}
		rows[i] = row
	}
	return cols, rows
}

func (m ResultView) Init() tea.Cmd {
	return nil
}

func (m ResultView) Update(msg tea.Msg) (ResultView, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(max(msg.Width-8, 20))
		m.Table.SetHeight(max(msg.Height-20, 4))
	}
	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m ResultView) View() string {
	if m.Err != nil {
		return styles.Error.Render("Run failed: " + m.Err.Error())
	}
	res := m.Result
	if res == nil {
		return styles.Subtle.Render("No run finished yet. Press Ctrl+R on the Run view to start one.")
	}

	s := strings.Builder{}
	title := fmt.Sprintf("Run %s (%s mode)", res.ID, res.ResultMode)
	if res.Cancelled {
		title += " [cancelled]"
	}
	s.WriteString(styles.Title.Render(title))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(styles.Truncate(strings.Join(strings.Fields(res.SQL), " "), 100)))
	s.WriteString("\n\n")

	errColor := styles.Text
	if res.ErrorCount > 0 {
		errColor = styles.Error
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Iterations", styles.Value.Render(fmt.Sprintf("%d x %d", res.TotalIterations, res.Concurrency))),
		MakeCard("Success", styles.Success.Render(fmt.Sprintf("%d", res.SuccessCount))),
		MakeCard("Errors", errColor.Render(fmt.Sprintf("%d", res.ErrorCount))),
		MakeCard("Throughput", styles.Value.Render(fmt.Sprintf("%.1f q/s", res.ThroughputQPS))),
	))
	s.WriteString("\n")
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Avg", styles.Text.Render(fmt.Sprintf("%d ms", res.AvgMs))),
		MakeCard("P50", styles.Text.Render(fmt.Sprintf("%d ms", res.P50Ms))),
		MakeCard("P95", styles.Warn.Render(fmt.Sprintf("%d ms", res.P95Ms))),
		MakeCard("P99", styles.Error.Render(fmt.Sprintf("%d ms", res.P99Ms))),
		MakeCard("Min / Max", styles.Text.Render(fmt.Sprintf("%d / %d ms", res.MinMs, res.MaxMs))),
	))
	s.WriteString("\n")

	if len(res.ErrorSamples) > 0 {
		s.WriteString("\n")
		s.WriteString(styles.Subtle.Render("Error samples"))
		s.WriteString("\n")
		for _, e := range res.ErrorSamples {
			s.WriteString(styles.Error.Render("• "))
			s.WriteString(styles.Truncate(strings.ReplaceAll(e, "\n", " "), 100))
			s.WriteString("\n")
		}
	}

	if len(res.SampleRows) > 0 {
		s.WriteString("\n")
		s.WriteString(styles.Subtle.Render(fmt.Sprintf("Sample rows (%d)", len(res.SampleRows))))
		s.WriteString("\n")
		s.WriteString(m.Table.View())
	}

	return s.String()
}

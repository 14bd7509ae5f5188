package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sqlstress/internal/runner"
	"sqlstress/internal/tui/components"
	"sqlstress/internal/tui/styles"
)

const sparkWidth = 40

type DashboardView struct {
	Stats    runner.StatsSnapshot
	Viewport viewport.Model
	Progress progress.Model
	Config   runner.Config
	QPS      components.Sparkline
	P99      components.Sparkline

	StartTime  time.Time
	LastUpdate time.Time
	Finished   bool

	Width  int
	Height int
}

func NewDashboardView(cfg runner.Config, width, height int) DashboardView {
	// Gradient Progress Bar
	prog := progress.New(
		progress.WithGradient("#7D56F4", "#04B575"),
		progress.WithWidth(max(width-10, 10)),
		progress.WithoutPercentage(),
	)

	now := time.Now()
	return DashboardView{
		Viewport:   viewport.New(max(width-6, 0), max(height-8, 0)),
		Progress:   prog,
		Config:     cfg.Normalize(),
		QPS:        components.NewSparkline(sparkWidth, "QPS", "q/s", styles.Value),
		P99:        components.NewSparkline(sparkWidth, "P99", "ms", styles.Warn),
		StartTime:  now,
		LastUpdate: now,
		Width:      width,
		Height:     height,
	}
}

func (m DashboardView) Init() tea.Cmd {
	return nil
}

// Percent is completed iterations over the run total.
func (m DashboardView) Percent() float64 {
	if m.Stats.Total <= 0 {
		return 0
	}
	return min(float64(m.Stats.Requests)/float64(m.Stats.Total), 1)
}

func (m DashboardView) Update(msg tea.Msg) (DashboardView, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		now := time.Now()
		if dt := now.Sub(m.LastUpdate).Seconds(); dt > 0 && msg.Requests >= m.Stats.Requests {
			m.QPS.Add(float64(msg.Success-min(m.Stats.Success, msg.Success)) / dt)
		}
		m.P99.Add(msg.P99ServiceMs)
		m.LastUpdate = now
		m.Stats = msg
		cmds = append(cmds, m.Progress.SetPercent(m.Percent()))

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-10, 10)
		m.Viewport.Width = max(msg.Width-6, 0)
		m.Viewport.Height = max(msg.Height-8, 0)

	case progress.FrameMsg:
		newModel, cmd := m.Progress.Update(msg)
		if newModel, ok := newModel.(progress.Model); ok {
			m.Progress = newModel
		}
		cmds = append(cmds, cmd)
	}

	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m DashboardView) View() string {
	s := strings.Builder{}

	elapsed := m.LastUpdate.Sub(m.StartTime)
	if !m.Finished {
		elapsed = time.Since(m.StartTime)
	}

	title := "⚡ Run in Progress"
	if m.Finished {
		title = "✔ Run Finished"
	}
	counter := fmt.Sprintf("%d / %d", m.Stats.Requests, m.Stats.Total)
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.Title.Render(title),
		lipgloss.NewStyle().MarginLeft(2).Foreground(styles.ColorSubtle).Render(elapsed.Round(time.Second).String()),
		lipgloss.NewStyle().MarginLeft(4).Foreground(styles.ColorPrimary).Bold(true).Render("["+counter+"]"),
	)
	s.WriteString(header)
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString("\n\n")

	// Row 1: Volume
	qps := 0.0
	if elapsed.Seconds() > 0 {
		qps = float64(m.Stats.Success) / elapsed.Seconds()
	}
	target := fmt.Sprintf("%d workers", m.Config.Concurrency)
	if m.Config.TargetRate > 0 {
		target = fmt.Sprintf("%.1f q/s", m.Config.TargetRate)
	}

	row1 := lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Completed", styles.Value.Render(fmt.Sprintf("%d", m.Stats.Requests))),
		MakeCard("Avg QPS", styles.Value.Render(fmt.Sprintf("%.1f", qps))),
		MakeCard("Inflight", styles.Active.Render(fmt.Sprintf("%d", m.Stats.Inflight))),
		MakeCard("Target", styles.Subtle.Render(target)),
	)
	s.WriteString(row1)
	s.WriteString("\n")

	// Row 2: Latency Percentiles
	row2 := lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("P50 Latency", styles.Text.Render(fmt.Sprintf("%.1f ms", m.Stats.P50ServiceMs))),
		MakeCard("P90 Latency", styles.Warn.Render(fmt.Sprintf("%.1f ms", m.Stats.P90ServiceMs))),
		MakeCard("P99 Latency", styles.Error.Render(fmt.Sprintf("%.1f ms", m.Stats.P99ServiceMs))),
		MakeCard("Max Latency", styles.Text.Render(fmt.Sprintf("%d ms", m.Stats.MaxServiceMs))),
	)
	s.WriteString(row2)
	s.WriteString("\n")

	errColor := styles.Text
	if m.Stats.Fail > 0 {
		errColor = styles.Error
	}
	row3 := lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Mean Latency", styles.Text.Render(fmt.Sprintf("%.1f ms", m.Stats.MeanServiceMs))),
		MakeCard("Success", styles.Success.Render(fmt.Sprintf("%d", m.Stats.Success))),
		MakeCard("Errors", errColor.Render(fmt.Sprintf("%d (%.1f%%)", m.Stats.Fail, m.Stats.ErrorRate))),
	)
	s.WriteString(row3)
	s.WriteString("\n\n")

	s.WriteString(m.QPS.View())
	s.WriteString("\n")
	s.WriteString(m.P99.View())
	s.WriteString("\n")

	content := styles.Panel.Width(max(m.Width-6, 0)).Render(s.String())
	m.Viewport.SetContent(content)

	return m.Viewport.View()
}

func MakeCard(title, value string) string {
	return styles.Box.Width(18).Align(lipgloss.Center).Render(
		fmt.Sprintf("%s\n%s", styles.Subtle.Render(title), value),
	)
}

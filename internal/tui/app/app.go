package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sqlstress/internal/pool"
	"sqlstress/internal/runner"
	"sqlstress/internal/tui/styles"
	"sqlstress/internal/tui/views"
)

type ClearStatusMsg struct{}

func clearStatusCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(_ time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

// View Enum
type ViewID int

const (
	ViewRunner ViewID = iota
	ViewDashboard
	ViewResult
)

type StatsMsg runner.StatsSnapshot

// RunDoneMsg carries the outcome of a finished (or stopped) run.
type RunDoneMsg struct {
	Result *runner.Result
	Err    error
}

// ConnectionMsg carries the outcome of a connection test.
type ConnectionMsg pool.ConnectionStatus

type Model struct {
	Provider pool.Provider
	Defaults runner.Config
	Target   string
	Logger   *slog.Logger
	Updates  runner.StatsUpdateChan

	// Core State
	RunActive  bool
	RunCancel  context.CancelFunc
	LastResult *runner.Result
	ExportDir  string

	// Layout
	Width  int
	Height int

	CurrentView ViewID
	MenuItems   []string

	RunnerView views.RunnerView
	DashView   views.DashboardView
	ResultView views.ResultView

	// Feedback
	StatusMsg string
}

func NewModel(provider pool.Provider, defaults runner.Config, target string, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	return Model{
		Provider:    provider,
		Defaults:    defaults.Normalize(),
		Target:      target,
		Logger:      logger,
		Updates:     make(runner.StatsUpdateChan, 10),
		ExportDir:   ".",
		CurrentView: ViewRunner,
		MenuItems:   []string{"[1] Run", "[2] Dashboard", "[3] Result"},
		RunnerView:  views.NewRunnerView(defaults),
		DashView:    views.NewDashboardView(defaults, 0, 0),
		ResultView:  views.NewResultView(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.RunnerView.Init(),
		waitForUpdate(m.Updates),
	)
}

func waitForUpdate(sub runner.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		return StatsMsg(<-sub)
	}
}

func (m *Model) setStatus(format string, args ...any) tea.Cmd {
	m.StatusMsg = fmt.Sprintf(format, args...)
	return clearStatusCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case ClearStatusMsg:
		m.StatusMsg = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q":
			if m.RunCancel != nil {
				m.RunCancel()
			}
			return m, tea.Quit

		case "ctrl+right":
			m.CurrentView = (m.CurrentView + 1) % 3
			return m, nil
		case "ctrl+left":
			m.CurrentView = (m.CurrentView + 2) % 3
			return m, nil

		case "ctrl+r":
			if m.RunActive {
				return m, m.setStatus("A run is already in progress.")
			}
			return m, m.startRun(m.RunnerView.GetConfig())

		case "ctrl+s":
			if m.RunActive && m.RunCancel != nil {
				m.RunCancel()
				return m, m.setStatus("Stopping run, waiting for in-flight calls...")
			}
			return m, nil

		case "ctrl+e":
			return m, m.setStatus("%s", pool.EvictIdleConnections(m.Provider))

		case "ctrl+t":
			return m, testConnection(m.Provider)

		case "ctrl+p":
			line, err := ExportResult(m.LastResult, m.ExportDir, time.Now())
			if err != nil {
				return m, m.setStatus("Export Failed: %v", err)
			}
			return m, m.setStatus("%s", line)
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		content := tea.WindowSizeMsg{Width: m.Width, Height: m.Height - 7}

		m.RunnerView, _ = m.RunnerView.Update(content)
		m.DashView, _ = m.DashView.Update(content)
		m.ResultView, _ = m.ResultView.Update(content)
		return m, nil

	case StatsMsg:
		var c tea.Cmd
		m.DashView, c = m.DashView.Update(runner.StatsSnapshot(msg))
		cmds = append(cmds, c, waitForUpdate(m.Updates))
		return m, tea.Batch(cmds...)

	case RunDoneMsg:
		m.RunActive = false
		if m.RunCancel != nil {
			m.RunCancel()
			m.RunCancel = nil
		}
		m.DashView.Finished = true
		if msg.Result != nil {
			m.LastResult = msg.Result
		}
		m.ResultView.SetResult(msg.Result, msg.Err)
		m.CurrentView = ViewResult
		if msg.Err != nil {
			m.Logger.Error("run failed", "error", msg.Err)
			return m, m.setStatus("Run failed: %v", msg.Err)
		}
		return m, m.setStatus("Run %s finished: %d ok, %d errors.", msg.Result.ID, msg.Result.SuccessCount, msg.Result.ErrorCount)

	case ConnectionMsg:
		if msg.OK {
			return m, m.setStatus("%s (%s, %s)", msg.Message, msg.Product, msg.Latency.Round(time.Millisecond))
		}
		if msg.Hint != "" {
			return m, m.setStatus("Connection failed: %s. Hint: %s", msg.Message, msg.Hint)
		}
		return m, m.setStatus("Connection failed: %s", msg.Message)
	}

	// Forward everything else (keys, blink, progress frames) to the active view.
	var defaultCmd tea.Cmd
	switch m.CurrentView {
	case ViewRunner:
		m.RunnerView, defaultCmd = m.RunnerView.Update(msg)
	case ViewDashboard:
		m.DashView, defaultCmd = m.DashView.Update(msg)
	case ViewResult:
		m.ResultView, defaultCmd = m.ResultView.Update(msg)
	}
	cmds = append(cmds, defaultCmd)

	return m, tea.Batch(cmds...)
}

// startRun swaps in a fresh dashboard and returns the command that executes
// the run. The command's message arrives once every worker has returned.
func (m *Model) startRun(cfg runner.Config) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.RunCancel = cancel
	m.RunActive = true

	m.DashView = views.NewDashboardView(cfg, m.Width, m.Height-7)
	m.CurrentView = ViewDashboard

	r := runner.NewRunner(cfg, m.Provider, m.Updates)
	r.Logger = m.Logger
	return func() tea.Msg {
		res, err := r.Run(ctx)
		return RunDoneMsg{Result: res, Err: err}
	}
}

func testConnection(p pool.Provider) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return ConnectionMsg(pool.TestConnection(ctx, p))
	}
}

func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	nav := strings.Builder{}
	for i, item := range m.MenuItems {
		if ViewID(i) == m.CurrentView {
			nav.WriteString(styles.TabActive.Render(item))
		} else {
			nav.WriteString(styles.TabBase.Render(item))
		}
	}
	if m.Target != "" {
		nav.WriteString(styles.Subtle.Render("  " + m.Target))
	}
	navBar := styles.FooterBase.Width(m.Width).Render(nav.String())

	contentStr := ""
	switch m.CurrentView {
	case ViewRunner:
		contentStr = m.RunnerView.View()
	case ViewDashboard:
		contentStr = m.DashView.View()
	case ViewResult:
		contentStr = m.ResultView.View()
	}

	content := styles.Panel.Width(m.Width - 2).Height(m.Height - 6).Render(contentStr)

	// Row 1: Navigation
	keys1 := []string{
		styles.RenderKey("Ctrl+<->", "View"),
		styles.RenderKey("Tab", "Field"),
		styles.RenderKey("Space", "Toggle"),
	}

	// Row 2: Actions
	keys2 := []string{
		styles.RenderKey("Ctrl+R", "Run"),
		styles.RenderKey("Ctrl+S", "Stop"),
		styles.RenderKey("Ctrl+E", "Evict"),
		styles.RenderKey("Ctrl+T", "Test"),
		styles.RenderKey("Ctrl+P", "Export"),
		styles.RenderKey("Ctrl+Q", "Quit"),
	}

	helpRow1 := styles.FooterBase.Width(m.Width).Render(strings.Join(keys1, "   "))
	helpRow2 := styles.FooterBase.Width(m.Width).Render(strings.Join(keys2, "   "))
	footer := lipgloss.JoinVertical(lipgloss.Left, helpRow1, helpRow2)

	if m.StatusMsg != "" {
		status := styles.Status.Render(m.StatusMsg)
		return lipgloss.JoinVertical(lipgloss.Left, navBar, content, status, footer)
	}

	return lipgloss.JoinVertical(lipgloss.Left, navBar, content, footer)
}

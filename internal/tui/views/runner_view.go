package views

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sqlstress/internal/runner"
	"sqlstress/internal/tui/styles"
)

// Field Indices
const (
	FieldSQL = iota
	FieldIterations
	FieldConcurrency
	FieldDelay
	FieldTimeout
	FieldMode
	FieldMaxRows
	FieldRate
	FieldTemplated
	fieldCount
)

// RunnerView is the form for configuring a run.
type RunnerView struct {
	Inputs []textinput.Model
	SQL    textarea.Model
	Focus  int

	Viewport viewport.Model

	Width  int
	Height int
}

func (m RunnerView) GetHelp() string {
	switch m.Focus {
	case FieldSQL:
		return "The SQL statement executed on every iteration.\nStatements starting with SELECT or WITH are read as queries, everything else is executed as a statement.\n\nNavigation:\n• [Tab] Next Field\n• [Arrows] Line navigation"
	case FieldIterations:
		return "Total number of executions across all workers."
	case FieldConcurrency:
		return "Number of workers running in parallel.\nEach worker checks a connection out of the pool per iteration."
	case FieldDelay:
		return "Pause (ms) before each iteration, per worker."
	case FieldTimeout:
		return "Per-call timeout (s).\nCovers waiting for a pooled connection and running the statement."
	case FieldMode:
		return "What to keep from query results.\n• [none]: Read and discard rows.\n• [scalar]: First column of the first row.\n• [rows]: Whole rows, up to Max Rows for the run.\n\nPress [Space] to cycle."
	case FieldMaxRows:
		return "Upper bound on sample rows kept for the whole run."
	case FieldRate:
		return "Optional global pacing in queries per second.\n0 runs as fast as the workers allow."
	case FieldTemplated:
		return "Render the SQL as a template per iteration.\n\nVariables:\n• {{iteration}}: 0-based iteration number.\n• {{worker}}: Worker index.\n• {{uuid}}: A fresh random UUID.\n\nFunctions: randomInt, randomChoice, randomLine, quote.\n\nPress [Space] to toggle."
	}
	return ""
}

func NewRunnerView(initialCfg runner.Config) RunnerView {
	cfg := initialCfg.Normalize()
	inputs := make([]textinput.Model, fieldCount)

	// Base settings for all inputs
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].PromptStyle = styles.Subtle
		inputs[i].TextStyle = styles.Text
		inputs[i].Width = 10
	}

	inputs[FieldIterations].Prompt = "Iterations: "
	inputs[FieldIterations].SetValue(strconv.Itoa(cfg.Iterations))

	inputs[FieldConcurrency].Prompt = "Concurrency: "
	inputs[FieldConcurrency].SetValue(strconv.Itoa(cfg.Concurrency))

	inputs[FieldDelay].Prompt = "Delay (ms): "
	inputs[FieldDelay].SetValue(strconv.Itoa(cfg.DelayMs))

	inputs[FieldTimeout].Prompt = "Timeout (s): "
	inputs[FieldTimeout].SetValue(strconv.Itoa(cfg.TimeoutSec))

	inputs[FieldMode].Prompt = "Result Mode (Space): "
	inputs[FieldMode].SetValue(cfg.ResultMode.String())

	inputs[FieldMaxRows].Prompt = "Max Rows: "
	inputs[FieldMaxRows].SetValue(strconv.Itoa(cfg.MaxRows))

	inputs[FieldRate].Prompt = "Rate (q/s): "
	inputs[FieldRate].SetValue(strconv.FormatFloat(cfg.TargetRate, 'f', -1, 64))

	inputs[FieldTemplated].Prompt = "Templated (Space): "
	inputs[FieldTemplated].SetValue(strconv.FormatBool(cfg.Templated))

	sqlArea := textarea.New()
	sqlArea.Placeholder = "SELECT ..."
	sqlArea.SetValue(cfg.SQL)
	sqlArea.SetWidth(50)
	sqlArea.SetHeight(6)
	sqlArea.Prompt = ""
	sqlArea.Focus()

	return RunnerView{
		Inputs:   inputs,
		SQL:      sqlArea,
		Focus:    FieldSQL,
		Viewport: viewport.New(0, 0),
	}
}

func (m RunnerView) Init() tea.Cmd {
	return textarea.Blink
}

func (m RunnerView) Update(msg tea.Msg) (RunnerView, tea.Cmd) {
	var cmds []tea.Cmd

	// Handle Navigation & Toggles
	isNav := false
	dir := 0

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "ctrl+n":
			isNav, dir = true, 1
		case "shift+tab":
			isNav, dir = true, -1
		case "down", "enter":
			if m.Focus != FieldSQL {
				isNav, dir = true, 1
			}
		case "up":
			if m.Focus != FieldSQL {
				isNav, dir = true, -1
			}
		case " ":
			switch m.Focus {
			case FieldMode:
				mode, _ := runner.ParseResultMode(m.Inputs[FieldMode].Value())
				m.Inputs[FieldMode].SetValue(((mode + 1) % 3).String())
				return m, nil
			case FieldTemplated:
				on, _ := strconv.ParseBool(m.Inputs[FieldTemplated].Value())
				m.Inputs[FieldTemplated].SetValue(strconv.FormatBool(!on))
				return m, nil
			}
		}
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Viewport.Width = msg.Width - 4
		m.Viewport.Height = msg.Height - 8
	}

	if isNav {
		m.Focus = (m.Focus + dir + fieldCount) % fieldCount
		newM, cmd := m.focusCmd()
		m = newM
		cmds = append(cmds, cmd)
	} else if m.Focus == FieldSQL {
		var cmd tea.Cmd
		m.SQL, cmd = m.SQL.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		var cmd tea.Cmd
		m.Inputs[m.Focus], cmd = m.Inputs[m.Focus].Update(msg)
		cmds = append(cmds, cmd)
	}

	var vpCmd tea.Cmd
	m.Viewport, vpCmd = m.Viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

func (m RunnerView) focusCmd() (RunnerView, tea.Cmd) {
	cmds := make([]tea.Cmd, 0)
	for i := 1; i < len(m.Inputs); i++ {
		if i == m.Focus {
			cmds = append(cmds, m.Inputs[i].Focus())
			m.Inputs[i].PromptStyle = styles.Active
			m.Inputs[i].TextStyle = styles.Text
		} else {
			m.Inputs[i].Blur()
			m.Inputs[i].PromptStyle = styles.Subtle
			m.Inputs[i].TextStyle = styles.Subtle
		}
	}

	if m.Focus == FieldSQL {
		cmds = append(cmds, m.SQL.Focus())
	} else {
		m.SQL.Blur()
	}

	return m, tea.Batch(cmds...)
}

func (m RunnerView) renderInput(idx int) string {
	style := styles.InputNormal
	if idx == m.Focus {
		style = styles.InputActive
	}
	if idx == FieldSQL {
		return style.Render("SQL:\n" + m.SQL.View())
	}
	return style.Render(m.Inputs[idx].View())
}

func (m RunnerView) View() string {
	inputCol := strings.Builder{}
	inputCol.WriteString("\n")
	inputCol.WriteString(m.renderInput(FieldSQL))
	inputCol.WriteString("\n")

	pairs := [][2]int{
		{FieldIterations, FieldConcurrency},
		{FieldDelay, FieldTimeout},
		{FieldMode, FieldMaxRows},
		{FieldRate, FieldTemplated},
	}
	for _, p := range pairs {
		inputCol.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.renderInput(p[0]), "  ", m.renderInput(p[1])))
		inputCol.WriteString("\n")
	}

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.ColorBorder).
		Padding(1, 2).
		Width(45).
		Height(15)

	helpCol := strings.Builder{}
	helpCol.WriteString(styles.Subtle.Bold(true).Render("Information"))
	helpCol.WriteString("\n\n")
	helpCol.WriteString(styles.Text.Foreground(styles.ColorSecondary).Render(m.GetHelp()))

	mainRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(60).Render(inputCol.String()),
		helpBox.Render(helpCol.String()),
	)

	m.Viewport.SetContent(mainRow)
	return m.Viewport.View()
}

// GetConfig reads the form. Unparsable numbers become zero and are clamped.
func (m RunnerView) GetConfig() runner.Config {
	atoi := func(idx int) int {
		v, _ := strconv.Atoi(strings.TrimSpace(m.Inputs[idx].Value()))
		return v
	}
	mode, _ := runner.ParseResultMode(m.Inputs[FieldMode].Value())
	rate, _ := strconv.ParseFloat(strings.TrimSpace(m.Inputs[FieldRate].Value()), 64)
	templated, _ := strconv.ParseBool(m.Inputs[FieldTemplated].Value())

	return runner.Config{
		SQL:         m.SQL.Value(),
		Iterations:  atoi(FieldIterations),
		Concurrency: atoi(FieldConcurrency),
		DelayMs:     atoi(FieldDelay),
		TimeoutSec:  atoi(FieldTimeout),
		ResultMode:  mode,
		MaxRows:     atoi(FieldMaxRows),
		TargetRate:  rate,
		Templated:   templated,
	}.Normalize()
}

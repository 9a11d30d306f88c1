package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type connectDoneMsg struct {
	err error
}

type connectSpinnerModel struct {
	spinner spinner.Model
	label   string
	connect tea.Cmd
	started time.Time
	elapsed time.Duration
	err     error
	done    bool
}

func newConnectSpinnerModel(label string, connect tea.Cmd) connectSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return connectSpinnerModel{
		spinner: s,
		label:   label,
		connect: connect,
		started: time.Now(),
	}
}

func (m connectSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connect)
}

func (m connectSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.elapsed = time.Since(m.started)
		return m, cmd
	case connectDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m connectSpinnerModel) View() string {
	if m.done {
		return ""
	}

	if m.elapsed < time.Second {
		return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
	}

	return fmt.Sprintf("%s %s %s", m.spinner.View(), m.label, m.elapsed.Truncate(time.Second))
}

// runConnectSpinner shows label on output while connect runs and returns its error.
func runConnectSpinner(ctx context.Context, output io.Writer, label string, connect func(context.Context) error) error {
	connectCmd := func() tea.Msg {
		return connectDoneMsg{err: connect(ctx)}
	}

	p := tea.NewProgram(
		newConnectSpinnerModel(label, connectCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(connectSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}

// withProgress runs connect behind a spinner when output is an interactive
// terminal and directly otherwise.
func withProgress(ctx context.Context, output io.Writer, label string, connect func(context.Context) error) error {
	if f, ok := output.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return runConnectSpinner(ctx, output, label, connect)
	}

	return connect(ctx)
}

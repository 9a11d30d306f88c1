package status

import (
	"errors"
	"io"

	"github.com/bnema/tempvc/internal/application"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type snapshotLoadedMsg struct {
	snapshot application.Snapshot
}

// snapshotModel renders once when its snapshot arrives and quits.
type snapshotModel struct {
	pending *application.Snapshot
	opts    RenderOptions
	styles  styles
	frame   string
}

func (m snapshotModel) Init() tea.Cmd {
	snapshot := *m.pending
	return func() tea.Msg {
		return snapshotLoadedMsg{snapshot: snapshot}
	}
}

func (m snapshotModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	loaded, ok := msg.(snapshotLoadedMsg)
	if !ok {
		return m, nil
	}

	m.pending = nil
	m.frame = renderView(loaded.snapshot, m.opts, m.styles)
	return m, tea.Quit
}

func (m snapshotModel) View() string {
	return m.frame
}

// Render draws snapshot through a headless bubbletea program and returns the
// final frame.
func Render(snapshot application.Snapshot, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		snapshotModel{pending: &snapshot, opts: opts, styles: newStyles()},
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutSignalHandler(),
	)

	final, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := final.(snapshotModel)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}

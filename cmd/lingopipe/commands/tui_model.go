package commands

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lingopipe/lingopipe/pkg/cli"
	"github.com/lingopipe/lingopipe/pkg/session"
)

// runModel is the bubbletea model for the live interpreter view.
type runModel struct {
	ctrl  *session.Controller
	title string

	// Content buffers
	turnLines []string
	logLines  []string

	sourcePartial string
	targetPartial string
	status        session.Status
	sessionStart  time.Time

	// Log writer for capturing log output
	logWriter *cli.LogWriter

	// UI
	styles cli.Styles
	width  int
	height int

	quitting bool
}

func newRunModel(ctrl *session.Controller, logWriter *cli.LogWriter, title string) runModel {
	return runModel{
		ctrl:      ctrl,
		title:     title,
		logWriter: logWriter,
		styles:    cli.NewStyles(cli.DefaultTheme),
	}
}

// logMsg wraps captured log lines for bubbletea.
type logMsg string

// tickMsg drives periodic snapshots of the controller state.
type tickMsg time.Time

// startedMsg reports the outcome of an async session start.
type startedMsg struct{ err error }

// Init starts the session immediately and begins the refresh loop.
func (m runModel) Init() tea.Cmd {
	return tea.Batch(
		m.startSession(),
		m.listenLogs(),
		m.tick(),
	)
}

func (m runModel) startSession() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: m.ctrl.Start(context.Background())}
	}
}

func (m runModel) listenLogs() tea.Cmd {
	return func() tea.Msg {
		line, ok := <-m.logWriter.Channel()
		if !ok {
			return nil
		}
		return logMsg(line)
	}
}

func (m runModel) tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			m.ctrl.Stop()
			return m, tea.Quit
		case tea.KeySpace:
			cmds = append(cmds, m.toggleSession())
		case tea.KeyRunes:
			if len(msg.Runes) == 1 && msg.Runes[0] == 'q' {
				m.quitting = true
				m.ctrl.Stop()
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case startedMsg:
		if msg.err == nil {
			m.sessionStart = time.Now()
		}
		// Failures surface through the status/partials snapshot.

	case logMsg:
		m.logLines = append(m.logLines, string(msg))
		if len(m.logLines) > 50 {
			m.logLines = m.logLines[len(m.logLines)-50:]
		}
		cmds = append(cmds, m.listenLogs())

	case tickMsg:
		m.snapshot()
		cmds = append(cmds, m.tick())
	}

	return m, tea.Batch(cmds...)
}

// toggleSession starts or stops depending on the current status.
func (m *runModel) toggleSession() tea.Cmd {
	switch m.ctrl.Status() {
	case session.StatusConnecting, session.StatusListening:
		m.ctrl.Stop()
		return nil
	default:
		return m.startSession()
	}
}

// snapshot pulls the controller's current view state.
func (m *runModel) snapshot() {
	m.status = m.ctrl.Status()
	m.sourcePartial, m.targetPartial = m.ctrl.Partials()

	turns := m.ctrl.Turns()
	m.turnLines = m.turnLines[:0]
	for i, turn := range turns {
		m.turnLines = append(m.turnLines, fmt.Sprintf("%d. %s", i+1, turn.Source))
		m.turnLines = append(m.turnLines, fmt.Sprintf("   %s", turn.Target))
	}
}

// View renders the UI.
func (m runModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var elapsed time.Duration
	if m.status == session.StatusListening && !m.sessionStart.IsZero() {
		elapsed = time.Since(m.sessionStart)
	}

	screen := cli.Screen{
		Styles:  m.styles,
		Title:   m.title,
		Status:  m.status.String(),
		Elapsed: elapsed,
		Sections: []cli.Section{
			{Label: "🎙 Source", Content: func() []string { return []string{m.sourcePartial} }},
			{Label: "🔊 Target", Content: func() []string { return []string{m.targetPartial} }},
			{Label: "📜 Turns", Content: func() []string { return m.turnLines }},
			{Label: "📋 Log", Content: func() []string { return m.logLines }},
		},
		Help: "space=start/stop  |  q/Ctrl+C=quit",
	}

	return screen.Render(m.width, m.height)
}

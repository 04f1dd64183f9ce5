// Package tui provides a Bubble Tea terminal user interface for blastdbget.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brwnj/blastdbget/internal/app"
	"github.com/brwnj/blastdbget/internal/config"
	"github.com/brwnj/blastdbget/internal/download"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	dbStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F8B500"))
)

// maxLogs is how many progress lines stay on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateRunning
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logger    *slog.Logger
	logs      []LogEntry
	result    *app.Result
	err       error

	// Run context
	ctx    context.Context
	cancel context.CancelFunc

	runner *app.Runner
	events chan download.ProgressEvent

	// Pipeline progress
	finished int32
	failed   int32
	total    int32

	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model. settings is copied per run, so toggles
// made in the UI never leak back to the caller.
func NewModel(settings *config.Settings, logger *slog.Logger) Model {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ti := textinput.New()
	ti.Placeholder = "nr nt refseq_protein"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	s := *settings
	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  &s,
		logger:    logger,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg carries one pipeline progress event.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// RunDoneMsg is sent when the run returns.
	RunDoneMsg struct {
		Result *app.Result
		Err    error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateRunning {
				m.cancel()
				m.addLog(LogEntry{Message: "Cancelling, waiting for workers to stop", Level: download.LevelWarning})
			}

		case "enter":
			if m.state == StateInput {
				m.state = StateRunning
				run := m.startRun()
				return m, tea.Batch(run, m.spinner.Tick, m.tickProgress())
			}

		case "ctrl+t":
			if m.state == StateInput {
				m.settings.IncludeTaxonomy = !m.settings.IncludeTaxonomy
			}

		case "ctrl+r":
			if m.state == StateInput {
				m.settings.KeepArchives = !m.settings.KeepArchives
			}

		case "ctrl+x":
			if m.state == StateInput {
				m.settings.SkipCheck = !m.settings.SkipCheck
			}

		case "ctrl+o":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for a new run
				m.state = StateInput
				m.logs = nil
				m.result = nil
				m.err = nil
				m.finished, m.failed, m.total = 0, 0, 0
				m.runner = nil
				m.events = nil
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
				return m, nil
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		m.addLog(LogEntry{Message: msg.Event.Message, Level: msg.Event.Level})

	case RunDoneMsg:
		m.drainEvents()
		m.result = msg.Result
		if m.runner != nil {
			m.finished, m.failed, m.total = m.runner.Progress()
		}
		switch {
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = errors.New("cancelled by user")
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.state == StateRunning {
			m.drainEvents()
			if m.runner != nil {
				m.finished, m.failed, m.total = m.runner.Progress()
			}
			cmds = append(cmds, m.progress.SetPercent(m.percent()), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) addLog(entry LogEntry) {
	if entry.Level == download.LevelVerbose && !m.verbose {
		return
	}
	m.logs = append(m.logs, entry)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// drainEvents moves queued progress events into the log without blocking.
func (m *Model) drainEvents() {
	if m.events == nil {
		return
	}
	for {
		select {
		case e := <-m.events:
			m.addLog(LogEntry{Message: e.Message, Level: e.Level})
		default:
			return
		}
	}
}

func (m Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.finished) / float64(m.total)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("blastdbget"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Fetch BLAST databases from %s/%s", m.settings.Host, m.settings.RemoteDir)))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateRunning:
		b.WriteString(m.viewRunning())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Databases (space or comma separated, empty to list):"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Include %s (ctrl+t)\n", checkbox(m.settings.IncludeTaxonomy), m.settings.TaxonomyDB))
	b.WriteString(fmt.Sprintf("  %s Keep archives (ctrl+r)\n", checkbox(m.settings.KeepArchives)))
	b.WriteString(fmt.Sprintf("  %s Skip %s (ctrl+x)\n", checkbox(m.settings.SkipCheck), m.settings.CheckTool))
	b.WriteString(fmt.Sprintf("  %s Verbose output (ctrl+o)\n", checkbox(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output: %s | Workers: %d", m.settings.OutputDir, m.settings.Workers)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewRunning() string {
	var b strings.Builder

	if m.total == 0 {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(subtitleStyle.Render("Communicating with BLAST server..."))
		b.WriteString("\n\n")
	} else {
		b.WriteString(m.progress.ViewAs(m.percent()))
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(fmt.Sprintf("Archives: %d/%d | Failed: %d", m.finished, m.total, m.failed)))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	var lines []string
	lines = append(lines, "Process complete!", "")
	if m.result != nil {
		lines = append(lines,
			fmt.Sprintf("Output: %s", m.result.OutputDir),
			fmt.Sprintf("Archives: %d", len(m.result.Archives)))
		for _, r := range m.result.Report.Results {
			lines = append(lines, fmt.Sprintf("  %s %s", checkbox(r.OK()), r.Database))
		}
	}
	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	var none *app.NoDatabasesError
	if errors.As(m.err, &none) {
		b.WriteString(subtitleStyle.Render("Set a database from the available list:"))
		b.WriteString("\n\n")
		for _, name := range none.Available {
			b.WriteString(dbStyle.Render("  " + name))
			b.WriteString("\n")
		}
		return b.String()
	}

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
		b.WriteString("\n")
		if app.IsPrecondition(m.err) {
			b.WriteString("\n")
			b.WriteString(dimStyle.Render("  Nothing was downloaded. Press r to change the selection."))
			b.WriteString("\n")
		}
	}
	if m.total > 0 {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(fmt.Sprintf("Archives: %d/%d | Failed: %d", m.finished, m.total, m.failed)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+t: taxonomy • ctrl+r: keep archives • ctrl+x: skip check • ctrl+o: verbose • esc: quit"
	case StateRunning:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new run • q: quit"
	}
	return ""
}

// ParseDatabases splits user input on commas and whitespace.
func ParseDatabases(input string) []string {
	return strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// startRun creates the runner and runs it in the background. Progress
// events are buffered and picked up on each tick; when the buffer is full
// the oldest events are dropped rather than stalling the workers.
func (m *Model) startRun() tea.Cmd {
	settings := *m.settings
	databases := ParseDatabases(m.textInput.Value())

	runner := app.NewRunner(&settings, m.logger)
	events := make(chan download.ProgressEvent, 256)
	m.runner = runner
	m.events = events
	ctx := m.ctx

	return func() tea.Msg {
		res, err := runner.Run(ctx, databases, func(e download.ProgressEvent) {
			for {
				select {
				case events <- e:
					return
				default:
				}
				select {
				case <-events:
				default:
				}
			}
		})
		return RunDoneMsg{Result: res, Err: err}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings, logger *slog.Logger) error {
	p := tea.NewProgram(NewModel(settings, logger), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

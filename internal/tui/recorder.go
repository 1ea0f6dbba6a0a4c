// Package tui renders a small live status view while a recording runs:
// elapsed time, session counters and the progress of the animated export.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// --- Tea Messages ---

// ElapsedMsg carries the formatted recording time.
type ElapsedMsg struct{ Elapsed string }

// CountersMsg carries the buffered session sizes.
type CountersMsg struct {
	Frames int
	Chunks int
}

// PhaseMsg announces a lifecycle change, e.g. "recording" or "exporting gif".
type PhaseMsg struct{ Phase string }

// ProgressMsg reports animated export progress in percent.
type ProgressMsg struct{ Percent int }

// ArtifactMsg records a finished export.
type ArtifactMsg struct{ Path string }

// DoneMsg ends the program.
type DoneMsg struct{ Err error }

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	recStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

const (
	defaultBar  = 40
	minBarWidth = 10
)

// Options configure the model.
type Options struct {
	Title string
	// OnStop is invoked once when the user asks to stop recording. The
	// program keeps running until DoneMsg so export progress stays visible.
	OnStop func()
}

// Model is the recording status view.
type Model struct {
	title     string
	onStop    func()
	bar       progress.Model
	phase     string
	elapsed   string
	frames    int
	chunks    int
	percent   int
	artifacts []string
	stopping  bool
	done      bool
	err       error
}

// New builds a model in the recording phase.
func New(opts Options) Model {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "fractalcap"
	}
	return Model{
		title:   title,
		onStop:  opts.OnStop,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBar)),
		phase:   "recording",
		elapsed: "0:00",
	}
}

// NewProgram wires the model to out without claiming stdin for anything but keys.
func NewProgram(m Model, in io.Reader, out io.Writer) *tea.Program {
	return tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out))
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.stopping {
				m.done = true
				return m, tea.Quit
			}
			return m.requestStop(), nil
		case "q", "esc":
			return m.requestStop(), nil
		}
	case tea.WindowSizeMsg:
		width := msg.Width - 4
		if width > defaultBar {
			width = defaultBar
		}
		if width < minBarWidth {
			width = minBarWidth
		}
		m.bar.Width = width
	case ElapsedMsg:
		m.elapsed = msg.Elapsed
	case CountersMsg:
		m.frames, m.chunks = msg.Frames, msg.Chunks
	case PhaseMsg:
		m.phase = msg.Phase
		m.percent = 0
	case ProgressMsg:
		m.percent = clampPercent(msg.Percent)
	case ArtifactMsg:
		m.artifacts = append(m.artifacts, msg.Path)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) requestStop() Model {
	if m.stopping {
		return m
	}
	m.stopping = true
	if m.phase == "recording" {
		m.phase = "stopping"
	}
	if m.onStop != nil {
		m.onStop()
	}
	return m
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	phase := m.phase
	if phase == "recording" {
		phase = recStyle.Render("● REC")
	}
	fmt.Fprintf(&b, "%s %s  %s %s\n", labelStyle.Render("state:"), phase, labelStyle.Render("elapsed:"), m.elapsed)
	fmt.Fprintf(&b, "%s %d  %s %d\n", labelStyle.Render("frames:"), m.frames, labelStyle.Render("chunks:"), m.chunks)

	if strings.HasPrefix(m.phase, "exporting") {
		b.WriteString("\n")
		b.WriteString(m.bar.ViewAs(float64(m.percent) / 100))
		b.WriteString("\n")
	}
	for _, path := range m.artifacts {
		fmt.Fprintf(&b, "%s %s\n", okStyle.Render("saved"), path)
	}
	if m.err != nil {
		fmt.Fprintf(&b, "%s %v\n", errStyle.Render("error"), m.err)
	}
	if !m.done {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q: stop recording  ctrl+c twice: quit"))
		b.WriteString("\n")
	}
	return b.String()
}

// Stopping reports whether the user asked to stop.
func (m Model) Stopping() bool { return m.stopping }

// Percent reports the last export progress.
func (m Model) Percent() int { return m.percent }

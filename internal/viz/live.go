package viz

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/bubblechamber/internal/experiment"
)

// ErrAborted is returned by Run when the user quits before the run settles.
var ErrAborted = errors.New("viz: run aborted")

const (
	DefaultFPS           = 30
	DefaultStepsPerFrame = 4
	maxStepsPerFrame     = 256
	historyCapacity      = 600
	sparkWidth           = 32
)

type TickMsg time.Time

type LiveOptions struct {
	FPS           int
	StepsPerFrame int
	Theme         string
}

func DefaultLiveOptions() LiveOptions {
	return LiveOptions{
		FPS:           DefaultFPS,
		StepsPerFrame: DefaultStepsPerFrame,
		Theme:         ThemeInk.Name,
	}
}

// Model steps an experiment on every tick and shows the trails drawn so far
// next to a stats panel.
type Model struct {
	exp           *experiment.Experiment
	out           *TerminalRenderer
	theme         Theme
	st            styles
	fps           int
	stepsPerFrame int
	running       bool
	frame         int
	total         int
	history       []float64
	result        *experiment.Result
	err           error
	aborted       bool
}

// NewModel wires a model to exp. out must be one of the experiment's
// renderers so it sees every step.
func NewModel(exp *experiment.Experiment, out *TerminalRenderer, opts LiveOptions) Model {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.StepsPerFrame <= 0 {
		opts.StepsPerFrame = DefaultStepsPerFrame
	}
	theme := GetTheme(opts.Theme)
	return Model{
		exp:           exp,
		out:           out,
		theme:         theme,
		st:            newStyles(theme),
		fps:           opts.FPS,
		stepsPerFrame: opts.StepsPerFrame,
		running:       true,
		total:         exp.Simulation().Len(),
		history:       make([]float64, 0, historyCapacity),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	if err := m.exp.Begin(); err != nil {
		return func() tea.Msg { return errMsg{err} }
	}
	return m.tick()
}

type errMsg struct{ err error }

// Update handles input events and advances the run.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case errMsg:
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "+", "=":
			m.stepsPerFrame = min(m.stepsPerFrame*2, maxStepsPerFrame)
		case "-", "_":
			m.stepsPerFrame = max(m.stepsPerFrame/2, 1)
		case "t":
			m.theme = NextTheme(m.theme)
			m.st = newStyles(m.theme)
		}
	case TickMsg:
		m.frame++
		if !m.running {
			return m, m.tick()
		}
		if done := m.advance(); done {
			return m, tea.Quit
		}
		return m, m.tick()
	}
	return m, nil
}

// advance runs up to stepsPerFrame steps and reports whether the program
// should exit.
func (m *Model) advance() bool {
	maxSteps := m.exp.Config().MaxSteps
	s := m.exp.Simulation()
	for i := 0; i < m.stepsPerFrame; i++ {
		capped := maxSteps > 0 && s.StepCount() >= maxSteps
		if !s.Active() || capped {
			m.result, m.err = m.exp.Finish()
			return true
		}
		if _, err := m.exp.Advance(); err != nil {
			m.err = err
			return true
		}
		m.record(float64(s.ActiveCount()))
	}
	return false
}

func (m *Model) record(active float64) {
	if len(m.history) == historyCapacity {
		copy(m.history, m.history[1:])
		m.history = m.history[:historyCapacity-1]
	}
	m.history = append(m.history, active)
}

func (m Model) View() string {
	canvas := lipgloss.NewStyle().Padding(1, 2).Render(
		m.out.View(m.st.trail, lipgloss.NewStyle().Foreground(m.theme.Grid)),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, canvas, m.stats())
}

func (m Model) stats() string {
	s := m.exp.Simulation()
	cfg := m.exp.Config()

	status := m.st.running.Render(AnimatedSpinner(m.frame) + " running")
	switch {
	case m.result != nil && m.result.Truncated:
		status = m.st.paused.Render("■ capped at max steps")
	case m.out.Finished():
		status = m.st.done.Render("● settled")
	case !m.running:
		status = m.st.paused.Render("⏸ paused")
	}

	row := func(label, value string) string {
		return m.st.label.Width(10).Render(label) + m.st.value.Render(value)
	}
	active := s.ActiveCount()
	settled := 0.0
	if m.total > 0 {
		settled = 1 - float64(active)/float64(m.total)
	}

	lines := []string{
		GradientText("bubble chamber", m.theme.Primary, m.theme.Accent),
		"",
		status,
		"",
		row("step", fmt.Sprintf("%d", s.StepCount())),
		row("active", fmt.Sprintf("%d / %d", active, m.total)),
		row("grid", fmt.Sprintf("%dx%d", cfg.Rows, cfg.Cols)),
		row("canvas", cfg.Size()),
		row("seed", fmt.Sprintf("%d", cfg.Seed)),
		row("speed", fmt.Sprintf("%d steps/frame", m.stepsPerFrame)),
		row("theme", m.theme.Name),
		"",
		m.st.label.Render("settled"),
		ProgressBar(settled, sparkWidth, m.st.done),
		"",
		m.st.label.Render("activity"),
		m.st.sparkline(m.history, sparkWidth),
		"",
		m.st.hint.Render("space pause · +/- speed · t theme · q quit"),
	}
	return m.st.panel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Result returns the finished run, ErrAborted if the user quit first, or
// the error that stopped the run.
func (m Model) Result() (*experiment.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.aborted && m.result == nil {
		return nil, ErrAborted
	}
	return m.result, nil
}

// Run shows the live view until the run settles or the user quits.
func Run(exp *experiment.Experiment, out *TerminalRenderer, opts LiveOptions, progOpts ...tea.ProgramOption) (*experiment.Result, error) {
	p := tea.NewProgram(NewModel(exp, out, opts), progOpts...)
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("viz: unexpected model %T", final)
	}
	return m.Result()
}

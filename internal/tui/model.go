// Package tui provides the Bubble Tea front end of a pointing session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/fitts/internal/engine"
	"github.com/verte-zerg/fitts/internal/geom"
	"github.com/verte-zerg/fitts/internal/model"
)

// Screen is a step of the experiment flow.
type Screen int

// Experiment screens.
const (
	ScreenWelcome Screen = iota
	ScreenConsent
	ScreenInstructions
	ScreenTrial
	ScreenComplete
	ScreenDeclined
	ScreenAborted
)

const (
	agreeLabel   = "[ I Agree ]"
	declineLabel = "[ I Decline ]"
	buttonGap    = 4
	maxTextWidth = 90
	targetGlyph  = "█"
)

// Options wires the model to its session factory and surroundings.
type Options struct {
	Context context.Context
	Config  model.ExperimentConfig
	Consent []string
	// NewSession is called once consent is given.
	NewSession func() (*engine.Engine, error)
	// SavedTo describes where a completed session was written.
	SavedTo string
	Logger  *zap.Logger
}

// Outcome summarizes how the program ended.
type Outcome struct {
	Screen        Screen
	ParticipantID string
	Trials        int
	Err           error
}

// Model implements the experiment UI.
type Model struct {
	opts   Options
	logger *zap.Logger

	screen Screen
	eng    *engine.Engine
	err    error

	width  int
	height int
	scroll int
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	agreeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	declineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	centerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#1890FF"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#595959"))
	targetStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// NewModel constructs the experiment UI at the welcome screen.
func NewModel(opts Options) *Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.Consent) == 0 {
		opts.Consent = DefaultConsent
	}
	return &Model{opts: opts, logger: opts.Logger, screen: ScreenWelcome}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Screen returns the current screen.
func (m *Model) Screen() Screen { return m.screen }

// Outcome reports the final screen, session id, and any session error.
func (m *Model) Outcome() Outcome {
	out := Outcome{Screen: m.screen, Err: m.err}
	if m.eng != nil {
		out.ParticipantID = m.eng.ParticipantID()
		out.Trials, _ = m.eng.Progress()
	}
	return out
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampScroll()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, m.abort()
	}
	switch m.screen {
	case ScreenWelcome:
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeySpace {
			m.screen = ScreenConsent
		}
	case ScreenConsent:
		switch msg.String() {
		case "up", "k":
			m.scrollBy(-1)
		case "down", "j":
			m.scrollBy(1)
		case "pgup":
			m.scrollBy(-m.consentVisible())
		case "pgdown":
			m.scrollBy(m.consentVisible())
		case "a":
			return m, m.agree()
		case "d":
			return m, m.decline()
		}
	case ScreenInstructions:
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeySpace {
			m.screen = ScreenTrial
		}
	case ScreenComplete, ScreenDeclined:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	press := msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft
	switch m.screen {
	case ScreenWelcome:
		if press {
			m.screen = ScreenConsent
		}
	case ScreenConsent:
		switch {
		case msg.Button == tea.MouseButtonWheelUp:
			m.scrollBy(-1)
		case msg.Button == tea.MouseButtonWheelDown:
			m.scrollBy(1)
		case press && msg.Y == m.buttonRow():
			agree, decline := m.buttonSpans()
			if agree.contains(msg.X) {
				return m, m.agree()
			}
			if decline.contains(msg.X) {
				return m, m.decline()
			}
		}
	case ScreenInstructions:
		if press {
			m.screen = ScreenTrial
		}
	case ScreenTrial:
		return m, m.handleTrialMouse(msg)
	case ScreenComplete:
		if press {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) handleTrialMouse(msg tea.MouseMsg) tea.Cmd {
	if m.eng == nil || !m.fits() {
		return nil
	}
	var ev engine.Event
	switch {
	case msg.Action == tea.MouseActionMotion:
		ev.Kind = engine.EventMove
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		ev.Kind = engine.EventDown
	default:
		return nil
	}
	ev.Pos = m.layout().ToLogical(msg.X, msg.Y)
	state, err := m.eng.Handle(m.opts.Context, ev)
	if err != nil {
		m.err = err
		m.logger.Error("trial event failed", zap.Error(err))
	}
	switch state {
	case engine.StateComplete:
		m.screen = ScreenComplete
	case engine.StateAborted:
		m.screen = ScreenAborted
		return tea.Quit
	}
	return nil
}

func (m *Model) agree() tea.Cmd {
	eng, err := m.opts.NewSession()
	if err != nil {
		m.err = fmt.Errorf("failed to start session: %w", err)
		m.screen = ScreenAborted
		return tea.Quit
	}
	m.eng = eng
	m.screen = ScreenInstructions
	m.logger.Info("consent given", zap.String("participant", eng.ParticipantID()))
	return nil
}

func (m *Model) decline() tea.Cmd {
	m.screen = ScreenDeclined
	m.logger.Info("consent declined")
	return nil
}

func (m *Model) abort() tea.Cmd {
	if m.screen == ScreenComplete || m.screen == ScreenDeclined {
		return tea.Quit
	}
	if m.eng != nil {
		m.eng.Abort()
	}
	m.screen = ScreenAborted
	return tea.Quit
}

func (m *Model) layout() Layout {
	rows := m.height - 1
	if rows < 1 {
		rows = 1
	}
	return Layout{
		Center: geom.Point{X: m.opts.Config.ScreenWidth / 2, Y: m.opts.Config.ScreenHeight / 2},
		CellW:  m.opts.Config.CellWidth,
		CellH:  m.opts.Config.CellHeight,
		Cols:   m.width,
		Rows:   rows,
	}
}

// fits reports whether the farthest target of every configured direction
// can be drawn in the current window.
func (m *Model) fits() bool {
	if m.width <= 0 || m.height <= 1 {
		return false
	}
	l := m.layout()
	cfg := m.opts.Config
	var maxSize, maxDist float64
	for _, s := range cfg.Sizes {
		maxSize = max(maxSize, s)
	}
	for _, d := range cfg.Distances {
		maxDist = max(maxDist, d)
	}
	for _, dir := range cfg.Directions {
		p := engine.TargetCenter(l.Center, model.TrialSpec{Size: maxSize, Distance: maxDist, Direction: dir})
		if !l.Fits(p, maxSize/2) {
			return false
		}
	}
	return true
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	switch m.screen {
	case ScreenWelcome:
		return m.centered(
			titleStyle.Render("Fitts' Law Experiment"),
			"",
			textStyle.Render("Welcome to the Fitts' Law experiment."),
			"",
			hintStyle.Render("Click or press Enter to continue to the consent form"),
		)
	case ScreenConsent:
		return m.viewConsent()
	case ScreenInstructions:
		_, total := m.eng.Progress()
		return m.centered(
			titleStyle.Render("Instructions"),
			"",
			textStyle.Render("1. For each trial, first click the blue target in the center."),
			textStyle.Render("2. Then, as quickly as possible, click the red target that appears."),
			textStyle.Render("3. Try to be both fast and accurate."),
			textStyle.Render(fmt.Sprintf("4. You will complete %d trials in total.", total)),
			"",
			hintStyle.Render("Press ESC at any time to exit the experiment."),
			"",
			hintStyle.Render("Click anywhere or press Enter to begin."),
		)
	case ScreenTrial:
		return m.viewTrial()
	case ScreenComplete:
		return m.viewComplete()
	case ScreenDeclined:
		return m.centered(
			textStyle.Render("You declined to participate. No data was recorded."),
			"",
			hintStyle.Render("Press any key to exit."),
		)
	default:
		return ""
	}
}

func (m *Model) centered(lines ...string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, strings.Join(lines, "\n"))
}

func (m *Model) viewComplete() string {
	out := m.Outcome()
	lines := []string{
		titleStyle.Render("Experiment Complete"),
		"",
		textStyle.Render("Thank you for participating!"),
		textStyle.Render("Participant ID: " + out.ParticipantID),
	}
	if m.err != nil {
		lines = append(lines, "", errorStyle.Render("Saving failed: "+m.err.Error()))
	} else if m.opts.SavedTo != "" {
		lines = append(lines, hintStyle.Render("Data saved to "+m.opts.SavedTo))
	}
	lines = append(lines, "", hintStyle.Render("Click or press any key to exit."))
	return m.centered(lines...)
}

type span struct {
	start int
	end   int
}

func (s span) contains(x int) bool { return x >= s.start && x < s.end }

func (m *Model) textWidth() int {
	return max(10, min(maxTextWidth, m.width-4))
}

// consentVisible is the number of consent lines shown at once: the title,
// a blank line, the hint, and the buttons take four rows.
func (m *Model) consentVisible() int {
	return max(1, m.height-4)
}

func (m *Model) consentLines() []string {
	return wrapParagraphs(m.opts.Consent, m.textWidth())
}

func (m *Model) buttonRow() int { return m.height - 1 }

func (m *Model) buttonSpans() (agree, decline span) {
	total := len(agreeLabel) + buttonGap + len(declineLabel)
	start := max(0, (m.width-total)/2)
	agree = span{start: start, end: start + len(agreeLabel)}
	decline = span{start: agree.end + buttonGap, end: agree.end + buttonGap + len(declineLabel)}
	return agree, decline
}

func (m *Model) scrollBy(delta int) {
	m.scroll += delta
	m.clampScroll()
}

func (m *Model) clampScroll() {
	maxScroll := len(m.consentLines()) - m.consentVisible()
	m.scroll = max(0, min(m.scroll, maxScroll))
}

func (m *Model) viewConsent() string {
	lines := m.consentLines()
	visible := m.consentVisible()
	end := min(len(lines), m.scroll+visible)
	pad := strings.Repeat(" ", max(0, (m.width-m.textWidth())/2))

	rows := make([]string, 0, m.height)
	rows = append(rows, lipgloss.PlaceHorizontal(m.width, lipgloss.Center, titleStyle.Render("Informed Consent")), "")
	for _, line := range lines[m.scroll:end] {
		rows = append(rows, pad+textStyle.Render(line))
	}
	for len(rows) < m.height-2 {
		rows = append(rows, "")
	}
	hint := "Scroll with the mouse wheel or arrow keys"
	if len(lines) > visible {
		hint += fmt.Sprintf(" (lines %d-%d of %d)", m.scroll+1, end, len(lines))
	}
	rows = append(rows, lipgloss.PlaceHorizontal(m.width, lipgloss.Center, hintStyle.Render(hint)))

	agree, _ := m.buttonSpans()
	buttons := strings.Repeat(" ", agree.start) +
		agreeStyle.Render(agreeLabel) + strings.Repeat(" ", buttonGap) + declineStyle.Render(declineLabel)
	rows = append(rows, buttons)
	return strings.Join(rows, "\n")
}

func (m *Model) viewTrial() string {
	footer := footerStyle.Render(m.renderFooter())
	if !m.fits() {
		body := lipgloss.Place(m.width, max(1, m.height-1), lipgloss.Center, lipgloss.Center,
			errorStyle.Render("Window too small for the targets; enlarge the terminal to continue."))
		return body + "\n" + footer
	}
	l := m.layout()
	center := l.Disc(m.eng.Center(), m.eng.CenterRadius())
	var target map[[2]int]struct{}
	centerCellStyle := centerStyle
	if m.eng.State() == engine.StateAwaitTarget {
		spec, _ := m.eng.Current()
		target = l.Disc(m.eng.Target(), spec.Size/2)
		centerCellStyle = idleStyle
	}

	var b strings.Builder
	for row := 0; row < l.Rows; row++ {
		var line strings.Builder
		for col := 0; col < l.Cols; col++ {
			key := [2]int{col, row}
			if _, ok := target[key]; ok {
				line.WriteString(targetStyle.Render(targetGlyph))
			} else if _, ok := center[key]; ok {
				line.WriteString(centerCellStyle.Render(targetGlyph))
			} else {
				line.WriteByte(' ')
			}
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteByte('\n')
	}
	b.WriteString(footer)
	return b.String()
}

func (m *Model) renderFooter() string {
	if m.eng == nil {
		return ""
	}
	done, total := m.eng.Progress()
	segments := []string{fmt.Sprintf("Trial: %d/%d", min(done+1, total), total)}
	if last, ok := m.eng.Last(); ok {
		segments = append(segments, fmt.Sprintf("Last: %.0f ms · %d errors", last.TimeMs, last.Errors))
	}
	if m.eng.State() == engine.StateAwaitTarget && m.eng.Errors() > 0 {
		segments = append(segments, fmt.Sprintf("Misses: %d", m.eng.Errors()))
	}
	segments = append(segments, "Esc: abort")
	if m.err != nil && !errors.Is(m.err, engine.ErrSessionClosed) {
		segments = append(segments, "Error: "+m.err.Error())
	}
	return strings.Join(segments, "  ")
}

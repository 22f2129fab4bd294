// Package resultsui provides the Bubble Tea results browser.
package resultsui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/fitts/internal/metrics"
	"github.com/verte-zerg/fitts/internal/model"
	"github.com/verte-zerg/fitts/internal/report"
)

const (
	tabOverview = iota
	tabConfigurations
	tabParticipants
	tabBreakdowns
)

const (
	plotHeight = 12
	zStep      = 0.5
)

const (
	inputDataDir = iota
	inputSource
	inputZ
	inputColumn
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Loader reads the trial rows an analysis runs on.
type Loader func(ctx context.Context, cfg model.AnalysisConfig) ([]model.Row, error)

// Model implements the Bubble Tea results UI.
type Model struct {
	ctx    context.Context
	load   Loader
	cfg    model.AnalysisConfig
	logger *zap.Logger

	result metrics.Result
	empty  bool
	errMsg string

	tabs      []string
	activeTab int
	viewports []viewport.Model
	tables    map[int]*table.Model

	width  int
	height int

	settingsMode   bool
	settingsInputs []textinput.Model
	settingsIndex  int
	settingsError  string
}

// NewModel constructs a results UI model and runs the first analysis.
func NewModel(ctx context.Context, load Loader, cfg model.AnalysisConfig, logger *zap.Logger) *Model {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !(cfg.ZThreshold > 0) || math.IsInf(cfg.ZThreshold, 1) {
		cfg.ZThreshold = metrics.DefaultZThreshold
	}
	if cfg.Column == "" {
		cfg.Column = string(metrics.ColumnTime)
	}
	if cfg.Source == "" {
		cfg.Source = model.SourceCSV
	}
	m := &Model{
		ctx:    ctx,
		load:   load,
		cfg:    cfg,
		logger: logger,
		tabs:   []string{"Overview", "Configurations", "Participants", "Breakdowns"},
	}
	m.initInputs()
	m.initTables()
	m.initViewports()
	m.refreshResult()
	return m
}

// Config returns the analysis settings currently applied.
func (m *Model) Config() model.AnalysisConfig { return m.cfg }

// Result returns the latest pipeline result.
func (m *Model) Result() metrics.Result { return m.result }

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.settingsMode {
			return m.updateSettings(msg)
		}
		m.syncTableFocus()
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=", "+":
			m.cfg.ZThreshold += zStep
			m.refreshResult()
			return m, nil
		case "-":
			if m.cfg.ZThreshold-zStep >= zStep {
				m.cfg.ZThreshold -= zStep
				m.refreshResult()
			}
			return m, nil
		case "/":
			return m.startSettings()
		case "g", "home":
			if t := m.tables[m.activeTab]; t != nil {
				t.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if t := m.tables[m.activeTab]; t != nil {
				t.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if t := m.tables[m.activeTab]; t != nil {
				var cmd tea.Cmd
				*t, cmd = t.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.settingsInputs = []textinput.Model{
		newSettingsInput("Data dir: "),
		newSettingsInput("Source (csv|db): "),
		newSettingsInput("Z threshold: "),
		newSettingsInput("Column (time_ms|errors|distance_traveled): "),
	}
	m.setInputsFromConfig()
}

func (m *Model) initTables() {
	groups := newTable(report.ConfigurationHeaders, nil)
	participants := newTable(report.SummaryHeaders("Participant"), nil)
	m.tables = map[int]*table.Model{
		tabConfigurations: &groups,
		tabParticipants:   &participants,
	}
}

func newSettingsInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	m.settingsInputs[inputDataDir].SetValue(m.cfg.DataDir)
	m.settingsInputs[inputSource].SetValue(m.cfg.Source)
	m.settingsInputs[inputZ].SetValue(strconv.FormatFloat(m.cfg.ZThreshold, 'g', -1, 64))
	m.settingsInputs[inputColumn].SetValue(m.cfg.Column)
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.settingsMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = bodyHeight
	}
	for _, t := range m.tables {
		setTableSize(t, m.width, bodyHeight)
	}
	for i := range m.settingsInputs {
		promptWidth := lipgloss.Width(m.settingsInputs[i].Prompt)
		m.settingsInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	m.syncTableFocus()
}

func (m *Model) syncTableFocus() {
	for tab, t := range m.tables {
		if tab == m.activeTab {
			t.Focus()
		} else {
			t.Blur()
		}
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	settings := padLines(m.renderSettingsSummary(), m.width)
	return tabs + "\n" + settings
}

func (m *Model) renderSettingsSummary() string {
	dir := m.cfg.DataDir
	if dir == "" {
		dir = "default"
	}
	summary := fmt.Sprintf("Settings: source=%s  dir=%s  column=%s  z=%g", m.cfg.Source, dir, m.cfg.Column, m.cfg.ZThreshold)
	summary = truncateLine(summary, m.width)
	return headerStyle.Render(summary)
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Z: -/=  Settings: /  Quit: q"
	return headerStyle.Render(truncateLine(help, m.width))
}

func (m *Model) renderSettingsHelp() string {
	return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel  quit: ctrl+c")
}

func (m *Model) renderFooter() string {
	if m.settingsMode {
		return m.renderSettingsHelp()
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(truncateLine(m.errMsg, m.width))
	}
	return m.renderHelp()
}

func (m *Model) renderSettingsForm() string {
	lines := []string{"Settings (enter to apply, esc to cancel)"}
	for _, input := range m.settingsInputs {
		lines = append(lines, input.View())
	}
	if m.settingsError != "" {
		lines = append(lines, errorStyle.Render(m.settingsError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.settingsMode {
		return fitLines(m.renderSettingsForm(), m.width, height)
	}
	if t := m.tables[m.activeTab]; t != nil {
		if m.empty || m.errMsg != "" {
			return fitLines(m.viewports[tabOverview].View(), m.width, height)
		}
		return fitLines(tableMutedStyle.Render(t.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) refreshResult() {
	m.errMsg = ""
	m.empty = false
	res, err := m.analyze()
	switch {
	case errors.Is(err, metrics.ErrNoData):
		m.empty = true
		m.result = metrics.Result{}
	case err != nil:
		m.errMsg = err.Error()
		m.result = metrics.Result{}
	default:
		m.result = res
	}
	groupRows := report.ConfigurationRows(m.result.Groups)
	applyTable(m.tables[tabConfigurations], report.ConfigurationHeaders, groupRows)
	participantRows := report.SummaryRows(m.result.Participants)
	applyTable(m.tables[tabParticipants], report.SummaryHeaders("Participant"), participantRows)
	m.updateLayout()
	m.renderTabContents()
}

func (m *Model) analyze() (metrics.Result, error) {
	if m.load == nil {
		return metrics.Result{}, fmt.Errorf("no data loader configured")
	}
	rows, err := m.load(m.ctx, m.cfg)
	if err != nil {
		m.logger.Error("failed to load trials", zap.String("source", m.cfg.Source), zap.Error(err))
		return metrics.Result{}, fmt.Errorf("failed to load trials: %w", err)
	}
	column, err := metrics.ParseColumn(m.cfg.Column)
	if err != nil {
		return metrics.Result{}, err
	}
	return metrics.Run(rows, metrics.Options{
		Column:     column,
		ZThreshold: m.cfg.ZThreshold,
		Logger:     m.logger,
	})
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	var placeholder string
	switch {
	case m.errMsg != "":
		placeholder = "Failed to analyze trials."
	case m.empty:
		placeholder = "No trial data found."
	}
	if placeholder != "" {
		for i := range m.viewports {
			m.viewports[i].SetContent(placeholder)
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.result, width))
	m.viewports[tabBreakdowns].SetContent(renderBreakdowns(m.result))
}

func renderOverview(res metrics.Result, width int) string {
	cards := renderSummaryCards(res, width)
	var buf bytes.Buffer
	opts := report.Options{Width: width, PlotHeight: plotHeight, Color: true}
	if err := report.RenderRegressionPlot(&buf, res, opts); err != nil {
		return cards + "\n\n" + fmt.Sprintf("Failed to render plot: %v", err)
	}
	return strings.TrimRight(cards+"\n\n"+buf.String(), "\n")
}

func renderSummaryCards(res metrics.Result, width int) string {
	r2, throughput := "n/a", "n/a"
	if res.RegressionErr == nil {
		r2 = fmt.Sprintf("%.4f", res.Regression.RSquared)
		throughput = fmt.Sprintf("%.2f bits/s", res.Regression.Throughput)
	}
	cards := []string{
		metricCard("Participants", strconv.Itoa(res.Overall.Participants)),
		metricCard("Trials", strconv.Itoa(res.Overall.Trials)),
		metricCard("Outliers", fmt.Sprintf("%d (%.1f%%)", res.Outliers.Removed, res.Outliers.Percent())),
		metricCard("R²", r2),
		metricCard("Throughput", throughput),
		metricCard("Mean MT", fmt.Sprintf("%.1f ms", res.Overall.MeanTimeMs)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4], cards[5])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderBreakdowns(res metrics.Result) string {
	var buf bytes.Buffer
	steps := []func() error{
		func() error { return report.RenderFindings(&buf, res) },
		func() error { return report.RenderRegression(&buf, res) },
		func() error { return report.RenderSummaries(&buf, "Direction", res.Directions) },
		func() error { return report.RenderSummaries(&buf, "Size", res.Sizes) },
		func() error { return report.RenderSummaries(&buf, "Distance", res.Distances) },
		func() error { return report.RenderDirectionByID(&buf, res.Groups) },
		func() error { return report.RenderErrorGrid(&buf, metrics.ErrorGrid(res.Filtered)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Sprintf("Failed to render breakdowns: %v", err)
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

func newTable(headers []string, rows [][]string) table.Model {
	cols, trows := tableData(headers, rows)
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(trows),
		table.WithHeight(1),
	)
	t.SetStyles(tableStyles())
	return t
}

func applyTable(t *table.Model, headers []string, rows [][]string) {
	cols, trows := tableData(headers, rows)
	// Rows must shrink before columns so the table never renders a row
	// wider than its column set.
	t.SetRows(nil)
	t.SetColumns(cols)
	t.SetRows(trows)
	t.GotoTop()
}

// tableData sizes each column to its widest cell.
func tableData(headers []string, rows [][]string) ([]table.Column, []table.Row) {
	cols := make([]table.Column, len(headers))
	for i, h := range headers {
		cols[i] = table.Column{Title: h, Width: lipgloss.Width(h)}
	}
	out := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(cols) {
				cols[i].Width = maxInt(cols[i].Width, lipgloss.Width(cell))
			}
		}
		out = append(out, table.Row(row))
	}
	return cols, out
}

// setTableSize makes the rendered table, header included, fill the body.
func setTableSize(t *table.Model, width, height int) {
	t.SetWidth(width)
	t.SetHeight(maxInt(3, height))
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) startSettings() (tea.Model, tea.Cmd) {
	m.settingsMode = true
	m.settingsError = ""
	m.setInputsFromConfig()
	return m, m.setSettingsIndex(0)
}

func (m *Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.settingsMode = false
		m.settingsError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applySettings(); err != nil {
			m.settingsError = err.Error()
			return m, nil
		}
		m.settingsMode = false
		m.settingsError = ""
		m.refreshResult()
		return m, nil
	case tea.KeyTab:
		return m, m.setSettingsIndex(m.settingsIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setSettingsIndex(m.settingsIndex - 1)
	}
	var cmd tea.Cmd
	m.settingsInputs[m.settingsIndex], cmd = m.settingsInputs[m.settingsIndex].Update(msg)
	return m, cmd
}

func (m *Model) setSettingsIndex(idx int) tea.Cmd {
	count := len(m.settingsInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.settingsIndex = idx
	var cmd tea.Cmd
	for i := range m.settingsInputs {
		if i == m.settingsIndex {
			cmd = m.settingsInputs[i].Focus()
		} else {
			m.settingsInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applySettings() error {
	source := strings.TrimSpace(m.settingsInputs[inputSource].Value())
	if !model.ValidSource(source) {
		return fmt.Errorf("invalid source (use csv or db)")
	}
	zInput := strings.TrimSpace(m.settingsInputs[inputZ].Value())
	z, err := strconv.ParseFloat(zInput, 64)
	if err != nil || !(z > 0) || math.IsInf(z, 1) {
		return fmt.Errorf("invalid z threshold (use a positive number)")
	}
	column := strings.TrimSpace(m.settingsInputs[inputColumn].Value())
	if _, err := metrics.ParseColumn(column); err != nil {
		return err
	}
	m.cfg.DataDir = strings.TrimSpace(m.settingsInputs[inputDataDir].Value())
	m.cfg.Source = source
	m.cfg.ZThreshold = z
	m.cfg.Column = column
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

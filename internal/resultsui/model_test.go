package resultsui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/fitts/internal/metrics"
	"github.com/verte-zerg/fitts/internal/model"
)

func sampleRows() []model.Row {
	var rows []model.Row
	trial := 0
	for _, pid := range []string{"p1", "p2"} {
		for _, size := range []float64{20, 40} {
			for _, dist := range []float64{100, 300} {
				for _, dir := range []model.Direction{model.DirLeft, model.DirRight} {
					trial++
					id := metrics.IndexOfDifficulty(dist, size)
					rows = append(rows, model.Row{
						ParticipantID: pid,
						TrialRecord: model.TrialRecord{
							Trial: trial, Size: size, Distance: dist, Direction: dir,
							TimeMs: 300 + 200*id, DistanceTraveled: dist, Errors: trial % 2,
						},
					})
				}
			}
		}
	}
	return rows
}

type recordingLoader struct {
	rows  []model.Row
	err   error
	calls []model.AnalysisConfig
}

func (l *recordingLoader) load(_ context.Context, cfg model.AnalysisConfig) ([]model.Row, error) {
	l.calls = append(l.calls, cfg)
	return l.rows, l.err
}

func newSizedModel(t *testing.T, l *recordingLoader) *Model {
	t.Helper()
	m := NewModel(context.Background(), l.load, model.AnalysisConfig{DataDir: "data"}, nil)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModelRunsAnalysisWithDefaults(t *testing.T) {
	l := &recordingLoader{rows: sampleRows()}
	m := newSizedModel(t, l)

	require.Len(t, l.calls, 1)
	cfg := m.Config()
	assert.Equal(t, metrics.DefaultZThreshold, cfg.ZThreshold)
	assert.Equal(t, string(metrics.ColumnTime), cfg.Column)
	assert.Equal(t, model.SourceCSV, cfg.Source)

	res := m.Result()
	require.NoError(t, res.RegressionErr)
	assert.Len(t, res.Groups, 8)
	assert.InDelta(t, 200, res.Regression.Slope, 1e-6)

	view := m.View()
	for _, want := range []string{"Overview", "Configurations", "Participants", "Breakdowns", "Throughput", "z=3"} {
		assert.Contains(t, view, want)
	}
}

func TestTabsWrapAndShowTables(t *testing.T) {
	m := newSizedModel(t, &recordingLoader{rows: sampleRows()})

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, tabConfigurations, m.activeTab)
	assert.Contains(t, m.View(), "Size")

	m.Update(keyRunes("l"))
	assert.Equal(t, tabParticipants, m.activeTab)
	assert.Contains(t, m.View(), "p2")

	m.Update(keyRunes("l"))
	assert.Equal(t, tabBreakdowns, m.activeTab)
	m.Update(keyRunes("l"))
	assert.Equal(t, tabOverview, m.activeTab)
	m.Update(keyRunes("h"))
	assert.Equal(t, tabBreakdowns, m.activeTab)
}

func TestBreakdownsContent(t *testing.T) {
	content := renderBreakdowns(newSizedModel(t, &recordingLoader{rows: sampleRows()}).Result())
	for _, want := range []string{"Key Findings", "By Direction", "By Size", "By Distance", "Distance \\ Size"} {
		assert.Contains(t, content, want)
	}
}

func TestZThresholdKeys(t *testing.T) {
	l := &recordingLoader{rows: sampleRows()}
	m := newSizedModel(t, l)

	m.Update(keyRunes("="))
	assert.Equal(t, 3.5, m.Config().ZThreshold)
	require.Len(t, l.calls, 2)
	assert.Equal(t, 3.5, l.calls[1].ZThreshold)

	for range 10 {
		m.Update(keyRunes("-"))
	}
	assert.Equal(t, 0.5, m.Config().ZThreshold)
}

func TestSettingsFormValidatesAndApplies(t *testing.T) {
	l := &recordingLoader{rows: sampleRows()}
	m := newSizedModel(t, l)

	m.Update(keyRunes("/"))
	require.True(t, m.settingsMode)
	assert.Equal(t, "data", m.settingsInputs[inputDataDir].Value())

	m.settingsInputs[inputZ].SetValue("abc")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.settingsMode)
	assert.Contains(t, m.settingsError, "z threshold")

	m.settingsInputs[inputZ].SetValue("NaN")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.settingsMode)
	assert.Contains(t, m.settingsError, "z threshold")

	m.settingsInputs[inputZ].SetValue("2")
	m.settingsInputs[inputSource].SetValue("ftp")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.settingsError, "source")

	m.settingsInputs[inputSource].SetValue("db")
	m.settingsInputs[inputColumn].SetValue("errors")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.settingsMode)

	last := l.calls[len(l.calls)-1]
	assert.Equal(t, model.SourceDB, last.Source)
	assert.Equal(t, 2.0, last.ZThreshold)
	assert.Equal(t, "errors", last.Column)
	assert.Equal(t, metrics.ColumnErrors, m.Result().Outliers.Column)
}

func TestSettingsEscCancels(t *testing.T) {
	l := &recordingLoader{rows: sampleRows()}
	m := newSizedModel(t, l)

	m.Update(keyRunes("/"))
	m.settingsInputs[inputZ].SetValue("9")
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, inputSource, m.settingsIndex)
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, inputColumn, m.settingsIndex)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.settingsMode)
	assert.Equal(t, metrics.DefaultZThreshold, m.Config().ZThreshold)
	assert.Len(t, l.calls, 1)
}

func TestEmptyDataShowsPlaceholder(t *testing.T) {
	m := newSizedModel(t, &recordingLoader{})
	assert.True(t, m.empty)
	assert.Contains(t, m.View(), "No trial data found.")

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Contains(t, m.View(), "No trial data found.")
}

func TestLoaderErrorShownInFooter(t *testing.T) {
	m := newSizedModel(t, &recordingLoader{err: errors.New("disk gone")})
	view := m.View()
	assert.Contains(t, view, "Failed to analyze trials.")
	assert.Contains(t, view, "disk gone")
}

func TestQuitKeys(t *testing.T) {
	m := newSizedModel(t, &recordingLoader{rows: sampleRows()})
	_, cmd := m.Update(keyRunes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "abcdefg...", truncateLine("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncateLine("abcdef", 2))
	lines := strings.Split(fitLines("a\nb\nc", 3, 2), "\n")
	assert.Equal(t, []string{"a  ", "b  "}, lines)
}

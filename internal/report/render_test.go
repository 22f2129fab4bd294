package report

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/fitts/internal/metrics"
	"github.com/verte-zerg/fitts/internal/model"
)

func sampleResult(t *testing.T) metrics.Result {
	t.Helper()
	var rows []model.Row
	trial := 0
	for _, pid := range []string{"p1", "p2"} {
		for _, size := range []float64{20, 40} {
			for _, dist := range []float64{100, 300} {
				for _, dir := range []model.Direction{model.DirLeft, model.DirRight} {
					trial++
					id := metrics.IndexOfDifficulty(dist, size)
					extra := 0.0
					if pid == "p2" {
						extra = 50
					}
					rows = append(rows, model.Row{
						ParticipantID: pid,
						TrialRecord: model.TrialRecord{
							Trial: trial, Size: size, Distance: dist, Direction: dir,
							TimeMs: 300 + 200*id + extra, DistanceTraveled: dist + 5, Errors: trial % 2,
						},
					})
				}
			}
		}
	}
	res, err := metrics.Run(rows, metrics.Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func TestRenderIncludesAllSections(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	if err := Render(&buf, res, Options{Width: 80, PlotHeight: 6}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Overview",
		"Key Findings",
		"Throughput: 5.00 bits/s",
		"Regression (mean MT ~ ID)",
		"Configuration Metrics",
		"Movement Time vs Index of Difficulty",
		"Movement Time by ID and Direction (ms)",
		"Mean Errors by Distance and Size",
		"By Direction",
		"By Size",
		"By Distance",
		"By Participant",
		"Fastest: p1, slowest: p2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in report:\n%s", want, out)
		}
	}
}

func TestRenderWithoutRegression(t *testing.T) {
	res := metrics.Result{RegressionErr: metrics.ErrRegressionUndefined}
	var buf bytes.Buffer
	if err := RenderRegression(&buf, res); err != nil {
		t.Fatalf("RenderRegression failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Not available") {
		t.Fatalf("expected undefined regression notice, got %q", buf.String())
	}
	if series := RegressionSeries(res); series != nil {
		t.Fatalf("expected no series without groups, got %v", series)
	}
}

func TestConfigurationRowsShowNaN(t *testing.T) {
	rows := ConfigurationRows([]metrics.MetricsRow{{
		GroupKey: model.GroupKey{Size: 20, Distance: 100, Direction: model.DirLeft},
		N:        1,
		Time:     metrics.Stat{Mean: 512.345, Std: math.NaN()},
		ID:       math.Log2(6),
		IP:       5.05,
	}})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0][4] != "512.3" || rows[0][5] != "NaN" {
		t.Fatalf("unexpected time cells: %q %q", rows[0][4], rows[0][5])
	}
	if rows[0][10] != "2.585" {
		t.Fatalf("unexpected ID cell: %q", rows[0][10])
	}
}

func TestDirectionByIDAndErrorGrid(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	if err := RenderDirectionByID(&buf, res.Groups); err != nil {
		t.Fatalf("RenderDirectionByID failed: %v", err)
	}
	lines := strings.Split(buf.String(), "\n")
	if !strings.Contains(lines[1], "left") || !strings.Contains(lines[1], "right") {
		t.Fatalf("expected direction columns, got %q", lines[1])
	}
	// Four distinct IDs plus title, header, separator, and trailing blank line.
	if n := strings.Count(buf.String(), "\n"); n != 4+3+1 {
		t.Fatalf("expected 8 lines, got %d:\n%s", n, buf.String())
	}

	buf.Reset()
	if err := RenderErrorGrid(&buf, metrics.ErrorGrid(res.Filtered)); err != nil {
		t.Fatalf("RenderErrorGrid failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Distance \\ Size") {
		t.Fatalf("expected grid header, got %q", buf.String())
	}
}

func TestRenderNoData(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderNoData(&buf, metrics.ErrNoData); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No data found") {
		t.Fatalf("unexpected output %q", buf.String())
	}
	other := fmt.Errorf("boom")
	if err := RenderNoData(&buf, other); err != other {
		t.Fatalf("expected passthrough error, got %v", err)
	}
}

func TestExportXLSX(t *testing.T) {
	res := sampleResult(t)
	path := filepath.Join(t.TempDir(), "results", "fitts_law_analysis.xlsx")
	if err := ExportXLSX(path, res); err != nil {
		t.Fatalf("ExportXLSX failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	want := []string{SheetRaw, SheetConfig, SheetParticipants, SheetRegression}
	if fmt.Sprint(sheets) != fmt.Sprint(want) {
		t.Fatalf("expected sheets %v, got %v", want, sheets)
	}
	raw, err := f.GetRows(SheetRaw)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(raw) != len(res.Filtered)+1 {
		t.Fatalf("expected %d raw rows, got %d", len(res.Filtered)+1, len(raw))
	}
	if raw[0][0] != "participant_id" {
		t.Fatalf("unexpected raw header %v", raw[0])
	}
	reg, err := f.GetRows(SheetRegression)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if reg[1][0] != "Slope (a)" {
		t.Fatalf("unexpected regression row %v", reg[1])
	}
}

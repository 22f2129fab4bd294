package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/fitts/internal/metrics"
)

// Sheet names written by ExportXLSX.
const (
	SheetRaw          = "Raw Data"
	SheetConfig       = "Configuration Metrics"
	SheetParticipants = "Participant Summary"
	SheetRegression   = "Regression Results"
)

// ExportXLSX writes the filtered rows, configuration metrics, participant
// summary, and regression results to a workbook at path. Undefined values are
// left as empty cells.
func ExportXLSX(path string, res metrics.Result) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetRaw); err != nil {
		return err
	}
	for _, name := range []string{SheetConfig, SheetParticipants, SheetRegression} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	raw := [][]any{{"participant_id", "trial", "size", "distance", "direction", "time_ms", "distance_traveled", "errors"}}
	for _, r := range res.Filtered {
		raw = append(raw, []any{r.ParticipantID, r.Trial, r.Size, r.Distance, string(r.Direction), r.TimeMs, r.DistanceTraveled, r.Errors})
	}
	if err := writeSheet(f, SheetRaw, raw); err != nil {
		return err
	}

	config := [][]any{{"size", "distance", "direction", "n", "time_ms_mean", "time_ms_std", "errors_mean", "errors_std", "distance_traveled_mean", "distance_traveled_std", "ID", "IP"}}
	for _, g := range res.Groups {
		config = append(config, []any{
			g.Size, g.Distance, string(g.Direction), g.N,
			cellFloat(g.Time.Mean), cellFloat(g.Time.Std),
			cellFloat(g.Errors.Mean), cellFloat(g.Errors.Std),
			cellFloat(g.Path.Mean), cellFloat(g.Path.Std),
			cellFloat(g.ID), cellFloat(g.IP),
		})
	}
	if err := writeSheet(f, SheetConfig, config); err != nil {
		return err
	}

	participants := [][]any{{"participant_id", "time_ms_mean", "time_ms_std", "time_ms_min", "time_ms_max", "errors_mean", "errors_sum", "distance_traveled_mean", "distance_traveled_std"}}
	for _, p := range res.Participants {
		participants = append(participants, []any{
			p.Label,
			cellFloat(p.Time.Mean), cellFloat(p.Time.Std), cellFloat(p.MinTime), cellFloat(p.MaxTime),
			cellFloat(p.Errors.Mean), p.ErrorSum,
			cellFloat(p.Path.Mean), cellFloat(p.Path.Std),
		})
	}
	if err := writeSheet(f, SheetParticipants, participants); err != nil {
		return err
	}

	regression := [][]any{{"Parameter", "Value", "Description"}}
	if res.RegressionErr != nil {
		regression = append(regression, []any{"Regression", nil, res.RegressionErr.Error()})
	} else {
		r := res.Regression
		regression = append(regression,
			[]any{"Slope (a)", cellFloat(r.Slope), "Represents reciprocal of throughput (1/IP)"},
			[]any{"Intercept (b)", cellFloat(r.Intercept), "Represents fixed time overhead"},
			[]any{"R-squared", cellFloat(r.RSquared), "Coefficient of determination"},
			[]any{"p-value", cellFloat(r.PValue), "Significance of regression"},
			[]any{"Standard Error", cellFloat(r.StdErr), "Standard error of the slope"},
			[]any{"Throughput", cellFloat(r.Throughput), "Bits per second (1000/slope)"},
		)
	}
	if err := writeSheet(f, SheetRegression, regression); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func cellFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

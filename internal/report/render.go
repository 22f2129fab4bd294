package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/verte-zerg/fitts/internal/metrics"
	"github.com/verte-zerg/fitts/internal/model"
)

// Options controls text rendering.
type Options struct {
	// Width is the total terminal width; 0 detects it.
	Width      int
	PlotHeight int
	Color      bool
	NoPlot     bool
}

// Render writes the full analysis report.
func Render(w io.Writer, res metrics.Result, opts Options) error {
	steps := []func() error{
		func() error { return RenderOverview(w, res) },
		func() error { return RenderFindings(w, res) },
		func() error { return RenderRegression(w, res) },
		func() error { return RenderConfigurations(w, res.Groups) },
		func() error { return RenderRegressionPlot(w, res, opts) },
		func() error { return RenderDirectionByID(w, res.Groups) },
		func() error { return RenderErrorGrid(w, metrics.ErrorGrid(res.Filtered)) },
		func() error { return RenderSummaries(w, "Direction", res.Directions) },
		func() error { return RenderSummaries(w, "Size", res.Sizes) },
		func() error { return RenderSummaries(w, "Distance", res.Distances) },
		func() error { return RenderSummaries(w, "Participant", res.Participants) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// RenderOverview prints dataset totals and the outlier report.
func RenderOverview(w io.Writer, res metrics.Result) error {
	o := res.Outliers
	lines := []string{
		"Overview",
		fmt.Sprintf("Participants: %d", res.Overall.Participants),
		fmt.Sprintf("Trials: %d (of %d loaded)", res.Overall.Trials, o.Total),
		fmt.Sprintf("Outliers removed: %d (%.1f%%) by %s, |z| >= %g", o.Removed, o.Percent(), o.Column, o.Threshold),
		fmt.Sprintf("Configurations: %d", len(res.Groups)),
	}
	if n := len(o.Degenerate); n > 0 {
		lines = append(lines, fmt.Sprintf("Unfiltered groups (n<2 or zero variance): %d", n))
	}
	return writeLines(w, lines)
}

// Findings returns the headline numbers of an analysis.
func Findings(res metrics.Result) []string {
	var out []string
	if res.RegressionErr == nil {
		out = append(out,
			fmt.Sprintf("Fitts' law correlation (R²): %.4f", res.Regression.RSquared),
			fmt.Sprintf("Throughput: %.2f bits/s", res.Regression.Throughput),
		)
	} else {
		out = append(out, "Regression: "+res.RegressionErr.Error())
	}
	out = append(out,
		fmt.Sprintf("Average movement time: %.1f ms", res.Overall.MeanTimeMs),
		fmt.Sprintf("Average error rate: %.2f errors per trial", res.Overall.MeanErrors),
	)
	if spread := metrics.DirectionSpreadPercent(res.Directions); !math.IsNaN(spread) {
		line := fmt.Sprintf("Direction difference: %.1f%%", spread)
		for i, d := range res.Directions {
			sep := ", "
			if i == 0 {
				sep = " ("
			}
			line += fmt.Sprintf("%s%s: %.1f ms", sep, d.Label, d.Time.Mean)
		}
		out = append(out, line+")")
	}
	if len(res.Participants) > 1 {
		v := res.Variability
		out = append(out,
			fmt.Sprintf("Participant variation in movement time: %.1f%% CV", v.TimeCV),
			fmt.Sprintf("Participant variation in error rate: %.1f%% CV", v.ErrorCV),
			fmt.Sprintf("Fastest: %s, slowest: %s", v.Fastest, v.Slowest),
			fmt.Sprintf("Most accurate: %s, least accurate: %s", v.MostAccurate, v.LeastAccurate),
		)
	}
	return out
}

// RenderFindings prints the key findings block.
func RenderFindings(w io.Writer, res metrics.Result) error {
	return writeLines(w, append([]string{"Key Findings"}, Findings(res)...))
}

// RenderRegression prints the regression table, or why it is missing.
func RenderRegression(w io.Writer, res metrics.Result) error {
	if res.RegressionErr != nil {
		return writeLines(w, []string{"Regression", "Not available: " + res.RegressionErr.Error()})
	}
	return writeTable(w, "Regression (mean MT ~ ID)",
		[]string{"Parameter", "Value", "Description"}, RegressionRows(res.Regression), map[int]bool{1: true})
}

// RegressionRows returns parameter/value/description triples.
func RegressionRows(r metrics.Regression) [][]string {
	return [][]string{
		{"Slope (a)", num(r.Slope, 4), "ms per bit; reciprocal of throughput"},
		{"Intercept (b)", num(r.Intercept, 4), "fixed time overhead (ms)"},
		{"R-squared", num(r.RSquared, 4), "coefficient of determination"},
		{"p-value", fmt.Sprintf("%.4g", r.PValue), "significance of regression"},
		{"Standard Error", num(r.StdErr, 4), "standard error of the slope"},
		{"Throughput", num(r.Throughput, 2), "bits per second (1000/slope)"},
		{"Points", strconv.Itoa(r.N), "configuration groups"},
	}
}

// ConfigurationHeaders labels the columns of ConfigurationRows.
var ConfigurationHeaders = []string{"Size", "Distance", "Dir", "N", "MT mean", "MT std", "Err mean", "Err std", "Path mean", "Path std", "ID", "IP"}

// ConfigurationRows formats one row per configuration group. Undefined
// standard deviations render as "NaN".
func ConfigurationRows(groups []metrics.MetricsRow) [][]string {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{
			num(g.Size, 0),
			num(g.Distance, 0),
			string(g.Direction),
			strconv.Itoa(g.N),
			num(g.Time.Mean, 1),
			num(g.Time.Std, 1),
			num(g.Errors.Mean, 2),
			num(g.Errors.Std, 2),
			num(g.Path.Mean, 1),
			num(g.Path.Std, 1),
			num(g.ID, 3),
			num(g.IP, 2),
		})
	}
	return rows
}

// RenderConfigurations prints the configuration metrics table.
func RenderConfigurations(w io.Writer, groups []metrics.MetricsRow) error {
	return writeTable(w, "Configuration Metrics", ConfigurationHeaders, ConfigurationRows(groups), rightFrom(3, len(ConfigurationHeaders)))
}

// SummaryHeaders returns the column labels for a breakdown keyed by label.
func SummaryHeaders(label string) []string {
	return []string{label, "N", "MT mean", "MT std", "MT min", "MT max", "Err mean", "Err sum", "Path mean", "Path std"}
}

// SummaryRows formats breakdown summaries.
func SummaryRows(summaries []metrics.Summary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Label,
			strconv.Itoa(s.N),
			num(s.Time.Mean, 1),
			num(s.Time.Std, 1),
			num(s.MinTime, 1),
			num(s.MaxTime, 1),
			num(s.Errors.Mean, 2),
			strconv.Itoa(s.ErrorSum),
			num(s.Path.Mean, 1),
			num(s.Path.Std, 1),
		})
	}
	return rows
}

// RenderSummaries prints a breakdown table.
func RenderSummaries(w io.Writer, label string, summaries []metrics.Summary) error {
	if len(summaries) == 0 {
		return nil
	}
	headers := SummaryHeaders(label)
	return writeTable(w, "By "+label, headers, SummaryRows(summaries), rightFrom(1, len(headers)))
}

// RenderRegressionPlot draws mean MT per group against ID with the fitted line.
func RenderRegressionPlot(w io.Writer, res metrics.Result, opts Options) error {
	series := RegressionSeries(res)
	if opts.NoPlot || len(series) == 0 {
		return nil
	}
	width := 0
	if opts.Width > 0 {
		width = PlotWidthFor(opts.Width)
	}
	return PlotXY(w, "Movement Time vs Index of Difficulty", "Index of Difficulty (bits)", "MT (ms)", series, width, opts.PlotHeight, opts.Color)
}

// RegressionSeries returns the group scatter and, when defined, the fitted
// line spanning the ID range padded by 0.1 bits.
func RegressionSeries(res metrics.Result) []Series {
	if len(res.Groups) == 0 {
		return nil
	}
	points := Series{Name: "mean MT"}
	for _, g := range res.Groups {
		points.X = append(points.X, g.ID)
		points.Y = append(points.Y, g.Time.Mean)
	}
	series := []Series{points}
	if res.RegressionErr == nil {
		lo := slices.Min(points.X) - 0.1
		hi := slices.Max(points.X) + 0.1
		r := res.Regression
		series = append(series, Series{
			Name: fmt.Sprintf("y = %.2fx + %.2f (R² = %.2f)", r.Slope, r.Intercept, r.RSquared),
			X:    []float64{lo, hi},
			Y:    []float64{r.Intercept + r.Slope*lo, r.Intercept + r.Slope*hi},
			Line: true,
		})
	}
	return series
}

// RenderDirectionByID prints mean MT per ID with one column per direction.
func RenderDirectionByID(w io.Writer, groups []metrics.MetricsRow) error {
	if len(groups) == 0 {
		return nil
	}
	type cell struct {
		sum float64
		n   int
	}
	var ids []float64
	var dirs []model.Direction
	cells := make(map[float64]map[model.Direction]*cell)
	for _, g := range groups {
		byDir, ok := cells[g.ID]
		if !ok {
			byDir = make(map[model.Direction]*cell)
			cells[g.ID] = byDir
			ids = append(ids, g.ID)
		}
		if !slices.Contains(dirs, g.Direction) {
			dirs = append(dirs, g.Direction)
		}
		c, ok := byDir[g.Direction]
		if !ok {
			c = &cell{}
			byDir[g.Direction] = c
		}
		c.sum += g.Time.Mean
		c.n++
	}
	slices.Sort(ids)
	slices.Sort(dirs)

	headers := []string{"ID"}
	for _, d := range dirs {
		headers = append(headers, string(d))
	}
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		row := []string{num(id, 3)}
		for _, d := range dirs {
			if c, ok := cells[id][d]; ok {
				row = append(row, num(c.sum/float64(c.n), 1))
			} else {
				row = append(row, "-")
			}
		}
		rows = append(rows, row)
	}
	return writeTable(w, "Movement Time by ID and Direction (ms)", headers, rows, rightFrom(0, len(headers)))
}

// RenderErrorGrid prints mean errors with distances as rows and sizes as
// columns.
func RenderErrorGrid(w io.Writer, cells []metrics.ErrorCell) error {
	if len(cells) == 0 {
		return nil
	}
	var distances, sizes []float64
	values := make(map[[2]float64]float64, len(cells))
	for _, c := range cells {
		if !slices.Contains(distances, c.Distance) {
			distances = append(distances, c.Distance)
		}
		if !slices.Contains(sizes, c.Size) {
			sizes = append(sizes, c.Size)
		}
		values[[2]float64{c.Distance, c.Size}] = c.MeanErrors
	}
	slices.Sort(distances)
	slices.Sort(sizes)

	headers := []string{"Distance \\ Size"}
	for _, s := range sizes {
		headers = append(headers, num(s, 0))
	}
	rows := make([][]string, 0, len(distances))
	for _, d := range distances {
		row := []string{num(d, 0)}
		for _, s := range sizes {
			if v, ok := values[[2]float64{d, s}]; ok {
				row = append(row, num(v, 2))
			} else {
				row = append(row, "-")
			}
		}
		rows = append(rows, row)
	}
	return writeTable(w, "Mean Errors by Distance and Size", headers, rows, rightFrom(0, len(headers)))
}

// RenderNoData prints the message shown when no trials are available.
func RenderNoData(w io.Writer, err error) error {
	if errors.Is(err, metrics.ErrNoData) {
		_, werr := fmt.Fprintln(w, "No data found. Run the experiment first.")
		return werr
	}
	return err
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func num(v float64, prec int) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

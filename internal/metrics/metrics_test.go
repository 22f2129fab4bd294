package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/verte-zerg/fitts/internal/model"
)

func row(pid string, size, distance float64, dir model.Direction, timeMs float64, errs int) model.Row {
	return model.Row{
		ParticipantID: pid,
		TrialRecord: model.TrialRecord{
			Size:             size,
			Distance:         distance,
			Direction:        dir,
			TimeMs:           timeMs,
			DistanceTraveled: distance + 10,
			Errors:           errs,
		},
	}
}

func TestIndexOfDifficulty(t *testing.T) {
	assert.InDelta(t, math.Log2(6), IndexOfDifficulty(100, 20), 1e-12)
	assert.InDelta(t, 2.585, IndexOfDifficulty(100, 20), 1e-3)
	assert.Greater(t, IndexOfDifficulty(300, 20), IndexOfDifficulty(100, 20))
	assert.Less(t, IndexOfDifficulty(200, 60), IndexOfDifficulty(200, 20))
}

func TestIndexOfPerformance(t *testing.T) {
	assert.InDelta(t, 4.0, IndexOfPerformance(2, 500), 1e-12)
}

func TestRegressExactLine(t *testing.T) {
	reg, err := Regress([]float64{1, 2, 3}, []float64{500, 700, 900})
	require.NoError(t, err)
	assert.InDelta(t, 200, reg.Slope, 1e-9)
	assert.InDelta(t, 300, reg.Intercept, 1e-9)
	assert.InDelta(t, 1.0, reg.RSquared, 1e-12)
	assert.InDelta(t, 5.0, reg.Throughput, 1e-9)
	assert.InDelta(t, 0, reg.StdErr, 1e-6)
	assert.Equal(t, 3, reg.N)
}

func TestRegressNoisyLine(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 5, 4, 5}
	reg, err := Regress(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, reg.Slope, 1e-9)
	assert.InDelta(t, 2.2, reg.Intercept, 1e-9)
	assert.InDelta(t, 0.6, reg.RSquared, 1e-9)
	// t = 2.1213 with 3 df.
	assert.InDelta(t, 0.1240, reg.PValue, 1e-3)
	assert.InDelta(t, 0.2828, reg.StdErr, 1e-4)
	assert.InDelta(t, 0.9381, reg.InterceptStdErr, 1e-4)
}

func TestRegressUndefined(t *testing.T) {
	_, err := Regress([]float64{2, 2, 2}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrRegressionUndefined)

	_, err = Regress(nil, nil)
	assert.ErrorIs(t, err, ErrRegressionUndefined)

	_, err = Regress([]float64{1, 2}, []float64{1})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrRegressionUndefined))
}

func TestRegressRejectsNonFinitePoints(t *testing.T) {
	cases := map[string][2][]float64{
		"NaN y":  {{1, 2, 3}, {100, math.NaN(), 300}},
		"Inf y":  {{1, 2, 3}, {100, math.Inf(1), 300}},
		"-Inf x": {{math.Inf(-1), 2, 3}, {100, 200, 300}},
		"NaN x":  {{1, math.NaN(), 3}, {100, 200, 300}},
	}
	for name, xy := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Regress(xy[0], xy[1])
			assert.ErrorIs(t, err, ErrInvalidData)
		})
	}
}

func TestRegressTwoPoints(t *testing.T) {
	reg, err := Regress([]float64{1, 2}, []float64{10, 30})
	require.NoError(t, err)
	assert.InDelta(t, 20, reg.Slope, 1e-9)
	assert.Equal(t, 0.0, reg.PValue)
	assert.Equal(t, 0.0, reg.StdErr)

	flat, err := Regress([]float64{1, 2}, []float64{10, 10})
	require.NoError(t, err)
	assert.Equal(t, 0.0, flat.R)
	assert.Equal(t, 1.0, flat.PValue)
}

func boundaryRows() []model.Row {
	var rows []model.Row
	for _, pid := range []string{"p1", "p2"} {
		for _, ms := range []float64{400, 420, 2000} {
			rows = append(rows, row(pid, 40, 200, model.DirLeft, ms, 0))
		}
	}
	return rows
}

func TestRemoveOutliersBoundary(t *testing.T) {
	rows := boundaryRows()

	// Population mean 940, variance 561866.67, so z(2000) = 1060/749.58 ≈ 1.4141.
	mean := 940.0
	std := math.Sqrt((540*540 + 520*520 + 1060*1060) / 3.0)
	z := (2000 - mean) / std
	require.InDelta(t, 1.4141, z, 1e-4)
	require.Less(t, z, 3.0)

	kept, rep := RemoveOutliers(rows, ColumnTime, 3)
	assert.Len(t, kept, 6)
	assert.Equal(t, 0, rep.Removed)

	kept, rep = RemoveOutliers(rows, ColumnTime, 1.4)
	assert.Len(t, kept, 4)
	assert.Equal(t, 2, rep.Removed)
	assert.InDelta(t, 100.0/3, rep.Percent(), 1e-9)
	for _, r := range kept {
		assert.NotEqual(t, 2000.0, r.TimeMs)
	}

	// Exactly at the boundary the row is dropped: |z| < threshold keeps.
	kept, _ = RemoveOutliers(rows, ColumnTime, z)
	assert.Len(t, kept, 4)
}

func TestRemoveOutliersIdempotentAtHugeThreshold(t *testing.T) {
	rows := append(boundaryRows(),
		row("p1", 20, 100, model.DirRight, 300, 1),
		row("p1", 20, 100, model.DirRight, 9000, 4),
		row("p2", 60, 300, model.DirLeft, 700, 0),
	)
	kept, rep := RemoveOutliers(rows, ColumnTime, 1e9)
	assert.Equal(t, rows, kept)
	assert.Equal(t, 0, rep.Removed)
}

func TestRemoveOutliersDegenerateGroupsPassThrough(t *testing.T) {
	rows := []model.Row{
		row("p1", 20, 100, model.DirLeft, 5000, 0),
		row("p1", 40, 100, model.DirLeft, 300, 0),
		row("p2", 40, 100, model.DirLeft, 300, 0),
	}
	kept, rep := RemoveOutliers(rows, ColumnTime, 0.0001)
	assert.Equal(t, rows, kept)
	assert.Equal(t, []model.GroupKey{
		{Size: 20, Distance: 100, Direction: model.DirLeft},
		{Size: 40, Distance: 100, Direction: model.DirLeft},
	}, rep.Degenerate)
}

func TestRemoveOutliersByErrorsColumn(t *testing.T) {
	var rows []model.Row
	for i := 0; i < 20; i++ {
		rows = append(rows, row("p1", 20, 100, model.DirLeft, 500, 0))
	}
	rows = append(rows, row("p1", 20, 100, model.DirLeft, 500, 30))
	kept, rep := RemoveOutliers(rows, ColumnErrors, 3)
	assert.Len(t, kept, 20)
	assert.Equal(t, 1, rep.Removed)
}

func TestAggregate(t *testing.T) {
	rows := []model.Row{
		row("p1", 20, 100, model.DirLeft, 400, 1),
		row("p2", 20, 100, model.DirLeft, 600, 3),
		row("p1", 60, 300, model.DirRight, 800, 0),
	}
	got := Aggregate(rows)
	require.Len(t, got, 2)

	want := []MetricsRow{
		{
			GroupKey: model.GroupKey{Size: 20, Distance: 100, Direction: model.DirLeft},
			N:        2,
			Time:     Stat{Mean: 500, Std: math.Sqrt(20000)},
			Errors:   Stat{Mean: 2, Std: math.Sqrt2},
			Path:     Stat{Mean: 110, Std: 0},
			ID:       math.Log2(6),
			IP:       math.Log2(6) / 0.5,
		},
		{
			GroupKey: model.GroupKey{Size: 60, Distance: 300, Direction: model.DirRight},
			N:        1,
			Time:     Stat{Mean: 800, Std: math.NaN()},
			Errors:   Stat{Mean: 0, Std: math.NaN()},
			Path:     Stat{Mean: 310, Std: math.NaN()},
			ID:       math.Log2(6),
			IP:       math.Log2(6) / 0.8,
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("aggregate mismatch (-want +got):\n%s", diff)
	}
}

func TestBreakdowns(t *testing.T) {
	rows := []model.Row{
		row("bob", 20, 100, model.DirLeft, 400, 2),
		row("bob", 40, 300, model.DirRight, 600, 0),
		row("amy", 20, 300, model.DirLeft, 800, 0),
		row("amy", 40, 100, model.DirRight, 1000, 0),
	}

	dirs := ByDirection(rows)
	require.Len(t, dirs, 2)
	assert.Equal(t, "left", dirs[0].Label)
	assert.InDelta(t, 600, dirs[0].Time.Mean, 1e-9)
	assert.Equal(t, 400.0, dirs[0].MinTime)
	assert.Equal(t, 800.0, dirs[0].MaxTime)
	assert.Equal(t, 2, dirs[0].ErrorSum)
	assert.InDelta(t, 200.0/600*100, DirectionSpreadPercent(dirs), 1e-9)

	sizes := BySize(rows)
	require.Len(t, sizes, 2)
	assert.Equal(t, "20", sizes[0].Label)
	assert.Equal(t, "40", sizes[1].Label)

	dists := ByDistance(rows)
	assert.Equal(t, "100", dists[0].Label)
	assert.Equal(t, "300", dists[1].Label)

	parts := ByParticipant(rows)
	require.Len(t, parts, 2)
	assert.Equal(t, "amy", parts[0].Label)

	v := ParticipantVariability(parts)
	assert.Equal(t, "bob", v.Fastest)
	assert.Equal(t, "amy", v.Slowest)
	assert.Equal(t, "amy", v.MostAccurate)
	assert.Equal(t, "bob", v.LeastAccurate)
	assert.InDelta(t, math.Sqrt(80000)/700*100, v.TimeCV, 1e-9)
	assert.InDelta(t, math.Sqrt(0.5)/(0.5+0.001)*100, v.ErrorCV, 1e-9)

	overall := OverallStats(rows)
	assert.Equal(t, Overall{Participants: 2, Trials: 4, MeanTimeMs: 700, MeanErrors: 0.5, MeanDistance: 210}, overall)

	grid := ErrorGrid(rows)
	require.Len(t, grid, 4)
	assert.Equal(t, ErrorCell{Distance: 100, Size: 20, MeanErrors: 2, N: 1}, grid[0])
	assert.Equal(t, 300.0, grid[3].Distance)
	assert.Equal(t, 40.0, grid[3].Size)
}

func TestSingleParticipantVariabilityIsNaN(t *testing.T) {
	v := ParticipantVariability([]Summary{{Label: "solo", Time: Stat{Mean: 500}}})
	assert.Equal(t, "solo", v.Fastest)
	assert.True(t, math.IsNaN(v.TimeCV))
	assert.True(t, math.IsNaN(DirectionSpreadPercent(nil)))
}

func TestRunNoData(t *testing.T) {
	_, err := Run(nil, Options{})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRunRejectsNegativeThreshold(t *testing.T) {
	_, err := Run(boundaryRows(), Options{ZThreshold: -1})
	assert.Error(t, err)
}

func TestRunRejectsNaNThreshold(t *testing.T) {
	_, err := Run(boundaryRows(), Options{ZThreshold: math.NaN()})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoData))
}

func TestRunRejectsInvalidRows(t *testing.T) {
	cases := map[string]func(*model.Row){
		"NaN time":          func(r *model.Row) { r.TimeMs = math.NaN() },
		"infinite time":     func(r *model.Row) { r.TimeMs = math.Inf(1) },
		"zero time":         func(r *model.Row) { r.TimeMs = 0 },
		"negative distance": func(r *model.Row) { r.Distance = -20 },
		"zero size":         func(r *model.Row) { r.Size = 0 },
		"negative path":     func(r *model.Row) { r.DistanceTraveled = -1 },
		"negative errors":   func(r *model.Row) { r.Errors = -3 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rows := boundaryRows()
			mutate(&rows[len(rows)-1])
			_, err := Run(rows, Options{})
			assert.ErrorIs(t, err, ErrInvalidData)
		})
	}
}

func TestRunFullPipeline(t *testing.T) {
	var rows []model.Row
	for _, pid := range []string{"p1", "p2"} {
		for _, size := range []float64{20, 40} {
			for _, dist := range []float64{100, 300} {
				id := IndexOfDifficulty(dist, size)
				rows = append(rows,
					row(pid, size, dist, model.DirLeft, 300+200*id, 0),
					row(pid, size, dist, model.DirRight, 300+200*id, 1),
				)
			}
		}
	}
	core, logs := observer.New(zapcore.InfoLevel)
	res, err := Run(rows, Options{Logger: zap.New(core)})
	require.NoError(t, err)
	require.NoError(t, res.RegressionErr)

	assert.Len(t, res.Groups, 8)
	assert.InDelta(t, 200, res.Regression.Slope, 1e-6)
	assert.InDelta(t, 300, res.Regression.Intercept, 1e-6)
	assert.InDelta(t, 5, res.Regression.Throughput, 1e-9)
	assert.Equal(t, 2, res.Overall.Participants)
	assert.Len(t, res.Directions, 2)
	assert.Len(t, res.Participants, 2)
	assert.Equal(t, ColumnTime, res.Outliers.Column)
	assert.Equal(t, DefaultZThreshold, res.Outliers.Threshold)
	// Every group has zero time variance.
	assert.Len(t, res.Outliers.Degenerate, 8)
	assert.Equal(t, 1, logs.FilterMessage("outliers removed").Len())
	assert.Equal(t, 8, logs.FilterMessage("degenerate group passed through unfiltered").Len())
}

func TestRunReportsUndefinedRegression(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	res, err := Run(boundaryRows(), Options{Logger: zap.New(core)})
	require.NoError(t, err)
	assert.ErrorIs(t, res.RegressionErr, ErrRegressionUndefined)
	assert.Equal(t, Regression{}, res.Regression)
	assert.Len(t, res.Groups, 1)
	assert.Equal(t, 1, logs.FilterMessage("regression skipped").Len())
}

func TestParseColumn(t *testing.T) {
	c, err := ParseColumn("errors")
	require.NoError(t, err)
	assert.Equal(t, ColumnErrors, c)
	_, err = ParseColumn("speed")
	assert.Error(t, err)
}

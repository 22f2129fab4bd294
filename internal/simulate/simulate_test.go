package simulate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/fitts/internal/engine"
	"github.com/verte-zerg/fitts/internal/geom"
	"github.com/verte-zerg/fitts/internal/metrics"
	"github.com/verte-zerg/fitts/internal/model"
	"github.com/verte-zerg/fitts/internal/plan"
)

type memorySink struct {
	calls   int
	records []model.TrialRecord
}

func (s *memorySink) Flush(_ context.Context, _ string, records []model.TrialRecord) error {
	s.calls++
	s.records = records
	return nil
}

func runSession(t *testing.T, profile Profile, seed int64) *memorySink {
	t.Helper()
	trials, err := plan.NewSeeded(seed).Generate(
		[]float64{20, 40, 60},
		[]float64{100, 200, 300},
		[]model.Direction{model.DirLeft, model.DirRight},
		2,
	)
	require.NoError(t, err)

	sim := New(profile, seed, nil)
	sink := &memorySink{}
	eng, err := engine.New("sim", trials, engine.Options{
		Center: geom.Point{X: 400, Y: 300},
		Clock:  sim.Clock(),
		Sink:   sink,
	})
	require.NoError(t, err)
	require.NoError(t, sim.Run(context.Background(), eng))
	assert.Equal(t, engine.StateComplete, eng.State())
	return sink
}

func TestRunFollowsFittsLaw(t *testing.T) {
	profile := DefaultProfile
	profile.Jitter = 0
	profile.MissProb = 0
	sink := runSession(t, profile, 7)

	require.Equal(t, 1, sink.calls)
	require.Len(t, sink.records, 36)
	for _, r := range sink.records {
		want := profile.A + profile.B*metrics.IndexOfDifficulty(r.Distance, r.Size)
		assert.InDelta(t, want, r.TimeMs, 1e-3)
		assert.Equal(t, 0, r.Errors)
		assert.GreaterOrEqual(t, r.DistanceTraveled, r.Distance-1e-9)
	}

	rows := make([]model.Row, len(sink.records))
	for i, r := range sink.records {
		rows[i] = model.Row{ParticipantID: "sim", TrialRecord: r}
	}
	res, err := metrics.Run(rows, metrics.Options{})
	require.NoError(t, err)
	require.NoError(t, res.RegressionErr)
	assert.InDelta(t, profile.B, res.Regression.Slope, 1e-3)
	assert.InDelta(t, profile.A, res.Regression.Intercept, 1e-3)
}

func TestRunAlwaysMissingCountsOneError(t *testing.T) {
	profile := DefaultProfile
	profile.MissProb = 1
	sink := runSession(t, profile, 3)
	for _, r := range sink.records {
		assert.Equal(t, 1, r.Errors)
		// Overshoot and return add path beyond the straight distance.
		assert.Greater(t, r.DistanceTraveled, r.Distance)
	}
}

func TestRunIsDeterministicPerSeed(t *testing.T) {
	a := runSession(t, DefaultProfile, 42)
	b := runSession(t, DefaultProfile, 42)
	assert.Equal(t, a.records, b.records)
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	trials := []model.TrialSpec{{Size: 20, Distance: 100, Direction: model.DirLeft}}
	sim := New(DefaultProfile, 1, nil)
	sink := &memorySink{}
	eng, err := engine.New("sim", trials, engine.Options{Center: geom.Point{X: 400, Y: 300}, Clock: sim.Clock(), Sink: sink})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sim.Run(ctx, eng), context.Canceled)
	assert.Equal(t, engine.StateAborted, eng.State())
	assert.Equal(t, 0, sink.calls)
}

func TestBezierEndpoints(t *testing.T) {
	sim := New(DefaultProfile, 1, nil)
	a := geom.Point{X: 400, Y: 300}
	b := geom.Point{X: 100, Y: 300}
	path := sim.bezier(a, b, 20)
	require.Len(t, path, 20)
	assert.InDelta(t, a.X, path[0].X, 1e-9)
	assert.InDelta(t, a.Y, path[0].Y, 1e-9)
	assert.Equal(t, b, path[19])
}

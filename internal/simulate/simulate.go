// Package simulate drives the trial engine with a synthetic participant whose
// movement times follow Fitts' law.
package simulate

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/fitts/internal/engine"
	"github.com/verte-zerg/fitts/internal/geom"
	"github.com/verte-zerg/fitts/internal/metrics"
)

// Profile describes a synthetic participant.
type Profile struct {
	// A is the fixed overhead in ms and B the cost per bit in ms.
	A float64
	B float64
	// Jitter scales movement time by a uniform factor in [1-Jitter, 1+Jitter].
	Jitter float64
	// MissProb is the chance of one overshooting miss before the hit.
	MissProb float64
	// SampleRate is pointer samples per second.
	SampleRate float64
	// Curvature bounds the sideways bend of the path as a share of distance.
	Curvature float64
	// Dwell is the pause before clicking the center target.
	Dwell time.Duration
}

// DefaultProfile is a plausible mouse user.
var DefaultProfile = Profile{
	A:          250,
	B:          150,
	Jitter:     0.15,
	MissProb:   0.05,
	SampleRate: 100,
	Curvature:  0.1,
	Dwell:      400 * time.Millisecond,
}

// Clock is a manual clock shared with the engine.
type Clock struct {
	now time.Time
}

// Now implements engine.Clock.
func (c *Clock) Now() time.Time { return c.now }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// Participant produces pointer events for an engine.
type Participant struct {
	profile Profile
	rnd     *rand.Rand
	clock   *Clock
	logger  *zap.Logger
}

// New returns a participant with a deterministic random source.
func New(profile Profile, seed int64, logger *zap.Logger) *Participant {
	if profile.SampleRate <= 0 {
		profile.SampleRate = DefaultProfile.SampleRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Participant{
		profile: profile,
		rnd:     rand.New(rand.NewSource(seed)),
		clock:   &Clock{now: time.Unix(0, 0).UTC()},
		logger:  logger,
	}
}

// Clock returns the clock the engine must be built with.
func (p *Participant) Clock() *Clock { return p.clock }

// MovementTime returns the jittered movement time for one trial.
func (p *Participant) MovementTime(distance, size float64) time.Duration {
	mt := p.profile.A + p.profile.B*metrics.IndexOfDifficulty(distance, size)
	if p.profile.Jitter > 0 {
		mt *= 1 + (p.rnd.Float64()*2-1)*p.profile.Jitter
	}
	return time.Duration(mt * float64(time.Millisecond))
}

// Run plays every trial of the engine's plan until the session completes.
func (p *Participant) Run(ctx context.Context, eng *engine.Engine) error {
	for !eng.State().Terminal() {
		if err := ctx.Err(); err != nil {
			eng.Abort()
			return err
		}
		if err := p.playTrial(ctx, eng); err != nil {
			return err
		}
	}
	done, total := eng.Progress()
	p.logger.Debug("simulated session finished",
		zap.String("participant", eng.ParticipantID()),
		zap.Int("trials", done),
		zap.Int("total", total),
	)
	return nil
}

func (p *Participant) playTrial(ctx context.Context, eng *engine.Engine) error {
	spec, ok := eng.Current()
	if !ok {
		return fmt.Errorf("no current trial in state %s", eng.State())
	}
	p.clock.Advance(p.profile.Dwell)
	if err := p.send(ctx, eng, engine.EventDown, eng.Center()); err != nil {
		return err
	}
	if eng.State() != engine.StateAwaitTarget {
		return fmt.Errorf("center click was not accepted in state %s", eng.State())
	}

	start := eng.Center()
	target := eng.Target()
	mt := p.MovementTime(spec.Distance, spec.Size)

	if p.rnd.Float64() < p.profile.MissProb {
		dir := target.Sub(start).Mul(1 / math.Max(start.Dist(target), 1e-9))
		overshoot := target.Add(dir.Mul(spec.Size/2 + 5))
		// The miss uses most of the movement time; correcting takes the rest.
		if err := p.moveTo(ctx, eng, start, overshoot, mt*4/5); err != nil {
			return err
		}
		if err := p.send(ctx, eng, engine.EventDown, overshoot); err != nil {
			return err
		}
		if err := p.moveTo(ctx, eng, overshoot, target, mt/5); err != nil {
			return err
		}
	} else if err := p.moveTo(ctx, eng, start, target, mt); err != nil {
		return err
	}
	return p.send(ctx, eng, engine.EventDown, target)
}

// moveTo emits eased move samples along a cubic Bezier from a to b over d.
func (p *Participant) moveTo(ctx context.Context, eng *engine.Engine, a, b geom.Point, d time.Duration) error {
	steps := int(d.Seconds() * p.profile.SampleRate)
	if steps < 2 {
		steps = 2
	}
	path := p.bezier(a, b, steps)
	begin := p.clock.Now()
	for i := 1; i < len(path); i++ {
		t := float64(i) / float64(len(path)-1)
		eased := easeInOutCubic(t)
		idx := int(math.Round(eased * float64(len(path)-1)))
		target := begin.Add(time.Duration(eased * float64(d)))
		if target.After(p.clock.Now()) {
			p.clock.Advance(target.Sub(p.clock.Now()))
		}
		if err := p.send(ctx, eng, engine.EventMove, path[idx]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Participant) bezier(a, b geom.Point, steps int) []geom.Point {
	vec := b.Sub(a)
	dist := a.Dist(b)
	if dist < 1 {
		return []geom.Point{a, b}
	}
	normal := geom.Point{X: -vec.Y / dist, Y: vec.X / dist}
	bend := func() geom.Point {
		return normal.Mul((p.rnd.Float64()*2 - 1) * p.profile.Curvature * dist)
	}
	p1 := a.Add(vec.Mul(1.0 / 3)).Add(bend())
	p2 := a.Add(vec.Mul(2.0 / 3)).Add(bend())

	path := make([]geom.Point, steps)
	for i := range path {
		t := float64(i) / float64(steps-1)
		omt := 1 - t
		path[i] = a.Mul(omt * omt * omt).
			Add(p1.Mul(3 * omt * omt * t)).
			Add(p2.Mul(3 * omt * t * t)).
			Add(b.Mul(t * t * t))
	}
	path[steps-1] = b
	return path
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func (p *Participant) send(ctx context.Context, eng *engine.Engine, kind engine.EventKind, pos geom.Point) error {
	_, err := eng.Handle(ctx, engine.Event{Kind: kind, Pos: pos})
	return err
}

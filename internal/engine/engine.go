// Package engine runs the trial state machine of a pointing session.
//
// A session walks a shuffled trial plan one trial at a time:
//
//	AwaitCenterClick -> AwaitTargetClick (misses loop) -> Recorded -> AwaitCenterClick | Complete
//
// Abort is accepted in any non-terminal state and discards the trial log.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/fitts/internal/geom"
	"github.com/verte-zerg/fitts/internal/model"
)

// DefaultCenterRadius is the radius of the start target around the screen midpoint.
const DefaultCenterRadius = 15.0

var (
	// ErrSessionClosed is returned for events delivered after a terminal state.
	ErrSessionClosed = errors.New("session is closed")
	// ErrInvalidEvent is returned for malformed events; the session is aborted.
	ErrInvalidEvent = errors.New("invalid pointer event")
)

// State is a trial engine state.
type State int

// Engine states.
const (
	StateAwaitCenter State = iota
	StateAwaitTarget
	StateRecorded
	StateComplete
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateAwaitCenter:
		return "await-center-click"
	case StateAwaitTarget:
		return "await-target-click"
	case StateRecorded:
		return "recorded"
	case StateComplete:
		return "session-complete"
	case StateAborted:
		return "session-aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further events are accepted.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateAborted
}

// EventKind distinguishes pointer events.
type EventKind int

// Pointer event kinds.
const (
	EventMove EventKind = iota
	EventDown
)

// Event is a pointer sample in logical screen units.
type Event struct {
	Kind EventKind
	Pos  geom.Point
}

// Clock supplies monotonic timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock; time.Time carries a monotonic reading.
func SystemClock() Clock { return systemClock{} }

// Sink persists a completed session's trial log.
type Sink interface {
	Flush(ctx context.Context, participantID string, records []model.TrialRecord) error
}

// TargetCenter places a target at a fixed offset from the midpoint along the
// direction's axis. Screen y grows downward.
func TargetCenter(center geom.Point, spec model.TrialSpec) geom.Point {
	switch spec.Direction {
	case model.DirLeft:
		return geom.Point{X: center.X - spec.Distance, Y: center.Y}
	case model.DirRight:
		return geom.Point{X: center.X + spec.Distance, Y: center.Y}
	case model.DirUp:
		return geom.Point{X: center.X, Y: center.Y - spec.Distance}
	case model.DirDown:
		return geom.Point{X: center.X, Y: center.Y + spec.Distance}
	default:
		return center
	}
}

// Options configures a new Engine.
type Options struct {
	Center       geom.Point
	CenterRadius float64
	Clock        Clock
	Sink         Sink
	Logger       *zap.Logger
}

// Engine owns one session. It is not safe for concurrent use; events are
// expected from a single event loop.
type Engine struct {
	participantID string
	plan          []model.TrialSpec
	log           []model.TrialRecord
	cursor        int

	center       geom.Point
	centerRadius float64
	clock        Clock
	sink         Sink
	logger       *zap.Logger

	state     State
	target    geom.Point
	startedAt time.Time
	errors    int
	path      []geom.Point
}

// New creates an engine positioned at AwaitCenterClick for trial 0.
func New(participantID string, plan []model.TrialSpec, opts Options) (*Engine, error) {
	if participantID == "" {
		return nil, fmt.Errorf("participant id is empty")
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("trial plan is empty")
	}
	if opts.CenterRadius <= 0 {
		opts.CenterRadius = DefaultCenterRadius
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	e := &Engine{
		participantID: participantID,
		plan:          append([]model.TrialSpec(nil), plan...),
		log:           make([]model.TrialRecord, 0, len(plan)),
		center:        opts.Center,
		centerRadius:  opts.CenterRadius,
		clock:         opts.Clock,
		sink:          opts.Sink,
		logger:        opts.Logger.With(zap.String("participant", participantID)),
		state:         StateAwaitCenter,
	}
	e.target = TargetCenter(e.center, e.plan[0])
	return e, nil
}

// Handle applies one pointer event. The returned state is the state after the
// event. An error from the sink is returned after the session is marked complete.
func (e *Engine) Handle(ctx context.Context, ev Event) (State, error) {
	if e.state.Terminal() {
		return e.state, ErrSessionClosed
	}
	if !validEvent(ev) {
		e.Abort()
		return e.state, fmt.Errorf("%w: kind=%d pos=%v", ErrInvalidEvent, ev.Kind, ev.Pos)
	}
	switch e.state {
	case StateAwaitCenter:
		if ev.Kind == EventDown && ev.Pos.Within(e.center, e.centerRadius) {
			e.startTrial()
		}
	case StateAwaitTarget:
		switch ev.Kind {
		case EventMove:
			e.path = append(e.path, ev.Pos)
		case EventDown:
			if ev.Pos.Within(e.target, e.plan[e.cursor].Size/2) {
				return e.hit(ctx)
			}
			e.errors++
		}
	}
	return e.state, nil
}

// Abort ends the session without flushing. It is a no-op in terminal states.
func (e *Engine) Abort() {
	if e.state.Terminal() {
		return
	}
	e.transition(StateAborted)
	e.logger.Info("session aborted", zap.Int("completed", len(e.log)), zap.Int("total", len(e.plan)))
	e.log = nil
	e.path = nil
}

func (e *Engine) startTrial() {
	e.startedAt = e.clock.Now()
	e.errors = 0
	e.path = append(e.path[:0], e.center)
	e.transition(StateAwaitTarget)
}

func (e *Engine) hit(ctx context.Context) (State, error) {
	hitAt := e.clock.Now()
	e.transition(StateRecorded)
	spec := e.plan[e.cursor]
	rec := model.TrialRecord{
		Trial:            e.cursor + 1,
		Size:             spec.Size,
		Distance:         spec.Distance,
		Direction:        spec.Direction,
		TimeMs:           float64(hitAt.Sub(e.startedAt)) / float64(time.Millisecond),
		DistanceTraveled: geom.PathLength(e.path),
		Errors:           e.errors,
	}
	e.log = append(e.log, rec)
	e.cursor++

	if e.cursor < len(e.plan) {
		e.target = TargetCenter(e.center, e.plan[e.cursor])
		e.transition(StateAwaitCenter)
		return e.state, nil
	}
	e.transition(StateComplete)
	return e.state, e.flush(ctx)
}

func (e *Engine) flush(ctx context.Context) error {
	if e.sink == nil {
		return nil
	}
	if err := e.sink.Flush(ctx, e.participantID, e.Log()); err != nil {
		e.logger.Error("failed to flush session", zap.Error(err))
		return fmt.Errorf("failed to flush session: %w", err)
	}
	e.logger.Info("session flushed", zap.Int("trials", len(e.log)))
	return nil
}

func (e *Engine) transition(to State) {
	e.logger.Debug("transition",
		zap.Stringer("from", e.state),
		zap.Stringer("to", to),
		zap.Int("trial", e.cursor+1),
	)
	e.state = to
}

func validEvent(ev Event) bool {
	if ev.Kind != EventMove && ev.Kind != EventDown {
		return false
	}
	for _, v := range []float64{ev.Pos.X, ev.Pos.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// State returns the current state.
func (e *Engine) State() State { return e.state }

// ParticipantID returns the session's participant id.
func (e *Engine) ParticipantID() string { return e.participantID }

// Center returns the start target position.
func (e *Engine) Center() geom.Point { return e.center }

// CenterRadius returns the start target radius.
func (e *Engine) CenterRadius() float64 { return e.centerRadius }

// Current returns the trial currently executing.
func (e *Engine) Current() (model.TrialSpec, bool) {
	if e.state.Terminal() || e.cursor >= len(e.plan) {
		return model.TrialSpec{}, false
	}
	return e.plan[e.cursor], true
}

// Target returns the current trial's target center.
func (e *Engine) Target() geom.Point { return e.target }

// Errors returns the miss count of the current trial.
func (e *Engine) Errors() int { return e.errors }

// Progress returns the number of recorded trials and the plan length.
func (e *Engine) Progress() (done, total int) { return e.cursor, len(e.plan) }

// Log returns a copy of the trial log.
func (e *Engine) Log() []model.TrialRecord {
	return append([]model.TrialRecord(nil), e.log...)
}

// Last returns the most recent record.
func (e *Engine) Last() (model.TrialRecord, bool) {
	if len(e.log) == 0 {
		return model.TrialRecord{}, false
	}
	return e.log[len(e.log)-1], true
}

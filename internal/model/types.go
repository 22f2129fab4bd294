// Package model defines shared data structures.
package model

import (
	"fmt"
	"math"
	"strings"
)

// Direction is the side of the screen midpoint a target is placed on.
type Direction string

// Supported target directions.
const (
	DirLeft  Direction = "left"
	DirRight Direction = "right"
	DirUp    Direction = "up"
	DirDown  Direction = "down"
)

// ParseDirection normalizes and validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirLeft, DirRight, DirUp, DirDown:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// TrialSpec is one entry of a trial plan.
type TrialSpec struct {
	Size      float64
	Distance  float64
	Direction Direction
}

// GroupKey identifies a configuration group.
type GroupKey struct {
	Size      float64
	Distance  float64
	Direction Direction
}

// Key returns the configuration group of the spec.
func (s TrialSpec) Key() GroupKey {
	return GroupKey{Size: s.Size, Distance: s.Distance, Direction: s.Direction}
}

func (k GroupKey) String() string {
	return fmt.Sprintf("size=%g distance=%g direction=%s", k.Size, k.Distance, k.Direction)
}

// Less orders groups by size, distance, then direction.
func (k GroupKey) Less(o GroupKey) bool {
	if k.Size != o.Size {
		return k.Size < o.Size
	}
	if k.Distance != o.Distance {
		return k.Distance < o.Distance
	}
	return k.Direction < o.Direction
}

// TrialRecord captures a completed trial. Trial is 1-based.
type TrialRecord struct {
	Trial            int
	Size             float64
	Distance         float64
	Direction        Direction
	TimeMs           float64
	DistanceTraveled float64
	Errors           int
}

// Key returns the configuration group of the record.
func (r TrialRecord) Key() GroupKey {
	return GroupKey{Size: r.Size, Distance: r.Distance, Direction: r.Direction}
}

// Validate checks the measured values of a record. The trial number is left
// to the readers, which know whether it is meaningful.
func (r TrialRecord) Validate() error {
	switch {
	case !isFinite(r.Size) || r.Size <= 0:
		return fmt.Errorf("size must be a finite number > 0, got %g", r.Size)
	case !isFinite(r.Distance) || r.Distance <= 0:
		return fmt.Errorf("distance must be a finite number > 0, got %g", r.Distance)
	case !isFinite(r.TimeMs) || r.TimeMs <= 0:
		return fmt.Errorf("time_ms must be a finite number > 0, got %g", r.TimeMs)
	case !isFinite(r.DistanceTraveled) || r.DistanceTraveled < 0:
		return fmt.Errorf("distance_traveled must be a finite number >= 0, got %g", r.DistanceTraveled)
	case r.Errors < 0:
		return fmt.Errorf("errors must be >= 0, got %d", r.Errors)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Row is a trial record tagged with the participant that produced it.
type Row struct {
	ParticipantID string
	TrialRecord
}

// ExperimentConfig defines trial-plan and screen settings.
type ExperimentConfig struct {
	Sizes        []float64
	Distances    []float64
	Directions   []Direction
	Repetitions  int
	CenterRadius float64
	ScreenWidth  float64
	ScreenHeight float64
	CellWidth    float64
	CellHeight   float64
	DataDir      string
	MirrorDB     bool
	ConsentFile  string
}

// AnalysisConfig defines inputs and options for the metrics pipeline.
type AnalysisConfig struct {
	DataDir    string
	Source     string
	ZThreshold float64
	Column     string
	Export     string
}

// Analysis data sources.
const (
	SourceCSV = "csv"
	SourceDB  = "db"
)

// ValidSource reports whether s names a known data source.
func ValidSource(s string) bool {
	return s == SourceCSV || s == SourceDB
}

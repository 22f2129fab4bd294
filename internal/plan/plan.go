// Package plan builds randomized trial plans.
package plan

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/fitts/internal/model"
)

// DefaultRepetitions is the number of times each configuration is repeated.
const DefaultRepetitions = 10

// Generator produces shuffled trial plans.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a Generator with a fixed seed.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate builds the full cross product of sizes × distances × directions,
// repeats every combination n times, and shuffles the result once.
func (g *Generator) Generate(sizes, distances []float64, directions []model.Direction, n int) ([]model.TrialSpec, error) {
	if len(sizes) == 0 || len(distances) == 0 || len(directions) == 0 {
		return nil, fmt.Errorf("sizes, distances and directions must not be empty")
	}
	if n <= 0 {
		return nil, fmt.Errorf("repetitions must be > 0")
	}
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("size must be > 0, got %g", s)
		}
	}
	for _, d := range distances {
		if d <= 0 {
			return nil, fmt.Errorf("distance must be > 0, got %g", d)
		}
	}

	trials := make([]model.TrialSpec, 0, len(sizes)*len(distances)*len(directions)*n)
	for _, size := range sizes {
		for _, distance := range distances {
			for _, dir := range directions {
				for i := 0; i < n; i++ {
					trials = append(trials, model.TrialSpec{Size: size, Distance: distance, Direction: dir})
				}
			}
		}
	}
	g.rnd.Shuffle(len(trials), func(i, j int) {
		trials[i], trials[j] = trials[j], trials[i]
	})
	return trials, nil
}

// NewParticipantID returns an opaque 8-character identifier.
func NewParticipantID() string {
	return uuid.NewString()[:8]
}

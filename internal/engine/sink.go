package engine

import (
	"context"
	"errors"

	"github.com/verte-zerg/fitts/internal/model"
)

// MultiSink flushes to every sink in order and joins their errors.
type MultiSink []Sink

// Flush implements Sink.
func (m MultiSink) Flush(ctx context.Context, participantID string, records []model.TrialRecord) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Flush(ctx, participantID, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, participantID string, records []model.TrialRecord) error

// Flush implements Sink.
func (f SinkFunc) Flush(ctx context.Context, participantID string, records []model.TrialRecord) error {
	return f(ctx, participantID, records)
}

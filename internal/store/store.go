// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/fitts/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrInvalidRow reports a stored trial whose values cannot be analyzed.
var ErrInvalidRow = errors.New("invalid stored trial")

// Store mirrors completed sessions into SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// SessionSummary describes a stored session.
type SessionSummary struct {
	ParticipantID string
	CompletedAt   time.Time
	Trials        int
	MeanTimeMs    float64
	TotalErrors   int
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			participant_id TEXT PRIMARY KEY,
			completed_at TEXT NOT NULL,
			trial_count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trials (
			participant_id TEXT NOT NULL,
			trial INTEGER NOT NULL,
			size REAL NOT NULL,
			distance REAL NOT NULL,
			direction TEXT NOT NULL,
			time_ms REAL NOT NULL,
			distance_traveled REAL NOT NULL,
			errors INTEGER NOT NULL,
			PRIMARY KEY (participant_id, trial)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trials_config ON trials(size, distance, direction);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Flush stores a completed session and its trials in one transaction.
func (s *Store) Flush(ctx context.Context, participantID string, records []model.TrialRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (participant_id, completed_at, trial_count) VALUES (?, ?, ?)`,
		participantID,
		s.now().UTC().Format(time.RFC3339Nano),
		len(records),
	); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if len(records) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO trials (participant_id, trial, size, distance, direction, time_ms, distance_traveled, errors)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, r := range records {
			if _, err = stmt.ExecContext(ctx, participantID, r.Trial, r.Size, r.Distance, string(r.Direction), r.TimeMs, r.DistanceTraveled, r.Errors); err != nil {
				return fmt.Errorf("failed to insert trial %d: %w", r.Trial, err)
			}
		}
	}

	err = tx.Commit()
	return err
}

// ListRows returns every stored trial tagged with its participant, ordered by
// participant and trial number.
func (s *Store) ListRows(ctx context.Context) ([]model.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT participant_id, trial, size, distance, direction, time_ms, distance_traveled, errors
		FROM trials
		ORDER BY participant_id ASC, trial ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.Row
	for rows.Next() {
		var row model.Row
		var dir string
		if err := rows.Scan(&row.ParticipantID, &row.Trial, &row.Size, &row.Distance, &dir, &row.TimeMs, &row.DistanceTraveled, &row.Errors); err != nil {
			return nil, err
		}
		if row.Direction, err = model.ParseDirection(dir); err != nil {
			return nil, err
		}
		if row.Trial < 1 {
			return nil, fmt.Errorf("%w: participant %s: trial must be >= 1, got %d", ErrInvalidRow, row.ParticipantID, row.Trial)
		}
		if err := row.Validate(); err != nil {
			return nil, fmt.Errorf("%w: participant %s trial %d: %v", ErrInvalidRow, row.ParticipantID, row.Trial, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListSessions summarizes stored sessions ordered by completion time.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.participant_id, s.completed_at, s.trial_count,
			COALESCE(AVG(t.time_ms), 0), COALESCE(SUM(t.errors), 0)
		FROM sessions s
		LEFT JOIN trials t ON t.participant_id = s.participant_id
		GROUP BY s.participant_id
		ORDER BY s.completed_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var completedAt string
		if err := rows.Scan(&sum.ParticipantID, &completedAt, &sum.Trials, &sum.MeanTimeMs, &sum.TotalErrors); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, completedAt)
		if err != nil {
			return nil, err
		}
		sum.CompletedAt = parsed
		sessions = append(sessions, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

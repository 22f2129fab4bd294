// Package trialfile reads and writes per-session trial CSV files.
package trialfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/fitts/internal/model"
)

const (
	filePrefix = "fitts_law_"
	fileSuffix = ".csv"
)

// Header is the required column order of a session file.
var Header = []string{"trial", "size", "distance", "direction", "time_ms", "distance_traveled", "errors"}

// ErrMalformed marks a session file that does not follow the expected layout.
var ErrMalformed = errors.New("malformed trial file")

// ErrSessionExists reports a session file that is already on disk.
var ErrSessionExists = errors.New("session file already exists")

// FileName returns the session file name for a participant.
func FileName(participantID string) string {
	return filePrefix + participantID + fileSuffix
}

// ParticipantFromPath extracts the participant id embedded in a session file name.
func ParticipantFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if id == "" {
		return "", false
	}
	return id, true
}

// Write encodes records with a header row.
func Write(w io.Writer, records []model.TrialRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Trial),
			formatFloat(r.Size),
			formatFloat(r.Distance),
			string(r.Direction),
			formatFloat(r.TimeMs),
			formatFloat(r.DistanceTraveled),
			strconv.Itoa(r.Errors),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read decodes a session file. The header must match Header exactly.
func Read(r io.Reader) ([]model.TrialRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i, col := range Header {
		if strings.TrimSpace(header[i]) != col {
			return nil, fmt.Errorf("%w: column %d is %q, expected %q", ErrMalformed, i+1, header[i], col)
		}
	}

	var records []model.TrialRecord
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		rec, err := parseRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRecord(fields []string) (model.TrialRecord, error) {
	var rec model.TrialRecord
	var err error
	if rec.Trial, err = strconv.Atoi(strings.TrimSpace(fields[0])); err != nil {
		return rec, fmt.Errorf("trial: %w", err)
	}
	if rec.Trial < 1 {
		return rec, fmt.Errorf("trial must be >= 1, got %d", rec.Trial)
	}
	if rec.Size, err = parseFloat(fields[1]); err != nil {
		return rec, fmt.Errorf("size: %w", err)
	}
	if rec.Distance, err = parseFloat(fields[2]); err != nil {
		return rec, fmt.Errorf("distance: %w", err)
	}
	if rec.Direction, err = model.ParseDirection(fields[3]); err != nil {
		return rec, err
	}
	if rec.TimeMs, err = parseFloat(fields[4]); err != nil {
		return rec, fmt.Errorf("time_ms: %w", err)
	}
	if rec.DistanceTraveled, err = parseFloat(fields[5]); err != nil {
		return rec, fmt.Errorf("distance_traveled: %w", err)
	}
	if rec.Errors, err = strconv.Atoi(strings.TrimSpace(fields[6])); err != nil {
		return rec, fmt.Errorf("errors: %w", err)
	}
	return rec, rec.Validate()
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Writer persists completed sessions as CSV files in a directory.
type Writer struct {
	Dir string
}

// Path returns where a participant's file is written.
func (w Writer) Path(participantID string) string {
	return filepath.Join(w.Dir, FileName(participantID))
}

// Flush writes all records at once. Existing files are never overwritten.
func (w Writer) Flush(_ context.Context, participantID string, records []model.TrialRecord) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	path := w.Path(participantID)

	tmpFile, err := os.CreateTemp(w.Dir, "session-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	buf := bufio.NewWriter(tmpFile)
	if err := Write(buf, records); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush session file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	// Link fails if path exists, so a concurrent writer is never clobbered.
	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrSessionExists, path)
		}
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// ReadFile reads one session file.
func ReadFile(path string) ([]model.TrialRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only session file.
			_ = cerr
		}
	}()
	records, err := Read(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// SessionFile describes a session file found in a data directory.
type SessionFile struct {
	ParticipantID string
	Path          string
}

// List returns session files in dir sorted by participant id.
// A missing directory yields no files.
func List(dir string) ([]SessionFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}
	var files []SessionFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := ParticipantFromPath(entry.Name())
		if !ok {
			continue
		}
		files = append(files, SessionFile{ParticipantID: id, Path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].ParticipantID < files[j].ParticipantID
	})
	return files, nil
}

// LoadDir reads every session file in dir and tags each row with the
// participant id from its file name. Files are parsed concurrently; row order
// follows List order. Any malformed file fails the whole load.
func LoadDir(ctx context.Context, dir string) ([]model.Row, error) {
	files, err := List(dir)
	if err != nil {
		return nil, err
	}
	perFile := make([][]model.TrialRecord, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := ReadFile(f.Path)
			if err != nil {
				return err
			}
			perFile[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []model.Row
	for i, f := range files {
		for _, rec := range perFile[i] {
			rows = append(rows, model.Row{ParticipantID: f.ParticipantID, TrialRecord: rec})
		}
	}
	return rows, nil
}

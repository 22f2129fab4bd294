package trialfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/fitts/internal/model"
)

func sampleRecords() []model.TrialRecord {
	return []model.TrialRecord{
		{Trial: 1, Size: 20, Distance: 100, Direction: model.DirLeft, TimeMs: 512.345678, DistanceTraveled: 104.25, Errors: 0},
		{Trial: 2, Size: 60, Distance: 300, Direction: model.DirRight, TimeMs: 731, DistanceTraveled: 0, Errors: 2},
	}
}

func TestWriteLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleRecords()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "trial,size,distance,direction,time_ms,distance_traveled,errors", lines[0])
	assert.Equal(t, "1,20,100,left,512.345678,104.25,0", lines[1])
	assert.Equal(t, "2,60,300,right,731,0,2", lines[2])
}

func TestReadRejectsWrongHeader(t *testing.T) {
	_, err := Read(strings.NewReader("Trial,Distance,Size,Direction,Time(ms),MouseDist,Errors\n1,100,20,left,5,5,0\n"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReadRejectsBadRow(t *testing.T) {
	in := "trial,size,distance,direction,time_ms,distance_traveled,errors\n1,20,100,sideways,5,5,0\n"
	_, err := Read(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParticipantFromPath(t *testing.T) {
	id, ok := ParticipantFromPath("/data/fitts_law_ab12cd34.csv")
	assert.True(t, ok)
	assert.Equal(t, "ab12cd34", id)

	_, ok = ParticipantFromPath("notes.csv")
	assert.False(t, ok)
	_, ok = ParticipantFromPath("fitts_law_.csv")
	assert.False(t, ok)
}

func TestWriterFlushAndLoadDir(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Dir: dir}
	ctx := context.Background()
	require.NoError(t, w.Flush(ctx, "bbbb", sampleRecords()))
	require.NoError(t, w.Flush(ctx, "aaaa", sampleRecords()[:1]))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))

	assert.ErrorIs(t, w.Flush(ctx, "aaaa", sampleRecords()), ErrSessionExists)

	rows, err := LoadDir(ctx, dir)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "aaaa", rows[0].ParticipantID)
	assert.Equal(t, "bbbb", rows[1].ParticipantID)
	assert.Equal(t, sampleRecords()[1], rows[2].TrialRecord)

	files, err := List(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestLoadDirFailsFastOnMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Writer{Dir: dir}.Flush(context.Background(), "good", sampleRecords()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName("bad")), []byte("nope\n"), 0o644))

	_, err := LoadDir(context.Background(), dir)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLoadDirMissingDirectory(t *testing.T) {
	rows, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"trial zero":        "0,20,100,left,400,100,0",
		"zero size":         "1,0,100,left,400,100,0",
		"negative distance": "1,20,-20,left,400,100,0",
		"infinite distance": "1,20,Inf,left,400,100,0",
		"NaN time":          "1,20,100,left,NaN,100,0",
		"infinite time":     "1,20,100,left,Inf,100,0",
		"zero time":         "1,20,100,left,0,100,0",
		"negative time":     "1,20,100,left,-5,100,0",
		"negative path":     "1,20,100,left,400,-1,0",
		"NaN path":          "1,20,100,left,400,NaN,0",
		"negative errors":   "1,20,100,left,400,100,-3",
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			in := strings.Join(Header, ",") + "\n" + row + "\n"
			_, err := Read(strings.NewReader(in))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Contains(t, err.Error(), "line 2")
		})
	}
}

func TestLoadDirRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join(Header, ",") + "\n" +
		"1,20,100,left,NaN,100,0\n" +
		"2,20,-20,right,0,100,-3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName("p1")), []byte(content), 0o644))

	_, err := LoadDir(context.Background(), dir)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestWriterFlushKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Dir: dir}
	path := w.Path("p1")
	require.NoError(t, os.WriteFile(path, []byte("written elsewhere\n"), 0o644))

	err := w.Flush(context.Background(), "p1", sampleRecords())
	assert.ErrorIs(t, err, ErrSessionExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "written elsewhere\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be cleaned up")
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, FileConfig{}, cfg)

	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[experiment]
sizes = [10, 30]
distances = [150.5]
directions = ["up", "down"]
repetitions = 4
mirror-db = true

[analysis]
z-threshold = 2.5
column = "errors"

[log]
level = "debug"
max-size = 5
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 30}, cfg.Experiment.Sizes)
	assert.Equal(t, []float64{150.5}, cfg.Experiment.Distances)
	assert.Equal(t, []string{"up", "down"}, cfg.Experiment.Directions)
	require.NotNil(t, cfg.Experiment.Repetitions)
	assert.Equal(t, 4, *cfg.Experiment.Repetitions)
	require.NotNil(t, cfg.Experiment.MirrorDB)
	assert.True(t, *cfg.Experiment.MirrorDB)
	assert.Nil(t, cfg.Experiment.ScreenWidth)
	require.NotNil(t, cfg.Analysis.ZThreshold)
	assert.Equal(t, 2.5, *cfg.Analysis.ZThreshold)
	require.NotNil(t, cfg.Log.MaxSizeMB)
	assert.Equal(t, 5, *cfg.Log.MaxSizeMB)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[experiment]\nsize = [1]\n"), 0o644))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "experiment.size")
}

func TestXDGPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_STATE_HOME", "/state")

	assert.Equal(t, "/cfg/fitts/config.toml", DefaultConfigPath())
	assert.Equal(t, "/data/fitts/data", DefaultDataDir())
	assert.Equal(t, "/data/fitts/fitts.db", DefaultDBPath())
	assert.Equal(t, "/data/fitts/results/fitts_law_analysis.xlsx", DefaultExportPath())
	assert.Equal(t, "/state/fitts/fitts.log", DefaultLogPath())
}

// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Experiment ExperimentConfig `toml:"experiment"`
	Analysis   AnalysisConfig   `toml:"analysis"`
	Log        LogConfig        `toml:"log"`
}

// ExperimentConfig maps trial-plan and screen settings.
type ExperimentConfig struct {
	Sizes        []float64 `toml:"sizes"`
	Distances    []float64 `toml:"distances"`
	Directions   []string  `toml:"directions"`
	Repetitions  *int      `toml:"repetitions"`
	CenterRadius *float64  `toml:"center-radius"`
	ScreenWidth  *float64  `toml:"screen-width"`
	ScreenHeight *float64  `toml:"screen-height"`
	CellWidth    *float64  `toml:"cell-width"`
	CellHeight   *float64  `toml:"cell-height"`
	DataDir      *string   `toml:"data-dir"`
	MirrorDB     *bool     `toml:"mirror-db"`
	ConsentFile  *string   `toml:"consent-file"`
}

// AnalysisConfig maps metrics pipeline settings.
type AnalysisConfig struct {
	DataDir    *string  `toml:"data-dir"`
	Source     *string  `toml:"source"`
	ZThreshold *float64 `toml:"z-threshold"`
	Column     *string  `toml:"column"`
	Export     *string  `toml:"export"`
}

// LogConfig maps logger and rotation settings.
type LogConfig struct {
	Level      *string `toml:"level"`
	File       *string `toml:"file"`
	MaxSizeMB  *int    `toml:"max-size"`
	MaxBackups *int    `toml:"max-backups"`
	MaxAgeDays *int    `toml:"max-age"`
	Compress   *bool   `toml:"compress"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

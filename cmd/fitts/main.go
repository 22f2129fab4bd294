// Package main provides the CLI entrypoint for fitts.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/fitts/internal/config"
	"github.com/verte-zerg/fitts/internal/engine"
	"github.com/verte-zerg/fitts/internal/geom"
	"github.com/verte-zerg/fitts/internal/logging"
	"github.com/verte-zerg/fitts/internal/model"
	"github.com/verte-zerg/fitts/internal/plan"
	"github.com/verte-zerg/fitts/internal/store"
	"github.com/verte-zerg/fitts/internal/trialfile"
	"github.com/verte-zerg/fitts/internal/tui"
)

const (
	defaultRepetitions  = 10
	defaultCenterRadius = engine.DefaultCenterRadius
	defaultScreenWidth  = 800.0
	defaultScreenHeight = 600.0
	defaultCellWidth    = 10.0
	defaultCellHeight   = 20.0
	defaultLogLevel     = "info"
)

var (
	defaultSizes      = []float64{20, 40, 60}
	defaultDistances  = []float64{100, 200, 300}
	defaultDirections = []string{string(model.DirLeft), string(model.DirRight)}
)

// experimentFlags backs the plan and screen flags shared by the experiment
// and simulate commands.
type experimentFlags struct {
	sizes        []float64
	distances    []float64
	directions   []string
	repetitions  int
	centerRadius float64
	screenWidth  float64
	screenHeight float64
	cellWidth    float64
	cellHeight   float64
	dataDir      string
	mirrorDB     bool
	consentFile  string
}

var (
	runFlags experimentFlags

	logLevel string
	logFile  string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fitts",
		Short:         "Fitts' law pointing experiment",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runExperimentCmd,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path (default: $XDG_STATE_HOME/fitts/fitts.log)")
	bindExperimentFlags(rootCmd, &runFlags)
	rootCmd.Flags().StringVar(&runFlags.consentFile, "consent-file", "", "replace the built-in consent text")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(newSimulateCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func bindExperimentFlags(cmd *cobra.Command, f *experimentFlags) {
	cmd.Flags().Float64SliceVar(&f.sizes, "sizes", defaultSizes, "target sizes in logical units")
	cmd.Flags().Float64SliceVar(&f.distances, "distances", defaultDistances, "target distances from the center")
	cmd.Flags().StringSliceVar(&f.directions, "directions", defaultDirections, "target directions (left, right, up, down)")
	cmd.Flags().IntVar(&f.repetitions, "repetitions", defaultRepetitions, "repetitions per size/distance/direction")
	cmd.Flags().Float64Var(&f.centerRadius, "center-radius", defaultCenterRadius, "radius of the start target")
	cmd.Flags().Float64Var(&f.screenWidth, "screen-width", defaultScreenWidth, "logical screen width")
	cmd.Flags().Float64Var(&f.screenHeight, "screen-height", defaultScreenHeight, "logical screen height")
	cmd.Flags().Float64Var(&f.cellWidth, "cell-width", defaultCellWidth, "logical units per terminal column")
	cmd.Flags().Float64Var(&f.cellHeight, "cell-height", defaultCellHeight, "logical units per terminal row")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "directory for session files (default: $XDG_DATA_HOME/fitts/data)")
	cmd.Flags().BoolVar(&f.mirrorDB, "mirror-db", false, "also store completed sessions in SQLite")
}

func (f *experimentFlags) apply(cmd *cobra.Command, fc config.ExperimentConfig) {
	applyFloatSliceConfig(cmd, "sizes", &f.sizes, fc.Sizes)
	applyFloatSliceConfig(cmd, "distances", &f.distances, fc.Distances)
	applyStringSliceConfig(cmd, "directions", &f.directions, fc.Directions)
	applyIntConfig(cmd, "repetitions", &f.repetitions, fc.Repetitions)
	applyFloatConfig(cmd, "center-radius", &f.centerRadius, fc.CenterRadius)
	applyFloatConfig(cmd, "screen-width", &f.screenWidth, fc.ScreenWidth)
	applyFloatConfig(cmd, "screen-height", &f.screenHeight, fc.ScreenHeight)
	applyFloatConfig(cmd, "cell-width", &f.cellWidth, fc.CellWidth)
	applyFloatConfig(cmd, "cell-height", &f.cellHeight, fc.CellHeight)
	applyStringConfig(cmd, "data-dir", &f.dataDir, fc.DataDir)
	applyBoolConfig(cmd, "mirror-db", &f.mirrorDB, fc.MirrorDB)
	applyStringConfig(cmd, "consent-file", &f.consentFile, fc.ConsentFile)
}

func (f *experimentFlags) config() (model.ExperimentConfig, error) {
	dirs := make([]model.Direction, 0, len(f.directions))
	for _, raw := range f.directions {
		d, err := model.ParseDirection(raw)
		if err != nil {
			return model.ExperimentConfig{}, fmt.Errorf("--directions: %w", err)
		}
		dirs = append(dirs, d)
	}
	dataDir := f.dataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	cfg := model.ExperimentConfig{
		Sizes:        append([]float64(nil), f.sizes...),
		Distances:    append([]float64(nil), f.distances...),
		Directions:   dirs,
		Repetitions:  f.repetitions,
		CenterRadius: f.centerRadius,
		ScreenWidth:  f.screenWidth,
		ScreenHeight: f.screenHeight,
		CellWidth:    f.cellWidth,
		CellHeight:   f.cellHeight,
		DataDir:      dataDir,
		MirrorDB:     f.mirrorDB,
		ConsentFile:  f.consentFile,
	}
	if err := validateExperiment(cfg); err != nil {
		return model.ExperimentConfig{}, err
	}
	return cfg, nil
}

func runExperimentCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	runFlags.apply(cmd, fileCfg.Experiment)
	cfg, err := runFlags.config()
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so the experiment logs to file only.
	logger, err := newLogger(cmd, fileCfg.Log, nil)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	consent := tui.DefaultConsent
	if cfg.ConsentFile != "" {
		consent, err = tui.LoadConsent(cfg.ConsentFile)
		if err != nil {
			return fmt.Errorf("failed to load consent file: %w", err)
		}
	}

	sink, closeSink, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	gen := plan.New()
	newSession := func() (*engine.Engine, error) {
		specs, err := gen.Generate(cfg.Sizes, cfg.Distances, cfg.Directions, cfg.Repetitions)
		if err != nil {
			return nil, err
		}
		return engine.New(plan.NewParticipantID(), specs, engine.Options{
			Center:       screenCenter(cfg),
			CenterRadius: cfg.CenterRadius,
			Sink:         sink,
			Logger:       logger,
		})
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	m := tui.NewModel(tui.Options{
		Context:    ctx,
		Config:     cfg,
		Consent:    consent,
		NewSession: newSession,
		SavedTo:    cfg.DataDir,
		Logger:     logger,
	})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return reportOutcome(cmd.ErrOrStderr(), m.Outcome(), cfg)
}

func reportOutcome(w io.Writer, out tui.Outcome, cfg model.ExperimentConfig) error {
	if out.Err != nil {
		return out.Err
	}
	switch out.Screen {
	case tui.ScreenComplete:
		writer := trialfile.Writer{Dir: cfg.DataDir}
		logErrf(w, "Session %s saved (%d trials): %s\n", out.ParticipantID, out.Trials, writer.Path(out.ParticipantID))
	case tui.ScreenDeclined:
		logErrln(w, "Consent declined; no data was recorded.")
	case tui.ScreenAborted:
		logErrln(w, "Session aborted; no data was saved.")
	}
	return nil
}

// openSinks returns the session sink for cfg and a cleanup func.
func openSinks(cfg model.ExperimentConfig) (engine.Sink, func(), error) {
	sinks := engine.MultiSink{trialfile.Writer{Dir: cfg.DataDir}}
	if !cfg.MirrorDB {
		return sinks, func() {}, nil
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db: %w", err)
	}
	closeStore := func() {
		if cerr := st.Close(); cerr != nil {
			logErrf(os.Stderr, "failed to close db: %v\n", cerr)
		}
	}
	return append(sinks, st), closeStore, nil
}

func screenCenter(cfg model.ExperimentConfig) geom.Point {
	return geom.Point{X: cfg.ScreenWidth / 2, Y: cfg.ScreenHeight / 2}
}

// newLogger builds the command logger from flags and the [log] section.
// A nil console keeps logs out of the terminal.
func newLogger(cmd *cobra.Command, fc config.LogConfig, console io.Writer) (*zap.Logger, error) {
	cfg := logging.DefaultConfig(config.DefaultLogPath())
	level := logLevel
	file := logFile
	applyStringConfig(cmd, "log-level", &level, fc.Level)
	applyStringConfig(cmd, "log-file", &file, fc.File)
	if file != "" {
		cfg.File = file
	}
	cfg.Level = level
	if fc.MaxSizeMB != nil {
		cfg.MaxSizeMB = *fc.MaxSizeMB
	}
	if fc.MaxBackups != nil {
		cfg.MaxBackups = *fc.MaxBackups
	}
	if fc.MaxAgeDays != nil {
		cfg.MaxAgeDays = *fc.MaxAgeDays
	}
	if fc.Compress != nil {
		cfg.Compress = *fc.Compress
	}
	cfg.Console = console
	logger, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatSliceConfig(cmd *cobra.Command, name string, target *[]float64, value []float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]float64(nil), value...)
}

func applyStringSliceConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), value...)
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# fitts configuration
# Uncomment a value to enable it. CLI flags override config values.

[experiment]
# sizes = %s             # Target sizes (logical units)
# distances = %s      # Target distances from the center
# directions = %s   # left, right, up, down
# repetitions = %d              # Repetitions per configuration
# center-radius = %.1f          # Radius of the start target
# screen-width = %.1f          # Logical screen width
# screen-height = %.1f         # Logical screen height
# cell-width = %.1f             # Logical units per terminal column
# cell-height = %.1f            # Logical units per terminal row
# data-dir = "/path/to/data"    # Session file directory
# mirror-db = false             # Also store sessions in SQLite
# consent-file = "consent.txt"  # Replace the built-in consent text

[analysis]
# data-dir = "/path/to/data"    # Directory read by analyze/results
# source = %q                # csv or db
# z-threshold = %.1f            # Outlier cutoff in standard deviations
# column = %q            # time_ms, errors, or distance_traveled
# export = "analysis.xlsx"      # Workbook written by analyze --export

[log]
# level = %q                # debug, info, warn, error
# file = "/path/to/fitts.log"
# max-size = 10                 # Megabytes before rotation
# max-backups = 3
# max-age = 28                  # Days
# compress = false
`,
		tomlFloats(defaultSizes),
		tomlFloats(defaultDistances),
		tomlStrings(defaultDirections),
		defaultRepetitions,
		defaultCenterRadius,
		defaultScreenWidth,
		defaultScreenHeight,
		defaultCellWidth,
		defaultCellHeight,
		model.SourceCSV,
		defaultZThreshold,
		defaultColumn,
		defaultLogLevel,
	)
}

func tomlFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func tomlStrings(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func validateExperiment(cfg model.ExperimentConfig) error {
	if len(cfg.Sizes) == 0 {
		return fmt.Errorf("--sizes must not be empty")
	}
	for _, s := range cfg.Sizes {
		if s <= 0 {
			return fmt.Errorf("--sizes must be > 0")
		}
	}
	if len(cfg.Distances) == 0 {
		return fmt.Errorf("--distances must not be empty")
	}
	for _, d := range cfg.Distances {
		if d <= 0 {
			return fmt.Errorf("--distances must be > 0")
		}
	}
	if len(cfg.Directions) == 0 {
		return fmt.Errorf("--directions must not be empty")
	}
	if cfg.Repetitions <= 0 {
		return fmt.Errorf("--repetitions must be > 0")
	}
	if cfg.CenterRadius <= 0 {
		return fmt.Errorf("--center-radius must be > 0")
	}
	if cfg.ScreenWidth <= 0 || cfg.ScreenHeight <= 0 {
		return fmt.Errorf("--screen-width and --screen-height must be > 0")
	}
	if cfg.CellWidth <= 0 || cfg.CellHeight <= 0 {
		return fmt.Errorf("--cell-width and --cell-height must be > 0")
	}
	return nil
}

func logErrf(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(w io.Writer, args ...any) {
	if _, err := fmt.Fprintln(w, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/fitts/internal/config"
	"github.com/verte-zerg/fitts/internal/logging"
	"github.com/verte-zerg/fitts/internal/metrics"
	"github.com/verte-zerg/fitts/internal/model"
	"github.com/verte-zerg/fitts/internal/report"
	"github.com/verte-zerg/fitts/internal/resultsui"
	"github.com/verte-zerg/fitts/internal/store"
	"github.com/verte-zerg/fitts/internal/trialfile"
)

const (
	defaultZThreshold = metrics.DefaultZThreshold
	defaultColumn     = string(metrics.ColumnTime)
	defaultPlotHeight = 15
)

var (
	analyzeDataDir string
	analyzeSource  string
	analyzeZ       float64
	analyzeColumn  string
	analyzeExport  string
	analyzeNoPlot  bool

	resultsDataDir string
	resultsSource  string
	resultsZ       float64
	resultsColumn  string

	sessionsDataDir string
	sessionsDB      bool
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print the Fitts' law analysis report",
		Args:  cobra.NoArgs,
		RunE:  runAnalyzeCmd,
	}
	cmd.Flags().StringVar(&analyzeDataDir, "data-dir", "", "directory of session files (default: $XDG_DATA_HOME/fitts/data)")
	cmd.Flags().StringVar(&analyzeSource, "source", model.SourceCSV, "trial source: csv or db")
	cmd.Flags().Float64Var(&analyzeZ, "z", defaultZThreshold, "outlier z-score threshold")
	cmd.Flags().StringVar(&analyzeColumn, "column", defaultColumn, "outlier column: time_ms, errors, or distance_traveled")
	cmd.Flags().StringVar(&analyzeExport, "export", "", "write an xlsx workbook to this path")
	cmd.Flags().BoolVar(&analyzeNoPlot, "no-plot", false, "skip the regression plot")
	return cmd
}

func runAnalyzeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	fc := fileCfg.Analysis
	applyStringConfig(cmd, "data-dir", &analyzeDataDir, fc.DataDir)
	applyStringConfig(cmd, "source", &analyzeSource, fc.Source)
	applyFloatConfig(cmd, "z", &analyzeZ, fc.ZThreshold)
	applyStringConfig(cmd, "column", &analyzeColumn, fc.Column)
	applyStringConfig(cmd, "export", &analyzeExport, fc.Export)

	cfg := model.AnalysisConfig{
		DataDir:    analyzeDataDir,
		Source:     analyzeSource,
		ZThreshold: analyzeZ,
		Column:     analyzeColumn,
		Export:     analyzeExport,
	}
	column, err := validateAnalysis(cfg)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd, fileCfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	rows, err := loadRows(commandContext(cmd), cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	res, err := metrics.Run(rows, metrics.Options{Column: column, ZThreshold: cfg.ZThreshold, Logger: logger})
	if errors.Is(err, metrics.ErrNoData) {
		return report.RenderNoData(out, err)
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	opts := report.Options{PlotHeight: defaultPlotHeight, NoPlot: analyzeNoPlot}
	if err := report.Render(out, res, opts); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if cfg.Export != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Export), 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
		if err := report.ExportXLSX(cfg.Export, res); err != nil {
			return fmt.Errorf("failed to export workbook: %w", err)
		}
		logger.Info("workbook exported", zap.String("path", cfg.Export))
		logErrf(cmd.ErrOrStderr(), "Results exported to %s\n", cfg.Export)
	}
	return nil
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Browse analysis results",
		Args:  cobra.NoArgs,
		RunE:  runResultsCmd,
	}
	cmd.Flags().StringVar(&resultsDataDir, "data-dir", "", "directory of session files (default: $XDG_DATA_HOME/fitts/data)")
	cmd.Flags().StringVar(&resultsSource, "source", model.SourceCSV, "trial source: csv or db")
	cmd.Flags().Float64Var(&resultsZ, "z", defaultZThreshold, "outlier z-score threshold")
	cmd.Flags().StringVar(&resultsColumn, "column", defaultColumn, "outlier column: time_ms, errors, or distance_traveled")
	return cmd
}

func runResultsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	fc := fileCfg.Analysis
	applyStringConfig(cmd, "data-dir", &resultsDataDir, fc.DataDir)
	applyStringConfig(cmd, "source", &resultsSource, fc.Source)
	applyFloatConfig(cmd, "z", &resultsZ, fc.ZThreshold)
	applyStringConfig(cmd, "column", &resultsColumn, fc.Column)

	cfg := model.AnalysisConfig{
		DataDir:    resultsDataDir,
		Source:     resultsSource,
		ZThreshold: resultsZ,
		Column:     resultsColumn,
	}
	if _, err := validateAnalysis(cfg); err != nil {
		return err
	}

	logger, err := newLogger(cmd, fileCfg.Log, nil)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	m := resultsui.NewModel(commandContext(cmd), loadRows, cfg, logger)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run results TUI: %w", err)
	}
	return nil
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessionsCmd,
	}
	cmd.Flags().StringVar(&sessionsDataDir, "data-dir", "", "directory of session files (default: $XDG_DATA_HOME/fitts/data)")
	cmd.Flags().BoolVar(&sessionsDB, "db", false, "list sessions mirrored in SQLite instead")
	return cmd
}

func runSessionsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "data-dir", &sessionsDataDir, fileCfg.Analysis.DataDir)
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	if sessionsDB {
		st, err := store.Open(config.DefaultDBPath())
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf(cmd.ErrOrStderr(), "failed to close db: %v\n", cerr)
			}
		}()
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			logErrln(cmd.ErrOrStderr(), "No sessions found.")
			return nil
		}
		rows := make([][]string, 0, len(sessions))
		for _, s := range sessions {
			rows = append(rows, []string{
				s.ParticipantID,
				s.CompletedAt.Local().Format("2006-01-02 15:04"),
				strconv.Itoa(s.Trials),
				strconv.FormatFloat(s.MeanTimeMs, 'f', 1, 64),
				strconv.Itoa(s.TotalErrors),
			})
		}
		headers := []string{"Participant", "Completed", "Trials", "Mean MT (ms)", "Errors"}
		return writeLines(out, report.FormatTable(headers, rows, map[int]bool{2: true, 3: true, 4: true}))
	}

	dir := dataDirOrDefault(sessionsDataDir)
	files, err := trialfile.List(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logErrf(cmd.ErrOrStderr(), "No sessions found in %s\n", dir)
		return nil
	}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		records, err := trialfile.ReadFile(f.Path)
		if err != nil {
			return err
		}
		rows = append(rows, []string{f.ParticipantID, strconv.Itoa(len(records)), f.Path})
	}
	return writeLines(out, report.FormatTable([]string{"Participant", "Trials", "File"}, rows, map[int]bool{1: true}))
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

// loadRows reads trial rows from the configured source.
func loadRows(ctx context.Context, cfg model.AnalysisConfig) ([]model.Row, error) {
	switch cfg.Source {
	case model.SourceDB:
		st, err := store.Open(config.DefaultDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		// Read-only query; a close error cannot lose data.
		defer func() { _ = st.Close() }()
		return st.ListRows(ctx)
	default:
		rows, err := trialfile.LoadDir(ctx, dataDirOrDefault(cfg.DataDir))
		if err != nil {
			return nil, fmt.Errorf("failed to load session files: %w", err)
		}
		return rows, nil
	}
}

func validateAnalysis(cfg model.AnalysisConfig) (metrics.Column, error) {
	if !model.ValidSource(cfg.Source) {
		return "", fmt.Errorf("--source must be csv or db")
	}
	if !(cfg.ZThreshold > 0) || math.IsInf(cfg.ZThreshold, 1) {
		return "", fmt.Errorf("--z must be a finite number > 0")
	}
	column, err := metrics.ParseColumn(cfg.Column)
	if err != nil {
		return "", fmt.Errorf("--column: %w", err)
	}
	return column, nil
}

func dataDirOrDefault(dir string) string {
	if dir == "" {
		return config.DefaultDataDir()
	}
	return dir
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

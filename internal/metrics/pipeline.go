package metrics

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/verte-zerg/fitts/internal/model"
)

// Options configures Run.
type Options struct {
	Column     Column
	ZThreshold float64
	Logger     *zap.Logger
}

// Result holds every pipeline output. Breakdowns, overall stats, and
// variability are computed from Filtered.
type Result struct {
	Filtered []model.Row
	Outliers OutlierReport
	Groups   []MetricsRow

	// Regression is zero when RegressionErr is set.
	Regression    Regression
	RegressionErr error

	Overall      Overall
	Directions   []Summary
	Sizes        []Summary
	Distances    []Summary
	Participants []Summary
	Variability  Variability
}

// Run executes the full pipeline. It returns ErrNoData for an empty table and
// ErrInvalidData for the first row with unusable values. An
// undefined regression does not fail the run; it is reported in
// Result.RegressionErr.
func Run(rows []model.Row, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Column == "" {
		opts.Column = ColumnTime
	}
	if opts.ZThreshold == 0 {
		opts.ZThreshold = DefaultZThreshold
	}
	if !(opts.ZThreshold > 0) {
		return Result{}, fmt.Errorf("z threshold must be > 0, got %g", opts.ZThreshold)
	}
	if len(rows) == 0 {
		return Result{}, ErrNoData
	}
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			return Result{}, fmt.Errorf("%w: row %d (participant %s): %v", ErrInvalidData, i+1, row.ParticipantID, err)
		}
	}

	var res Result
	res.Filtered, res.Outliers = RemoveOutliers(rows, opts.Column, opts.ZThreshold)
	logger.Info("outliers removed",
		zap.String("column", string(opts.Column)),
		zap.Float64("z", opts.ZThreshold),
		zap.Int("removed", res.Outliers.Removed),
		zap.Int("total", res.Outliers.Total),
		zap.Float64("percent", res.Outliers.Percent()),
	)
	for _, key := range res.Outliers.Degenerate {
		logger.Warn("degenerate group passed through unfiltered", zap.Stringer("group", key))
	}
	if len(res.Filtered) == 0 {
		return Result{}, ErrNoData
	}

	res.Groups = Aggregate(res.Filtered)
	res.Regression, res.RegressionErr = RegressGroups(res.Groups)
	if res.RegressionErr != nil {
		if !errors.Is(res.RegressionErr, ErrRegressionUndefined) {
			return Result{}, res.RegressionErr
		}
		logger.Warn("regression skipped", zap.Error(res.RegressionErr))
	}

	res.Overall = OverallStats(res.Filtered)
	res.Directions = ByDirection(res.Filtered)
	res.Sizes = BySize(res.Filtered)
	res.Distances = ByDistance(res.Filtered)
	res.Participants = ByParticipant(res.Filtered)
	res.Variability = ParticipantVariability(res.Participants)
	return res, nil
}

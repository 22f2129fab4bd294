// Package metrics implements the Fitts' law analysis pipeline: per-configuration
// outlier removal, aggregation, ID/IP, regression, and breakdowns.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/fitts/internal/model"
)

// DefaultZThreshold is the z-score cut used when none is configured.
const DefaultZThreshold = 3.0

var (
	// ErrNoData reports an empty input table. Callers treat it as an empty
	// result, not a failure.
	ErrNoData = errors.New("no data")
	// ErrRegressionUndefined reports fewer than two distinct ID values.
	ErrRegressionUndefined = errors.New("regression undefined: fewer than 2 distinct ID values")
	// ErrInvalidData reports a row or regression input holding values no
	// statistic can be computed from.
	ErrInvalidData = errors.New("invalid data")
)

// Column selects the measurement used for outlier filtering.
type Column string

// Filterable columns.
const (
	ColumnTime     Column = "time_ms"
	ColumnErrors   Column = "errors"
	ColumnDistance Column = "distance_traveled"
)

// ParseColumn validates a column name.
func ParseColumn(s string) (Column, error) {
	switch c := Column(s); c {
	case ColumnTime, ColumnErrors, ColumnDistance:
		return c, nil
	default:
		return "", fmt.Errorf("unknown column %q (want time_ms, errors, or distance_traveled)", s)
	}
}

func (c Column) value(r model.Row) float64 {
	switch c {
	case ColumnErrors:
		return float64(r.Errors)
	case ColumnDistance:
		return r.DistanceTraveled
	default:
		return r.TimeMs
	}
}

// OutlierReport describes what RemoveOutliers dropped.
type OutlierReport struct {
	Column    Column
	Threshold float64
	Total     int
	Removed   int
	// Degenerate lists groups with n < 2 or zero variance; their rows pass
	// through unfiltered.
	Degenerate []model.GroupKey
}

// Percent returns the removed share in percent, 0 for an empty input.
func (r OutlierReport) Percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Removed) / float64(r.Total) * 100
}

// RemoveOutliers drops rows whose population z-score of col, computed within
// their (size, distance, direction) group, is not below threshold. Input order
// is preserved and the input slice is not modified.
func RemoveOutliers(rows []model.Row, col Column, threshold float64) ([]model.Row, OutlierReport) {
	report := OutlierReport{Column: col, Threshold: threshold, Total: len(rows)}
	groups, keys := groupIndexes(rows)

	keep := make([]bool, len(rows))
	for _, key := range keys {
		idx := groups[key]
		values := make([]float64, len(idx))
		for i, ri := range idx {
			values[i] = col.value(rows[ri])
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		if len(idx) < 2 || std == 0 || math.IsNaN(std) {
			report.Degenerate = append(report.Degenerate, key)
			for _, ri := range idx {
				keep[ri] = true
			}
			continue
		}
		for i, ri := range idx {
			keep[ri] = math.Abs(stat.StdScore(values[i], mean, std)) < threshold
		}
	}

	kept := make([]model.Row, 0, len(rows))
	for i, row := range rows {
		if keep[i] {
			kept = append(kept, row)
		}
	}
	report.Removed = len(rows) - len(kept)
	return kept, report
}

// groupIndexes partitions row indexes by configuration and returns the keys
// in GroupKey order.
func groupIndexes(rows []model.Row) (map[model.GroupKey][]int, []model.GroupKey) {
	groups := make(map[model.GroupKey][]int)
	var keys []model.GroupKey
	for i, row := range rows {
		key := row.Key()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], i)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return groups, keys
}

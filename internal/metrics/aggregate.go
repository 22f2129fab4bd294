package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/fitts/internal/model"
)

// Stat is a mean with its sample standard deviation. Std is NaN when n < 2.
type Stat struct {
	Mean float64
	Std  float64
}

// MetricsRow is the aggregate of one configuration group.
type MetricsRow struct {
	model.GroupKey
	N      int
	Time   Stat
	Errors Stat
	Path   Stat
	ID     float64
	IP     float64
}

// IndexOfDifficulty returns the Shannon index of difficulty in bits.
func IndexOfDifficulty(distance, size float64) float64 {
	return math.Log2(distance/size + 1)
}

// IndexOfPerformance returns bits per second for a group with the given ID and
// mean movement time in milliseconds.
func IndexOfPerformance(id, meanTimeMs float64) float64 {
	return id / (meanTimeMs / 1000)
}

// Aggregate groups rows by configuration and returns one MetricsRow per group,
// ordered by size, distance, then direction.
func Aggregate(rows []model.Row) []MetricsRow {
	groups, keys := groupIndexes(rows)
	out := make([]MetricsRow, 0, len(keys))
	for _, key := range keys {
		idx := groups[key]
		times := make([]float64, len(idx))
		errs := make([]float64, len(idx))
		dists := make([]float64, len(idx))
		for i, ri := range idx {
			times[i] = rows[ri].TimeMs
			errs[i] = float64(rows[ri].Errors)
			dists[i] = rows[ri].DistanceTraveled
		}
		id := IndexOfDifficulty(key.Distance, key.Size)
		timeStat := sampleStat(times)
		out = append(out, MetricsRow{
			GroupKey: key,
			N:        len(idx),
			Time:     timeStat,
			Errors:   sampleStat(errs),
			Path:     sampleStat(dists),
			ID:       id,
			IP:       IndexOfPerformance(id, timeStat.Mean),
		})
	}
	return out
}

func sampleStat(values []float64) Stat {
	switch len(values) {
	case 0:
		return Stat{Mean: math.NaN(), Std: math.NaN()}
	case 1:
		return Stat{Mean: values[0], Std: math.NaN()}
	}
	mean, std := stat.MeanStdDev(values, nil)
	return Stat{Mean: mean, Std: std}
}

package metrics

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/verte-zerg/fitts/internal/model"
)

// Summary aggregates the rows sharing one breakdown label.
type Summary struct {
	Label    string
	N        int
	Time     Stat
	MinTime  float64
	MaxTime  float64
	Errors   Stat
	ErrorSum int
	Path     Stat
}

// Overall holds dataset-wide means.
type Overall struct {
	Participants int
	Trials       int
	MeanTimeMs   float64
	MeanErrors   float64
	MeanDistance float64
}

// Variability compares participants by their mean time and mean errors.
// CVs are percentages; ErrorCV adds 0.001 to the denominator so an
// error-free dataset does not divide by zero.
type Variability struct {
	Fastest       string
	Slowest       string
	MostAccurate  string
	LeastAccurate string
	TimeCV        float64
	ErrorCV       float64
}

// ErrorCell is the mean error count of one distance × size combination.
type ErrorCell struct {
	Distance   float64
	Size       float64
	MeanErrors float64
	N          int
}

func summarize[K cmp.Ordered](rows []model.Row, key func(model.Row) K, label func(K) string) []Summary {
	groups := make(map[K][]model.Row)
	var keys []K
	for _, row := range rows {
		k := key(row)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], row)
	}
	slices.Sort(keys)

	out := make([]Summary, 0, len(keys))
	for _, k := range keys {
		group := groups[k]
		times := make([]float64, len(group))
		errs := make([]float64, len(group))
		dists := make([]float64, len(group))
		sum := Summary{Label: label(k), N: len(group), MinTime: math.Inf(1), MaxTime: math.Inf(-1)}
		for i, row := range group {
			times[i] = row.TimeMs
			errs[i] = float64(row.Errors)
			dists[i] = row.DistanceTraveled
			sum.ErrorSum += row.Errors
			sum.MinTime = math.Min(sum.MinTime, row.TimeMs)
			sum.MaxTime = math.Max(sum.MaxTime, row.TimeMs)
		}
		sum.Time = sampleStat(times)
		sum.Errors = sampleStat(errs)
		sum.Path = sampleStat(dists)
		out = append(out, sum)
	}
	return out
}

func formatFloat(v float64) string { return fmt.Sprintf("%g", v) }

// ByDirection summarizes rows per target direction.
func ByDirection(rows []model.Row) []Summary {
	return summarize(rows, func(r model.Row) string { return string(r.Direction) }, func(s string) string { return s })
}

// BySize summarizes rows per target size, ordered numerically.
func BySize(rows []model.Row) []Summary {
	return summarize(rows, func(r model.Row) float64 { return r.Size }, formatFloat)
}

// ByDistance summarizes rows per target distance, ordered numerically.
func ByDistance(rows []model.Row) []Summary {
	return summarize(rows, func(r model.Row) float64 { return r.Distance }, formatFloat)
}

// ByParticipant summarizes rows per participant id.
func ByParticipant(rows []model.Row) []Summary {
	return summarize(rows, func(r model.Row) string { return r.ParticipantID }, func(s string) string { return s })
}

// OverallStats computes dataset-wide means. Rows must be non-empty.
func OverallStats(rows []model.Row) Overall {
	participants := make(map[string]struct{})
	var timeSum, errSum, distSum float64
	for _, row := range rows {
		participants[row.ParticipantID] = struct{}{}
		timeSum += row.TimeMs
		errSum += float64(row.Errors)
		distSum += row.DistanceTraveled
	}
	n := float64(len(rows))
	return Overall{
		Participants: len(participants),
		Trials:       len(rows),
		MeanTimeMs:   timeSum / n,
		MeanErrors:   errSum / n,
		MeanDistance: distSum / n,
	}
}

// ParticipantVariability ranks participant summaries. Ties keep the first
// participant in summary order. CVs are NaN with fewer than two participants.
func ParticipantVariability(participants []Summary) Variability {
	var v Variability
	if len(participants) == 0 {
		return v
	}
	times := make([]float64, len(participants))
	errs := make([]float64, len(participants))
	fastest, slowest, best, worst := 0, 0, 0, 0
	for i, p := range participants {
		times[i] = p.Time.Mean
		errs[i] = p.Errors.Mean
		if times[i] < times[fastest] {
			fastest = i
		}
		if times[i] > times[slowest] {
			slowest = i
		}
		if errs[i] < errs[best] {
			best = i
		}
		if errs[i] > errs[worst] {
			worst = i
		}
	}
	v.Fastest = participants[fastest].Label
	v.Slowest = participants[slowest].Label
	v.MostAccurate = participants[best].Label
	v.LeastAccurate = participants[worst].Label

	timeStat := sampleStat(times)
	errStat := sampleStat(errs)
	v.TimeCV = timeStat.Std / timeStat.Mean * 100
	v.ErrorCV = errStat.Std / (errStat.Mean + 0.001) * 100
	return v
}

// DirectionSpreadPercent returns |max-min|/min of the direction mean times in
// percent, or NaN with fewer than two directions.
func DirectionSpreadPercent(directions []Summary) float64 {
	if len(directions) < 2 {
		return math.NaN()
	}
	means := make([]float64, len(directions))
	for i, d := range directions {
		means[i] = d.Time.Mean
	}
	lo, hi := slices.Min(means), slices.Max(means)
	return math.Abs(hi-lo) / lo * 100
}

// ErrorGrid returns mean errors for every observed distance × size pair,
// ordered by distance then size.
func ErrorGrid(rows []model.Row) []ErrorCell {
	type cell struct{ distance, size float64 }
	errs := make(map[cell][]float64)
	for _, row := range rows {
		c := cell{distance: row.Distance, size: row.Size}
		errs[c] = append(errs[c], float64(row.Errors))
	}
	out := make([]ErrorCell, 0, len(errs))
	for c, values := range errs {
		out = append(out, ErrorCell{
			Distance:   c.distance,
			Size:       c.size,
			MeanErrors: stat.Mean(values, nil),
			N:          len(values),
		})
	}
	slices.SortFunc(out, func(a, b ErrorCell) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Size, b.Size)
	})
	return out
}

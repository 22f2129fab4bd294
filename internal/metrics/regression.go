package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Regression is an ordinary least-squares fit of mean movement time (ms)
// against ID (bits).
type Regression struct {
	N               int
	Slope           float64
	Intercept       float64
	R               float64
	RSquared        float64
	PValue          float64
	StdErr          float64
	InterceptStdErr float64
	// Throughput is 1000/Slope in bits per second.
	Throughput float64
}

// RegressGroups fits mean time against ID, one unweighted point per group.
func RegressGroups(groups []MetricsRow) (Regression, error) {
	x := make([]float64, len(groups))
	y := make([]float64, len(groups))
	for i, g := range groups {
		x[i] = g.ID
		y[i] = g.Time.Mean
	}
	return Regress(x, y)
}

// Regress fits y = Intercept + Slope*x. It returns ErrInvalidData for a
// non-finite point and ErrRegressionUndefined when x holds fewer than two
// distinct values.
func Regress(x, y []float64) (Regression, error) {
	if len(x) != len(y) {
		return Regression{}, fmt.Errorf("regress: %d x values but %d y values", len(x), len(y))
	}
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return Regression{}, fmt.Errorf("%w: regress: non-finite point (%g, %g)", ErrInvalidData, x[i], y[i])
		}
	}
	if distinct(x) < 2 {
		return Regression{}, ErrRegressionUndefined
	}
	n := len(x)
	intercept, slope := stat.LinearRegression(x, y, nil, false)

	xmean := stat.Mean(x, nil)
	ymean := stat.Mean(y, nil)
	var ssxm, ssym float64
	for i := range x {
		ssxm += (x[i] - xmean) * (x[i] - xmean)
		ssym += (y[i] - ymean) * (y[i] - ymean)
	}
	ssxm /= float64(n)
	ssym /= float64(n)

	r := 0.0
	if ssym != 0 {
		r = math.Max(-1, math.Min(1, stat.Correlation(x, y, nil)))
	}

	reg := Regression{
		N:          n,
		Slope:      slope,
		Intercept:  intercept,
		R:          r,
		RSquared:   r * r,
		Throughput: 1000 / slope,
	}

	if n == 2 {
		// A line through two points is exact.
		if y[0] == y[1] {
			reg.PValue = 1
		}
		return reg, nil
	}

	df := float64(n - 2)
	reg.StdErr = math.Sqrt((1 - r*r) * ssym / ssxm / df)
	reg.InterceptStdErr = reg.StdErr * math.Sqrt(ssxm+xmean*xmean)
	if math.Abs(r) == 1 {
		return reg, nil
	}
	t := r * math.Sqrt(df/((1-r)*(1+r)))
	reg.PValue = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))
	return reg, nil
}

func distinct(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

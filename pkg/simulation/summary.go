package simulation

import (
	"math"
	"sort"

	"github.com/iwvelando/robust-portfolio/pkg/mathutil"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the terminal-wealth distribution of a run.
type Summary struct {
	Paths    int
	Mean     float64
	Variance float64
	StdDev   float64
	StdErr   float64
	P05      float64
	Median   float64
	P95      float64
	// ExpectedUtility averages CRRA utility over unflagged paths only;
	// UtilityPaths counts them.
	ExpectedUtility     float64
	CertaintyEquivalent float64
	UtilityPaths        int
	Flagged             int
}

// Summarize computes summary statistics of terminal wealth. Flagged paths
// enter the moments and quantiles but not the expected utility. A nil
// flagged slice flags nothing.
func Summarize(terminal []float64, flagged []bool, gamma float64) Summary {
	sum := Summary{Paths: len(terminal)}
	if len(terminal) == 0 {
		nan := math.NaN()
		sum.Mean, sum.Variance, sum.StdDev, sum.StdErr = nan, nan, nan, nan
		sum.P05, sum.Median, sum.P95 = nan, nan, nan
		sum.ExpectedUtility, sum.CertaintyEquivalent = nan, nan
		return sum
	}

	sum.Mean, sum.Variance = stat.MeanVariance(terminal, nil)
	if len(terminal) == 1 {
		sum.Variance = 0
	}
	sum.StdDev = math.Sqrt(sum.Variance)
	sum.StdErr = stat.StdErr(sum.StdDev, float64(len(terminal)))

	sorted := append([]float64(nil), terminal...)
	sort.Float64s(sorted)
	sum.P05 = stat.Quantile(0.05, stat.Empirical, sorted, nil)
	sum.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	sum.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)

	utilities := make([]float64, 0, len(terminal))
	for i, w := range terminal {
		if (flagged != nil && flagged[i]) || w <= 0 {
			sum.Flagged++
			continue
		}
		utilities = append(utilities, mathutil.CRRAUtility(w, gamma))
	}
	sum.UtilityPaths = len(utilities)
	if len(utilities) == 0 {
		sum.ExpectedUtility = math.NaN()
		sum.CertaintyEquivalent = math.NaN()
		return sum
	}
	sum.ExpectedUtility = stat.Mean(utilities, nil)
	sum.CertaintyEquivalent = mathutil.CertaintyEquivalent(sum.ExpectedUtility, gamma)
	return sum
}

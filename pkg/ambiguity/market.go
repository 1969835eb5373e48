package ambiguity

import (
	"fmt"
	"math"
)

// MarketCondition is the outcome of the market-condition check over [0, T].
//
// The check requires, for every t in [0, T],
//
//	-(1/rhoLo) * lambdaSLo/sigmaSHi >= lambdaBLo(t)/sigmaRHi >= -rhoLo * lambdaSLo/sigmaSHi
//
// which keeps the worst-case corner interior-optimal for the bond and stock
// positions. rhoLo = 0 leaves the upper side unbounded; rhoLo > 0 leaves the
// band empty and the condition fails at t = 0.
type MarketCondition struct {
	Satisfied bool
	Horizon   float64
	// Lower and Upper are the admissible band for the bond Sharpe ratio.
	Lower float64
	Upper float64
	// MinRatio and MaxRatio bracket lambdaBLo(t)/sigmaRHi over [0, T].
	MinRatio float64
	MaxRatio float64
	// ViolationTime is the first violating t, or NaN when satisfied.
	ViolationTime float64
}

// ValidateMarketCondition checks the market condition on [0, horizon].
// When the condition fails the report is still returned together with a
// *MarketConditionViolation; other errors mean the inputs were invalid.
func ValidateMarketCondition(p ModelParameters, b Bounds, horizon float64) (MarketCondition, error) {
	report := MarketCondition{Horizon: horizon, ViolationTime: math.NaN()}
	if horizon < 0 || math.IsNaN(horizon) {
		return report, fmt.Errorf("%w: horizon must be non-negative, got %v", ErrInvalidParameters, horizon)
	}
	lower, _, err := WorstCaseBounds(p, b)
	if err != nil {
		return report, err
	}

	stockSharpe := b.LambdaS.Lower / b.SigmaS.Upper
	rhoLo := b.Rho.Lower
	report.Lower = -rhoLo * stockSharpe
	if rhoLo == 0 {
		report.Upper = math.Inf(1)
	} else {
		report.Upper = -stockSharpe / rhoLo
	}

	ratio := func(t float64) float64 {
		return lower(t) / b.SigmaR.Upper
	}
	inBand := func(t float64) bool {
		r := ratio(t)
		return r >= report.Lower && r <= report.Upper
	}

	// lambdaBLo(t) moves monotonically from lambdaB0 towards its stationary
	// level, so the extremes over [0, T] sit at the endpoints.
	start, end := ratio(0), ratio(horizon)
	report.MinRatio = math.Min(start, end)
	report.MaxRatio = math.Max(start, end)

	switch {
	case rhoLo > 0:
		report.ViolationTime = 0
		return report, &MarketConditionViolation{
			Ratio:    start,
			Lower:    report.Lower,
			Upper:    report.Upper,
			RhoLower: rhoLo,
		}
	case !inBand(0):
		report.ViolationTime = 0
	case !inBand(horizon):
		// The admissible set is an interval containing 0; bisect for its edge.
		lo, hi := 0.0, horizon
		for i := 0; i < 100 && hi-lo > 1e-12*math.Max(1, horizon); i++ {
			mid := lo + (hi-lo)/2
			if inBand(mid) {
				lo = mid
			} else {
				hi = mid
			}
		}
		report.ViolationTime = hi
	default:
		report.Satisfied = true
		return report, nil
	}

	return report, &MarketConditionViolation{
		Time:  report.ViolationTime,
		Ratio: ratio(report.ViolationTime),
		Lower: report.Lower,
		Upper: report.Upper,
	}
}

// Package ambiguity represents the interval-bounded parameter set of the
// Vasicek stock/bond market and derives the worst-case scenario from it.
package ambiguity

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/robust-portfolio/pkg/termstructure"
)

// ModelParameters is the reference parameterisation of the market.
type ModelParameters struct {
	Kappa    float64 // mean-reversion speed
	RBar     float64 // mean-reversion level
	SigmaR   float64 // short-rate volatility
	LambdaS  float64 // stock risk premium
	SigmaS   float64 // stock volatility
	Rho      float64 // stock/short-rate correlation
	LambdaB0 float64 // initial bond risk-premium level
}

// Validate checks the parameter domain. Kappa may be zero, in which case
// the kappa -> 0 limits are used throughout.
func (p ModelParameters) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidParameters}, args...)...))
		}
	}
	fields := []struct {
		name  string
		value float64
	}{
		{"kappa", p.Kappa}, {"rBar", p.RBar}, {"sigmaR", p.SigmaR}, {"lambdaS", p.LambdaS},
		{"sigmaS", p.SigmaS}, {"rho", p.Rho}, {"lambdaB0", p.LambdaB0},
	}
	for _, f := range fields {
		check(!math.IsNaN(f.value) && !math.IsInf(f.value, 0), "%s must be finite, got %v", f.name, f.value)
	}
	check(p.Kappa >= 0, "kappa must be non-negative, got %v", p.Kappa)
	check(p.SigmaR > 0, "sigmaR must be positive, got %v", p.SigmaR)
	check(p.SigmaS > 0, "sigmaS must be positive, got %v", p.SigmaS)
	check(p.Rho >= -1 && p.Rho <= 1, "rho must lie in [-1, 1], got %v", p.Rho)
	return errors.Join(errs...)
}

// Interval is a closed scalar interval.
type Interval struct {
	Lower float64
	Upper float64
}

// Point returns the degenerate interval [v, v].
func Point(v float64) Interval {
	return Interval{Lower: v, Upper: v}
}

// Contains reports whether v lies in the interval, allowing tol slack.
func (i Interval) Contains(v, tol float64) bool {
	return v >= i.Lower-tol && v <= i.Upper+tol
}

// Width returns Upper - Lower.
func (i Interval) Width() float64 {
	return i.Upper - i.Lower
}

// Bounds is the ambiguity set: independent intervals for the stock premium,
// both volatilities and the correlation. The bond premium bounds are derived
// from the short-rate volatility interval.
type Bounds struct {
	LambdaS Interval
	SigmaR  Interval
	SigmaS  Interval
	Rho     Interval
}

// PointBounds collapses every interval onto the reference parameters.
func PointBounds(p ModelParameters) Bounds {
	return Bounds{
		LambdaS: Point(p.LambdaS),
		SigmaR:  Point(p.SigmaR),
		SigmaS:  Point(p.SigmaS),
		Rho:     Point(p.Rho),
	}
}

// Collapsed reports whether every interval has zero width.
func (b Bounds) Collapsed() bool {
	return b.LambdaS.Width() == 0 && b.SigmaR.Width() == 0 && b.SigmaS.Width() == 0 && b.Rho.Width() == 0
}

// Validate returns every violated interval invariant joined into one error.
// Each component is an *InvalidBoundsError.
func (b Bounds) Validate() error {
	var errs []error
	fail := func(field string, i Interval, reason string) {
		errs = append(errs, &InvalidBoundsError{Field: field, Lower: i.Lower, Upper: i.Upper, Reason: reason})
	}

	named := []struct {
		field string
		i     Interval
	}{
		{"lambdaS", b.LambdaS},
		{"sigmaR", b.SigmaR},
		{"sigmaS", b.SigmaS},
		{"rho", b.Rho},
	}
	for _, n := range named {
		if math.IsNaN(n.i.Lower) || math.IsNaN(n.i.Upper) || math.IsInf(n.i.Lower, 0) || math.IsInf(n.i.Upper, 0) {
			fail(n.field, n.i, "must be finite")
			continue
		}
		if n.i.Lower > n.i.Upper {
			fail(n.field, n.i, "lower bound exceeds upper bound")
		}
	}

	if b.SigmaR.Lower < 0 {
		fail("sigmaR", b.SigmaR, "lower bound must be non-negative")
	}
	if b.SigmaR.Upper <= 0 {
		fail("sigmaR", b.SigmaR, "upper bound must be positive")
	}
	if b.SigmaS.Lower < 0 {
		fail("sigmaS", b.SigmaS, "lower bound must be non-negative")
	}
	if b.SigmaS.Upper <= 0 {
		fail("sigmaS", b.SigmaS, "upper bound must be positive")
	}
	if b.Rho.Lower < -1 || b.Rho.Upper > 1 {
		fail("rho", b.Rho, "must lie within [-1, 1]")
	} else if math.Abs(b.Rho.Lower) >= 1 {
		fail("rho", b.Rho, "lower bound must be strictly inside (-1, 1); the covariance is singular at |rho| = 1")
	}

	return errors.Join(errs...)
}

// BoundFunc is a deterministic function of calendar time t.
type BoundFunc func(t float64) float64

// BondPremium returns the bond risk premium path implied by a short-rate
// volatility sigma: exp(-2 kappa t) lambda0 + sigma^2 (1 - exp(-2 kappa t)) / (2 kappa),
// which tends to lambda0 + sigma^2 t as kappa -> 0.
func BondPremium(kappa, lambda0, sigma float64) BoundFunc {
	return func(t float64) float64 {
		return math.Exp(-2*kappa*t)*lambda0 + sigma*sigma*termstructure.B(2*kappa, t)
	}
}

// WorstCaseBounds derives the lower and upper bond risk-premium bounds from
// the short-rate volatility interval.
func WorstCaseBounds(p ModelParameters, b Bounds) (lower, upper BoundFunc, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, nil, err
	}
	lower = BondPremium(p.Kappa, p.LambdaB0, b.SigmaR.Lower)
	upper = BondPremium(p.Kappa, p.LambdaB0, b.SigmaR.Upper)
	return lower, upper, nil
}

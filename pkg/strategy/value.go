package strategy

import (
	"math"
)

// ValueCoefficients reconstruct the value function
//
//	V(t, W, r) = W^(1-gamma)/(1-gamma) * exp((1-gamma)(a0(t) + a1(t) r))
//
// or V = ln W + a0(t) + a1(t) r for gamma = 1.
type ValueCoefficients struct {
	strategy *Strategy
}

// A1 returns a1(t) = b(T - t).
func (v *ValueCoefficients) A1(t float64) (float64, error) {
	s := v.strategy
	if err := s.checkTime(t); err != nil {
		return 0, err
	}
	return s.calc.B(s.params.Kappa, s.horizon.T-t), nil
}

// A0 returns a0(t), the integral over [t, T] of the worst-case quadratic
// Sharpe form, the mean-reversion drift and, for gamma > 1, the hedging
// terms. Integrals of b and b^2 are closed-form; those involving the
// time-varying bond premium use Gauss-Legendre quadrature.
func (v *ValueCoefficients) A0(t float64) (float64, error) {
	s := v.strategy
	if err := s.checkTime(t); err != nil {
		return 0, err
	}
	if s.gamma == 1 {
		return v.a0Log(t), nil
	}
	return v.a0CRRA(t), nil
}

// sharpeIntegral returns the integral over [t, T] of
// lambdaB^2/sigmaR^2 + 2 rho lambdaB lambdaS/(sigmaR sigmaS) + lambdaS^2/sigmaS^2.
func (v *ValueCoefficients) sharpeIntegral(t float64) float64 {
	s := v.strategy
	th := s.scenario
	stockSharpe := th.LambdaS / th.SigmaS
	quadratic := func(u float64) float64 {
		bondSharpe := th.LambdaB(u) / th.SigmaR
		return bondSharpe*bondSharpe + 2*th.Rho*bondSharpe*stockSharpe + stockSharpe*stockSharpe
	}
	return s.calc.Integrate(quadratic, t, s.horizon.T)
}

func (v *ValueCoefficients) a0Log(t float64) float64 {
	s := v.strategy
	th := s.scenario
	k := s.params.Kappa
	speculative := v.sharpeIntegral(t) / (2 * (1 - th.Rho*th.Rho))
	drift := k * s.params.RBar * s.calc.IntegralB(k, t, s.horizon.T)
	return speculative + drift
}

func (v *ValueCoefficients) a0CRRA(t float64) float64 {
	s := v.strategy
	th := s.scenario
	k := s.params.Kappa
	T := s.horizon.T
	g := s.gamma
	hedgeWeight := (g - 1) / g

	speculative := v.sharpeIntegral(t) / (2 * g * (1 - th.Rho*th.Rho))
	drift := k * s.params.RBar * s.calc.IntegralB(k, t, T)
	premium := s.calc.Integrate(func(u float64) float64 {
		return th.LambdaB(u) * s.calc.B(k, T-u)
	}, t, T)
	variance := s.calc.IntegralBSquared(k, t, T)

	return speculative + drift + hedgeWeight*premium - 0.5*hedgeWeight*th.SigmaR*th.SigmaR*variance
}

// Value evaluates V(t, W, r). It is NaN for non-positive wealth.
func (v *ValueCoefficients) Value(t, wealth, rate float64) (float64, error) {
	a0, err := v.A0(t)
	if err != nil {
		return 0, err
	}
	a1, err := v.A1(t)
	if err != nil {
		return 0, err
	}
	if wealth <= 0 {
		return math.NaN(), nil
	}
	g := v.strategy.gamma
	if g == 1 {
		return math.Log(wealth) + a0 + a1*rate, nil
	}
	return math.Pow(wealth, 1-g) / (1 - g) * math.Exp((1-g)*(a0+a1*rate)), nil
}

// CertaintyEquivalent returns the sure terminal wealth worth V(t, W, r) to
// the investor, W * exp(a0(t) + a1(t) r).
func (v *ValueCoefficients) CertaintyEquivalent(t, wealth, rate float64) (float64, error) {
	a0, err := v.A0(t)
	if err != nil {
		return 0, err
	}
	a1, err := v.A1(t)
	if err != nil {
		return 0, err
	}
	return wealth * math.Exp(a0+a1*rate), nil
}

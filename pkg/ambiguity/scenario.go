package ambiguity

import (
	"fmt"
	"math"

	"github.com/iwvelando/robust-portfolio/pkg/constants"
)

// Scenario is one element theta of the ambiguity set: a time-varying bond
// risk premium together with constant stock premium, volatilities and
// correlation.
type Scenario struct {
	Name    string
	LambdaB BoundFunc
	LambdaS float64
	SigmaR  float64
	SigmaS  float64
	Rho     float64
}

// Loadings are the excess-return vector and volatility matrix of the
// (bond, stock) pair at one instant. Row i of Vol is the exposure of asset i
// to the two independent Brownian motions; the first one drives the short rate.
type Loadings struct {
	Excess [2]float64
	Vol    [2][2]float64
}

// WorstCase returns theta-hat = (lambdaBLo, lambdaSLo, sigmaRHi, sigmaSHi, rhoLo).
func WorstCase(p ModelParameters, b Bounds) (Scenario, error) {
	lower, _, err := WorstCaseBounds(p, b)
	if err != nil {
		return Scenario{}, err
	}
	return Scenario{
		Name:    constants.ScenarioWorstCase,
		LambdaB: lower,
		LambdaS: b.LambdaS.Lower,
		SigmaR:  b.SigmaR.Upper,
		SigmaS:  b.SigmaS.Upper,
		Rho:     b.Rho.Lower,
	}, nil
}

// BestCase returns the corner of the ambiguity set opposite to theta-hat.
func BestCase(p ModelParameters, b Bounds) (Scenario, error) {
	_, upper, err := WorstCaseBounds(p, b)
	if err != nil {
		return Scenario{}, err
	}
	return Scenario{
		Name:    constants.ScenarioBestCase,
		LambdaB: upper,
		LambdaS: b.LambdaS.Upper,
		SigmaR:  b.SigmaR.Lower,
		SigmaS:  b.SigmaS.Lower,
		Rho:     b.Rho.Upper,
	}, nil
}

// Reference returns the scenario of an investor without ambiguity who takes
// the reference parameters at face value.
func Reference(p ModelParameters) (Scenario, error) {
	if err := p.Validate(); err != nil {
		return Scenario{}, err
	}
	return Scenario{
		Name:    constants.ScenarioReference,
		LambdaB: BondPremium(p.Kappa, p.LambdaB0, p.SigmaR),
		LambdaS: p.LambdaS,
		SigmaR:  p.SigmaR,
		SigmaS:  p.SigmaS,
		Rho:     p.Rho,
	}, nil
}

// Validate checks that the scenario is a well-formed market.
func (s Scenario) Validate() error {
	switch {
	case s.LambdaB == nil:
		return fmt.Errorf("%w: scenario %q has no bond premium", ErrInvalidParameters, s.Name)
	case s.SigmaR < 0 || s.SigmaS < 0:
		return fmt.Errorf("%w: scenario %q has negative volatility", ErrInvalidParameters, s.Name)
	case s.Rho < -1 || s.Rho > 1:
		return fmt.Errorf("%w: scenario %q correlation %v outside [-1, 1]", ErrInvalidParameters, s.Name, s.Rho)
	}
	return nil
}

// Loadings evaluates the scenario at time t for a bond whose Vasicek
// loading is bondLoading = b(Tbar - t).
func (s Scenario) Loadings(t, bondLoading float64) Loadings {
	return Loadings{
		Excess: [2]float64{bondLoading * s.LambdaB(t), s.LambdaS},
		Vol: [2][2]float64{
			{-bondLoading * s.SigmaR, 0},
			{s.Rho * s.SigmaS, math.Sqrt(1-s.Rho*s.Rho) * s.SigmaS},
		},
	}
}

// Contains reports whether the scenario lies in the ambiguity set at every
// t of a grid over [0, horizon]; it returns an ErrScenarioOutOfBounds error
// naming the first offending component otherwise.
func (b Bounds) Contains(p ModelParameters, s Scenario, horizon float64) error {
	if err := s.Validate(); err != nil {
		return err
	}
	lower, upper, err := WorstCaseBounds(p, b)
	if err != nil {
		return err
	}
	const tol = constants.FloatTolerance

	checks := []struct {
		field string
		i     Interval
		v     float64
	}{
		{"lambdaS", b.LambdaS, s.LambdaS},
		{"sigmaR", b.SigmaR, s.SigmaR},
		{"sigmaS", b.SigmaS, s.SigmaS},
		{"rho", b.Rho, s.Rho},
	}
	for _, c := range checks {
		if !c.i.Contains(c.v, tol) {
			return fmt.Errorf("%w: scenario %q %s=%v outside [%v, %v]",
				ErrScenarioOutOfBounds, s.Name, c.field, c.v, c.i.Lower, c.i.Upper)
		}
	}

	const gridPoints = 200
	for i := 0; i <= gridPoints; i++ {
		t := horizon * float64(i) / gridPoints
		v := s.LambdaB(t)
		lo, hi := lower(t), upper(t)
		if v < lo-tol || v > hi+tol {
			return fmt.Errorf("%w: scenario %q lambdaB(%.4f)=%v outside [%v, %v]",
				ErrScenarioOutOfBounds, s.Name, t, v, lo, hi)
		}
	}
	return nil
}

package strategy

import (
	"fmt"
	"math"

	"github.com/iwvelando/robust-portfolio/pkg/ambiguity"
	"gonum.org/v1/gonum/mat"
)

// MertonPortfolio solves the first-order conditions of the HJB equation
// directly from the loadings instead of the closed form:
//
//	Myopic = Sigma^-1 mu,  Hedge = -a1 sigmaR (vol^T)^-1 e1
//
// where Sigma = vol vol^T and e1 selects the short-rate shock. It serves as an
// independent check of the closed-form weights.
func MertonPortfolio(l ambiguity.Loadings, rateVol, a1, gamma float64) (Decomposition, error) {
	vol := mat.NewDense(2, 2, []float64{
		l.Vol[0][0], l.Vol[0][1],
		l.Vol[1][0], l.Vol[1][1],
	})
	var cov mat.Dense
	cov.Mul(vol, vol.T())

	excess := mat.NewVecDense(2, []float64{l.Excess[0], l.Excess[1]})
	var myopic mat.VecDense
	if err := myopic.SolveVec(&cov, excess); err != nil {
		return Decomposition{}, fmt.Errorf("solve covariance system: %w", err)
	}

	var exposure mat.VecDense
	if err := exposure.SolveVec(vol.T(), mat.NewVecDense(2, []float64{1, 0})); err != nil {
		return Decomposition{}, fmt.Errorf("solve rate exposure: %w", err)
	}

	d := Decomposition{
		Myopic: Weights{Bond: myopic.AtVec(0), Stock: myopic.AtVec(1)},
		Hedge:  Weights{Bond: -a1 * rateVol * exposure.AtVec(0), Stock: -a1 * rateVol * exposure.AtVec(1)},
	}
	if gamma == 1 {
		d.Total = d.Myopic
	} else {
		d.Total = d.Myopic.Scale(1 / gamma).Add(d.Hedge.Scale((gamma - 1) / gamma))
	}
	return d, nil
}

// Verify compares the closed-form decomposition at time t with
// MertonPortfolio and returns the largest absolute difference.
func (s *Strategy) Verify(t float64) (float64, error) {
	closed, err := s.Decompose(t)
	if err != nil {
		return 0, err
	}
	k := s.params.Kappa
	loadings := s.scenario.Loadings(t, s.calc.B(k, s.horizon.Maturity-t))
	a1 := s.calc.B(k, s.horizon.T-t)
	solved, err := MertonPortfolio(loadings, s.scenario.SigmaR, a1, s.gamma)
	if err != nil {
		return 0, err
	}
	diff := 0.0
	for _, pair := range [][2]Weights{
		{closed.Myopic, solved.Myopic},
		{closed.Hedge, solved.Hedge},
		{closed.Total, solved.Total},
	} {
		diff = math.Max(diff, math.Abs(pair[0].Bond-pair[1].Bond))
		diff = math.Max(diff, math.Abs(pair[0].Stock-pair[1].Stock))
	}
	return diff, nil
}

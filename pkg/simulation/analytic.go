package simulation

import (
	"fmt"
	"math"

	"github.com/iwvelando/robust-portfolio/pkg/ambiguity"
	"github.com/iwvelando/robust-portfolio/pkg/strategy"
	"github.com/iwvelando/robust-portfolio/pkg/termstructure"
)

// ExpectedTerminalWealth returns E[W_T] of the continuous-time dynamics for a
// deterministic policy. Under the measure with density
// exp(int e.dB - 1/2 int |e|^2), e = pi' sigma, the short rate picks up the
// drift sigmaR e1(t), and int r dt stays Gaussian, so
//
//	E[W_T] = W0 exp(int m + r0 b(T) + rBar (T - b(T))
//	                + sigmaR int e1(s) b(T-s) ds + sigmaR^2/2 int b(T-s)^2 ds)
//
// with m = pi' lambda. The policy is sampled only at interior quadrature
// nodes, so a horizon equal to the bond maturity is allowed.
func ExpectedTerminalWealth(policy Policy, scenario ambiguity.Scenario, params ambiguity.ModelParameters, horizon strategy.Horizon, w0, r0 float64) (float64, error) {
	if err := horizon.Validate(); err != nil {
		return 0, err
	}
	calc := termstructure.Default
	k := params.Kappa
	T := horizon.T

	var policyErr error
	integrand := func(s float64) float64 {
		if policyErr != nil {
			return 0
		}
		w, err := policy.Weights(s)
		if err != nil {
			policyErr = fmt.Errorf("policy weights at t=%g: %w", s, err)
			return 0
		}
		l := scenario.Loadings(s, calc.B(k, horizon.Maturity-s))
		drift := w.Bond*l.Excess[0] + w.Stock*l.Excess[1]
		rateExposure := w.Bond*l.Vol[0][0] + w.Stock*l.Vol[1][0]
		return drift + scenario.SigmaR*rateExposure*calc.B(k, T-s)
	}
	policyTerm := calc.Integrate(integrand, 0, T)
	if policyErr != nil {
		return 0, policyErr
	}

	bT := calc.B(k, T)
	exponent := policyTerm +
		r0*bT +
		params.RBar*(T-bT) +
		0.5*scenario.SigmaR*scenario.SigmaR*calc.IntegralBSquared(k, 0, T)
	return w0 * math.Exp(exponent), nil
}

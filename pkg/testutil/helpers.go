// Package testutil provides common fixtures and utility functions for testing.
package testutil

import (
	"github.com/iwvelando/robust-portfolio/pkg/ambiguity"
)

// WorkedExample returns the kappa=0.5 market used as the reference example:
// sigmaR in [0.01, 0.02], lambdaS in [0.02, 0.06], sigmaS = 0.2,
// rho in [-0.5, -0.1], lambdaB0 = 0.01. The reference parameters sit inside
// the bounds.
func WorkedExample() (ambiguity.ModelParameters, ambiguity.Bounds) {
	params := ambiguity.ModelParameters{
		Kappa:    0.5,
		RBar:     0.03,
		SigmaR:   0.015,
		LambdaS:  0.04,
		SigmaS:   0.2,
		Rho:      -0.3,
		LambdaB0: 0.01,
	}
	bounds := ambiguity.Bounds{
		LambdaS: ambiguity.Interval{Lower: 0.02, Upper: 0.06},
		SigmaR:  ambiguity.Interval{Lower: 0.01, Upper: 0.02},
		SigmaS:  ambiguity.Point(0.2),
		Rho:     ambiguity.Interval{Lower: -0.5, Upper: -0.1},
	}
	return params, bounds
}

// AdmissibleExample returns a slowly mean-reverting market whose worst-case
// bond Sharpe ratio stays inside the market-condition band for every t.
func AdmissibleExample() (ambiguity.ModelParameters, ambiguity.Bounds) {
	params := ambiguity.ModelParameters{
		Kappa:    0.1,
		RBar:     0.03,
		SigmaR:   0.055,
		LambdaS:  0.05,
		SigmaS:   0.2,
		Rho:      -0.3,
		LambdaB0: 0.01,
	}
	bounds := ambiguity.Bounds{
		LambdaS: ambiguity.Interval{Lower: 0.04, Upper: 0.06},
		SigmaR:  ambiguity.Interval{Lower: 0.05, Upper: 0.06},
		SigmaS:  ambiguity.Interval{Lower: 0.18, Upper: 0.2},
		Rho:     ambiguity.Interval{Lower: -0.5, Upper: -0.1},
	}
	return params, bounds
}

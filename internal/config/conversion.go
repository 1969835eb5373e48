package config

import (
	"github.com/iwvelando/robust-portfolio/pkg/ambiguity"
	"github.com/iwvelando/robust-portfolio/pkg/simulation"
	"github.com/iwvelando/robust-portfolio/pkg/strategy"
)

// ToModelParameters converts the model section to ambiguity.ModelParameters.
func (m Model) ToModelParameters() ambiguity.ModelParameters {
	return ambiguity.ModelParameters{
		Kappa:    m.Kappa,
		RBar:     m.RBar,
		SigmaR:   m.SigmaR,
		LambdaS:  m.LambdaS,
		SigmaS:   m.SigmaS,
		Rho:      m.Rho,
		LambdaB0: m.LambdaB0,
	}
}

// FromModelParameters builds the model section from domain parameters.
func FromModelParameters(p ambiguity.ModelParameters) Model {
	return Model{
		Kappa:    p.Kappa,
		RBar:     p.RBar,
		SigmaR:   p.SigmaR,
		LambdaS:  p.LambdaS,
		SigmaS:   p.SigmaS,
		Rho:      p.Rho,
		LambdaB0: p.LambdaB0,
	}
}

func (i Interval) toInterval() ambiguity.Interval {
	return ambiguity.Interval{Lower: i.Lower, Upper: i.Upper}
}

func fromInterval(i ambiguity.Interval) Interval {
	return Interval{Lower: i.Lower, Upper: i.Upper}
}

// ToBounds converts the bounds section to ambiguity.Bounds.
func (b Bounds) ToBounds() ambiguity.Bounds {
	return ambiguity.Bounds{
		LambdaS: b.LambdaS.toInterval(),
		SigmaR:  b.SigmaR.toInterval(),
		SigmaS:  b.SigmaS.toInterval(),
		Rho:     b.Rho.toInterval(),
	}
}

// FromBounds builds the bounds section from domain bounds.
func FromBounds(b ambiguity.Bounds) Bounds {
	return Bounds{
		LambdaS: fromInterval(b.LambdaS),
		SigmaR:  fromInterval(b.SigmaR),
		SigmaS:  fromInterval(b.SigmaS),
		Rho:     fromInterval(b.Rho),
	}
}

// ToHorizon returns the investment horizon and bond maturity.
func (i Investor) ToHorizon() strategy.Horizon {
	return strategy.Horizon{T: i.Horizon, Maturity: i.BondMaturity}
}

// ToScenario converts an alternative scenario to its domain form under a
// market with mean-reversion speed kappa.
func (s Scenario) ToScenario(kappa float64) ambiguity.Scenario {
	return ambiguity.Scenario{
		Name:    s.Name,
		LambdaB: ambiguity.BondPremium(kappa, s.LambdaB0, s.SigmaR),
		LambdaS: s.LambdaS,
		SigmaR:  s.SigmaR,
		SigmaS:  s.SigmaS,
		Rho:     s.Rho,
	}
}

// ToRequest builds the simulation request shared by every evaluation.
func (c *Configuration) ToRequest() simulation.Request {
	return simulation.Request{
		Params:    c.Model.ToModelParameters(),
		Horizon:   c.Investor.ToHorizon(),
		W0:        c.Investor.InitialWealth,
		R0:        c.Investor.InitialRate,
		Steps:     c.Simulation.Steps,
		Paths:     c.Simulation.Paths,
		BatchSize: c.Simulation.BatchSize,
		Workers:   c.Simulation.Workers,
		Gamma:     c.Investor.Gamma,
	}
}

package strategy

import (
	"fmt"

	"github.com/iwvelando/robust-portfolio/pkg/ambiguity"
	"github.com/iwvelando/robust-portfolio/pkg/mathutil"
	"github.com/iwvelando/robust-portfolio/pkg/termstructure"
)

// Weights are the fractions of wealth held in the bond and the stock; the
// remainder sits in the money-market account.
type Weights struct {
	Bond  float64
	Stock float64
}

// Add returns w + o.
func (w Weights) Add(o Weights) Weights {
	return Weights{Bond: w.Bond + o.Bond, Stock: w.Stock + o.Stock}
}

// Scale returns k*w.
func (w Weights) Scale(k float64) Weights {
	return Weights{Bond: k * w.Bond, Stock: k * w.Stock}
}

// Decomposition splits the optimal weights into the myopic (speculative)
// portfolio and the interest-rate hedge portfolio:
// Total = Myopic/gamma + (gamma-1)/gamma * Hedge.
type Decomposition struct {
	Myopic Weights
	Hedge  Weights
	Total  Weights
}

// Strategy is the robust optimal strategy. Its weights are closed-form
// functions of time evaluated under the worst-case scenario. A Strategy is
// immutable and safe for concurrent use.
type Strategy struct {
	params    ambiguity.ModelParameters
	scenario  ambiguity.Scenario
	horizon   Horizon
	gamma     float64
	calc      termstructure.Calculator
	condition ambiguity.MarketCondition
	warnings  []error
}

// Scenario returns the scenario the strategy is optimal against.
func (s *Strategy) Scenario() ambiguity.Scenario { return s.scenario }

// Parameters returns the reference model parameters.
func (s *Strategy) Parameters() ambiguity.ModelParameters { return s.params }

// Horizon returns the investment horizon and bond maturity.
func (s *Strategy) Horizon() Horizon { return s.horizon }

// Gamma returns the relative risk aversion.
func (s *Strategy) Gamma() float64 { return s.gamma }

// MarketCondition returns the market-condition report computed by Solve.
func (s *Strategy) MarketCondition() ambiguity.MarketCondition { return s.condition }

// Warnings returns the non-fatal problems found by Solve.
func (s *Strategy) Warnings() []error { return append([]error(nil), s.warnings...) }

func (s *Strategy) checkTime(t float64) error {
	if t >= s.horizon.Maturity {
		return &MaturityReachedError{Time: t, Maturity: s.horizon.Maturity}
	}
	if t < 0 || t > s.horizon.T {
		return fmt.Errorf("%w: t=%g not in [0, %g]", ErrOutsideHorizon, t, s.horizon.T)
	}
	return nil
}

// Myopic returns the mean-variance (speculative) weights at time t.
func (s *Strategy) Myopic(t float64) (Weights, error) {
	if err := s.checkTime(t); err != nil {
		return Weights{}, err
	}
	return s.myopic(t), nil
}

func (s *Strategy) myopic(t float64) Weights {
	th := s.scenario
	bondLoading := s.calc.B(s.params.Kappa, s.horizon.Maturity-t)
	oneMinusRho2 := 1 - th.Rho*th.Rho
	bondSharpe := th.LambdaB(t) / th.SigmaR
	stockSharpe := th.LambdaS / th.SigmaS
	return Weights{
		Bond:  (bondSharpe + th.Rho*stockSharpe) / (oneMinusRho2 * bondLoading * th.SigmaR),
		Stock: (stockSharpe + th.Rho*bondSharpe) / (oneMinusRho2 * th.SigmaS),
	}
}

// Hedge returns the interest-rate hedge weights at time t. The hedge holds
// only the bond, b(T-t)/b(Tbar-t).
func (s *Strategy) Hedge(t float64) (Weights, error) {
	if err := s.checkTime(t); err != nil {
		return Weights{}, err
	}
	return s.hedge(t), nil
}

func (s *Strategy) hedge(t float64) Weights {
	return Weights{
		Bond:  s.calc.B(s.params.Kappa, s.horizon.T-t) / s.calc.B(s.params.Kappa, s.horizon.Maturity-t),
		Stock: 0,
	}
}

// Decompose returns the myopic, hedge and total weights at time t.
func (s *Strategy) Decompose(t float64) (Decomposition, error) {
	if err := s.checkTime(t); err != nil {
		return Decomposition{}, err
	}
	d := Decomposition{Myopic: s.myopic(t), Hedge: s.hedge(t)}
	if s.gamma == 1 {
		// Log utility: no intertemporal hedging demand.
		d.Total = d.Myopic
		return d, nil
	}
	d.Total = d.Myopic.Scale(1 / s.gamma).Add(d.Hedge.Scale((s.gamma - 1) / s.gamma))
	return d, nil
}

// Weights returns the optimal bond and stock weights at time t.
func (s *Strategy) Weights(t float64) (Weights, error) {
	d, err := s.Decompose(t)
	if err != nil {
		return Weights{}, err
	}
	return d.Total, nil
}

// ScheduleRow is one line of a weight schedule.
type ScheduleRow struct {
	Time float64
	Decomposition
}

// Schedule tabulates the decomposition on n equal intervals of [0, T].
// When T equals the bond maturity the final point is omitted.
func (s *Strategy) Schedule(n int) ([]ScheduleRow, error) {
	if n <= 0 {
		n = 1
	}
	rows := make([]ScheduleRow, 0, n+1)
	for _, t := range mathutil.Grid(0, s.horizon.T, n) {
		if t >= s.horizon.Maturity {
			break
		}
		d, err := s.Decompose(t)
		if err != nil {
			return nil, err
		}
		rows = append(rows, ScheduleRow{Time: t, Decomposition: d})
	}
	return rows, nil
}

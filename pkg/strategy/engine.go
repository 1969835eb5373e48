// Package strategy evaluates the closed-form ambiguity-robust portfolio and
// the coefficients of the associated value function.
package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/robust-portfolio/pkg/ambiguity"
	"github.com/iwvelando/robust-portfolio/pkg/constants"
	"github.com/iwvelando/robust-portfolio/pkg/termstructure"
	"go.uber.org/zap"
)

// Horizon pairs the investment horizon T with the bond maturity Tbar >= T.
type Horizon struct {
	T        float64
	Maturity float64
}

// Validate checks 0 < T <= Maturity.
func (h Horizon) Validate() error {
	if !(h.T > 0) || math.IsInf(h.T, 0) {
		return fmt.Errorf("%w: horizon must be positive and finite, got %v", ErrInvalidHorizon, h.T)
	}
	if !(h.Maturity >= h.T) || math.IsInf(h.Maturity, 0) {
		return fmt.Errorf("%w: bond maturity %v must not precede horizon %v", ErrInvalidHorizon, h.Maturity, h.T)
	}
	return nil
}

// Options configure an Engine.
type Options struct {
	// StrictMarketCondition turns a market-condition violation into an error.
	StrictMarketCondition bool
	// Calculator overrides the term-structure numerics; nil uses termstructure.Default.
	Calculator *termstructure.Calculator
}

// Engine solves the robust portfolio problem.
type Engine struct {
	logger *zap.Logger
	calc   termstructure.Calculator
	strict bool
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	calc := termstructure.Default
	if opts.Calculator != nil {
		calc = *opts.Calculator
	}
	return &Engine{logger: logger, calc: calc, strict: opts.StrictMarketCondition}
}

// Solve computes the robust strategy and value coefficients for the given
// market, ambiguity set, horizon and relative risk aversion gamma >= 1.
// Gamma = 1 is handled by the log-utility closed form.
//
// A market-condition violation is returned as an error only in strict mode;
// otherwise it is logged and recorded on the returned Strategy.
func (e *Engine) Solve(params ambiguity.ModelParameters, bounds ambiguity.Bounds, horizon Horizon, gamma float64) (*Strategy, *ValueCoefficients, error) {
	return e.solve(params, bounds, horizon, gamma, constants.ScenarioWorstCase)
}

// SolveReference computes the strategy of an investor without ambiguity
// aversion who trusts the reference parameters.
func (e *Engine) SolveReference(params ambiguity.ModelParameters, horizon Horizon, gamma float64) (*Strategy, *ValueCoefficients, error) {
	return e.solve(params, ambiguity.PointBounds(params), horizon, gamma, constants.ScenarioReference)
}

// solve does the work of Solve, naming the solved scenario.
func (e *Engine) solve(params ambiguity.ModelParameters, bounds ambiguity.Bounds, horizon Horizon, gamma float64, name string) (*Strategy, *ValueCoefficients, error) {
	if err := horizon.Validate(); err != nil {
		return nil, nil, err
	}
	if !(gamma >= 1) || math.IsInf(gamma, 0) {
		return nil, nil, fmt.Errorf("%w: gamma must be finite and at least 1, got %v", ErrInvalidRiskAversion, gamma)
	}

	worst, err := ambiguity.WorstCase(params, bounds)
	if err != nil {
		return nil, nil, err
	}
	worst.Name = name

	report, err := ambiguity.ValidateMarketCondition(params, bounds, horizon.T)
	var warnings []error
	if err != nil {
		if !errors.Is(err, ambiguity.ErrMarketCondition) || e.strict {
			return nil, nil, err
		}
		e.logger.Warn("market condition violated; value function smoothness is not guaranteed",
			zap.String("op", "strategy.Solve"),
			zap.String("scenario", name),
			zap.Float64("violationTime", report.ViolationTime),
			zap.Float64("lower", report.Lower),
			zap.Float64("upper", report.Upper),
			zap.Error(err),
		)
		warnings = append(warnings, err)
	}

	s := &Strategy{
		params:    params,
		scenario:  worst,
		horizon:   horizon,
		gamma:     gamma,
		calc:      e.calc,
		condition: report,
		warnings:  warnings,
	}
	v := &ValueCoefficients{strategy: s}

	e.logger.Debug("solved strategy",
		zap.String("op", "strategy.Solve"),
		zap.String("scenario", name),
		zap.Float64("gamma", gamma),
		zap.Float64("horizon", horizon.T),
		zap.Float64("maturity", horizon.Maturity),
		zap.Bool("collapsed", bounds.Collapsed()),
		zap.Bool("marketCondition", report.Satisfied),
	)

	return s, v, nil
}

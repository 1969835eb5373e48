// Package analysis compares the ambiguity-robust strategy with the strategy
// of an investor who trusts the reference model, under the worst-case,
// reference, best-case and any configured alternative scenarios.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/robust-portfolio/internal/config"
	"github.com/iwvelando/robust-portfolio/pkg/ambiguity"
	"github.com/iwvelando/robust-portfolio/pkg/simulation"
	"github.com/iwvelando/robust-portfolio/pkg/strategy"
	"go.uber.org/zap"
)

// ErrInvalidConfiguration is returned when the configuration fails validation.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Policy names.
const (
	PolicyRobust    = "robust"
	PolicyReference = "reference"
)

// StrategyReport describes one solved strategy at time zero and its schedule.
type StrategyReport struct {
	Policy   string
	Scenario string
	A0       float64
	A1       float64
	// Value and CertaintyEquivalent are evaluated at (0, W0, r0) under the
	// scenario the strategy was solved against.
	Value               float64
	CertaintyEquivalent float64
	// VerifyError is the largest gap between the closed-form weights and a
	// direct linear solve of the first-order conditions over the schedule.
	VerifyError float64
	Schedule    []strategy.ScheduleRow
}

// Evaluation is one policy run under one scenario.
type Evaluation struct {
	Scenario       string
	Policy         string
	ExpectedWealth float64
	Simulated      *simulation.Summary
}

// Comparison contrasts the simulated certainty equivalents of both policies
// under one scenario. CertaintyGap is robust minus reference.
type Comparison struct {
	Scenario     string
	RobustCE     float64
	ReferenceCE  float64
	CertaintyGap float64
}

// Report is the outcome of Analyze.
type Report struct {
	Parameters      ambiguity.ModelParameters
	Bounds          ambiguity.Bounds
	Horizon         strategy.Horizon
	Gamma           float64
	MarketCondition ambiguity.MarketCondition
	Robust          StrategyReport
	Reference       StrategyReport
	Evaluations     []Evaluation
	Comparisons     []Comparison
	Warnings        []string
	Duration        time.Duration
}

// Analyze solves both strategies and evaluates each under every scenario.
// Every simulation reuses the configured seed so the policies are compared on
// common random numbers.
func Analyze(ctx context.Context, logger *zap.Logger, conf config.Configuration) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	params := conf.Model.ToModelParameters()
	bounds := conf.Bounds.ToBounds()
	horizon := conf.Investor.ToHorizon()
	gamma := conf.Investor.Gamma

	engine := strategy.NewEngine(logger, strategy.Options{StrictMarketCondition: conf.Investor.StrictMarketCondition})
	robust, robustValue, err := engine.Solve(params, bounds, horizon, gamma)
	if err != nil {
		return nil, fmt.Errorf("solve robust strategy: %w", err)
	}
	reference, referenceValue, err := engine.SolveReference(params, horizon, gamma)
	if err != nil {
		return nil, fmt.Errorf("solve reference strategy: %w", err)
	}

	report := &Report{
		Parameters:      params,
		Bounds:          bounds,
		Horizon:         horizon,
		Gamma:           gamma,
		MarketCondition: robust.MarketCondition(),
		Warnings:        conf.ValidateConfiguration(),
	}
	for _, warning := range report.Warnings {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "analysis.Analyze"),
		)
	}
	// The engine has already logged these.
	report.Warnings = append(report.Warnings, solverWarnings(PolicyRobust, robust)...)
	report.Warnings = append(report.Warnings, solverWarnings(PolicyReference, reference)...)

	steps := conf.Output.ScheduleSteps
	if report.Robust, err = describe(PolicyRobust, robust, robustValue, conf.Investor, steps); err != nil {
		return nil, err
	}
	if report.Reference, err = describe(PolicyReference, reference, referenceValue, conf.Investor, steps); err != nil {
		return nil, err
	}

	scenarios, err := scenarioSet(conf, params, bounds)
	if err != nil {
		return nil, err
	}
	policies := []struct {
		name   string
		policy simulation.Policy
	}{
		{PolicyRobust, robust},
		{PolicyReference, reference},
	}

	sim := simulation.NewSimulator(logger)
	req := conf.ToRequest()
	for _, scenario := range scenarios {
		comparison := Comparison{Scenario: scenario.Name}
		for _, p := range policies {
			eval := Evaluation{Scenario: scenario.Name, Policy: p.name}
			eval.ExpectedWealth, err = simulation.ExpectedTerminalWealth(p.policy, scenario, params, horizon, conf.Investor.InitialWealth, conf.Investor.InitialRate)
			if err != nil {
				return nil, fmt.Errorf("expected wealth of %s policy under %s: %w", p.name, scenario.Name, err)
			}

			if conf.Simulation.Enabled {
				res, err := sim.Run(ctx, p.policy, scenario, req, simulation.PCGStreams(conf.Simulation.Seed))
				if err != nil {
					return nil, fmt.Errorf("simulate %s policy under %s: %w", p.name, scenario.Name, err)
				}
				summary := res.Summary
				eval.Simulated = &summary
				if summary.Flagged > 0 {
					report.Warnings = append(report.Warnings,
						fmt.Sprintf("%d of %d paths of the %s policy under '%s' reached non-positive wealth",
							summary.Flagged, summary.Paths, p.name, scenario.Name))
				}
				if p.name == PolicyRobust {
					comparison.RobustCE = summary.CertaintyEquivalent
				} else {
					comparison.ReferenceCE = summary.CertaintyEquivalent
				}
			}
			report.Evaluations = append(report.Evaluations, eval)
		}
		if conf.Simulation.Enabled {
			comparison.CertaintyGap = comparison.RobustCE - comparison.ReferenceCE
			report.Comparisons = append(report.Comparisons, comparison)
		}
	}

	report.Duration = time.Since(start)
	logger.Info("analysis complete",
		zap.String("op", "analysis.Analyze"),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("evaluations", len(report.Evaluations)),
		zap.Bool("marketCondition", report.MarketCondition.Satisfied),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func describe(policy string, s *strategy.Strategy, v *strategy.ValueCoefficients, investor config.Investor, steps int) (StrategyReport, error) {
	sr := StrategyReport{Policy: policy, Scenario: s.Scenario().Name}
	var err error
	if sr.A0, err = v.A0(0); err != nil {
		return sr, fmt.Errorf("%s a0: %w", policy, err)
	}
	if sr.A1, err = v.A1(0); err != nil {
		return sr, fmt.Errorf("%s a1: %w", policy, err)
	}
	if sr.Value, err = v.Value(0, investor.InitialWealth, investor.InitialRate); err != nil {
		return sr, fmt.Errorf("%s value: %w", policy, err)
	}
	if sr.CertaintyEquivalent, err = v.CertaintyEquivalent(0, investor.InitialWealth, investor.InitialRate); err != nil {
		return sr, fmt.Errorf("%s certainty equivalent: %w", policy, err)
	}
	if sr.Schedule, err = s.Schedule(steps); err != nil {
		return sr, fmt.Errorf("%s schedule: %w", policy, err)
	}
	for _, row := range sr.Schedule {
		diff, err := s.Verify(row.Time)
		if err != nil {
			return sr, fmt.Errorf("%s verification at t=%g: %w", policy, row.Time, err)
		}
		sr.VerifyError = max(sr.VerifyError, diff)
	}
	return sr, nil
}

// solverWarnings renders the warnings the engine recorded while solving.
func solverWarnings(policy string, s *strategy.Strategy) []string {
	var warnings []string
	for _, err := range s.Warnings() {
		if errors.Is(err, ambiguity.ErrMarketCondition) {
			warnings = append(warnings, fmt.Sprintf("Market condition violated for the %s policy, the value function may not be smooth: %v", policy, err))
			continue
		}
		warnings = append(warnings, fmt.Sprintf("%s policy: %v", policy, err))
	}
	return warnings
}

// scenarioSet returns the worst-case, reference and best-case scenarios
// followed by the active configured alternatives.
func scenarioSet(conf config.Configuration, params ambiguity.ModelParameters, bounds ambiguity.Bounds) ([]ambiguity.Scenario, error) {
	worst, err := ambiguity.WorstCase(params, bounds)
	if err != nil {
		return nil, err
	}
	reference, err := ambiguity.Reference(params)
	if err != nil {
		return nil, err
	}
	best, err := ambiguity.BestCase(params, bounds)
	if err != nil {
		return nil, err
	}
	scenarios := []ambiguity.Scenario{worst, reference, best}
	for _, s := range conf.ActiveScenarios() {
		scenarios = append(scenarios, s.ToScenario(params.Kappa))
	}
	return scenarios, nil
}

// Find returns the evaluation of policy under scenario, or nil.
func (r *Report) Find(scenario, policy string) *Evaluation {
	for i := range r.Evaluations {
		if r.Evaluations[i].Scenario == scenario && r.Evaluations[i].Policy == policy {
			return &r.Evaluations[i]
		}
	}
	return nil
}

// ScenarioNames lists the evaluated scenarios in report order.
func (r *Report) ScenarioNames() []string {
	var names []string
	seen := map[string]bool{}
	for _, e := range r.Evaluations {
		if !seen[e.Scenario] {
			seen[e.Scenario] = true
			names = append(names, e.Scenario)
		}
	}
	return names
}

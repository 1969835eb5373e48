package analysis

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/iwvelando/robust-portfolio/internal/config"
	"github.com/iwvelando/robust-portfolio/pkg/ambiguity"
	"github.com/iwvelando/robust-portfolio/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func loadTestConfig(t *testing.T) config.Configuration {
	t.Helper()
	conf, err := config.LoadConfiguration("../../test/test_config.yaml")
	require.NoError(t, err)
	return *conf
}

func TestAnalyze(t *testing.T) {
	conf := loadTestConfig(t)
	report, err := Analyze(context.Background(), zap.NewNop(), conf)
	require.NoError(t, err)

	assert.True(t, report.MarketCondition.Satisfied)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 3.0, report.Gamma)
	assert.Equal(t, 5.0, report.Horizon.T)

	assert.Equal(t, constants.ScenarioWorstCase, report.Robust.Scenario)
	assert.Equal(t, constants.ScenarioReference, report.Reference.Scenario)
	for _, sr := range []StrategyReport{report.Robust, report.Reference} {
		assert.Len(t, sr.Schedule, conf.Output.ScheduleSteps+1)
		assert.Less(t, sr.VerifyError, 1e-9)
		assert.InDelta(t, math.Exp(sr.A0+sr.A1*conf.Investor.InitialRate), sr.CertaintyEquivalent, 1e-12)
		assert.Less(t, sr.Value, 0.0)
	}
	assert.Less(t, report.Robust.CertaintyEquivalent, report.Reference.CertaintyEquivalent,
		"the worst case is a less favourable market than the reference")

	assert.Equal(t,
		[]string{constants.ScenarioWorstCase, constants.ScenarioReference, constants.ScenarioBestCase, "high volatility"},
		report.ScenarioNames())
	require.Len(t, report.Evaluations, 8)
	for _, e := range report.Evaluations {
		require.NotNil(t, e.Simulated, "%s/%s", e.Scenario, e.Policy)
		s := e.Simulated
		assert.Equal(t, conf.Simulation.Paths, s.Paths)
		assert.Zero(t, s.Flagged)
		assert.Greater(t, e.ExpectedWealth, 0.0)
		assert.Less(t, math.Abs(s.Mean-e.ExpectedWealth), 4*s.StdErr,
			"%s/%s: sample mean %v, analytic %v", e.Scenario, e.Policy, s.Mean, e.ExpectedWealth)
	}

	require.Len(t, report.Comparisons, 4)
	for _, c := range report.Comparisons {
		assert.Equal(t, c.RobustCE-c.ReferenceCE, c.CertaintyGap)
		assert.False(t, math.IsNaN(c.CertaintyGap))
	}

	worstRobust := report.Find(constants.ScenarioWorstCase, PolicyRobust)
	require.NotNil(t, worstRobust)
	assert.Nil(t, report.Find("missing", PolicyRobust))
}

func TestAnalyzeIsReproducible(t *testing.T) {
	conf := loadTestConfig(t)
	conf.Simulation.Workers = 1
	first, err := Analyze(context.Background(), nil, conf)
	require.NoError(t, err)

	conf.Simulation.Workers = 4
	second, err := Analyze(context.Background(), nil, conf)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Comparisons, second.Comparisons); diff != "" {
		t.Errorf("comparisons differ between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Evaluations, second.Evaluations); diff != "" {
		t.Errorf("evaluations differ between runs (-first +second):\n%s", diff)
	}
}

func TestAnalyzeWithoutSimulation(t *testing.T) {
	conf := loadTestConfig(t)
	conf.Simulation.Enabled = false
	report, err := Analyze(context.Background(), nil, conf)
	require.NoError(t, err)

	require.Len(t, report.Evaluations, 8)
	for _, e := range report.Evaluations {
		assert.Nil(t, e.Simulated)
		assert.Greater(t, e.ExpectedWealth, 0.0)
	}
	assert.Empty(t, report.Comparisons)
	assert.Contains(t, strings.Join(report.Warnings, "\n"), "only evaluated analytically")
}

func TestAnalyzeMarketCondition(t *testing.T) {
	conf := loadTestConfig(t)
	conf.Simulation.Enabled = false
	conf.Model.LambdaB0 = 0.05

	report, err := Analyze(context.Background(), nil, conf)
	require.NoError(t, err)
	assert.False(t, report.MarketCondition.Satisfied)
	assert.Contains(t, strings.Join(report.Warnings, "\n"), "Market condition violated")

	conf.Investor.StrictMarketCondition = true
	_, err = Analyze(context.Background(), nil, conf)
	assert.ErrorIs(t, err, ambiguity.ErrMarketCondition)
}

func TestAnalyzeReportsEachWarningOnce(t *testing.T) {
	conf := loadTestConfig(t)
	conf.Simulation.Enabled = false
	conf.Model.LambdaB0 = 0.05
	configWarnings := conf.ValidateConfiguration()
	require.NotEmpty(t, configWarnings)

	core, logs := observer.New(zapcore.WarnLevel)
	report, err := Analyze(context.Background(), zap.New(core), conf)
	require.NoError(t, err)

	seen := map[string]bool{}
	robustViolations := 0
	for _, w := range report.Warnings {
		assert.False(t, seen[w], "duplicate warning %q", w)
		seen[w] = true
		if strings.Contains(w, "Market condition violated for the robust policy") {
			robustViolations++
		}
	}
	assert.Equal(t, 1, robustViolations)

	assert.Equal(t, len(configWarnings), logs.FilterMessageSnippet("Configuration warning").Len())
	worstCaseLogs := logs.FilterMessageSnippet("market condition violated").
		FilterField(zap.String("scenario", constants.ScenarioWorstCase))
	assert.Equal(t, 1, worstCaseLogs.Len())
	for _, w := range configWarnings {
		assert.Equal(t, 1, logs.FilterMessage("Configuration warning: "+w).Len(), "warning %q", w)
	}
}

func TestAnalyzeRejectsInvalidConfiguration(t *testing.T) {
	conf := loadTestConfig(t)
	conf.Investor.Gamma = 0.5
	_, err := Analyze(context.Background(), nil, conf)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "gamma")
}

func TestAnalyzeCancelled(t *testing.T) {
	conf := loadTestConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Analyze(ctx, nil, conf)
	assert.ErrorIs(t, err, context.Canceled)
}

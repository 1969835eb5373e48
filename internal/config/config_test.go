package config

import (
	"strings"
	"testing"

	"github.com/iwvelando/robust-portfolio/pkg/constants"
)

const testConfigPath = "../../test/test_config.yaml"

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		configPath string
		wantError  bool
	}{
		{
			name:       "Non-existent config file",
			configPath: "nonexistent.yaml",
			wantError:  true,
		},
		{
			name:       "Test fixture",
			configPath: testConfigPath,
			wantError:  false,
		},
		{
			name:       "Example config",
			configPath: "../../" + constants.ExampleConfigFile,
			wantError:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfiguration(tt.configPath)
			if tt.wantError {
				if err == nil {
					t.Errorf("LoadConfiguration() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("LoadConfiguration() error = %v", err)
				return
			}
			if config == nil {
				t.Errorf("LoadConfiguration() returned nil config")
				return
			}
			if err := config.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestLoadConfigurationStructure(t *testing.T) {
	config, err := LoadConfiguration(testConfigPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if config.Model.Kappa != 0.1 || config.Model.RBar != 0.03 || config.Model.LambdaB0 != 0.01 {
		t.Errorf("unexpected model section: %+v", config.Model)
	}
	if config.Bounds.Rho.Lower != -0.5 || config.Bounds.Rho.Upper != -0.1 {
		t.Errorf("unexpected rho bounds: %+v", config.Bounds.Rho)
	}
	if config.Investor.Gamma != 3 || config.Investor.Horizon != 5 || config.Investor.BondMaturity != 10 {
		t.Errorf("unexpected investor section: %+v", config.Investor)
	}
	if !config.Simulation.Enabled || config.Simulation.Steps != 50 || config.Simulation.Paths != 2000 {
		t.Errorf("unexpected simulation section: %+v", config.Simulation)
	}
	if config.Simulation.Seed != 7 {
		t.Errorf("Expected seed 7, got %d", config.Simulation.Seed)
	}

	expectedScenarios := []string{"high volatility", "calm"}
	if len(config.Scenarios) != len(expectedScenarios) {
		t.Fatalf("Expected %d scenarios, got %d", len(expectedScenarios), len(config.Scenarios))
	}
	for i, expectedName := range expectedScenarios {
		if config.Scenarios[i].Name != expectedName {
			t.Errorf("Expected scenario name %s, got %s", expectedName, config.Scenarios[i].Name)
		}
	}
	active := config.ActiveScenarios()
	if len(active) != 1 || active[0].Name != "high volatility" {
		t.Errorf("ActiveScenarios() = %+v", active)
	}

	if config.Logging.Level != "warn" || config.Logging.Format != "console" {
		t.Errorf("unexpected logging section: %+v", config.Logging)
	}
	if config.Output.Format != constants.OutputFormatPretty || config.Output.ScheduleSteps != 5 {
		t.Errorf("unexpected output section: %+v", config.Output)
	}
}

func TestLoadConfigurationFromReaderDefaults(t *testing.T) {
	yaml := `
model:
  kappa: 0.1
  rBar: 0.03
  sigmaR: 0.055
  lambdaS: 0.05
  sigmaS: 0.2
  rho: -0.3
  lambdaB0: 0.01
bounds:
  lambdaS: {lower: 0.04, upper: 0.06}
  sigmaR: {lower: 0.05, upper: 0.06}
  sigmaS: {lower: 0.18, upper: 0.2}
  rho: {lower: -0.5, upper: -0.1}
investor:
  gamma: 2
  horizon: 4
  bondMaturity: 4
  initialWealth: 100
`
	config, err := LoadConfigurationFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if config.Simulation.Enabled {
		t.Error("simulation should default to disabled")
	}
	if config.Simulation.Steps != constants.DefaultSteps {
		t.Errorf("Steps = %d, want %d", config.Simulation.Steps, constants.DefaultSteps)
	}
	if config.Simulation.Paths != constants.DefaultPaths {
		t.Errorf("Paths = %d, want %d", config.Simulation.Paths, constants.DefaultPaths)
	}
	if config.Simulation.BatchSize != constants.DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", config.Simulation.BatchSize, constants.DefaultBatchSize)
	}
	if config.Simulation.Seed != constants.DefaultSeed {
		t.Errorf("Seed = %d, want %d", config.Simulation.Seed, constants.DefaultSeed)
	}
	if config.Output.ScheduleSteps != constants.DefaultScheduleSteps {
		t.Errorf("ScheduleSteps = %d, want %d", config.Output.ScheduleSteps, constants.DefaultScheduleSteps)
	}
}

func TestLoadConfigurationFromReaderMalformed(t *testing.T) {
	if _, err := LoadConfigurationFromReader(strings.NewReader("model: [unterminated")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func validConfiguration(t *testing.T) *Configuration {
	t.Helper()
	config, err := LoadConfiguration(testConfigPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	return config
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Configuration)
		wantErr string
	}{
		{"Valid", func(c *Configuration) {}, ""},
		{"Negative kappa", func(c *Configuration) { c.Model.Kappa = -0.1 }, "model"},
		{"Reversed bounds", func(c *Configuration) { c.Bounds.SigmaR = Interval{Lower: 0.07, Upper: 0.06} }, "bounds"},
		{"Horizon past maturity", func(c *Configuration) { c.Investor.Horizon = 11 }, "investor"},
		{"Gamma below one", func(c *Configuration) { c.Investor.Gamma = 0.5 }, "gamma"},
		{"No wealth", func(c *Configuration) { c.Investor.InitialWealth = 0 }, "initial wealth"},
		{"Negative workers", func(c *Configuration) { c.Simulation.Workers = -2 }, "simulation"},
		{"Unknown output format", func(c *Configuration) { c.Output.Format = "xml" }, "output"},
		{"Duplicate scenario", func(c *Configuration) { c.Scenarios[1].Name = "high volatility" }, "more than once"},
		{"Reserved scenario name", func(c *Configuration) { c.Scenarios[0].Name = constants.ScenarioWorstCase }, "more than once"},
		{"Correlation out of range", func(c *Configuration) { c.Scenarios[0].Rho = -1.5 }, "scenarios[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfiguration(t)
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfigurationWarnings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Configuration)
		contains []string
	}{
		{"Clean", func(c *Configuration) {}, nil},
		{
			"Reference outside bounds",
			func(c *Configuration) { c.Model.LambdaS = 0.1 },
			[]string{"Reference parameters lie outside"},
		},
		{
			"Scenario outside bounds",
			func(c *Configuration) { c.Scenarios[0].SigmaS = 0.3 },
			[]string{"Scenario 'high volatility' lies outside"},
		},
		{
			"Simulation disabled",
			func(c *Configuration) { c.Simulation.Enabled = false },
			[]string{"only evaluated analytically"},
		},
		{
			"No active scenario",
			func(c *Configuration) { c.Scenarios[0].Active = false },
			[]string{"No alternative scenario is active"},
		},
		{
			"Coarse simulation",
			func(c *Configuration) { c.Simulation.Steps = 10; c.Simulation.Paths = 100 },
			[]string{"step width", "noisy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfiguration(t)
			tt.mutate(config)
			warnings := config.ValidateConfiguration()
			if len(tt.contains) == 0 && len(warnings) != 0 {
				t.Errorf("ValidateConfiguration() = %v, want no warnings", warnings)
			}
			joined := strings.Join(warnings, "\n")
			for _, want := range tt.contains {
				if !strings.Contains(joined, want) {
					t.Errorf("ValidateConfiguration() = %v, want a warning containing %q", warnings, want)
				}
			}
		})
	}
}

func TestValidateConfigurationLeavesMarketConditionToSolver(t *testing.T) {
	for _, strict := range []bool{false, true} {
		config := validConfiguration(t)
		config.Model.LambdaB0 = 0.05
		config.Investor.StrictMarketCondition = strict
		for _, w := range config.ValidateConfiguration() {
			if strings.Contains(w, "Market condition") {
				t.Errorf("strict=%v: market condition should only be reported by the solver: %s", strict, w)
			}
		}
	}
}

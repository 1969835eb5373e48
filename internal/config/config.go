// Package config defines the data structures related to configuration and
// includes functions for loading, validating and converting the config.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/iwvelando/robust-portfolio/pkg/ambiguity"
	"github.com/iwvelando/robust-portfolio/pkg/constants"
	"github.com/iwvelando/robust-portfolio/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for robust-portfolio.
type Configuration struct {
	Model      Model         `yaml:"model"`
	Bounds     Bounds        `yaml:"bounds"`
	Investor   Investor      `yaml:"investor"`
	Simulation Simulation    `yaml:"simulation"`
	Scenarios  []Scenario    `yaml:"scenarios,omitempty"`
	Logging    LoggingConfig `yaml:"logging,omitempty"`
	Output     OutputConfig  `yaml:"output,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format        string `yaml:"format,omitempty"` // pretty, csv, yaml
	ScheduleSteps int    `yaml:"scheduleSteps,omitempty"`
}

// Model holds the reference Vasicek market parameters.
type Model struct {
	Kappa    float64 `yaml:"kappa" json:"kappa"`
	RBar     float64 `yaml:"rBar" json:"rBar"`
	SigmaR   float64 `yaml:"sigmaR" json:"sigmaR"`
	LambdaS  float64 `yaml:"lambdaS" json:"lambdaS"`
	SigmaS   float64 `yaml:"sigmaS" json:"sigmaS"`
	Rho      float64 `yaml:"rho" json:"rho"`
	LambdaB0 float64 `yaml:"lambdaB0" json:"lambdaB0"`
}

// Interval is a closed parameter range.
type Interval struct {
	Lower float64 `yaml:"lower" json:"lower"`
	Upper float64 `yaml:"upper" json:"upper"`
}

// Bounds holds the ambiguity intervals.
type Bounds struct {
	LambdaS Interval `yaml:"lambdaS" json:"lambdaS"`
	SigmaR  Interval `yaml:"sigmaR" json:"sigmaR"`
	SigmaS  Interval `yaml:"sigmaS" json:"sigmaS"`
	Rho     Interval `yaml:"rho" json:"rho"`
}

// Investor holds the preferences, horizon and initial state.
type Investor struct {
	Gamma                 float64 `yaml:"gamma"`
	Horizon               float64 `yaml:"horizon"`
	BondMaturity          float64 `yaml:"bondMaturity"`
	InitialWealth         float64 `yaml:"initialWealth"`
	InitialRate           float64 `yaml:"initialRate"`
	StrictMarketCondition bool    `yaml:"strictMarketCondition,omitempty"`
}

// Simulation holds the Monte-Carlo settings. Zero values select defaults.
type Simulation struct {
	Enabled   bool   `yaml:"enabled"`
	Steps     int    `yaml:"steps,omitempty"`
	Paths     int    `yaml:"paths,omitempty"`
	BatchSize int    `yaml:"batchSize,omitempty"`
	Workers   int    `yaml:"workers,omitempty"`
	Seed      uint64 `yaml:"seed,omitempty"`
}

// Scenario is an alternative constant-parameter market from the ambiguity
// set. Its bond premium follows the reference dynamics driven by its own
// rate volatility.
type Scenario struct {
	Name     string  `yaml:"name"`
	Active   bool    `yaml:"active"`
	LambdaB0 float64 `yaml:"lambdaB0"`
	LambdaS  float64 `yaml:"lambdaS"`
	SigmaR   float64 `yaml:"sigmaR"`
	SigmaS   float64 `yaml:"sigmaS"`
	Rho      float64 `yaml:"rho"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()

	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}

	return decode(v)
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := viper.New()
	v.SetConfigType("yml")

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %w", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	configuration.applyDefaults()
	return &configuration, nil
}

func (c *Configuration) applyDefaults() {
	if c.Simulation.Steps == 0 {
		c.Simulation.Steps = constants.DefaultSteps
	}
	if c.Simulation.Paths == 0 {
		c.Simulation.Paths = constants.DefaultPaths
	}
	if c.Simulation.BatchSize == 0 {
		c.Simulation.BatchSize = constants.DefaultBatchSize
	}
	if c.Simulation.Seed == 0 {
		c.Simulation.Seed = constants.DefaultSeed
	}
	if c.Output.ScheduleSteps == 0 {
		c.Output.ScheduleSteps = constants.DefaultScheduleSteps
	}
}

// ActiveScenarios returns the alternative scenarios marked active.
func (c *Configuration) ActiveScenarios() []Scenario {
	var active []Scenario
	for _, s := range c.Scenarios {
		if s.Active {
			active = append(active, s)
		}
	}
	return active
}

// Validate returns an error describing every setting that prevents a run.
func (c *Configuration) Validate() error {
	var errs []error
	if err := c.Model.ToModelParameters().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	if err := c.Bounds.ToBounds().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bounds: %w", err))
	}
	if err := c.Investor.ToHorizon().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("investor: %w", err))
	}
	if g := c.Investor.Gamma; !(g >= 1) || math.IsInf(g, 0) {
		errs = append(errs, fmt.Errorf("investor: gamma must be at least 1, got %v", g))
	}
	if w := c.Investor.InitialWealth; !(w > 0) || math.IsInf(w, 0) {
		errs = append(errs, fmt.Errorf("investor: initial wealth must be positive, got %v", w))
	}
	if c.Simulation.Enabled {
		if err := validation.ValidateSimulationSize(c.Simulation.Steps, c.Simulation.Paths, c.Simulation.BatchSize, c.Simulation.Workers); err != nil {
			errs = append(errs, fmt.Errorf("simulation: %w", err))
		}
	}
	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
			errs = append(errs, fmt.Errorf("output: %w", err))
		}
	}
	if c.Output.ScheduleSteps < 0 {
		errs = append(errs, fmt.Errorf("output: schedule steps must not be negative, got %d", c.Output.ScheduleSteps))
	}

	names := []string{constants.ScenarioWorstCase, constants.ScenarioReference, constants.ScenarioBestCase}
	for i, s := range c.Scenarios {
		names = append(names, s.Name)
		if err := s.ToScenario(c.Model.Kappa).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("scenarios[%d]: %w", i, err))
		}
	}
	if err := validation.ValidateScenarioNames(names); err != nil {
		errs = append(errs, fmt.Errorf("scenarios: %w", err))
	}
	return errors.Join(errs...)
}

// ValidateConfiguration performs general validation of the configuration and
// returns warnings. Warnings never prevent a run. The market condition is
// left to the strategy engine, which checks it per solved policy.
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string
	params := c.Model.ToModelParameters()
	bounds := c.Bounds.ToBounds()
	horizon := c.Investor.Horizon

	if reference, err := ambiguity.Reference(params); err == nil {
		if err := bounds.Contains(params, reference, horizon); err != nil {
			warnings = append(warnings, fmt.Sprintf("Reference parameters lie outside the ambiguity set: %v", err))
		}
	}

	for _, s := range c.ActiveScenarios() {
		if err := bounds.Contains(params, s.ToScenario(params.Kappa), horizon); err != nil {
			warnings = append(warnings, fmt.Sprintf("Scenario '%s' lies outside the ambiguity set: %v", s.Name, err))
		}
	}

	if len(c.Scenarios) > 0 && len(c.ActiveScenarios()) == 0 {
		warnings = append(warnings, "No alternative scenario is active")
	}
	if !c.Simulation.Enabled && len(c.ActiveScenarios()) > 0 {
		warnings = append(warnings, "Alternative scenarios are only evaluated analytically because simulation is disabled")
	}
	if c.Simulation.Enabled {
		warnings = append(warnings, validation.SimulationWarnings(c.Simulation.Steps, c.Simulation.Paths, c.Investor.Horizon)...)
	}
	return warnings
}

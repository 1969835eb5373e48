package server

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/iwvelando/robust-portfolio/internal/config"
	"github.com/iwvelando/robust-portfolio/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Config defines runtime parameters for the HTTP server. Zero limits select
// the defaults.
type Config struct {
	Address       string               `yaml:"address" validate:"required"`
	MaxUploadSize string               `yaml:"maxUploadSize"`
	MaxPaths      int                  `yaml:"maxPaths" validate:"gte=0"`
	MaxSteps      int                  `yaml:"maxSteps" validate:"gte=0"`
	MaxPathSteps  int64                `yaml:"maxPathSteps" validate:"gte=0"`
	Logging       config.LoggingConfig `yaml:"logging"`
	limits        Limits
}

// Limits bound the work a single analysis request may ask of the server.
// Zero fields select the defaults.
type Limits struct {
	UploadBytes int64
	Paths       int
	Steps       int
	// PathSteps caps paths x steps, the inner-loop count of one simulation.
	PathSteps int64
}

func (l Limits) withDefaults() Limits {
	if l.UploadBytes <= 0 {
		l.UploadBytes = constants.DefaultMaxUploadSizeBytes
	}
	if l.Paths <= 0 {
		l.Paths = constants.DefaultMaxServerPaths
	}
	if l.Steps <= 0 {
		l.Steps = constants.DefaultMaxServerSteps
	}
	if l.PathSteps <= 0 {
		l.PathSteps = constants.DefaultMaxServerPathSteps
	}
	return l
}

// check rejects simulation settings beyond the limits. A disabled simulation
// never runs, so its size is not checked.
func (l Limits) check(sim config.Simulation) error {
	if !sim.Enabled {
		return nil
	}
	var errs []error
	if sim.Paths > l.Paths {
		errs = append(errs, fmt.Errorf("simulation.paths %d exceeds the server limit of %d", sim.Paths, l.Paths))
	}
	if sim.Steps > l.Steps {
		errs = append(errs, fmt.Errorf("simulation.steps %d exceeds the server limit of %d", sim.Steps, l.Steps))
	}
	if work := int64(sim.Paths) * int64(sim.Steps); work > l.PathSteps {
		errs = append(errs, fmt.Errorf("simulation.paths x simulation.steps = %d exceeds the server limit of %d", work, l.PathSteps))
	}
	return errors.Join(errs...)
}

// LoadConfig loads the server configuration from YAML. If the file does not exist,
// defaults are returned without error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Address: constants.DefaultServerAddress}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read server config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse server config: %w", err)
			}
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Limits returns the request limits in effect.
func (c *Config) Limits() Limits {
	return c.limits
}

// UploadSizeBytes returns the configured upload size in bytes.
func (c *Config) UploadSizeBytes() int64 {
	return c.limits.UploadBytes
}

// SetUploadSizeBytes overrides the configured upload size.
func (c *Config) SetUploadSizeBytes(size int64) {
	if size > 0 {
		c.limits.UploadBytes = size
		c.MaxUploadSize = strconv.FormatInt(size, 10)
	}
}

// normalize validates the raw settings, then resolves them into limits.
// Negative limits are rejected rather than silently defaulted.
func (c *Config) normalize() error {
	if c.Address == "" {
		c.Address = constants.DefaultServerAddress
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid server config: %w", validationMessage(err))
	}

	upload, err := ParseSize(c.MaxUploadSize)
	if err != nil {
		return err
	}
	c.limits = Limits{
		UploadBytes: upload,
		Paths:       c.MaxPaths,
		Steps:       c.MaxSteps,
		PathSteps:   c.MaxPathSteps,
	}.withDefaults()
	c.MaxPaths, c.MaxSteps, c.MaxPathSteps = c.limits.Paths, c.limits.Steps, c.limits.PathSteps

	// One path at the step limit must fit the budget or maxSteps is unreachable.
	if c.limits.PathSteps < int64(c.limits.Steps) {
		return fmt.Errorf("invalid server config: maxPathSteps %d is below maxSteps %d", c.limits.PathSteps, c.limits.Steps)
	}
	return nil
}

var sizeUnits = map[string]int64{
	"":   1,
	"B":  1,
	"K":  1 << 10,
	"KB": 1 << 10,
	"M":  1 << 20,
	"MB": 1 << 20,
	"G":  1 << 30,
	"GB": 1 << 30,
}

// ParseSize converts a human-friendly byte string (e.g., "256K", "10M") into
// bytes. An empty string yields the default upload size.
func ParseSize(value string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(value))
	if s == "" {
		return constants.DefaultMaxUploadSizeBytes, nil
	}

	unit := strings.TrimLeftFunc(s, unicode.IsDigit)
	digits := s[:len(s)-len(unit)]
	if digits == "" {
		return 0, fmt.Errorf("invalid size: %s", value)
	}
	multiplier, ok := sizeUnits[strings.TrimSpace(unit)]
	if !ok {
		return 0, fmt.Errorf("unsupported size unit %q", strings.TrimSpace(unit))
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}
	if n > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return n * multiplier, nil
}

// Package validation provides configuration validation utilities.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Step widths above this many years make the Euler scheme visibly biased.
const maxStepWidth = 0.1

// Below this many paths the standard error of the mean dominates any
// comparison between strategies.
const minUsefulPaths = 1000

// ValidateSimulationSize checks that the Monte-Carlo settings are usable.
func ValidateSimulationSize(steps, paths, batchSize, workers int) error {
	var errs []error
	if steps <= 0 {
		errs = append(errs, fmt.Errorf("steps must be positive, got %d", steps))
	}
	if paths <= 0 {
		errs = append(errs, fmt.Errorf("paths must be positive, got %d", paths))
	}
	if batchSize < 0 {
		errs = append(errs, fmt.Errorf("batch size must not be negative, got %d", batchSize))
	}
	if workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", workers))
	}
	return errors.Join(errs...)
}

// SimulationWarnings returns advisory messages for settings that run but
// give poor estimates.
func SimulationWarnings(steps, paths int, horizon float64) []string {
	var warnings []string
	if steps > 0 && horizon/float64(steps) > maxStepWidth {
		warnings = append(warnings, fmt.Sprintf("Simulation step width %.3g years exceeds %.3g; discretisation bias may be noticeable",
			horizon/float64(steps), maxStepWidth))
	}
	if paths > 0 && paths < minUsefulPaths {
		warnings = append(warnings, fmt.Sprintf("Only %d simulated paths; sample statistics will be noisy", paths))
	}
	return warnings
}

// ValidateScenarioNames checks that every scenario name is non-empty and unique.
func ValidateScenarioNames(names []string) error {
	seen := make(map[string]bool, len(names))
	var errs []error
	for i, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			errs = append(errs, fmt.Errorf("scenario %d has no name", i))
			continue
		}
		if seen[trimmed] {
			errs = append(errs, fmt.Errorf("scenario name '%s' is used more than once", trimmed))
		}
		seen[trimmed] = true
	}
	return errors.Join(errs...)
}

package ambiguity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBounds is matched by every *InvalidBoundsError.
	ErrInvalidBounds = errors.New("invalid ambiguity bounds")

	// ErrInvalidParameters reports model parameters outside their domain.
	ErrInvalidParameters = errors.New("invalid model parameters")

	// ErrMarketCondition is matched by every *MarketConditionViolation.
	ErrMarketCondition = errors.New("market condition violated")

	// ErrScenarioOutOfBounds reports a scenario that leaves the ambiguity set.
	ErrScenarioOutOfBounds = errors.New("scenario outside ambiguity bounds")
)

// InvalidBoundsError describes a malformed ambiguity interval. It is fatal:
// the caller has to fix its inputs.
type InvalidBoundsError struct {
	Field  string
	Lower  float64
	Upper  float64
	Reason string
}

func (e *InvalidBoundsError) Error() string {
	return fmt.Sprintf("%s: %s [%g, %g] %s", ErrInvalidBounds, e.Field, e.Lower, e.Upper, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidBounds) hold.
func (e *InvalidBoundsError) Is(target error) bool {
	return target == ErrInvalidBounds
}

// MarketConditionViolation reports the first time at which the worst-case
// bond Sharpe ratio leaves the admissible band. Callers may treat it as a
// warning unless they run in strict mode.
type MarketConditionViolation struct {
	Time  float64
	Ratio float64
	Lower float64
	Upper float64
	// RhoLower is set when a positive correlation lower bound leaves the
	// band empty, so no bond premium can satisfy the condition.
	RhoLower float64
}

func (e *MarketConditionViolation) Error() string {
	if e.RhoLower > 0 {
		return fmt.Sprintf("%s: the admissible band is empty because it needs rho lower bound <= 0, got %.6g",
			ErrMarketCondition, e.RhoLower)
	}
	return fmt.Sprintf("%s at t=%.4f: lambdaB/sigmaR = %.6g outside [%.6g, %.6g]",
		ErrMarketCondition, e.Time, e.Ratio, e.Lower, e.Upper)
}

// Is makes errors.Is(err, ErrMarketCondition) hold.
func (e *MarketConditionViolation) Is(target error) bool {
	return target == ErrMarketCondition
}

package strategy

import (
	"errors"
	"fmt"
)

var (
	// ErrMaturityReached is matched by every *MaturityReachedError.
	ErrMaturityReached = errors.New("bond maturity reached")

	// ErrInvalidHorizon reports an unusable horizon/maturity pair.
	ErrInvalidHorizon = errors.New("invalid horizon")

	// ErrOutsideHorizon reports an evaluation time outside [0, T].
	ErrOutsideHorizon = errors.New("time outside investment horizon")

	// ErrInvalidRiskAversion reports a relative risk aversion below one.
	ErrInvalidRiskAversion = errors.New("invalid risk aversion")
)

// MaturityReachedError is returned when bond weights are requested at or
// after the bond maturity, where b(Tbar - t) = 0 and the weights are undefined.
type MaturityReachedError struct {
	Time     float64
	Maturity float64
}

func (e *MaturityReachedError) Error() string {
	return fmt.Sprintf("%s: t=%g is not before maturity %g", ErrMaturityReached, e.Time, e.Maturity)
}

// Is makes errors.Is(err, ErrMaturityReached) hold.
func (e *MaturityReachedError) Is(target error) bool {
	return target == ErrMaturityReached
}

package handle

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/ffi-bridge/errors"
)

// Policy decides what happens when a caller violates a precondition.
type Policy uint8

const (
	// PolicyError reports the violation as an error return.
	PolicyError Policy = iota
	// PolicyPanic asserts by panicking with the violation error.
	PolicyPanic
)

// ParsePolicy converts "error" or "panic" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "error":
		return PolicyError, nil
	case "panic":
		return PolicyPanic, nil
	}
	return PolicyError, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown violation policy %q", s))
}

func (p Policy) String() string {
	if p == PolicyPanic {
		return "panic"
	}
	return "error"
}

// Enforce applies the policy to err. Errors that are not precondition
// violations pass through untouched.
func (p Policy) Enforce(err error) error {
	var e *errors.Error
	if err == nil || !stderrors.As(err, &e) || !e.Kind.IsViolation() {
		return err
	}

	Logger().Warn("precondition violation",
		zap.String("phase", string(e.Phase)),
		zap.String("kind", string(e.Kind)),
		zap.String("detail", e.Detail))

	if p == PolicyPanic {
		panic(e)
	}
	return err
}

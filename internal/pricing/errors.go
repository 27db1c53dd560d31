package pricing

import (
	"errors"
	"fmt"
)

// ErrUnitMismatch is wrapped when a quantity is not in the plan's unit of measure.
var ErrUnitMismatch = errors.New("quantity unit does not match rate plan unit")

// InvalidQuantityError reports a measured quantity the engine cannot bill.
type InvalidQuantityError struct {
	Reason string
	Err    error
}

func (e *InvalidQuantityError) Error() string {
	return "invalid quantity: " + e.Reason
}

func (e *InvalidQuantityError) Unwrap() error { return e.Err }

// InvalidRatePlanError reports a rate plan field that fails validation.
type InvalidRatePlanError struct {
	Field  string
	Reason string
}

func (e *InvalidRatePlanError) Error() string {
	return fmt.Sprintf("invalid rate plan: %s %s", e.Field, e.Reason)
}

// UnsupportedModeError is returned when a plan does not allow the requested pricing mode.
type UnsupportedModeError struct {
	Mode Mode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("pricing mode %q is not supported by this rate plan", e.Mode)
}

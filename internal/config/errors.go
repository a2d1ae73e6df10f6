package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is matched by every construction-time validation failure.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// InvalidError names the offending setting.
type InvalidError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidError) Unwrap() error {
	return ErrInvalidConfiguration
}

// Invalid is shorthand for the positive-integer checks done by constructors.
func Invalid(field string, value interface{}, reason string) error {
	return &InvalidError{Field: field, Value: value, Reason: reason}
}

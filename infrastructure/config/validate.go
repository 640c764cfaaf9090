package config

import (
	"errors"
	"fmt"
	"slices"
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Required fails when value is empty.
func Required(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// Port fails when port is outside 1..65535.
func Port(field string, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{Field: field, Message: "must be between 1 and 65535"}
	}
	return nil
}

// Positive fails when n <= 0.
func Positive[N int | int64 | float64](field string, n N) error {
	if n <= 0 {
		return &ValidationError{Field: field, Message: "must be positive"}
	}
	return nil
}

// OneOf fails when value is not in allowed.
func OneOf(field, value string, allowed ...string) error {
	if !slices.Contains(allowed, value) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v", allowed)}
	}
	return nil
}

// All joins every non-nil error.
func All(errs ...error) error {
	return errors.Join(errs...)
}

package entity

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel every entity validation failure wraps, so
// callers can classify them with errors.Is without matching field detail.
var ErrValidation = errors.New("entity validation failed")

// ValidationError reports which field of an entity failed validation and
// why. Produced by the Validate methods on CountingWindow, QuotaPeriod,
// and ViolationRecord.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Unwrap makes every field error match ErrValidation under errors.Is.
func (e *ValidationError) Unwrap() error { return ErrValidation }

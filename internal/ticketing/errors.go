package ticketing

import (
	"errors"
	"fmt"
)

// Rejections returned by the ledgers. Callers match them with errors.Is;
// most are wrapped with a short reason.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrSoldOut      = errors.New("sold out")
	ErrOutOfWindow  = errors.New("outside distribution window")
	ErrNotQualified = errors.New("not qualified")
	ErrValidation   = errors.New("validation failed")
	ErrAlreadyUsed  = errors.New("ticket used or nonexistent")
	ErrConflict     = errors.New("conflict")
)

// ValidationError describes malformed input. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid returns a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func notQualified(reason string) error {
	return fmt.Errorf("%w: %s", ErrNotQualified, reason)
}

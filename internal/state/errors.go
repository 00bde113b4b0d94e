package state

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input: missing identities, unknown roles,
	// empty required fields.
	ErrValidation = errors.New("state: validation failed")

	// ErrOrdering marks an attempt to populate a field ahead of its dependency.
	// It is an integration fault and fatal to the session.
	ErrOrdering = errors.New("state: ordering invariant violated")
)

// ValidationError describes why an incoming value was rejected.
type ValidationError struct {
	Field  string
	Index  int // position in the incoming batch, -1 when not applicable
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("state: invalid %s[%d]: %s", e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("state: invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// OrderingError reports that Field was written before Dependency was populated.
type OrderingError struct {
	Field      string
	Dependency string
}

// Error implements the error interface.
func (e *OrderingError) Error() string {
	return fmt.Sprintf("state: cannot populate %s before %s", e.Field, e.Dependency)
}

// Unwrap lets errors.Is match ErrOrdering.
func (e *OrderingError) Unwrap() error { return ErrOrdering }

func invalid(field string, index int, reason string) error {
	return &ValidationError{Field: field, Index: index, Reason: reason}
}

func outOfOrder(field, dependency string) error {
	return &OrderingError{Field: field, Dependency: dependency}
}

package memory

import (
	"errors"
	"fmt"
)

// ErrConfig wraps startup-time configuration failures, e.g. an extraction
// rule whose regex does not compile. Never returned per call.
var ErrConfig = errors.New("invalid configuration")

// ErrProvider wraps embedding-provider failures.
var ErrProvider = errors.New("provider error")

// NotFoundError is returned when a fact or card does not exist. An absent
// active card for a slot is a normal outcome, not a failure; callers that
// treat it as such should check with errors.As and map to an empty option.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return e.Entity + " not found"
	}

	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// ConflictError is returned when the repository rejects a write that lost a
// race: a duplicate enrichment key, or a card swap whose expected
// predecessor is no longer the active card.
type ConflictError struct {
	Key    string
	Reason string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Key, e.Reason)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c ConflictError
	return errors.As(err, &c)
}

// DataIntegrityError is returned when the repository observes state that the
// schema is supposed to make impossible, e.g. two active cards for one
// version key. It is a fatal invariant violation: log and surface, never
// resolve silently.
type DataIntegrityError struct {
	Key    string
	Detail string
}

func (e DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation on %s: %s", e.Key, e.Detail)
}

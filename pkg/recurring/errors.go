package recurring

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidObligation   = errors.New("invalid recurring obligation")
	ErrInvalidFrequency    = errors.New("invalid frequency")
	ErrObligationNotFound  = errors.New("recurring obligation not found")
	ErrNotOwner            = errors.New("not authorized to access recurring obligation")
	ErrConcurrencyConflict = errors.New("recurring obligation was modified concurrently, retry with fresh state")
)

// ValidationError describes a single rejected field. It matches ErrInvalidObligation with errors.Is,
// and ErrInvalidFrequency as well when the frequency was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	if target == ErrInvalidObligation {
		return true
	}
	return e.Field == "frequency" && target == ErrInvalidFrequency
}

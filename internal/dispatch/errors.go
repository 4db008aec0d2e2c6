package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors wrapped by the typed errors below.
var (
	ErrAmbiguousOverride = errors.New("ambiguous override")
	ErrMissingOperation  = errors.New("operation not implemented")
)

// AmbiguousOverrideError reports two override candidates tied at the highest
// priority. The resolver never breaks such ties arbitrarily.
type AmbiguousOverrideError struct {
	Operation string
	First     *Descriptor
	Second    *Descriptor
}

func (e *AmbiguousOverrideError) Error() string {
	return fmt.Sprintf("cannot pick an overriding implementation for %q: %s and %s share priority %d; set an explicit priority to disambiguate",
		e.Operation, e.First, e.Second, e.First.Priority)
}

func (e *AmbiguousOverrideError) Unwrap() error { return ErrAmbiguousOverride }

// MissingOperationError reports that neither an override nor a base
// implementation of the operation exists anywhere in the hierarchy.
type MissingOperationError struct {
	Operation string
	Chain     []string
}

func (e *MissingOperationError) Error() string {
	return fmt.Sprintf("no implementation of %q declared in hierarchy [%s]",
		e.Operation, strings.Join(e.Chain, ", "))
}

func (e *MissingOperationError) Unwrap() error { return ErrMissingOperation }

// IsAmbiguousOverride reports whether err is an ambiguity failure.
func IsAmbiguousOverride(err error) bool { return errors.Is(err, ErrAmbiguousOverride) }

// IsMissingOperation reports whether err is a missing-implementation failure.
func IsMissingOperation(err error) bool { return errors.Is(err, ErrMissingOperation) }

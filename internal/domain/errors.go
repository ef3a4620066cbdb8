package domain

import (
	"errors"
	"fmt"
)

// The error taxonomy separates failures that abort a request from
// failures that only degrade a single drug's branch. Branch-local
// errors never propagate past the branch boundary; they are converted
// into absent optional fields on the result.

// FatalInputError marks a structurally invalid request: empty variant
// set, or no requested drug resolving to a known gene. Surfaced to the
// caller as a 4xx; no partial processing is attempted.
type FatalInputError struct {
	Reason string
}

func (e *FatalInputError) Error() string {
	return fmt.Sprintf("invalid analysis input: %s", e.Reason)
}

// NewFatalInputError creates a FatalInputError with the given reason.
func NewFatalInputError(reason string) *FatalInputError {
	return &FatalInputError{Reason: reason}
}

// IsFatalInput reports whether err is a FatalInputError.
func IsFatalInput(err error) bool {
	var fie *FatalInputError
	return errors.As(err, &fie)
}

// ConfigurationFault marks missing or malformed reference data at
// startup. The process must refuse to start rather than serve
// unaudited risk data.
type ConfigurationFault struct {
	Table string
	Err   error
}

func (e *ConfigurationFault) Error() string {
	return fmt.Sprintf("configuration fault in %s: %v", e.Table, e.Err)
}

func (e *ConfigurationFault) Unwrap() error { return e.Err }

// NewConfigurationFault wraps a reference-table load failure.
func NewConfigurationFault(table string, err error) *ConfigurationFault {
	return &ConfigurationFault{Table: table, Err: err}
}

// DegradedEvidenceError marks a retrieval failure local to one drug's
// branch: index unreachable, timeout, or no passage above threshold.
type DegradedEvidenceError struct {
	Drug string
	Err  error
}

func (e *DegradedEvidenceError) Error() string {
	return fmt.Sprintf("evidence retrieval degraded for %s: %v", e.Drug, e.Err)
}

func (e *DegradedEvidenceError) Unwrap() error { return e.Err }

// DegradedGenerationError marks exhaustion of the full provider
// cascade for one drug's branch.
type DegradedGenerationError struct {
	Drug     string
	Attempts int
	Err      error
}

func (e *DegradedGenerationError) Error() string {
	return fmt.Sprintf("explanation generation degraded for %s after %d attempts: %v", e.Drug, e.Attempts, e.Err)
}

func (e *DegradedGenerationError) Unwrap() error { return e.Err }

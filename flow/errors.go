// Package flow provides the workflow composition engine: an immutable
// shared-state model threaded through asynchronous runnables, and the
// structural combinators (Branch, Race, Loop) that wire independently
// authored samplers into pipelines, races, and iterative loops.
package flow

import (
	"errors"
	"fmt"
)

// ErrScheduleExhausted is a terminal signal, not a failure. Schedule-
// stepping runnables return it once their schedule has no further
// entries; an enclosing Loop treats it as normal termination.
var ErrScheduleExhausted = errors.New("schedule exhausted")

// MissingParameterError indicates a required parameter could not be
// resolved through any fallback layer: runtime override, state field,
// or constructor default.
type MissingParameterError struct {
	// Name is the parameter that was unresolved, e.g. "delta_beta".
	Name string
}

func (e *MissingParameterError) Error() string {
	return "missing parameter: " + e.Name
}

// InvalidProblemError indicates a malformed problem, e.g. one with no
// variables.
type InvalidProblemError struct {
	Reason string
}

func (e *InvalidProblemError) Error() string {
	return "invalid problem: " + e.Reason
}

// DomainError indicates an algorithm input outside its valid domain,
// e.g. a non-positive lower bound for a geometric beta schedule.
type DomainError struct {
	Reason string
}

func (e *DomainError) Error() string {
	return "domain error: " + e.Reason
}

// SamplerError wraps an opaque failure from an external sampler
// collaborator. The engine does not retry these; retry, if desired, is
// the caller's responsibility.
type SamplerError struct {
	// Sampler names the collaborator that failed.
	Sampler string

	// Err is the collaborator-specific cause.
	Err error
}

func (e *SamplerError) Error() string {
	return fmt.Sprintf("sampler %s: %v", e.Sampler, e.Err)
}

// Unwrap returns the collaborator-specific cause.
func (e *SamplerError) Unwrap() error {
	return e.Err
}

package optimization

import "errors"

// Sentinel errors returned by minimization drivers. Configuration errors
// (ErrInvalidParameter, ErrInvalidDimension) are detected before any
// iteration runs; the remaining errors terminate an in-flight solve.
// Callers match them with errors.Is.
var (
	// ErrInvalidParameter reports a solver parameter outside its
	// documented range.
	ErrInvalidParameter = errors.New("invalid solver parameter")

	// ErrInvalidDimension reports an empty or nil starting point.
	ErrInvalidDimension = errors.New("invalid problem dimension")

	// ErrLineSearchFailed reports that the line search exhausted its
	// trial budget without satisfying the Wolfe conditions.
	ErrLineSearchFailed = errors.New("line search failed")

	// ErrLineSearchBounds reports a trial step outside the configured
	// [MinStep, MaxStep] interval.
	ErrLineSearchBounds = errors.New("line search step out of bounds")

	// ErrMaxIterations reports that the iteration cap was reached before
	// convergence.
	ErrMaxIterations = errors.New("maximum iterations reached")
)

// Status classifies how a solve terminated.
type Status int

const (
	// StatusConverged means the relative gradient-norm criterion was met.
	StatusConverged Status = iota
	// StatusStopped means the observer or context requested cancellation.
	// It is not an error: the result holds the last accepted iterate.
	StatusStopped
	// StatusInvalidParameter means a parameter failed validation.
	StatusInvalidParameter
	// StatusInvalidDimension means the starting point was nil or empty.
	StatusInvalidDimension
	// StatusLineSearchFailed means no Wolfe step was found within the
	// per-iteration trial budget.
	StatusLineSearchFailed
	// StatusLineSearchBounds means a trial step left [MinStep, MaxStep].
	StatusLineSearchBounds
	// StatusMaxIterations means the iteration cap was reached.
	StatusMaxIterations
	// StatusOutOfMemory is reserved for wire compatibility of the job
	// API; the Go runtime aborts on allocation failure instead.
	StatusOutOfMemory
)

// String returns the status name used in logs and the job API.
func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusStopped:
		return "stopped"
	case StatusInvalidParameter:
		return "invalid_parameter"
	case StatusInvalidDimension:
		return "invalid_dimension"
	case StatusLineSearchFailed:
		return "line_search_failed"
	case StatusLineSearchBounds:
		return "line_search_bounds_exceeded"
	case StatusMaxIterations:
		return "max_iterations_exceeded"
	case StatusOutOfMemory:
		return "out_of_memory"
	default:
		return "unknown"
	}
}

// StatusFromError maps a solve error to its Status. The second return is
// false when the error does not wrap one of the sentinels above.
func StatusFromError(err error) (Status, bool) {
	switch {
	case err == nil:
		return StatusConverged, true
	case errors.Is(err, ErrInvalidParameter):
		return StatusInvalidParameter, true
	case errors.Is(err, ErrInvalidDimension):
		return StatusInvalidDimension, true
	case errors.Is(err, ErrLineSearchBounds):
		return StatusLineSearchBounds, true
	case errors.Is(err, ErrLineSearchFailed):
		return StatusLineSearchFailed, true
	case errors.Is(err, ErrMaxIterations):
		return StatusMaxIterations, true
	default:
		return StatusStopped, false
	}
}

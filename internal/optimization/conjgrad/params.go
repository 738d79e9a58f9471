package conjgrad

import (
	"fmt"

	"github.com/copyleftdev/TALUS/internal/optimization"
)

// Parameters holds the tunable knobs of the conjugate-gradient driver and
// its line search. The zero value is not usable; start from
// DefaultParameters and override fields before constructing a Solver.
type Parameters struct {
	// Epsilon is the relative stopping threshold: the solve converges
	// when ||g|| <= Epsilon * max(1, ||x||). Must be positive.
	Epsilon float64

	// MaxIterations caps the number of iterations. Zero means unbounded.
	MaxIterations int

	// MaxLineSearch caps objective evaluations per line search. Must be
	// at least 1.
	MaxLineSearch int

	// MinStep and MaxStep bound the line-search step length. Both must
	// be positive with MinStep < MaxStep.
	MinStep float64
	MaxStep float64

	// FTol is the sufficient-decrease (Armijo) constant, in (0, 0.5).
	FTol float64

	// Wolfe is the curvature constant, in (FTol, 1).
	Wolfe float64
}

// DefaultParameters returns the documented defaults.
func DefaultParameters() Parameters {
	return Parameters{
		Epsilon:       1e-5,
		MaxIterations: 0,
		MaxLineSearch: 40,
		MinStep:       1e-20,
		MaxStep:       1e20,
		FTol:          1e-4,
		Wolfe:         0.9,
	}
}

// Validate checks every field against its documented range. It fails fast
// with optimization.ErrInvalidParameter and never corrects a bad value.
func (p Parameters) Validate() error {
	if !(p.Epsilon > 0) {
		return fmt.Errorf("%w: epsilon must be positive, got %v", optimization.ErrInvalidParameter, p.Epsilon)
	}
	if p.MaxIterations < 0 {
		return fmt.Errorf("%w: max iterations must be non-negative, got %d", optimization.ErrInvalidParameter, p.MaxIterations)
	}
	if p.MaxLineSearch < 1 {
		return fmt.Errorf("%w: max line search trials must be at least 1, got %d", optimization.ErrInvalidParameter, p.MaxLineSearch)
	}
	if !(p.MinStep > 0) {
		return fmt.Errorf("%w: min step must be positive, got %v", optimization.ErrInvalidParameter, p.MinStep)
	}
	if !(p.MaxStep > 0) {
		return fmt.Errorf("%w: max step must be positive, got %v", optimization.ErrInvalidParameter, p.MaxStep)
	}
	if p.MinStep >= p.MaxStep {
		return fmt.Errorf("%w: min step %v must be below max step %v", optimization.ErrInvalidParameter, p.MinStep, p.MaxStep)
	}
	if !(p.FTol > 0 && p.FTol < 0.5) {
		return fmt.Errorf("%w: ftol must lie in (0, 0.5), got %v", optimization.ErrInvalidParameter, p.FTol)
	}
	if !(p.Wolfe > p.FTol && p.Wolfe < 1) {
		return fmt.Errorf("%w: wolfe must lie in (ftol, 1), got %v", optimization.ErrInvalidParameter, p.Wolfe)
	}
	return nil
}

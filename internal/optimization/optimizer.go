package optimization

import (
	"context"
)

// Objective is the value-and-gradient contract a minimizer drives.
// Evaluate returns f(x) and writes the gradient of f at x into grad,
// which has the same length as x. Implementations must behave as a pure
// function of x: the line search re-evaluates candidate points and relies
// on answers that do not depend on call order.
type Objective interface {
	Evaluate(ctx context.Context, x, grad []float64) (float64, error)
}

// ObjectiveFunc adapts a plain function to the Objective interface.
type ObjectiveFunc func(ctx context.Context, x, grad []float64) (float64, error)

// Evaluate calls f.
func (f ObjectiveFunc) Evaluate(ctx context.Context, x, grad []float64) (float64, error) {
	return f(ctx, x, grad)
}

// Progress is the snapshot delivered to an Observer after each completed
// iteration. X and Grad alias the solver's working storage and are only
// valid for the duration of the call; copy them if they must outlive it.
type Progress struct {
	// X is the current iterate.
	X []float64
	// Grad is the gradient at X.
	Grad []float64
	// Fx is the objective value at X.
	Fx float64
	// XNorm and GNorm are the Euclidean norms of X and Grad.
	XNorm float64
	GNorm float64
	// Step is the line-search step accepted this iteration.
	Step float64
	// Dim is the problem dimension.
	Dim int
	// Iteration counts completed iterations, starting at 1.
	Iteration int
	// Evaluations is the cumulative number of objective evaluations.
	Evaluations int
}

// Observer receives per-iteration progress reports. Returning false
// requests cooperative cancellation: the solve terminates with
// StatusStopped and performs no further evaluations.
type Observer interface {
	OnIteration(p Progress) bool
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(p Progress) bool

// OnIteration calls f.
func (f ObserverFunc) OnIteration(p Progress) bool {
	return f(p)
}

// Minimizer is the interface implemented by iterative minimization
// drivers. On return, x holds the final iterate in place.
type Minimizer interface {
	Minimize(ctx context.Context, obj Objective, x []float64) (*Result, error)
}

// Result describes how a solve terminated and where it ended up.
type Result struct {
	// Status classifies the termination.
	Status Status
	// X is the final iterate. For StatusConverged it satisfies the
	// relative gradient criterion; for StatusStopped it is the last
	// accepted iterate and remains usable.
	X []float64
	// Fx is the objective value at X.
	Fx float64
	// Iterations is the number of completed iterations.
	Iterations int
	// Evaluations is the total number of objective evaluations.
	Evaluations int
	// XNorm and GNorm are the Euclidean norms of X and its gradient.
	XNorm float64
	GNorm float64
}

package conjgrad

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/TALUS/internal/optimization"
)

// Step-width factors for the backtracking search: grow when the curvature
// lower bound fails (step too short), shrink when sufficient decrease or
// the strong-Wolfe upper bound fails (step too long).
const (
	stepShrink = 0.5
	stepGrow   = 2.1
)

// errNotDescent signals that the supplied direction has a non-negative
// directional derivative. The driver responds with a steepest-descent
// restart instead of attempting the search.
var errNotDescent = errors.New("search direction is not a descent direction")

// lineSearch finds a step length satisfying the strong Wolfe conditions
// along a descent direction. The variant is the backtracking form: each
// trial multiplies the step by a fixed factor chosen from which condition
// failed, rather than interpolating within an explicit bracket. Both
// variants honor the same acceptance contract; backtracking needs no
// bookkeeping beyond the current step.
type lineSearch struct {
	params Parameters
}

// search advances x along d starting from trial step length `step`.
// xp receives a copy of the starting point; on success x and g hold the
// accepted point and its gradient, and the accepted value, step and number
// of objective evaluations are returned. On failure x and g are left at
// the last trial point; the caller restores the prior iterate from xp.
//
// Acceptance requires, with phi(a) = f(x + a d) and dgInit = g'd < 0:
//
//	phi(a) <= phi(0) + FTol * a * dgInit   (sufficient decrease)
//	|phi'(a)| <= Wolfe * |dgInit|          (curvature)
func (ls lineSearch) search(ctx context.Context, obj optimization.Objective, x, g, d, xp []float64, fx, step float64) (float64, float64, int, error) {
	dgInit := floats.Dot(g, d)
	if dgInit >= 0 {
		return fx, step, 0, errNotDescent
	}

	armijo := ls.params.FTol * dgInit
	fInit := fx
	copy(xp, x)

	evals := 0
	for {
		if step < ls.params.MinStep || step > ls.params.MaxStep {
			return fInit, step, evals, fmt.Errorf("%w: step %g outside [%g, %g]",
				optimization.ErrLineSearchBounds, step, ls.params.MinStep, ls.params.MaxStep)
		}

		copy(x, xp)
		floats.AddScaled(x, step, d)

		f, err := obj.Evaluate(ctx, x, g)
		if err != nil {
			return fInit, step, evals, fmt.Errorf("evaluating objective at trial step %g: %w", step, err)
		}
		evals++

		var width float64
		if f > fInit+step*armijo {
			width = stepShrink
		} else {
			dg := floats.Dot(g, d)
			switch {
			case dg < ls.params.Wolfe*dgInit:
				width = stepGrow
			case dg > -ls.params.Wolfe*dgInit:
				width = stepShrink
			default:
				return f, step, evals, nil
			}
		}

		if evals >= ls.params.MaxLineSearch {
			return fInit, step, evals, fmt.Errorf("%w: no Wolfe step after %d trials",
				optimization.ErrLineSearchFailed, evals)
		}
		step *= width
	}
}

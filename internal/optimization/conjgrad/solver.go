// Package conjgrad minimizes differentiable objectives with Polak–Ribière+
// nonlinear conjugate gradient and a backtracking line search satisfying
// the strong Wolfe conditions.
package conjgrad

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/TALUS/internal/optimization"
)

// Solver is a reusable conjugate-gradient minimizer. A Solver is safe for
// concurrent use: every Minimize call works on its own pooled vectors and
// the caller-owned x slice.
type Solver struct {
	params   Parameters
	observer optimization.Observer
	logger   *zap.Logger
	pool     worksetPool
}

// Option configures a Solver.
type Option func(*Solver)

// WithObserver installs a per-iteration progress observer. Returning
// false from the observer stops the solve with StatusStopped.
func WithObserver(obs optimization.Observer) Option {
	return func(s *Solver) { s.observer = obs }
}

// WithLogger attaches a logger for per-solve debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Solver) { s.logger = l }
}

// NewSolver validates params and builds a Solver. Validation failures
// wrap optimization.ErrInvalidParameter and happen before any iteration
// could run.
func NewSolver(params Parameters, opts ...Option) (*Solver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Solver{
		params: params,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Parameters returns the solver's configuration.
func (s *Solver) Parameters() Parameters {
	return s.params
}

// Minimize drives obj from the starting point x to a local minimizer,
// mutating x in place. It returns a Result describing the termination;
// the error is non-nil exactly when Result.Status is a failure status.
// Cancelling ctx, like an observer returning false, ends the solve with
// StatusStopped after the current iteration and leaves the last accepted
// iterate in x.
func (s *Solver) Minimize(ctx context.Context, obj optimization.Objective, x []float64) (*optimization.Result, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: nil objective", optimization.ErrInvalidParameter)
	}
	n := len(x)
	if n == 0 {
		return nil, fmt.Errorf("%w: starting point must be non-empty", optimization.ErrInvalidDimension)
	}

	ws := s.pool.get(n)
	defer s.pool.put(ws)
	g, gPrev, d, dPrev, xPrev := ws.g, ws.gPrev, ws.d, ws.dPrev, ws.xPrev

	fx, err := obj.Evaluate(ctx, x, g)
	if err != nil {
		return nil, fmt.Errorf("evaluating objective at starting point: %w", err)
	}
	evals := 1

	xnorm := floats.Norm(x, 2)
	gnorm := floats.Norm(g, 2)
	if converged(gnorm, xnorm, s.params.Epsilon) {
		// Already minimized at the starting point.
		return s.result(optimization.StatusConverged, x, fx, 0, evals, xnorm, gnorm), nil
	}

	steepestDescent(d, g)
	search := lineSearch{params: s.params}
	step := 1.0
	k := 0
	age := 0 // iterations since the last steepest-descent restart

	for {
		if err := ctx.Err(); err != nil {
			return s.result(optimization.StatusStopped, x, fx, k, evals, xnorm, gnorm), nil
		}

		copy(gPrev, g)
		copy(dPrev, d)
		fPrev := fx

		fNew, accepted, nEvals, lsErr := search.search(ctx, obj, x, g, d, xPrev, fx, step)
		evals += nEvals
		if lsErr != nil {
			if errors.Is(lsErr, errNotDescent) {
				// Signaled before any trial: x, fx, g are untouched. The
				// direction update guarantees descent, so this only
				// happens on a zero gradient at an unconverged point.
				steepestDescent(d, g)
				if floats.Dot(g, d) < 0 {
					age = 0
					step = 1.0
					continue
				}
				lsErr = fmt.Errorf("%w: gradient gives no descent direction", optimization.ErrLineSearchFailed)
			} else {
				// Leave the caller at the last accepted iterate.
				copy(x, xPrev)
				copy(g, gPrev)
				fx = fPrev
			}
			status, ok := optimization.StatusFromError(lsErr)
			if !ok {
				// Objective evaluation error, not a solver failure mode.
				return nil, lsErr
			}
			s.logger.Debug("line search failed",
				zap.Int("iteration", k+1),
				zap.Error(lsErr),
			)
			return s.result(status, x, fx, k, evals, xnorm, gnorm), lsErr
		}
		fx = fNew
		k++
		age++

		xnorm = floats.Norm(x, 2)
		gnorm = floats.Norm(g, 2)

		if s.observer != nil {
			cont := s.observer.OnIteration(optimization.Progress{
				X:           x,
				Grad:        g,
				Fx:          fx,
				XNorm:       xnorm,
				GNorm:       gnorm,
				Step:        accepted,
				Dim:         n,
				Iteration:   k,
				Evaluations: evals,
			})
			if !cont {
				s.logger.Debug("solve stopped by observer", zap.Int("iteration", k))
				return s.result(optimization.StatusStopped, x, fx, k, evals, xnorm, gnorm), nil
			}
		}

		if converged(gnorm, xnorm, s.params.Epsilon) {
			s.logger.Debug("converged",
				zap.Int("iterations", k),
				zap.Int("evaluations", evals),
				zap.Float64("fx", fx),
				zap.Float64("gnorm", gnorm),
			)
			return s.result(optimization.StatusConverged, x, fx, k, evals, xnorm, gnorm), nil
		}

		if s.params.MaxIterations > 0 && k >= s.params.MaxIterations {
			err := fmt.Errorf("%w: %d iterations without convergence", optimization.ErrMaxIterations, k)
			return s.result(optimization.StatusMaxIterations, x, fx, k, evals, xnorm, gnorm), err
		}

		// Directional derivative at the start of the accepted step, used
		// below to scale the next trial step.
		dgPrev := floats.Dot(gPrev, dPrev)

		if nextDirection(d, g, gPrev, dPrev, age, n) {
			age = 0
			step = 1.0
			continue
		}

		dgNew := floats.Dot(g, d)
		step = accepted * dgPrev / dgNew
		if math.IsNaN(step) || math.IsInf(step, 0) || step <= 0 {
			step = 1.0
		}
	}
}

func (s *Solver) result(status optimization.Status, x []float64, fx float64, k, evals int, xnorm, gnorm float64) *optimization.Result {
	return &optimization.Result{
		Status:      status,
		X:           x,
		Fx:          fx,
		Iterations:  k,
		Evaluations: evals,
		XNorm:       xnorm,
		GNorm:       gnorm,
	}
}

// Package objectives provides differentiable test objectives used by the
// solver tests and the minimization service.
package objectives

import (
	"context"
	"fmt"

	"github.com/copyleftdev/TALUS/internal/optimization"
)

// Sphere is f(x) = Σ x_i², minimized at the origin.
type Sphere struct{}

// Evaluate implements optimization.Objective.
func (Sphere) Evaluate(_ context.Context, x, grad []float64) (float64, error) {
	sum := 0.0
	for i, v := range x {
		sum += v * v
		grad[i] = 2 * v
	}
	return sum, nil
}

// Rosenbrock is the chained Rosenbrock valley
//
//	f(x) = Σ_{i<n-1} (1 - x_i)² + 100 (x_{i+1} - x_i²)²
//
// minimized at (1, ..., 1) with value 0. For n = 2 it reduces to the
// classic two-variable banana function. Requires n >= 2.
type Rosenbrock struct{}

// Evaluate implements optimization.Objective.
func (Rosenbrock) Evaluate(_ context.Context, x, grad []float64) (float64, error) {
	n := len(x)
	if n < 2 {
		return 0, fmt.Errorf("rosenbrock needs at least 2 variables, got %d", n)
	}

	for i := range grad {
		grad[i] = 0
	}

	fx := 0.0
	for i := 0; i < n-1; i++ {
		a, b := x[i], x[i+1]
		t := b - a*a
		fx += (1-a)*(1-a) + 100*t*t
		grad[i] += -2*(1-a) - 400*a*t
		grad[i+1] += 200 * t
	}
	return fx, nil
}

// Lookup returns a named objective for an n-dimensional solve. The
// minimization service resolves request objectives through it.
func Lookup(name string, n int) (optimization.Objective, error) {
	switch name {
	case "sphere":
		return Sphere{}, nil
	case "rosenbrock":
		if n < 2 {
			return nil, fmt.Errorf("objective %q needs at least 2 variables, got %d", name, n)
		}
		return Rosenbrock{}, nil
	case "quadratic":
		// Diagonal SPD quadratic with eigenvalues 1..n.
		diag := make([]float64, n)
		for i := range diag {
			diag[i] = float64(i + 1)
		}
		return NewDiagonalQuadratic(diag)
	default:
		return nil, fmt.Errorf("unknown objective %q", name)
	}
}

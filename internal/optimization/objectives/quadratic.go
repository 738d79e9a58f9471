package objectives

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Quadratic is the strictly convex objective
//
//	f(x) = ½ x'Qx - b'x
//
// with Q symmetric positive definite. Its gradient is Qx - b and its
// unique minimizer solves Qx = b. Exact-arithmetic conjugate gradient
// reaches that minimizer in at most n iterations, which makes Quadratic
// the reference objective for driver tests.
type Quadratic struct {
	q *mat.SymDense
	b *mat.VecDense
}

// NewQuadratic builds a Quadratic from Q and b. Dimensions must agree;
// positive definiteness is the caller's responsibility.
func NewQuadratic(q *mat.SymDense, b *mat.VecDense) (*Quadratic, error) {
	n := q.SymmetricDim()
	if b.Len() != n {
		return nil, fmt.Errorf("quadratic dimension mismatch: Q is %dx%d, b has length %d", n, n, b.Len())
	}
	return &Quadratic{q: q, b: b}, nil
}

// NewDiagonalQuadratic builds a Quadratic with Q = diag(d) and b = 0.
// All diagonal entries must be positive.
func NewDiagonalQuadratic(diag []float64) (*Quadratic, error) {
	n := len(diag)
	q := mat.NewSymDense(n, nil)
	for i, v := range diag {
		if v <= 0 {
			return nil, fmt.Errorf("diagonal entry %d must be positive, got %v", i, v)
		}
		q.SetSym(i, i, v)
	}
	return NewQuadratic(q, mat.NewVecDense(n, nil))
}

// Minimizer returns the solution of Qx = b.
func (f *Quadratic) Minimizer() ([]float64, error) {
	n := f.q.SymmetricDim()
	var chol mat.Cholesky
	if ok := chol.Factorize(f.q); !ok {
		return nil, fmt.Errorf("Q is not positive definite")
	}
	x := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(x, f.b); err != nil {
		return nil, err
	}
	return x.RawVector().Data, nil
}

// Evaluate implements optimization.Objective.
func (f *Quadratic) Evaluate(_ context.Context, x, grad []float64) (float64, error) {
	n := f.q.SymmetricDim()
	if len(x) != n {
		return 0, fmt.Errorf("quadratic is %d-dimensional, got point of length %d", n, len(x))
	}

	xv := mat.NewVecDense(n, x)
	// Write Qx straight into the gradient buffer, then subtract b.
	gv := mat.NewVecDense(n, grad)
	gv.MulVec(f.q, xv)

	fx := 0.5*mat.Dot(gv, xv) - mat.Dot(f.b, xv)
	for i := 0; i < n; i++ {
		grad[i] -= f.b.AtVec(i)
	}
	return fx, nil
}

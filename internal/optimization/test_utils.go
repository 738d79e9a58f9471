package optimization

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
)

// countingObjective wraps an Objective and counts Evaluate calls. Tests use
// it to assert evaluation budgets and that cancellation stops evaluation.
type countingObjective struct {
	inner Objective
	calls atomic.Int64
}

func newCountingObjective(inner Objective) *countingObjective {
	return &countingObjective{inner: inner}
}

func (c *countingObjective) Evaluate(ctx context.Context, x, grad []float64) (float64, error) {
	c.calls.Add(1)
	return c.inner.Evaluate(ctx, x, grad)
}

func (c *countingObjective) Calls() int {
	return int(c.calls.Load())
}

// sphereObjective is the simplest smooth test objective: f(x) = Σ x_i².
func sphereObjective() Objective {
	return ObjectiveFunc(func(_ context.Context, x, grad []float64) (float64, error) {
		sum := 0.0
		for i, v := range x {
			sum += v * v
			grad[i] = 2 * v
		}
		return sum, nil
	})
}

// assertFloat64SlicesEqual checks that two float64 slices are approximately
// equal element-wise.
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

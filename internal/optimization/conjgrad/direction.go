package conjgrad

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// steepestDescent sets d to the negative gradient.
func steepestDescent(d, g []float64) {
	for i := range g {
		d[i] = -g[i]
	}
}

// nextDirection computes the next search direction in place using the
// Polak–Ribière+ rule: beta = max(0, g'(g - gPrev) / gPrev'gPrev),
// d = -g + beta*dPrev. It restarts to steepest descent when the current
// conjugate cycle has run n iterations (age >= n), when beta is not
// finite, or when the candidate is not a descent direction. The restart
// is required for the global convergence of nonlinear CG. Returns true
// when a restart happened, which begins a fresh cycle.
func nextDirection(d, g, gPrev, dPrev []float64, age, n int) bool {
	if age >= n {
		steepestDescent(d, g)
		return true
	}

	denom := floats.Dot(gPrev, gPrev)
	if denom == 0 {
		steepestDescent(d, g)
		return true
	}

	// g'(g - gPrev) expanded to avoid a scratch vector.
	beta := (floats.Dot(g, g) - floats.Dot(g, gPrev)) / denom
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		steepestDescent(d, g)
		return true
	}
	if beta < 0 {
		beta = 0
	}

	for i := range d {
		d[i] = beta*dPrev[i] - g[i]
	}
	if floats.Dot(g, d) >= 0 {
		steepestDescent(d, g)
		return true
	}
	return false
}

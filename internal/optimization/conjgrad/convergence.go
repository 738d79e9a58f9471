package conjgrad

import "math"

// converged reports whether the relative gradient-norm criterion holds:
// ||g|| <= epsilon * max(1, ||x||). The max(1, .) floor keeps the test
// meaningful near the origin, where a purely relative criterion would
// never trigger.
func converged(gnorm, xnorm, epsilon float64) bool {
	return gnorm <= epsilon*math.Max(1, xnorm)
}

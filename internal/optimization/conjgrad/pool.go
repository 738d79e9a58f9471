package conjgrad

import "sync"

// workset bundles the working vectors of one in-flight solve. Each solve
// owns its workset exclusively for its whole duration; no vector is ever
// shared between concurrent solves.
type workset struct {
	g     []float64
	gPrev []float64
	d     []float64
	dPrev []float64
	xPrev []float64
}

func newWorkset(n int) *workset {
	return &workset{
		g:     make([]float64, n),
		gPrev: make([]float64, n),
		d:     make([]float64, n),
		dPrev: make([]float64, n),
		xPrev: make([]float64, n),
	}
}

func (w *workset) dim() int {
	return len(w.g)
}

// worksetPool recycles worksets across solves to avoid re-allocating the
// working vectors on every call. Only worksets of the requested dimension
// are reused; the rest stay pooled for later solves of their own size.
type worksetPool struct {
	mu   sync.Mutex
	free []*workset
}

// get returns a pooled workset of dimension n, allocating one if none fit.
func (p *worksetPool) get(n int) *workset {
	p.mu.Lock()
	for i, w := range p.free {
		if w.dim() == n {
			last := len(p.free) - 1
			p.free[i] = p.free[last]
			p.free = p.free[:last]
			p.mu.Unlock()
			return w
		}
	}
	p.mu.Unlock()
	return newWorkset(n)
}

// put returns a workset to the pool.
func (p *worksetPool) put(w *workset) {
	p.mu.Lock()
	p.free = append(p.free, w)
	p.mu.Unlock()
}

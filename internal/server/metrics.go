package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	solvesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talus_solves_started_total",
		Help: "Number of minimization jobs started.",
	})

	solvesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talus_solves_finished_total",
		Help: "Number of minimization jobs finished, by terminal status.",
	}, []string{"status"})

	solveIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "talus_solve_iterations",
		Help:    "Iterations per finished minimization job.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	activeSolves = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talus_active_solves",
		Help: "Minimization jobs currently running.",
	})
)

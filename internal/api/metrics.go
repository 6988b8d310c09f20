package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// compileRequests counts compile and validate calls by outcome.
	compileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cohort",
		Subsystem: "compile",
		Name:      "requests_total",
		Help:      "Compile requests by endpoint and status",
	}, []string{"endpoint", "status"})

	// compileErrors counts failed compiles by error code.
	compileErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cohort",
		Subsystem: "compile",
		Name:      "errors_total",
		Help:      "Compile errors by code",
	}, []string{"code"})

	compileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cohort",
		Subsystem: "compile",
		Name:      "duration_seconds",
		Help:      "Time spent decoding and compiling a request",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}, []string{"endpoint"})
)

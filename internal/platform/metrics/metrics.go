// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics exposes Prometheus instruments for the auth operations.
//
// # Architecture
//
// A Recorder owns its own [prometheus.Registry] instead of the global default,
// so tests can build isolated instances and read them back with testutil.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auth"

// Recorder counts operation outcomes and observes their latency.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewRecorder registers the auth instruments plus the Go runtime and
// process collectors on a fresh registry.
func NewRecorder() *Recorder {
	recorder := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Auth operations by name and outcome code.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of auth operations, including password hashing.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
	}

	recorder.registry.MustRegister(
		recorder.operations,
		recorder.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return recorder
}

// Observe records one finished operation. outcome is "OK" or an error code.
func (recorder *Recorder) Observe(operation, outcome string, elapsed time.Duration) {
	if recorder == nil {
		return
	}
	recorder.operations.WithLabelValues(operation, outcome).Inc()
	recorder.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Operations exposes the outcome counter for assertions.
func (recorder *Recorder) Operations() *prometheus.CounterVec {
	return recorder.operations
}

// Handler serves the registry in the Prometheus exposition format.
func (recorder *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(recorder.registry, promhttp.HandlerOpts{})
}

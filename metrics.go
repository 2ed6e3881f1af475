// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricRequestsTotal       = "requests_total"
	MetricConstructionSeconds = "construction_seconds"
	MetricQueueDepth          = "queue_depth"
	MetricWorkersRunning      = "workers_running"
)

// Request outcomes, the values of the "outcome" label of requests_total.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomePanic     = "panic"
	OutcomeRejected  = "rejected"
	OutcomeAbandoned = "abandoned"
)

// Metrics is a [prometheus.Collector] of worker statistics. A single
// instance may be shared by any number of workers, see [WithMetrics].
// All methods are nil-safe, a nil *Metrics records nothing.
//
// Example:
//
//	metrics := bgthread.NewMetrics("myapp")
//	prometheus.MustRegister(metrics)
//	worker, _ := bgthread.New(bgthread.WithMetrics(metrics))
type Metrics struct {
	requests     *prometheus.CounterVec
	construction *prometheus.HistogramVec
	queueDepth   *prometheus.GaugeVec
	running      prometheus.Gauge
}

var _ prometheus.Collector = (*Metrics)(nil)

// NewMetrics initializes a new Metrics, using the given namespace, which
// may be empty.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bgthread",
				Name:      MetricRequestsTotal,
				Help:      "Creation requests made against workers, by outcome.",
			},
			[]string{"worker", "tag", "outcome"},
		),
		construction: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "bgthread",
				Name:      MetricConstructionSeconds,
				Help:      "Time spent running factory functions on the worker thread.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"worker", "tag"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "bgthread",
				Name:      MetricQueueDepth,
				Help:      "Requests waiting in the run loop queue of each worker.",
			},
			[]string{"worker"},
		),
		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "bgthread",
				Name:      MetricWorkersRunning,
				Help:      "Workers with a live run loop.",
			},
		),
	}
}

// Describe implements prometheus.Collector.
func (x *Metrics) Describe(ch chan<- *prometheus.Desc) {
	x.requests.Describe(ch)
	x.construction.Describe(ch)
	x.queueDepth.Describe(ch)
	x.running.Describe(ch)
}

// Collect implements prometheus.Collector.
func (x *Metrics) Collect(ch chan<- prometheus.Metric) {
	x.requests.Collect(ch)
	x.construction.Collect(ch)
	x.queueDepth.Collect(ch)
	x.running.Collect(ch)
}

func (x *Metrics) observeRequest(worker, tag, outcome string) {
	if x == nil {
		return
	}
	x.requests.WithLabelValues(worker, tag, outcome).Inc()
}

func (x *Metrics) observeConstruction(worker, tag string, d time.Duration) {
	if x == nil {
		return
	}
	x.construction.WithLabelValues(worker, tag).Observe(d.Seconds())
}

func (x *Metrics) setQueueDepth(worker string, n int) {
	if x == nil {
		return
	}
	x.queueDepth.WithLabelValues(worker).Set(float64(n))
}

func (x *Metrics) workerStarted() {
	if x == nil {
		return
	}
	x.running.Inc()
}

func (x *Metrics) workerStopped(worker string) {
	if x == nil {
		return
	}
	x.running.Dec()
	x.queueDepth.DeleteLabelValues(worker)
}

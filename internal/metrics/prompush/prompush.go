// Package prompush implements a metrics.Backend that pushes to a Prometheus
// Pushgateway. A batch job has no scrape endpoint, so metrics accumulate in a
// private registry and are pushed on Flush.
package prompush

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"leadetl/internal/metrics"
)

// Backend implements metrics.Backend for the Pushgateway.
type Backend struct {
	pusher *push.Pusher

	steps        *prometheus.CounterVec
	records      *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	snapshotRows *prometheus.GaugeVec
}

// NewBackend builds a backend pushing to gatewayURL under job. Each Flush
// replaces the job's metric group.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(job) == "" {
		return nil, fmt.Errorf("prompush: empty job name")
	}
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}

	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	b := &Backend{
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Finished pipeline stages by step and status.",
		}, []string{"step", "status"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records loaded, dropped or excluded, by kind.",
		}, []string{"kind"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Pipeline stage duration.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"step", "status"}),
		snapshotRows: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: metrics.SnapshotRows,
			Help: "Rows in the last saved snapshot, by name.",
		}, []string{"snapshot"}),
	}
	b.pusher = push.New(gatewayURL, job).Gatherer(reg)
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		if kind := labels["kind"]; kind != "" {
			b.records.WithLabelValues(kind).Add(delta)
		}
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	switch name {
	case metrics.StepDurationSeconds:
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.SnapshotRows:
		b.snapshotRows.WithLabelValues(labels["snapshot"]).Set(value)
	}
}

// Flush pushes every collected metric, replacing the job's group.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

var _ metrics.Backend = (*Backend)(nil)

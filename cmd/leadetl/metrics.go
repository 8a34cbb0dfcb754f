package main

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"leadetl/internal/config"
	"leadetl/internal/metrics"
	"leadetl/internal/metrics/datadog"
	"leadetl/internal/metrics/prompush"
)

// initMetrics installs the backend named by METRICS_BACKEND and returns the
// function that flushes and releases it. A backend that fails to start
// leaves metrics disabled; the run continues.
func initMetrics(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) func() {
	name := strings.ToLower(strings.TrimSpace(cfg.MetricsBackend))
	switch name {
	case "pushgateway":
		b, err := prompush.NewBackend(JobName, cfg.PushgatewayURL)
		if err != nil {
			log.WithError(err).Warn("metrics: failed to init prom push backend; using nop")
			return func() {}
		}
		log.WithFields(logrus.Fields{"backend": name, "url": cfg.PushgatewayURL, "job_name": JobName}).Info("metrics: enabled")
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.WithError(err).Warn("metrics: flush error")
			}
			metrics.SetBackend(nil)
		}

	case "datadog":
		// Buffered; submits every minute and once more on Close.
		tags := datadog.ParseTagsCSV(cfg.MetricsTags)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    JobName,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.WithError(datadog.WrapInitErr(err)).Warn("metrics: failed to init datadog backend; using nop")
			return func() {}
		}
		log.WithFields(logrus.Fields{"backend": name, "job_name": JobName, "tags": tags}).Info("metrics: enabled")
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				log.WithError(err).Warn("metrics: datadog close/flush error")
			}
			metrics.SetBackend(nil)
		}

	case "", "none":
		log.WithField("backend", name).Debug("metrics: disabled")
	default:
		log.WithField("backend", name).Warn("metrics: unknown backend; metrics disabled")
	}
	return func() {}
}

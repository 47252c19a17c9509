// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Howard86/cwa-server/lib/bundler"
)

const namespace = "cwa_distribution"

// Run holds the collectors of one distribution run.
type Run struct {
	registry *prometheus.Registry

	records      *prometheus.CounterVec
	batches      *prometheus.CounterVec
	expired      prometheus.Counter
	filesWritten prometheus.Counter
	bytesWritten prometheus.Counter
	duration     prometheus.Gauge
	lastSuccess  prometheus.Gauge
	success      prometheus.Gauge
}

// NewRun returns a Run with every collector registered in a fresh
// registry.
func NewRun() *Run {
	run := &Run{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Diagnosis key records read by the run, by outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches published by the run, by granularity.",
		}, []string{"granularity"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_expired_total",
			Help:      "Records deleted from the keystore by retention.",
		}),
		filesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Files written into the distribution tree.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes written into the distribution tree.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time at which the last successful run finished.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 if the last run published a tree, 0 if it failed.",
		}),
	}
	run.registry.MustRegister(run.records, run.batches, run.expired,
		run.filesWritten, run.bytesWritten, run.duration, run.lastSuccess, run.success)

	// Pre-create the label values so a textfile of a run that published
	// nothing still carries every series.
	for _, outcome := range []string{"unsupported", "withheld", "discarded", "published"} {
		run.records.WithLabelValues(outcome)
	}
	for _, granularity := range []bundler.Granularity{bundler.Hour, bundler.Day} {
		run.batches.WithLabelValues(granularity.String())
	}
	return run
}

// Registry returns the registry holding the run's collectors.
func (run *Run) Registry() *prometheus.Registry {
	return run.registry
}

// ObserveBundle records the accounting of a bundling pass.
func (run *Run) ObserveBundle(stats bundler.Stats) {
	run.records.WithLabelValues("unsupported").Add(float64(stats.Unsupported))
	run.records.WithLabelValues("withheld").Add(float64(stats.Withheld))
	run.records.WithLabelValues("discarded").Add(float64(stats.Discarded))
	run.records.WithLabelValues("published").Add(float64(stats.Published))
	run.batches.WithLabelValues(bundler.Hour.String()).Add(float64(stats.HourBatches))
	run.batches.WithLabelValues(bundler.Day.String()).Add(float64(stats.DayBatches))
}

// ObserveRetention records how many records retention removed.
func (run *Run) ObserveRetention(deleted int) {
	run.expired.Add(float64(deleted))
}

// ObserveOutput records the size of the written tree.
func (run *Run) ObserveOutput(files, bytes int64) {
	run.filesWritten.Add(float64(files))
	run.bytesWritten.Add(float64(bytes))
}

// Finish records the run duration and whether the run succeeded. A
// failed run leaves the last success timestamp unset.
func (run *Run) Finish(started, finished time.Time, err error) {
	run.duration.Set(finished.Sub(started).Seconds())
	if err != nil {
		run.success.Set(0)
		return
	}
	run.success.Set(1)
	run.lastSuccess.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in the text exposition format to
// path, through a temporary file renamed into place.
func (run *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, run.registry); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", path, err)
	}
	return nil
}

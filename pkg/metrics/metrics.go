// Package metrics exports compaction and merge cache telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bochendong/dragon-continue/pkg/compaction"
	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

const defaultNamespace = "dragon"

// Observer implements compaction.Observer and mergecache.Observer.
type Observer struct {
	windows         *prometheus.CounterVec
	windowDuration  *prometheus.HistogramVec
	compactions     *prometheus.CounterVec
	compactDuration prometheus.Histogram
	layers          prometheus.Gauge
	lookups         *prometheus.CounterVec
	writeFailures   prometheus.Counter
}

// NewObserver registers the collectors on reg. A nil reg uses the default
// registerer. Registering twice on one registry reuses the existing
// collectors.
func NewObserver(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		windows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_compacted_total",
			Help:      "Windows compacted, by source (oracle, fallback, memo, verbatim).",
		}, []string{"source"}),
		windowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "window_duration_seconds",
			Help:      "Latency of a single window compaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compactions_total",
			Help:      "Full view compactions, by outcome.",
		}, []string{"outcome"}),
		compactDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compaction_duration_seconds",
			Help:      "Latency of building a full view.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		layers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_compaction_layers",
			Help:      "Compacted layers in the most recent successful view.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_cache_lookups_total",
			Help:      "Merge cache lookups, by result.",
		}, []string{"result"}),
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_cache_write_failures_total",
			Help:      "Rendered views that could not be persisted.",
		}),
	}

	var err error
	if o.windows, err = register(reg, o.windows); err != nil {
		return nil, err
	}
	if o.windowDuration, err = register(reg, o.windowDuration); err != nil {
		return nil, err
	}
	if o.compactions, err = register(reg, o.compactions); err != nil {
		return nil, err
	}
	if o.compactDuration, err = register(reg, o.compactDuration); err != nil {
		return nil, err
	}
	if o.layers, err = register(reg, o.layers); err != nil {
		return nil, err
	}
	if o.lookups, err = register(reg, o.lookups); err != nil {
		return nil, err
	}
	if o.writeFailures, err = register(reg, o.writeFailures); err != nil {
		return nil, err
	}

	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// RecordWindow counts one compacted window.
func (o *Observer) RecordWindow(source compaction.Source, _ int, duration time.Duration) {
	if o == nil {
		return
	}
	o.windows.WithLabelValues(string(source)).Inc()
	o.windowDuration.WithLabelValues(string(source)).Observe(duration.Seconds())
}

// RecordCompaction counts one view build.
func (o *Observer) RecordCompaction(layers int, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.compactDuration.Observe(duration.Seconds())
	if err != nil {
		o.compactions.WithLabelValues("error").Inc()
		return
	}
	o.compactions.WithLabelValues("ok").Inc()
	o.layers.Set(float64(layers))
}

// RecordLookup counts one cache lookup.
func (o *Observer) RecordLookup(hit bool) {
	if o == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	o.lookups.WithLabelValues(result).Inc()
}

// RecordWriteFailure counts one failed cache commit.
func (o *Observer) RecordWriteFailure() {
	if o == nil {
		return
	}
	o.writeFailures.Inc()
}

var (
	_ compaction.Observer = (*Observer)(nil)
	_ mergecache.Observer = (*Observer)(nil)
)

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package metric provides the collectors measuring engine and session
// lifecycle activity and a function to register them.
package metric

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricNamespace = "dbsession"

	labelDatabase = "database"
	labelResult   = "result"
	labelKind     = "kind"

	// ResultSuccess and ResultFailure are the allowed values of the result
	// label on connectAttempts.
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// connectAttempts counts dial attempts per resolved database, including
	// retries, labeled with their outcome.
	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "connect_attempts_total",
			Help:      "Count of connection attempts per database and outcome, retries included.",
		},
		[]string{labelDatabase, labelResult},
	)

	// engineCacheEntries is the number of engines currently cached.
	engineCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "engine_cache_entries",
			Help:      "Number of live engines held by the engine cache.",
		},
	)

	// hookDuration collects how long each lifecycle hook takes, labeled by
	// hook kind.
	hookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "hook_duration_seconds",
			Help:      "Histogram of lifecycle hook execution latencies.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{labelKind},
	)

	// sessionsActive is the number of sessions handed out and not yet closed.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "sessions_active",
			Help:      "Number of open sessions.",
		},
	)
)

// IncConnectAttempt records one dial attempt for a database with the given
// result label.
func IncConnectAttempt(database, result string) {
	connectAttempts.With(prometheus.Labels{labelDatabase: database, labelResult: result}).Inc()
}

// SetEngineCacheEntries records the current engine cache size.
func SetEngineCacheEntries(n int) {
	engineCacheEntries.Set(float64(n))
}

// ObserveHookDuration records the elapsed time of one hook execution.
func ObserveHookDuration(kind string, d time.Duration) {
	hookDuration.With(prometheus.Labels{labelKind: kind}).Observe(d.Seconds())
}

// IncSessionsActive records a session being handed out.
func IncSessionsActive() {
	sessionsActive.Inc()
}

// DecSessionsActive records a session being closed.
func DecSessionsActive() {
	sessionsActive.Dec()
}

// InitializeCollectors registers the lifecycle collectors with the provided
// registerer.  Collectors record regardless of registration; registering
// only makes them visible to a gatherer.  The collectors are package-level,
// so a registerer shared by several managers sees them registered once.
func InitializeCollectors(r prometheus.Registerer) {
	if r == nil {
		return
	}
	for _, c := range []prometheus.Collector{connectAttempts, engineCacheEntries, hookDuration, sessionsActive} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/logger"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "umh"
	subsystem = "recovery"

	recoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Total number of recovery runs by error kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	recoveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of recovery runs in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	retryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retry_attempts_total",
			Help:      "Total number of retried actions by policy",
		},
		[]string{"policy"},
	)

	retrySleepSeconds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retry_sleep_seconds_total",
			Help:      "Total seconds spent sleeping between retry attempts",
		},
		[]string{"policy"},
	)

	retryAbortsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retry_aborts_total",
			Help:      "Total number of retry loops aborted by a permanent error",
		},
		[]string{"policy"},
	)

	reclaimRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reclaim_runs_total",
			Help:      "Total number of resource reclaim runs",
		},
	)

	reclaimedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reclaimed_resources_total",
			Help:      "Total number of resources released by the reclaimer",
		},
		[]string{"resource"},
	)

	reclaimStepErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reclaim_step_errors_total",
			Help:      "Total number of failed reclaim steps",
		},
		[]string{"step"},
	)

	loggedErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "logged_errors_total",
			Help:      "Total number of diagnostics passed to the error log collaborator",
		},
		[]string{"kind"},
	)
)

// RecordRecovery counts a finished run and observes its duration.
func RecordRecovery(kind, outcome string, duration time.Duration) {
	recoveriesTotal.WithLabelValues(kind, outcome).Inc()
	recoveryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func IncRetryAttempt(policy string) {
	retryAttemptsTotal.WithLabelValues(policy).Inc()
}

func AddRetrySleep(policy string, d time.Duration) {
	retrySleepSeconds.WithLabelValues(policy).Add(d.Seconds())
}

func IncRetryAbort(policy string) {
	retryAbortsTotal.WithLabelValues(policy).Inc()
}

func IncReclaimRun() {
	reclaimRunsTotal.Inc()
}

// AddReclaimed counts released resources; resource is "descriptor", "segment" or "file".
func AddReclaimed(resource string, n int) {
	if n > 0 {
		reclaimedTotal.WithLabelValues(resource).Add(float64(n))
	}
}

func IncReclaimStepError(step string) {
	reclaimStepErrorsTotal.WithLabelValues(step).Inc()
}

func IncLoggedError(kind string) {
	loggedErrorsTotal.WithLabelValues(kind).Inc()
}

// RecoveriesCounter exposes the run counter for tests and debug endpoints.
func RecoveriesCounter(kind, outcome string) prometheus.Counter {
	return recoveriesTotal.WithLabelValues(kind, outcome)
}

// ReclaimRunsCounter exposes the reclaim counter for tests and debug endpoints.
func ReclaimRunsCounter() prometheus.Counter {
	return reclaimRunsTotal
}

// SetupMetricsEndpoint starts an HTTP server serving /metrics in the background.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.For(logger.ComponentMetrics).Errorf("Metrics server stopped: %s", err)
		}
	}()

	return server
}

// Package metrics exports mint batch counters and gauges to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Klingon-tech/handlemint/internal/log"
)

const (
	metricsNamespace = "handlemint"
	subsystem        = "batch"
)

// Batch outcomes.
const (
	OutcomeSubmitted = "submitted"
	OutcomeDryRun    = "dry_run"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

var (
	batches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Total number of mint batches run, by outcome",
		},
		[]string{"outcome"},
	)

	accepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "requests_accepted_total",
			Help:      "Total number of mint requests accepted into a batch",
		},
	)

	rejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "requests_rejected_total",
			Help:      "Total number of mint requests rejected, by reason",
		},
		[]string{"reason"},
	)

	duration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Time taken to run a mint batch from collect to submit",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	rpcRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC calls served, by method and result code",
		},
		[]string{"method", "code"},
	)

	rpcDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "Time taken to serve a JSON-RPC call",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"method"},
	)

	indexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "index",
			Name:      "names",
			Help:      "Number of names in the committed index",
		},
	)
)

// BatchDone records a finished batch.
func BatchDone(outcome string, elapsed time.Duration) {
	batches.WithLabelValues(outcome).Inc()
	duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Accepted records n requests accepted into a batch.
func Accepted(n int) {
	accepted.Add(float64(n))
}

// Rejected records one request rejected for reason.
func Rejected(reason string) {
	rejected.WithLabelValues(reason).Inc()
}

// IndexSize records the committed index size.
func IndexSize(n int) {
	indexSize.Set(float64(n))
}

// RPCCall records one JSON-RPC call. code is 0 on success.
func RPCCall(method string, code int, elapsed time.Duration) {
	rpcRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	rpcDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Logger.Info().Str("addr", addr).Msg("Metrics server started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

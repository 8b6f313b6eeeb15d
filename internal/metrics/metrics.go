// Package metrics exposes skip engine counters in the Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/alvarorichard/goskip/internal/models"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "goskip"

// Recorder counts skips and timing lookups. It satisfies engine.Observer
// and api.LookupObserver.
type Recorder struct {
	registry     *prometheus.Registry
	skips        *prometheus.CounterVec
	seekFailures *prometheus.CounterVec
	lookups      *prometheus.CounterVec
	staleResults prometheus.Counter
}

// New creates a Recorder with its own registry
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skips_total",
			Help:      "Skips triggered, by section.",
		}, []string{"section"}),
		seekFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seek_failures_total",
			Help:      "Skip seeks the player rejected, by section.",
		}, []string{"section"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Timing lookups, by outcome.",
		}, []string{"outcome"}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Timing results discarded because the content changed first.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.skips,
		r.seekFailures,
		r.lookups,
		r.staleResults,
	)
	return r
}

func (r *Recorder) Skip(section models.Section) {
	r.skips.WithLabelValues(string(section)).Inc()
}

func (r *Recorder) SeekFailed(section models.Section) {
	r.seekFailures.WithLabelValues(string(section)).Inc()
}

func (r *Recorder) StaleResult() {
	r.staleResults.Inc()
}

func (r *Recorder) Lookup(outcome string) {
	r.lookups.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (r *Recorder) Serve(ctx context.Context, addr string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "metrics server on %s", addr)
	}
	return nil
}

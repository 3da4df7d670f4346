package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hitprobe"

// Collector accumulates run results into a private Prometheus registry.
// It is safe to Observe from one goroutine while Handler serves scrapes.
type Collector struct {
	registry *prometheus.Registry

	scenarios   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	attempts    prometheus.Counter
	duration    *prometheus.HistogramVec
	lastSuccess prometheus.Gauge
	lastRun     prometheus.Gauge
	runs        prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		scenarios: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scenarios_total",
				Help:      "Scenarios finished, by outcome",
			},
			[]string{"outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scenario_failures_total",
				Help:      "Failed scenarios, by error kind",
			},
			[]string{"kind"},
		),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Requests attempted, retries included",
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scenario_duration_seconds",
				Help:      "Wall time per scenario across all attempts",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"scenario"},
		),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if every scenario of the last run passed, 0 otherwise",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs observed",
		}),
	}

	c.registry.MustRegister(
		c.scenarios,
		c.failures,
		c.attempts,
		c.duration,
		c.lastSuccess,
		c.lastRun,
		c.runs,
	)
	return c
}

func (c *Collector) Observe(result *runner.RunResult) {
	if result == nil {
		return
	}
	c.runs.Inc()
	c.lastRun.Set(result.Duration.Seconds())
	if result.AllPassed() {
		c.lastSuccess.Set(1)
	} else {
		c.lastSuccess.Set(0)
	}

	for _, r := range result.Results {
		c.attempts.Add(float64(r.Attempts))
		if r.Passed {
			c.scenarios.WithLabelValues("passed").Inc()
		} else {
			c.scenarios.WithLabelValues("failed").Inc()
			c.failures.WithLabelValues(string(r.ErrorKind)).Inc()
		}
		// scenarios that never started have no meaningful duration
		if r.Attempts > 0 {
			c.duration.WithLabelValues(r.Name).Observe(r.Duration.Seconds())
		}
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

// Handler serves the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on ln until ctx is done.
func (c *Collector) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// ListenAndServe is Serve on a new TCP listener for addr.
func (c *Collector) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics endpoint: %w", err)
	}
	return c.Serve(ctx, ln)
}

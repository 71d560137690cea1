package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "glowping"

// Cycle is the summary of one cycle as exported.
type Cycle struct {
	At                time.Time
	Slot              int
	HitRate           float64
	Success           bool
	PacketsAttempted  int
	PacketsReceived   int
	AttemptsSucceeded int
	Attempts          int
	HistoryLit        int
}

// Recorder holds the exported gauges in its own registry. A nil Recorder
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	success     prometheus.Gauge
	hitRate     prometheus.Gauge
	slot        prometheus.Gauge
	packets     *prometheus.GaugeVec
	historyLit  prometheus.Gauge
	lastCycle   prometheus.Gauge
	cycles      *prometheus.CounterVec
	probeErrors prometheus.Counter
}

// NewRecorder registers every metric on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_success",
			Help:      "1 if the last cycle reached the success threshold, 0 otherwise",
		}),
		hitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_hit_rate",
			Help:      "Fraction of probe attempts without packet loss in the last cycle",
		}),
		slot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_slot",
			Help:      "History slot written by the last cycle",
		}),
		packets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_packets",
			Help:      "Echo requests sent and replies received in the last cycle",
		}, []string{"kind"}),
		historyLit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_lit_slots",
			Help:      "Number of lit history slots after the last cycle",
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time at which the last cycle completed",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed cycles by result",
		}, []string{"result"}),
		probeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_unavailable_total",
			Help:      "Cycles aborted because the probe could not run",
		}),
	}
	r.registry.MustRegister(r.success, r.hitRate, r.slot, r.packets, r.historyLit, r.lastCycle, r.cycles, r.probeErrors)
	return r
}

// Registry exposes the registry for tests and handlers.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveCycle records a completed cycle.
func (r *Recorder) ObserveCycle(c Cycle) {
	if r == nil {
		return
	}
	success, result := 0.0, "failure"
	if c.Success {
		success, result = 1, "success"
	}
	r.success.Set(success)
	r.hitRate.Set(c.HitRate)
	r.slot.Set(float64(c.Slot))
	r.packets.WithLabelValues("attempted").Set(float64(c.PacketsAttempted))
	r.packets.WithLabelValues("received").Set(float64(c.PacketsReceived))
	r.historyLit.Set(float64(c.HistoryLit))
	r.lastCycle.Set(float64(c.At.Unix()))
	r.cycles.WithLabelValues(result).Inc()
}

// ObserveAbort records a cycle aborted by a probe that could not run.
func (r *Recorder) ObserveAbort() {
	if r == nil {
		return
	}
	r.probeErrors.Inc()
	r.cycles.WithLabelValues("aborted").Inc()
}

// WriteTextfile writes the current values in the text exposition format
// for the node_exporter textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

// Handler serves the registry over HTTP.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics and blocks until context
// cancellation.
func Serve(ctx context.Context, addr string, r *Recorder) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return context.Canceled
		}
		return err
	}
}

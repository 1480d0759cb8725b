// Package metrics exposes frame loop counters through Prometheus.
// Every method is safe on a nil *Metrics, which records nothing.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds collectors of a single run
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed prometheus.Counter
	framesFailed    *prometheus.CounterVec
	detections      *prometheus.CounterVec
	counted         *prometheus.GaugeVec
	frameSeconds    prometheus.Histogram
}

// New creates collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shapecount_frames_processed_total",
			Help: "Total frames processed without error",
		}),
		framesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shapecount_frames_failed_total",
			Help: "Total frames skipped because of a stage error",
		}, []string{"stage"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shapecount_detections_total",
			Help: "Total classified detections",
		}, []string{"class"}),
		counted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shapecount_objects_counted",
			Help: "Distinct objects counted so far",
		}, []string{"class"}),
		frameSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shapecount_frame_seconds",
			Help:    "Per-frame processing time",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	m.registry.MustRegister(m.framesProcessed, m.framesFailed, m.detections, m.counted, m.frameSeconds)
	return m
}

// Registry returns underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FrameProcessed records successfully processed frame and its duration
func (m *Metrics) FrameProcessed(duration time.Duration) {
	if m == nil {
		return
	}
	m.framesProcessed.Inc()
	m.frameSeconds.Observe(duration.Seconds())
}

// FrameFailed records frame skipped at the stage
func (m *Metrics) FrameFailed(stage string) {
	if m == nil {
		return
	}
	m.framesFailed.WithLabelValues(stage).Inc()
}

// Detections adds n classified detections of the class
func (m *Metrics) Detections(class string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.detections.WithLabelValues(class).Add(float64(n))
}

// Counted sets number of distinct objects of the class
func (m *Metrics) Counted(class string, n int) {
	if m == nil {
		return
	}
	m.counted.WithLabelValues(class).Set(float64(n))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return errors.Wrapf(err, "Can't serve metrics on '%s'", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "Can't shutdown metrics server")
		}
		<-errCh
		return nil
	}
}

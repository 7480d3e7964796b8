// Package metrics implements Prometheus metrics for a normalization run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the counters of one run on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	// FramesTotal counts frames by outcome (rewritten, unchanged, skipped, passthrough)
	FramesTotal *prometheus.CounterVec

	// ChecksumsTotal counts recomputed checksum fields by layer and result (fixed, valid)
	ChecksumsTotal *prometheus.CounterVec

	// DiagnosticsTotal counts per-span and per-frame diagnostics by layer and kind
	DiagnosticsTotal *prometheus.CounterVec

	// FrameProcessSeconds measures decode + recompute + rewrite time per frame
	FrameProcessSeconds prometheus.Histogram

	// RunDurationSeconds is the wall time of the last completed run
	RunDurationSeconds prometheus.Gauge
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		FramesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pcapfix_frames_total",
				Help: "Total number of frames written, by outcome",
			},
			[]string{"outcome"},
		),
		ChecksumsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pcapfix_checksums_total",
				Help: "Total number of checksum fields recomputed",
			},
			[]string{"layer", "result"},
		),
		DiagnosticsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pcapfix_diagnostics_total",
				Help: "Total number of diagnostics raised while normalizing",
			},
			[]string{"layer", "kind"},
		),
		FrameProcessSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pcapfix_frame_process_seconds",
				Help:    "Time spent decoding, recomputing and patching one frame",
				Buckets: prometheus.ExponentialBuckets(0.0000001, 2, 20), // 100ns to ~52ms
			},
		),
		RunDurationSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pcapfix_run_duration_seconds",
				Help: "Wall time of the last normalization run",
			},
		),
	}
}

// Registry returns the registry the counters are registered on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) ObserveFrame(outcome string, elapsed time.Duration) {
	r.FramesTotal.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		r.FrameProcessSeconds.Observe(elapsed.Seconds())
	}
}

func (r *Recorder) ObserveChecksum(layer string, fixed bool) {
	result := "valid"
	if fixed {
		result = "fixed"
	}
	r.ChecksumsTotal.WithLabelValues(layer, result).Inc()
}

func (r *Recorder) ObserveDiagnostic(layer, kind string) {
	r.DiagnosticsTotal.WithLabelValues(layer, kind).Inc()
}

// ObserveRun records the duration of a finished run.
func (r *Recorder) ObserveRun(d time.Duration) {
	r.RunDurationSeconds.Set(d.Seconds())
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node_exporter textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

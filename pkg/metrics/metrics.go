package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Export outcomes used as label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Metrics holds Prometheus counters and gauges for capture sessions. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	sessionsStarted prometheus.Counter
	framesSampled   prometheus.Counter
	chunksReceived  prometheus.Counter
	chunkBytes      prometheus.Counter
	exportJobs      *prometheus.CounterVec
	recording       prometheus.Gauge
	gifProgress     prometheus.Gauge
}

// New creates and registers the capture metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	sessionsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fractalcap_sessions_started_total",
		Help: "Total number of capture sessions started",
	})
	framesSampled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fractalcap_frames_sampled_total",
		Help: "Total number of raster frames sampled for animation export",
	})
	chunksReceived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fractalcap_video_chunks_total",
		Help: "Total number of encoded video chunks received",
	})
	chunkBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fractalcap_video_bytes_total",
		Help: "Total bytes of encoded video received",
	})
	exportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fractalcap_export_jobs_total",
		Help: "Export jobs by kind and outcome",
	}, []string{"kind", "outcome"})
	recording := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fractalcap_recording",
		Help: "1 while a capture session is recording",
	})
	gifProgress := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fractalcap_gif_progress_percent",
		Help: "Progress of the most recent animated image export",
	})

	registry.MustRegister(
		sessionsStarted,
		framesSampled,
		chunksReceived,
		chunkBytes,
		exportJobs,
		recording,
		gifProgress,
	)

	return &Metrics{
		registry:        registry,
		sessionsStarted: sessionsStarted,
		framesSampled:   framesSampled,
		chunksReceived:  chunksReceived,
		chunkBytes:      chunkBytes,
		exportJobs:      exportJobs,
		recording:       recording,
		gifProgress:     gifProgress,
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SessionStarted records a new recording session.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.recording.Set(1)
}

// SessionStopped clears the recording gauge.
func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.recording.Set(0)
}

// IncFrames increments the sampled frame counter.
func (m *Metrics) IncFrames() {
	if m == nil {
		return
	}
	m.framesSampled.Inc()
}

// AddChunk records one encoded video chunk.
func (m *Metrics) AddChunk(size int) {
	if m == nil {
		return
	}
	m.chunksReceived.Inc()
	m.chunkBytes.Add(float64(size))
}

// ExportFinished records the outcome of an export job.
func (m *Metrics) ExportFinished(kind, outcome string) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(kind, outcome).Inc()
}

// SetGIFProgress publishes animated export progress.
func (m *Metrics) SetGIFProgress(percent int) {
	if m == nil {
		return
	}
	m.gifProgress.Set(float64(percent))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return errors.New("metrics not initialised")
	}
	if path == "" {
		return errors.New("metrics textfile path must not be empty")
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

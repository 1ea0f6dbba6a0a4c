package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauges(t *testing.T) {
	m := New()
	m.SessionStarted()
	m.IncFrames()
	m.IncFrames()
	m.AddChunk(512)
	m.ExportFinished("animated_image", OutcomeSucceeded)
	m.SetGIFProgress(40)

	if got := testutil.ToFloat64(m.framesSampled); got != 2 {
		t.Fatalf("expected 2 frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.chunkBytes); got != 512 {
		t.Fatalf("expected 512 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.recording); got != 1 {
		t.Fatalf("expected recording gauge set, got %v", got)
	}
	if got := testutil.ToFloat64(m.exportJobs.WithLabelValues("animated_image", OutcomeSucceeded)); got != 1 {
		t.Fatalf("expected one successful gif export, got %v", got)
	}
	m.SessionStopped()
	if got := testutil.ToFloat64(m.recording); got != 0 {
		t.Fatalf("expected recording gauge cleared, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SessionStarted()
	m.IncFrames()
	m.AddChunk(1)
	m.ExportFinished("video", OutcomeFailed)
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
	if err := m.WriteTextfile("x.prom"); err == nil {
		t.Fatalf("expected error writing nil metrics")
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.SessionStarted()
	path := filepath.Join(t.TempDir(), "fractalcap.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "fractalcap_sessions_started_total 1") {
		t.Fatalf("expected session counter in textfile:\n%s", data)
	}
}

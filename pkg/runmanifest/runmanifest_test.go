package runmanifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/capture"
	"github.com/offlinefirst/fractalcap/pkg/config"
	"github.com/offlinefirst/fractalcap/pkg/frames"
	"github.com/offlinefirst/fractalcap/pkg/sink"
	"github.com/offlinefirst/fractalcap/pkg/video"
)

func TestBuildLayoutAndRelativePaths(t *testing.T) {
	layout := BuildLayout("/tmp/exports", "rec_20240512_093000")

	if layout.Root != filepath.Join("/tmp/exports", "rec_20240512_093000") {
		t.Fatalf("unexpected root: %s", layout.Root)
	}

	rel := layout.RelativePaths()
	if rel.Root != "." {
		t.Fatalf("expected relative root '.', got %q", rel.Root)
	}
	if rel.Manifest != "manifest.json" {
		t.Fatalf("expected manifest.json, got %s", rel.Manifest)
	}
	if rel.CaptureLog != "capture.log" {
		t.Fatalf("expected capture.log, got %s", rel.CaptureLog)
	}
}

func TestEnsureFilesystemCreatesRoot(t *testing.T) {
	dir := t.TempDir()
	layout := BuildLayout(dir, "run")

	if err := EnsureFilesystem(layout); err != nil {
		t.Fatalf("EnsureFilesystem failed: %v", err)
	}

	info, err := os.Stat(layout.Root)
	if err != nil {
		t.Fatalf("expected run root: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected directory at %s", layout.Root)
	}
	if _, err := os.Stat(layout.CaptureLogPath); err != nil {
		t.Fatalf("expected capture log file: %v", err)
	}
}

func TestNewManifest(t *testing.T) {
	cfg := config.Default()
	cfg.Source = "config.yaml"
	layout := BuildLayout("/tmp/exports", "run")
	now := time.Date(2024, 5, 12, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	man := New(Options{
		RunID:      "run",
		CreatedAt:  now,
		Hostname:   "host",
		AppVersion: "test",
		Config:     cfg,
		Layout:     layout,
	})

	if man.SchemaVersion != SchemaVersion {
		t.Fatalf("unexpected schema version: %d", man.SchemaVersion)
	}
	if man.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected CreatedAt in UTC, got %s", man.CreatedAt.Location())
	}
	if man.Capture.FrameRate != cfg.Capture.FrameRate || len(man.Capture.Codecs) != len(cfg.Capture.Codecs) {
		t.Fatalf("capture settings mismatch: %+v", man.Capture)
	}
	if man.Paths.Manifest != "manifest.json" {
		t.Fatalf("unexpected manifest path: %s", man.Paths.Manifest)
	}
	if man.Status.State != StatePending {
		t.Fatalf("unexpected initial state %q", man.Status.State)
	}
}

func TestRecordSessionAndExports(t *testing.T) {
	start := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	man := New(Options{RunID: "run", CreatedAt: start, Config: config.Default(), Layout: BuildLayout("/tmp", "run")})

	man.RecordSession(capture.Session{
		ID:        "sess",
		Codec:     "video/x-motion-jpeg",
		StartedAt: start,
		StoppedAt: start.Add(90 * time.Second),
		Chunks:    []video.Chunk{{Data: []byte{1, 2, 3}}, {Data: []byte{4}}},
		Frames:    []frames.RasterFrame{{Sequence: 0}, {Sequence: 1}, {Sequence: 2}},
	})
	if man.Session == nil {
		t.Fatalf("expected session summary")
	}
	if man.Session.Frames != 3 || man.Session.Chunks != 2 || man.Session.ChunkBytes != 4 {
		t.Fatalf("unexpected session summary %+v", man.Session)
	}
	if man.Session.ElapsedSeconds != 90 {
		t.Fatalf("expected 90s elapsed, got %v", man.Session.ElapsedSeconds)
	}

	man.AddExport(capture.Export{
		Job:      capture.Job{ID: "job-1", Kind: capture.JobAnimatedImage},
		Artifact: sink.Artifact{Data: []byte("GIF89a"), MIMEType: "image/gif", Filename: "mandelbrot-1.gif"},
		Path:     "/tmp/run/mandelbrot-1_01.gif",
	})
	if len(man.Artifacts) != 1 {
		t.Fatalf("expected one artifact, got %d", len(man.Artifacts))
	}
	art := man.Artifacts[0]
	if art.Filename != "mandelbrot-1_01.gif" || art.Kind != "animated_image" || art.Bytes != 6 {
		t.Fatalf("unexpected artifact %+v", art)
	}

	man.Finish(StateCompleted, "done", "duration", start.Add(2*time.Minute))
	if man.Status.State != StateCompleted || man.Status.EndedAt == nil {
		t.Fatalf("unexpected status %+v", man.Status)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	layout := BuildLayout(dir, "run")
	cfg := config.Default()
	cfg.Source = "explicit"
	now := time.Now().UTC().Round(time.Second)

	man := New(Options{
		RunID:      "run",
		CreatedAt:  now,
		Hostname:   "host",
		AppVersion: "version",
		Config:     cfg,
		Layout:     layout,
	})
	man.AddExport(capture.Export{
		Job:      capture.Job{ID: "job", Kind: capture.JobVideo},
		Artifact: sink.Artifact{Data: []byte{0}, MIMEType: "video/webm", Filename: "mandelbrot-5.webm"},
	})

	path := filepath.Join(dir, "manifest.json")
	if err := Save(man, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.RunID != man.RunID {
		t.Fatalf("expected RunID %s, got %s", man.RunID, loaded.RunID)
	}
	if loaded.ConfigSource != "explicit" {
		t.Fatalf("unexpected config source %q", loaded.ConfigSource)
	}
	if len(loaded.Artifacts) != 1 || loaded.Artifacts[0].Filename != "mandelbrot-5.webm" {
		t.Fatalf("unexpected artifacts %+v", loaded.Artifacts)
	}
}

func TestResolveRunID(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	base := "rec_" + now.Format("20060102_150405")

	if err := os.MkdirAll(filepath.Join(dir, base), 0o755); err != nil {
		t.Fatalf("prep existing run: %v", err)
	}

	id, err := ResolveRunID(dir, now)
	if err != nil {
		t.Fatalf("ResolveRunID failed: %v", err)
	}
	if expected := base + "_01"; id != expected {
		t.Fatalf("expected %s, got %s", expected, id)
	}
}

func TestResolveRunIDEmptyExportDir(t *testing.T) {
	if _, err := ResolveRunID(" ", time.Now()); err == nil {
		t.Fatalf("expected error for empty export dir")
	}
}

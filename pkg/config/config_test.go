package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	defer os.Chdir(cwd)

	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir temp dir: %v", err)
	}

	cfg, err := load("", noEnv)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.ExportDir != "exports" {
		t.Fatalf("expected default export dir, got %q", cfg.Paths.ExportDir)
	}
	if cfg.Source != "<defaults>" {
		t.Fatalf("expected default source marker, got %q", cfg.Source)
	}
	if cfg.Capture.FrameRate != 30 {
		t.Fatalf("unexpected default frame rate: %d", cfg.Capture.FrameRate)
	}
	if cfg.Capture.SampleInterval() != 100*time.Millisecond {
		t.Fatalf("unexpected default sample interval: %v", cfg.Capture.SampleInterval())
	}
	if cfg.Capture.ElapsedTick() != time.Second {
		t.Fatalf("unexpected default elapsed tick: %v", cfg.Capture.ElapsedTick())
	}
	if cfg.GIF.DecodeFailurePolicy != "abort" {
		t.Fatalf("unexpected default decode policy: %q", cfg.GIF.DecodeFailurePolicy)
	}
	if cfg.Snapshot.DefaultBase != "mandelbrot" {
		t.Fatalf("unexpected default base: %q", cfg.Snapshot.DefaultBase)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := `paths:
  export_dir: artifacts
capture:
  frame_rate: 24
  codecs:
    - video/webm;codecs=vp8
    - " video/x-motion-jpeg "
  sample_interval_ms: 250
  elapsed_tick_ms: 500
gif:
  max_colors: 64
  decode_failure_policy: SKIP
snapshot:
  format: JPEG
  jpeg_quality: 80
  default_base: julia
surface:
  width: 320
  height: 200
  theme: ocean
  location: Needle
  zoom_factor: 1.05
  max_iterations: 120
metrics:
  textfile: metrics.prom
logging:
  level: DEBUG
  format: console
`

	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := load(cfgPath, noEnv)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got := cfg.Paths.ExportDir; got != "artifacts" {
		t.Fatalf("unexpected export dir: %q", got)
	}
	if cfg.Capture.FrameRate != 24 {
		t.Fatalf("unexpected frame rate: %d", cfg.Capture.FrameRate)
	}
	if len(cfg.Capture.Codecs) != 2 || cfg.Capture.Codecs[1] != "video/x-motion-jpeg" {
		t.Fatalf("unexpected codecs: %v", cfg.Capture.Codecs)
	}
	if cfg.Capture.SampleInterval() != 250*time.Millisecond {
		t.Fatalf("unexpected sample interval: %v", cfg.Capture.SampleInterval())
	}
	if cfg.GIF.MaxColors != 64 || cfg.GIF.DecodeFailurePolicy != "skip" {
		t.Fatalf("unexpected gif config: %+v", cfg.GIF)
	}
	if cfg.Snapshot.Format != "jpeg" || cfg.Snapshot.JPEGQuality != 80 || cfg.Snapshot.DefaultBase != "julia" {
		t.Fatalf("unexpected snapshot config: %+v", cfg.Snapshot)
	}
	if cfg.Surface.Width != 320 || cfg.Surface.Location != "Needle" || cfg.Surface.ZoomFactor != 1.05 {
		t.Fatalf("unexpected surface config: %+v", cfg.Surface)
	}
	if cfg.Metrics.Textfile != "metrics.prom" {
		t.Fatalf("unexpected metrics textfile: %q", cfg.Metrics.Textfile)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected log level normalized to debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.Source != cfgPath {
		t.Fatalf("expected source %q, got %q", cfgPath, cfg.Source)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "absent.yaml"), noEnv)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("capture:\n  shutter_speed: 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := load(cfgPath, noEnv); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestLoadValidatesValues(t *testing.T) {
	cases := map[string]string{
		"frame rate":     "capture:\n  frame_rate: 500\n",
		"policy":         "gif:\n  decode_failure_policy: retry\n",
		"format":         "snapshot:\n  format: webp\n",
		"quality":        "snapshot:\n  jpeg_quality: 0\n",
		"max colors":     "gif:\n  max_colors: 1\n",
		"log level":      "logging:\n  level: loud\n",
		"zoom factor":    "surface:\n  zoom_factor: 0.5\n",
		"sample cadence": "capture:\n  sample_interval_ms: -1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			cfgPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := load(cfgPath, noEnv); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("capture:\n  frame_rate: 12\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	dotenv := EnvExportDir + "=from-dotenv\n" + EnvFrameRate + "=15\n" + EnvDecodePolicy + "=skip\n"
	if err := os.WriteFile(filepath.Join(dir, EnvFileName), []byte(dotenv), 0o644); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	cfg, err := load(cfgPath, envMap(map[string]string{
		EnvFrameRate:      "60",
		EnvSampleInterval: "40",
		EnvLogFormat:      "text",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.ExportDir != "from-dotenv" {
		t.Fatalf("expected .env export dir, got %q", cfg.Paths.ExportDir)
	}
	if cfg.Capture.FrameRate != 60 {
		t.Fatalf("expected process env to win over .env and file, got %d", cfg.Capture.FrameRate)
	}
	if cfg.Capture.SampleIntervalMS != 40 {
		t.Fatalf("unexpected sample interval: %d", cfg.Capture.SampleIntervalMS)
	}
	if cfg.GIF.DecodeFailurePolicy != "skip" {
		t.Fatalf("unexpected decode policy: %q", cfg.GIF.DecodeFailurePolicy)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected text alias normalized to console, got %q", cfg.Logging.Format)
	}
}

func TestEnvironmentOverrideRejectsNonNumeric(t *testing.T) {
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	if _, err := load("", envMap(map[string]string{EnvFrameRate: "fast"})); err == nil {
		t.Fatalf("expected parse error for non-numeric frame rate")
	}
}

func TestNormalizeHelpers(t *testing.T) {
	if got, err := NormalizeLogLevel("WARNING"); err != nil || got != "warn" {
		t.Fatalf("unexpected level normalization: %q %v", got, err)
	}
	if _, err := NormalizeFormat("xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

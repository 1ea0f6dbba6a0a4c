package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultFileName = "config.yaml"

// EnvFileName is read from the config directory before overrides apply.
const EnvFileName = ".env"

// Environment overrides applied after the file is decoded.
const (
	EnvExportDir      = "FRACTALCAP_EXPORT_DIR"
	EnvLogLevel       = "FRACTALCAP_LOG_LEVEL"
	EnvLogFormat      = "FRACTALCAP_LOG_FORMAT"
	EnvFrameRate      = "FRACTALCAP_FPS"
	EnvSampleInterval = "FRACTALCAP_SAMPLE_INTERVAL_MS"
	EnvDecodePolicy   = "FRACTALCAP_DECODE_POLICY"
)

// Config captures the user-adjustable knobs for capture and export.
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Capture  CaptureConfig  `yaml:"capture"`
	GIF      GIFConfig      `yaml:"gif"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Surface  SurfaceConfig  `yaml:"surface"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `yaml:"-"`
}

// PathsConfig controls filesystem locations used by the CLI.
type PathsConfig struct {
	ExportDir string `yaml:"export_dir"`
}

// CaptureConfig tunes the recording session.
type CaptureConfig struct {
	FrameRate        int      `yaml:"frame_rate"`
	Codecs           []string `yaml:"codecs"`
	SampleIntervalMS int      `yaml:"sample_interval_ms"`
	ElapsedTickMS    int      `yaml:"elapsed_tick_ms"`
	FFmpegBinary     string   `yaml:"ffmpeg_binary"`
}

// GIFConfig tunes animated exports.
type GIFConfig struct {
	MaxColors           int    `yaml:"max_colors"`
	DecodeFailurePolicy string `yaml:"decode_failure_policy"`
}

// SnapshotConfig tunes still exports.
type SnapshotConfig struct {
	Format      string `yaml:"format"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	DefaultBase string `yaml:"default_base"`
}

// SurfaceConfig configures the synthetic fractal surface used by the CLI.
type SurfaceConfig struct {
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	Theme         string  `yaml:"theme"`
	Location      string  `yaml:"location"`
	ZoomFactor    float64 `yaml:"zoom_factor"`
	MaxIterations int     `yaml:"max_iterations"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var snapshotFormats = []string{"png", "jpeg", "jpg", "gif", "bmp", "tiff"}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			ExportDir: "exports",
		},
		Capture: CaptureConfig{
			FrameRate: 30,
			Codecs: []string{
				"video/webm;codecs=vp9",
				"video/webm;codecs=vp8",
				"video/webm",
				"video/x-motion-jpeg",
			},
			SampleIntervalMS: 100,
			ElapsedTickMS:    1000,
			FFmpegBinary:     "ffmpeg",
		},
		GIF: GIFConfig{
			MaxColors:           256,
			DecodeFailurePolicy: "abort",
		},
		Snapshot: SnapshotConfig{
			Format:      "png",
			JPEGQuality: 92,
			DefaultBase: "mandelbrot",
		},
		Surface: SurfaceConfig{
			Width:         640,
			Height:        400,
			Theme:         "fire",
			ZoomFactor:    1.01,
			MaxIterations: 200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from disk if present, otherwise returning defaults.
// When path is empty, the loader attempts to read ./config.yaml but tolerates a
// missing file. A .env file next to the config and FRACTALCAP_* variables from
// the process environment are applied on top, the process environment winning.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	file, err := os.Open(candidate)
	switch {
	case err == nil:
		defer file.Close()
		if err := decodeYAML(file, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %q: %w", candidate, err)
		}
		cfg.Source = candidate
	case errors.Is(err, os.ErrNotExist):
		if explicit {
			return cfg, fmt.Errorf("config file %q not found", candidate)
		}
	default:
		return cfg, fmt.Errorf("open config file %q: %w", candidate, err)
	}

	dotenv, err := readDotEnv(filepath.Join(filepath.Dir(candidate), EnvFileName))
	if err != nil {
		return cfg, err
	}
	resolve := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(resolve); err != nil {
		return cfg, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvExportDir); ok && strings.TrimSpace(v) != "" {
		c.Paths.ExportDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && strings.TrimSpace(v) != "" {
		c.Logging.Format = v
	}
	if v, ok := lookup(EnvDecodePolicy); ok && strings.TrimSpace(v) != "" {
		c.GIF.DecodeFailurePolicy = v
	}
	if v, ok := lookup(EnvFrameRate); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFrameRate, err)
		}
		c.Capture.FrameRate = n
	}
	if v, ok := lookup(EnvSampleInterval); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSampleInterval, err)
		}
		c.Capture.SampleIntervalMS = n
	}
	return nil
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		return errors.New("paths.export_dir must not be empty")
	}

	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}

	if c.Capture.FrameRate <= 0 || c.Capture.FrameRate > 120 {
		return errors.New("capture.frame_rate must be between 1 and 120")
	}
	if len(c.Capture.Codecs) == 0 {
		return errors.New("capture.codecs must list at least one codec")
	}
	if c.Capture.SampleIntervalMS <= 0 {
		return errors.New("capture.sample_interval_ms must be positive")
	}
	if c.Capture.ElapsedTickMS <= 0 {
		return errors.New("capture.elapsed_tick_ms must be positive")
	}

	if c.GIF.MaxColors < 2 || c.GIF.MaxColors > 256 {
		return errors.New("gif.max_colors must be between 2 and 256")
	}
	switch c.GIF.DecodeFailurePolicy {
	case "abort", "skip":
	default:
		return fmt.Errorf("gif.decode_failure_policy must be abort or skip, got %q", c.GIF.DecodeFailurePolicy)
	}

	if !contains(snapshotFormats, c.Snapshot.Format) {
		return fmt.Errorf("snapshot.format %q is not one of %s", c.Snapshot.Format, strings.Join(snapshotFormats, ", "))
	}
	if c.Snapshot.JPEGQuality < 1 || c.Snapshot.JPEGQuality > 100 {
		return errors.New("snapshot.jpeg_quality must be between 1 and 100")
	}

	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		return errors.New("surface.width and surface.height must be positive")
	}
	if c.Surface.ZoomFactor < 1 {
		return errors.New("surface.zoom_factor must be at least 1")
	}
	if c.Surface.MaxIterations <= 0 {
		return errors.New("surface.max_iterations must be positive")
	}

	return nil
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func (c *Config) normalize() {
	defaults := Default()

	c.Paths.ExportDir = filepath.Clean(strings.TrimSpace(c.Paths.ExportDir))
	if c.Paths.ExportDir == "." || c.Paths.ExportDir == "" {
		c.Paths.ExportDir = defaults.Paths.ExportDir
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if level, err := NormalizeLogLevel(c.Logging.Level); err == nil {
		c.Logging.Level = level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if format, err := NormalizeFormat(c.Logging.Format); err == nil {
		c.Logging.Format = format
	}

	codecs := c.Capture.Codecs[:0]
	for _, codec := range c.Capture.Codecs {
		if codec = strings.TrimSpace(codec); codec != "" {
			codecs = append(codecs, codec)
		}
	}
	c.Capture.Codecs = codecs
	if len(c.Capture.Codecs) == 0 {
		c.Capture.Codecs = defaults.Capture.Codecs
	}
	if strings.TrimSpace(c.Capture.FFmpegBinary) == "" {
		c.Capture.FFmpegBinary = defaults.Capture.FFmpegBinary
	}

	c.GIF.DecodeFailurePolicy = strings.ToLower(strings.TrimSpace(c.GIF.DecodeFailurePolicy))
	if c.GIF.DecodeFailurePolicy == "" {
		c.GIF.DecodeFailurePolicy = defaults.GIF.DecodeFailurePolicy
	}
	c.Snapshot.Format = strings.ToLower(strings.TrimSpace(c.Snapshot.Format))
	if c.Snapshot.Format == "" {
		c.Snapshot.Format = defaults.Snapshot.Format
	}
	if strings.TrimSpace(c.Snapshot.DefaultBase) == "" {
		c.Snapshot.DefaultBase = defaults.Snapshot.DefaultBase
	}
	if strings.TrimSpace(c.Surface.Theme) == "" {
		c.Surface.Theme = defaults.Surface.Theme
	}
	c.Metrics.Textfile = strings.TrimSpace(c.Metrics.Textfile)
}

// SampleInterval returns the frame sampling cadence.
func (c CaptureConfig) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalMS) * time.Millisecond
}

// ElapsedTick returns the elapsed-time notification cadence.
func (c CaptureConfig) ElapsedTick() time.Duration {
	return time.Duration(c.ElapsedTickMS) * time.Millisecond
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}

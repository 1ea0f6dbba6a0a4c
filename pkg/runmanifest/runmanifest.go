package runmanifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/capture"
	"github.com/offlinefirst/fractalcap/pkg/config"
)

// SchemaVersion captures the manifest version for compatibility checks.
const SchemaVersion = 1

// Layout represents the absolute filesystem locations for a recording run.
// Exported artifacts are written directly into Root.
type Layout struct {
	Root           string
	ManifestPath   string
	CaptureLogPath string
}

// Paths holds the relative locations stored in the manifest for portability.
type Paths struct {
	Root       string `json:"root"`
	Manifest   string `json:"manifest"`
	CaptureLog string `json:"capture_log"`
}

// CaptureSettings records the knobs the run was recorded with.
type CaptureSettings struct {
	FrameRate           int      `json:"frame_rate"`
	Codecs              []string `json:"codecs"`
	SampleIntervalMS    int      `json:"sample_interval_ms"`
	DecodeFailurePolicy string   `json:"decode_failure_policy"`
	SurfaceWidth        int      `json:"surface_width"`
	SurfaceHeight       int      `json:"surface_height"`
	Theme               string   `json:"theme"`
	Location            string   `json:"location,omitempty"`
}

// SessionSummary describes the recorded session without its buffers.
type SessionSummary struct {
	ID             string     `json:"id"`
	Codec          string     `json:"codec"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	StoppedAt      *time.Time `json:"stopped_at,omitempty"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
	Frames         int        `json:"frames"`
	Chunks         int        `json:"chunks"`
	ChunkBytes     int        `json:"chunk_bytes"`
}

// Artifact records one exported file.
type Artifact struct {
	JobID    string `json:"job_id"`
	Kind     string `json:"kind"`
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Bytes    int    `json:"bytes"`
}

// Status summarises the lifecycle of a recording run.
type Status struct {
	State       string     `json:"state"`
	Summary     string     `json:"summary,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Termination string     `json:"termination,omitempty"`
}

// Run states used in manifests for downstream tooling.
const (
	StatePending   = "pending"
	StateRecording = "recording"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Manifest is the durable metadata describing a recording run.
type Manifest struct {
	SchemaVersion int             `json:"schema_version"`
	RunID         string          `json:"run_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Hostname      string          `json:"hostname"`
	AppVersion    string          `json:"app_version"`
	ConfigSource  string          `json:"config_source"`
	Capture       CaptureSettings `json:"capture"`
	Paths         Paths           `json:"paths"`
	Session       *SessionSummary `json:"session,omitempty"`
	Artifacts     []Artifact      `json:"artifacts,omitempty"`
	Status        Status          `json:"status"`
}

// Options captures the knobs for creating a new manifest.
type Options struct {
	RunID      string
	CreatedAt  time.Time
	Hostname   string
	AppVersion string
	Config     config.Config
	Layout     Layout
}

// New constructs a manifest using the supplied options.
func New(opts Options) Manifest {
	cfg := opts.Config
	return Manifest{
		SchemaVersion: SchemaVersion,
		RunID:         opts.RunID,
		CreatedAt:     opts.CreatedAt.UTC(),
		Hostname:      opts.Hostname,
		AppVersion:    opts.AppVersion,
		ConfigSource:  cfg.Source,
		Capture: CaptureSettings{
			FrameRate:           cfg.Capture.FrameRate,
			Codecs:              append([]string(nil), cfg.Capture.Codecs...),
			SampleIntervalMS:    cfg.Capture.SampleIntervalMS,
			DecodeFailurePolicy: cfg.GIF.DecodeFailurePolicy,
			SurfaceWidth:        cfg.Surface.Width,
			SurfaceHeight:       cfg.Surface.Height,
			Theme:               cfg.Surface.Theme,
			Location:            cfg.Surface.Location,
		},
		Paths:  opts.Layout.RelativePaths(),
		Status: Status{State: StatePending},
	}
}

// RecordSession stores a summary of the stopped session.
func (m *Manifest) RecordSession(sess capture.Session) {
	summary := SessionSummary{
		ID:     sess.ID,
		Codec:  sess.Codec,
		Frames: len(sess.Frames),
		Chunks: len(sess.Chunks),
	}
	for _, chunk := range sess.Chunks {
		summary.ChunkBytes += len(chunk.Data)
	}
	if !sess.StartedAt.IsZero() {
		started := sess.StartedAt.UTC()
		summary.StartedAt = &started
	}
	if !sess.StoppedAt.IsZero() {
		stopped := sess.StoppedAt.UTC()
		summary.StoppedAt = &stopped
		if summary.StartedAt != nil {
			summary.ElapsedSeconds = stopped.Sub(*summary.StartedAt).Seconds()
		}
	}
	m.Session = &summary
}

// AddExport appends an exported artifact. Paths are stored relative to the run root.
func (m *Manifest) AddExport(exp capture.Export) {
	name := exp.Artifact.Filename
	if exp.Path != "" {
		name = filepath.Base(exp.Path)
	}
	m.Artifacts = append(m.Artifacts, Artifact{
		JobID:    exp.Job.ID,
		Kind:     string(exp.Job.Kind),
		Filename: name,
		MIMEType: exp.Artifact.MIMEType,
		Bytes:    len(exp.Artifact.Data),
	})
}

// Finish marks the run as ended with the supplied state.
func (m *Manifest) Finish(state, summary, termination string, at time.Time) {
	ended := at.UTC()
	m.Status.State = state
	m.Status.Summary = summary
	m.Status.Termination = termination
	m.Status.EndedAt = &ended
}

// BuildLayout creates an absolute filesystem layout for a run.
func BuildLayout(exportDir, runID string) Layout {
	root := filepath.Join(exportDir, runID)
	return Layout{
		Root:           root,
		ManifestPath:   filepath.Join(root, "manifest.json"),
		CaptureLogPath: filepath.Join(root, "capture.log"),
	}
}

// RelativePaths exposes the manifest-friendly relative paths for the layout.
func (l Layout) RelativePaths() Paths {
	return Paths{
		Root:       ".",
		Manifest:   filepath.Base(l.ManifestPath),
		CaptureLog: filepath.Base(l.CaptureLogPath),
	}
}

// EnsureFilesystem prepares the directory for a run layout and touches the capture log.
func EnsureFilesystem(layout Layout) error {
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return fmt.Errorf("create run root: %w", err)
	}

	file, err := os.OpenFile(layout.CaptureLogPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("initialise capture log: %w", err)
	}
	defer file.Close()

	return nil
}

// Save writes the manifest JSON to disk with indentation for readability.
func Save(man Manifest, path string) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load reads a manifest JSON file from disk.
func Load(path string) (Manifest, error) {
	var man Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return man, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("decode manifest: %w", err)
	}
	return man, nil
}

// ResolveRunID chooses a run identifier derived from the timestamp and avoids collisions.
func ResolveRunID(exportDir string, now time.Time) (string, error) {
	if strings.TrimSpace(exportDir) == "" {
		return "", errors.New("export directory must not be empty")
	}

	base := "rec_" + now.UTC().Format("20060102_150405")
	candidate := base
	suffix := 1
	for {
		_, err := os.Stat(filepath.Join(exportDir, candidate))
		if err == nil {
			candidate = fmt.Sprintf("%s_%02d", base, suffix)
			suffix++
			continue
		}
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		return "", fmt.Errorf("inspect export directory: %w", err)
	}
}

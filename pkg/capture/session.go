package capture

import (
	"fmt"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/frames"
	"github.com/offlinefirst/fractalcap/pkg/video"
)

// Status is the lifecycle state of a capture session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
	StatusStopped   Status = "stopped"
)

// Session is a read-only copy of the controller's capture session.
type Session struct {
	ID        string
	Status    Status
	Codec     string
	StartedAt time.Time
	StoppedAt time.Time
	Width     int
	Height    int
	Chunks    []video.Chunk
	Frames    []frames.RasterFrame
	// ExportReady is set once recording stops and cleared when an export
	// consumes the session's data.
	ExportReady bool
}

func (s *Session) clone() Session {
	out := *s
	out.Chunks = append([]video.Chunk(nil), s.Chunks...)
	out.Frames = append([]frames.RasterFrame(nil), s.Frames...)
	return out
}

// JobKind identifies the artifact an export job produces.
type JobKind string

const (
	JobVideo          JobKind = "video"
	JobAnimatedImage  JobKind = "animated_image"
	JobStill          JobKind = "still"
	JobAnnotatedStill JobKind = "annotated_still"
)

// JobStatus is the state of an export job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job describes one export.
type Job struct {
	ID         string
	Kind       JobKind
	Status     JobStatus
	Progress   int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// FormatElapsed renders a duration as m:ss.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

package animation

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFrames is returned when there is nothing to assemble.
	ErrNoFrames = errors.New("no frames to assemble")
	// ErrFrameDecodeFailed indicates a buffered frame could not be decoded.
	ErrFrameDecodeFailed = errors.New("frame decode failed")
	// ErrCancelled is returned when a job is cancelled before completion.
	ErrCancelled = errors.New("animation assembly cancelled")
)

// FrameError identifies the frame that failed to decode.
type FrameError struct {
	Sequence int
	Err      error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Sequence, e.Err)
}

func (e *FrameError) Is(target error) bool {
	return target == ErrFrameDecodeFailed
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

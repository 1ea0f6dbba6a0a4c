package capture

import "errors"

var (
	// ErrAlreadyRecording is returned by Start while a session is recording.
	ErrAlreadyRecording = errors.New("capture session already recording")
	// ErrNoSurface is returned when no live surface is available.
	ErrNoSurface = errors.New("no live surface to capture")
	// ErrExportInProgress rejects an export while another job is running.
	ErrExportInProgress = errors.New("another export is in progress")
	// ErrStillRecording rejects session exports until Stop has been called.
	ErrStillRecording = errors.New("session is still recording")
	// ErrNothingToExport is returned when the session holds no video data.
	ErrNothingToExport = errors.New("nothing to export")
)

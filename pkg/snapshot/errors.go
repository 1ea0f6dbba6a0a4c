package snapshot

import (
	"errors"

	"github.com/offlinefirst/fractalcap/pkg/sink"
)

var (
	// ErrEncodeFailed indicates the surface could not be encoded in the
	// requested format.
	ErrEncodeFailed = errors.New("snapshot encode failed")
	// ErrScratchBusy is returned when the scratch surface is already in use.
	ErrScratchBusy = errors.New("scratch surface busy")
	// ErrClipboardUnavailable mirrors sink.ErrClipboardUnavailable.
	ErrClipboardUnavailable = sink.ErrClipboardUnavailable
)

package video

import (
	"errors"
	"strings"
)

// ErrEncoderUnavailable indicates that none of the preferred codecs is
// supported by any registered backend.
var ErrEncoderUnavailable = errors.New("no supported video encoder")

// ErrNotStarted is returned when finalizing an adapter that is not streaming.
var ErrNotStarted = errors.New("encoder not started")

type unavailableError struct {
	tried []string
}

func (e *unavailableError) Error() string {
	if len(e.tried) == 0 {
		return ErrEncoderUnavailable.Error() + ": no codecs requested"
	}
	return ErrEncoderUnavailable.Error() + " (tried " + strings.Join(e.tried, ", ") + ")"
}

func (e *unavailableError) Is(target error) bool {
	return target == ErrEncoderUnavailable
}

func newUnavailableError(tried []string) error {
	return &unavailableError{tried: append([]string(nil), tried...)}
}

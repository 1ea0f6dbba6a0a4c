package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.design/x/clipboard"

	"github.com/offlinefirst/fractalcap/pkg/capability"
)

// ErrClipboardUnavailable indicates the host cannot accept image clipboard
// writes. It is never fatal to a capture session.
var ErrClipboardUnavailable = errors.New("image clipboard unavailable")

// Clipboard accepts PNG image data.
type Clipboard interface {
	WriteImage(ctx context.Context, png []byte) error
}

// SystemClipboard writes to the desktop clipboard.
type SystemClipboard struct {
	lookup capability.LookupEnvFunc

	once  sync.Once
	probe capability.ProbeResult
}

// NewSystemClipboard returns a clipboard sink; initialisation is deferred to
// the first use.
func NewSystemClipboard(lookup capability.LookupEnvFunc) *SystemClipboard {
	return &SystemClipboard{lookup: lookup}
}

// Probe reports whether the clipboard can be used.
func (c *SystemClipboard) Probe() capability.ProbeResult {
	c.once.Do(func() {
		c.probe = capability.ProbeClipboard(c.lookup, clipboard.Init)
	})
	return c.probe
}

// WriteImage places png on the clipboard.
func (c *SystemClipboard) WriteImage(ctx context.Context, png []byte) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if probe := c.Probe(); !probe.Usable() {
		return fmt.Errorf("%w: %s", ErrClipboardUnavailable, probe.Message)
	}
	if len(png) == 0 {
		return errors.New("clipboard image is empty")
	}
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

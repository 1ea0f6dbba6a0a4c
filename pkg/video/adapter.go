// Package video negotiates a continuous encoder over a live surface and relays
// its output as ordered chunks.
package video

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/surface"
)

// DefaultFrameRate is the capture rate requested from backends.
const DefaultFrameRate = 30

// DefaultCodecs lists codec preferences from most to least desirable.
var DefaultCodecs = []string{
	"video/webm;codecs=vp9",
	"video/webm;codecs=vp8",
	"video/webm",
	MIMEMotionJPEG,
}

// Options configure the stream encoder adapter.
type Options struct {
	Codecs    []string
	FrameRate int
	Factories []Factory
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Adapter owns at most one running backend.
type Adapter struct {
	codecs    []string
	fps       int
	factories []Factory
	clock     func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	backend Backend
	mime    string

	deliverMu sync.Mutex
	emit      func(Chunk)
	index     int
	bytes     int64
}

// NewAdapter validates options and returns an idle adapter.
func NewAdapter(opts Options) (*Adapter, error) {
	if len(opts.Factories) == 0 {
		return nil, errors.New("at least one encoder factory must be provided")
	}
	if opts.FrameRate < 0 {
		return nil, errors.New("frame rate must not be negative")
	}
	fps := opts.FrameRate
	if fps == 0 {
		fps = DefaultFrameRate
	}
	codecs := opts.Codecs
	if len(codecs) == 0 {
		codecs = DefaultCodecs
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Adapter{
		codecs:    append([]string(nil), codecs...),
		fps:       fps,
		factories: opts.Factories,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Start negotiates a backend and begins streaming src. Each encoded piece is
// passed to emit as a Chunk, in arrival order. The negotiated MIME type is
// returned.
func (a *Adapter) Start(src surface.Surface, emit func(Chunk)) (string, error) {
	if src == nil {
		return "", errors.New("surface must be provided")
	}
	if emit == nil {
		return "", errors.New("emit callback must be provided")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backend != nil {
		return "", errors.New("encoder already running")
	}

	factory, codec, err := Negotiate(a.codecs, a.factories)
	if err != nil {
		return "", err
	}
	backend, err := factory.Open(codec)
	if err != nil {
		return "", fmt.Errorf("open %s encoder: %w", factory.Name(), err)
	}

	a.deliverMu.Lock()
	a.emit = emit
	a.index = 0
	a.bytes = 0
	a.deliverMu.Unlock()

	deliver := func(data []byte) { a.deliver(codec, data) }
	if err := backend.Start(src, a.fps, deliver); err != nil {
		a.deliverMu.Lock()
		a.emit = nil
		a.deliverMu.Unlock()
		return "", fmt.Errorf("start %s encoder: %w", factory.Name(), err)
	}

	a.backend = backend
	a.mime = codec
	a.logger.Info("video encoder started", "backend", factory.Name(), "mime_type", codec, "fps", a.fps)
	return codec, nil
}

func (a *Adapter) deliver(codec string, data []byte) {
	if len(data) == 0 {
		return
	}
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()
	if a.emit == nil {
		a.logger.Warn("video chunk dropped after finalize", "bytes", len(data))
		return
	}
	chunk := Chunk{
		Index:     a.index,
		MIMEType:  codec,
		Timestamp: a.clock().UTC(),
		Data:      append([]byte(nil), data...),
	}
	a.index++
	a.bytes += int64(len(data))
	a.emit(chunk)
}

// Finalize signals end-of-stream and returns once every in-flight chunk has
// been delivered.
func (a *Adapter) Finalize() error {
	a.mu.Lock()
	backend := a.backend
	a.backend = nil
	a.mu.Unlock()
	if backend == nil {
		return ErrNotStarted
	}

	err := backend.Stop()

	a.deliverMu.Lock()
	chunks, total := a.index, a.bytes
	a.emit = nil
	a.deliverMu.Unlock()

	a.logger.Info("video encoder finalized", "chunks", chunks, "bytes", total)
	if err != nil {
		return fmt.Errorf("finalize encoder: %w", err)
	}
	return nil
}

// MIMEType returns the codec negotiated by the most recent Start.
func (a *Adapter) MIMEType() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mime
}

// Running reports whether a backend is streaming.
func (a *Adapter) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.backend != nil
}

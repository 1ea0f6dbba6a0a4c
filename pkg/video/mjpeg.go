package video

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/schedule"
	"github.com/offlinefirst/fractalcap/pkg/surface"
)

// MIMEMotionJPEG identifies the pure Go concatenated-JPEG stream.
const MIMEMotionJPEG = "video/x-motion-jpeg"

// MJPEGFactory produces motion JPEG backends. It is always available.
type MJPEGFactory struct {
	// Quality is the JPEG quality, 1..100. Zero selects 80.
	Quality int
	// FramesPerChunk controls how many frames are buffered before a chunk is
	// emitted. Zero emits one chunk per second of video.
	FramesPerChunk int
	Ticks          schedule.TickSource
	Logger         *slog.Logger
}

// Name implements Factory.
func (MJPEGFactory) Name() string { return "mjpeg" }

// Supports implements Factory.
func (MJPEGFactory) Supports(mimeType string) bool {
	mediaType, _ := parseCodec(mimeType)
	return mediaType == MIMEMotionJPEG
}

// Open implements Factory.
func (f MJPEGFactory) Open(mimeType string) (Backend, error) {
	if !f.Supports(mimeType) {
		return nil, fmt.Errorf("mjpeg backend cannot produce %q", mimeType)
	}
	quality := f.Quality
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &mjpegBackend{quality: quality, perChunk: f.FramesPerChunk, ticks: f.Ticks, logger: logger}, nil
}

type mjpegBackend struct {
	quality  int
	perChunk int
	ticks    schedule.TickSource
	logger   *slog.Logger

	mu       sync.Mutex
	src      surface.Surface
	emit     func([]byte)
	handle   *schedule.Handle
	buf      bytes.Buffer
	buffered int
}

func (b *mjpegBackend) Start(src surface.Surface, fps int, emit func([]byte)) error {
	if fps <= 0 {
		return errors.New("frame rate must be positive")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle != nil {
		return errors.New("mjpeg backend already running")
	}
	if b.perChunk <= 0 {
		b.perChunk = fps
	}
	b.src = src
	b.emit = emit
	handle, err := schedule.Every(time.Second/time.Duration(fps), b.ticks, b.frame)
	if err != nil {
		return err
	}
	b.handle = handle
	return nil
}

func (b *mjpegBackend) frame(time.Time) {
	img, err := b.src.Snapshot()
	if err != nil {
		b.logger.Debug("mjpeg frame skipped", "error", err)
		return
	}
	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, img, &jpeg.Options{Quality: b.quality}); err != nil {
		b.logger.Warn("mjpeg encode failed", "error", err)
		return
	}

	b.mu.Lock()
	b.buf.Write(encoded.Bytes())
	b.buffered++
	var out []byte
	if b.buffered >= b.perChunk {
		out = b.drainLocked()
	}
	emit := b.emit
	b.mu.Unlock()

	if out != nil {
		emit(out)
	}
}

func (b *mjpegBackend) drainLocked() []byte {
	out := append([]byte(nil), b.buf.Bytes()...)
	b.buf.Reset()
	b.buffered = 0
	return out
}

func (b *mjpegBackend) Stop() error {
	b.mu.Lock()
	handle := b.handle
	b.handle = nil
	b.mu.Unlock()
	if handle == nil {
		return nil
	}
	handle.Cancel()

	b.mu.Lock()
	var out []byte
	if b.buffered > 0 {
		out = b.drainLocked()
	}
	emit := b.emit
	b.mu.Unlock()
	if out != nil {
		emit(out)
	}
	return nil
}

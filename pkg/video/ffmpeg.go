package video

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/capability"
	"github.com/offlinefirst/fractalcap/pkg/schedule"
	"github.com/offlinefirst/fractalcap/pkg/surface"
)

const (
	encoderVP9 = "libvpx-vp9"
	encoderVP8 = "libvpx"
)

// FFmpegFactory pipes raw RGBA frames into an ffmpeg subprocess producing WebM.
// Availability is probed once and cached.
type FFmpegFactory struct {
	Binary       string
	Lookup       capability.LookupEnvFunc
	LookPath     capability.LookPathFunc
	ListEncoders func(path string) (string, error)
	Ticks        schedule.TickSource
	Logger       *slog.Logger

	once     sync.Once
	probe    capability.ProbeResult
	encoders map[string]bool
}

// Name implements Factory.
func (*FFmpegFactory) Name() string { return "ffmpeg" }

// Probe reports the cached binary probe result.
func (f *FFmpegFactory) Probe() capability.ProbeResult {
	f.load()
	return f.probe
}

func (f *FFmpegFactory) load() {
	f.once.Do(func() {
		f.encoders = map[string]bool{}
		f.probe = capability.ProbeFFmpeg(f.Binary, f.Lookup, f.LookPath)
		if !f.probe.Usable() {
			return
		}
		list := f.ListEncoders
		if list == nil {
			list = listEncoders
		}
		out, err := list(f.probe.Path)
		if err != nil {
			f.probe = capability.ProbeResult{Status: capability.StatusUnavailable, Message: "ffmpeg encoder listing failed: " + err.Error()}
			return
		}
		for _, line := range strings.Split(out, "\n") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				f.encoders[fields[1]] = true
			}
		}
	})
}

func listEncoders(path string) (string, error) {
	out, err := exec.Command(path, "-hide_banner", "-encoders").Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (f *FFmpegFactory) encoderFor(mimeType string) string {
	mediaType, codec := parseCodec(mimeType)
	if mediaType != "video/webm" {
		return ""
	}
	f.load()
	if !f.probe.Usable() {
		return ""
	}
	switch codec {
	case "vp9":
		if f.encoders[encoderVP9] {
			return encoderVP9
		}
	case "vp8":
		if f.encoders[encoderVP8] {
			return encoderVP8
		}
	case "":
		if f.encoders[encoderVP9] {
			return encoderVP9
		}
		if f.encoders[encoderVP8] {
			return encoderVP8
		}
	}
	return ""
}

// Supports implements Factory.
func (f *FFmpegFactory) Supports(mimeType string) bool {
	return f.encoderFor(mimeType) != ""
}

// Open implements Factory.
func (f *FFmpegFactory) Open(mimeType string) (Backend, error) {
	encoder := f.encoderFor(mimeType)
	if encoder == "" {
		return nil, fmt.Errorf("ffmpeg backend cannot produce %q", mimeType)
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ffmpegBackend{path: f.probe.Path, encoder: encoder, ticks: f.Ticks, logger: logger}, nil
}

type ffmpegBackend struct {
	path    string
	encoder string
	ticks   schedule.TickSource
	logger  *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   bytes.Buffer
	readDone chan struct{}
	handle   *schedule.Handle
	src      surface.Surface
	width    int
	height   int
	writeErr error
}

func (b *ffmpegBackend) Start(src surface.Surface, fps int, emit func([]byte)) error {
	if fps <= 0 {
		return errors.New("frame rate must be positive")
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return errors.New("surface has no area")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cmd != nil {
		return errors.New("ffmpeg backend already running")
	}

	b.src = src
	b.width, b.height = bounds.Dx(), bounds.Dy()
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", b.width, b.height),
		"-r", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-an", "-c:v", b.encoder, "-deadline", "realtime",
		"-f", "webm", "pipe:1",
	}
	cmd := exec.Command(b.path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	cmd.Stderr = &b.stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch ffmpeg: %w", err)
	}

	b.cmd = cmd
	b.stdin = stdin
	b.readDone = make(chan struct{})
	go func() {
		defer close(b.readDone)
		buf := make([]byte, 64*1024)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				emit(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	handle, err := schedule.Every(time.Second/time.Duration(fps), b.ticks, b.frame)
	if err != nil {
		_ = stdin.Close()
		<-b.readDone
		_ = cmd.Wait()
		b.cmd = nil
		return err
	}
	b.handle = handle
	b.logger.Debug("ffmpeg encoder launched", "encoder", b.encoder, "width", b.width, "height", b.height)
	return nil
}

func (b *ffmpegBackend) frame(time.Time) {
	img, err := b.src.Snapshot()
	if err != nil {
		return
	}
	if img.Bounds().Dx() != b.width || img.Bounds().Dy() != b.height {
		b.logger.Debug("ffmpeg frame skipped after resize", "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
		return
	}
	rgba := surface.Clone(img)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return
	}
	if _, err := b.stdin.Write(rgba.Pix); err != nil {
		b.writeErr = err
		b.logger.Warn("ffmpeg frame write failed", "error", err)
	}
}

func (b *ffmpegBackend) Stop() error {
	b.mu.Lock()
	handle := b.handle
	cmd := b.cmd
	b.handle = nil
	b.mu.Unlock()
	if cmd == nil {
		return nil
	}
	handle.Cancel()

	b.mu.Lock()
	closeErr := b.stdin.Close()
	b.mu.Unlock()

	<-b.readDone
	waitErr := cmd.Wait()

	b.mu.Lock()
	b.cmd = nil
	b.mu.Unlock()

	if waitErr != nil {
		return fmt.Errorf("ffmpeg exited: %w: %s", waitErr, strings.TrimSpace(b.stderr.String()))
	}
	if closeErr != nil {
		return fmt.Errorf("close ffmpeg input: %w", closeErr)
	}
	return nil
}

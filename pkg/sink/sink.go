// Package sink hands finished artifacts to local destinations: the export
// directory and the system clipboard.
package sink

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultBase is the filename stem used when no location label is known.
const DefaultBase = "mandelbrot"

// Artifact is a finished export ready to be handed to a sink.
type Artifact struct {
	Data     []byte
	MIMEType string
	Filename string
}

// Saver persists artifacts.
type Saver interface {
	Save(Artifact) (string, error)
}

var whitespace = regexp.MustCompile(`\s+`)

// Slug lower-cases a label and replaces whitespace runs with dashes.
func Slug(label string) string {
	return strings.ToLower(whitespace.ReplaceAllString(strings.TrimSpace(label), "-"))
}

// Base returns the slug of label, or fallback when the label is empty.
func Base(label, fallback string) string {
	if s := Slug(label); s != "" {
		return s
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return DefaultBase
}

// Filename builds "<base>-<unix-millis>.<ext>".
func Filename(base string, at time.Time, ext string) string {
	return fmt.Sprintf("%s-%d.%s", base, at.UnixMilli(), strings.TrimPrefix(ext, "."))
}

// InfoFilename builds "<base>-info-<unix-millis>.png" for annotated stills.
func InfoFilename(base string, at time.Time) string {
	return fmt.Sprintf("%s-info-%d.png", base, at.UnixMilli())
}

// Extension maps an artifact MIME type to a file extension.
func Extension(mimeType string) string {
	mediaType := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	switch mediaType {
	case "video/webm":
		return "webm"
	case "video/x-motion-jpeg":
		return "mjpeg"
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/bmp":
		return "bmp"
	case "image/tiff":
		return "tiff"
	default:
		return "bin"
	}
}

// Downloader writes artifacts into a directory.
type Downloader struct {
	dir    string
	logger *slog.Logger
}

// NewDownloader validates the destination directory.
func NewDownloader(dir string, logger *slog.Logger) (*Downloader, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("export directory must not be empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Downloader{dir: dir, logger: logger}, nil
}

// Dir returns the export directory.
func (d *Downloader) Dir() string {
	return d.dir
}

// Save writes the artifact and returns its path. An existing file is never
// overwritten; a numeric suffix is appended instead.
func (d *Downloader) Save(a Artifact) (string, error) {
	if len(a.Data) == 0 {
		return "", errors.New("artifact is empty")
	}
	name := filepath.Base(strings.TrimSpace(a.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", errors.New("artifact filename must not be empty")
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure export directory: %w", err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(d.dir, name)
	for i := 1; ; i++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			if i > 99 {
				return "", fmt.Errorf("unable to allocate filename for %q", name)
			}
			candidate = filepath.Join(d.dir, fmt.Sprintf("%s_%02d%s", stem, i, ext))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create artifact: %w", err)
		}
		if _, err := f.Write(a.Data); err != nil {
			f.Close()
			return "", fmt.Errorf("write artifact: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close artifact: %w", err)
		}
		break
	}
	d.logger.Info("artifact saved", "path", candidate, "mime_type", a.MIMEType, "bytes", len(a.Data))
	return candidate, nil
}

package video

import (
	"mime"
	"strings"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/surface"
)

// Chunk is one encoded piece of the continuous video stream.
type Chunk struct {
	Index     int       `json:"index"`
	MIMEType  string    `json:"mime_type"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"-"`
}

// Backend continuously samples a surface with its own internal timing and
// reports encoded data through emit.
type Backend interface {
	Start(src surface.Surface, fps int, emit func([]byte)) error
	// Stop ends the stream. Every pending byte has been passed to emit by the
	// time Stop returns.
	Stop() error
}

// Factory opens backends for the MIME types it supports.
type Factory interface {
	Name() string
	Supports(mimeType string) bool
	Open(mimeType string) (Backend, error)
}

// Negotiate walks codec preferences in order and returns the first factory
// supporting one of them.
func Negotiate(codecs []string, factories []Factory) (Factory, string, error) {
	tried := make([]string, 0, len(codecs))
	for _, codec := range codecs {
		codec = strings.TrimSpace(codec)
		if codec == "" {
			continue
		}
		tried = append(tried, codec)
		for _, f := range factories {
			if f != nil && f.Supports(codec) {
				return f, codec, nil
			}
		}
	}
	return nil, "", newUnavailableError(tried)
}

// parseCodec splits "video/webm;codecs=vp9" into its media type and codec
// parameter. Malformed input yields an empty media type.
func parseCodec(mimeType string) (string, string) {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", ""
	}
	return mediaType, strings.ToLower(params["codecs"])
}

package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 92

// Formats lists the still image formats Encode accepts.
var Formats = []string{"png", "jpeg", "jpg", "gif", "bmp", "tiff"}

// Encoded is an encoded still image.
type Encoded struct {
	Data      []byte
	MIMEType  string
	Extension string
}

// Encode serialises img in the named format.
func Encode(img image.Image, format string, quality int) (Encoded, error) {
	if img == nil || img.Bounds().Empty() {
		return Encoded{}, fmt.Errorf("%w: surface has no area", ErrEncodeFailed)
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var (
		buf bytes.Buffer
		out Encoded
		err error
	)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "png":
		out = Encoded{MIMEType: "image/png", Extension: "png"}
		err = png.Encode(&buf, img)
	case "jpeg", "jpg":
		out = Encoded{MIMEType: "image/jpeg", Extension: "jpg"}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case "gif":
		out = Encoded{MIMEType: "image/gif", Extension: "gif"}
		err = gif.Encode(&buf, img, &gif.Options{NumColors: 256})
	case "bmp":
		out = Encoded{MIMEType: "image/bmp", Extension: "bmp"}
		err = bmp.Encode(&buf, img)
	case "tiff":
		out = Encoded{MIMEType: "image/tiff", Extension: "tiff"}
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return Encoded{}, fmt.Errorf("%w: unsupported format %q", ErrEncodeFailed, format)
	}
	if err != nil {
		return Encoded{}, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	out.Data = buf.Bytes()
	return out, nil
}

package frames

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"
)

// RasterFrame is one self-contained snapshot of the live surface. Frames are
// immutable once captured.
type RasterFrame struct {
	Sequence   int       `json:"sequence"`
	CapturedAt time.Time `json:"captured_at"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	PNG        []byte    `json:"-"`
}

// Decode parses the frame's PNG payload.
func (f RasterFrame) Decode() (image.Image, error) {
	if len(f.PNG) == 0 {
		return nil, errors.New("frame carries no image data")
	}
	img, err := png.Decode(bytes.NewReader(f.PNG))
	if err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", f.Sequence, err)
	}
	return img, nil
}

// EncodePNG builds a RasterFrame from an in-memory image.
func EncodePNG(seq int, capturedAt time.Time, img image.Image) (RasterFrame, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return RasterFrame{}, fmt.Errorf("encode frame %d: %w", seq, err)
	}
	b := img.Bounds()
	return RasterFrame{
		Sequence:   seq,
		CapturedAt: capturedAt.UTC(),
		Width:      b.Dx(),
		Height:     b.Dy(),
		PNG:        buf.Bytes(),
	}, nil
}

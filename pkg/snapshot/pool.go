package snapshot

import (
	"errors"
	"image"
	"sync"
)

// ScratchPool caches one reusable off-screen RGBA buffer. It is not
// re-entrant: only one holder may use the buffer at a time.
type ScratchPool struct {
	gate sync.Mutex

	mu          sync.Mutex
	buf         *image.RGBA
	allocations int
	resizes     int
}

// Acquire returns the scratch buffer sized width × height and a release
// function. The same size reuses the buffer untouched; a new size reshapes it,
// growing the backing array only when it is too small.
func (p *ScratchPool) Acquire(width, height int) (*image.RGBA, func(), error) {
	if width <= 0 || height <= 0 {
		return nil, nil, errors.New("scratch dimensions must be positive")
	}
	if !p.gate.TryLock() {
		return nil, nil, ErrScratchBusy
	}

	p.mu.Lock()
	rect := image.Rect(0, 0, width, height)
	switch {
	case p.buf == nil:
		p.buf = image.NewRGBA(rect)
		p.allocations++
	case p.buf.Rect != rect:
		need := 4 * width * height
		if cap(p.buf.Pix) >= need {
			p.buf.Pix = p.buf.Pix[:need]
		} else {
			p.buf.Pix = make([]uint8, need)
			p.allocations++
		}
		p.buf.Stride = 4 * width
		p.buf.Rect = rect
		p.resizes++
	}
	buf := p.buf
	p.mu.Unlock()

	var once sync.Once
	return buf, func() { once.Do(p.gate.Unlock) }, nil
}

// Allocations reports how many pixel buffers were allocated.
func (p *ScratchPool) Allocations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocations
}

// Resizes reports how many times the buffer changed dimensions.
func (p *ScratchPool) Resizes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resizes
}

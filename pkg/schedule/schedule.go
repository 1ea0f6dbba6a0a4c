package schedule

import (
	"errors"
	"sync"
	"time"
)

// TickSource produces a tick channel for the requested interval together with a
// function releasing the underlying timer.
type TickSource func(interval time.Duration) (<-chan time.Time, func())

// RealTicks is the default TickSource backed by time.Ticker.
func RealTicks(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// Handle owns a single periodic callback. Cancel must be called exactly once by
// the component that created the handle; extra calls are no-ops.
type Handle struct {
	once sync.Once
	quit chan struct{}
	done chan struct{}
}

// Every invokes fn on each tick until the returned handle is cancelled. A zero
// tick is consumed without invoking fn.
func Every(interval time.Duration, source TickSource, fn func(time.Time)) (*Handle, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if fn == nil {
		return nil, errors.New("callback must be provided")
	}
	if source == nil {
		source = RealTicks
	}

	ticks, release := source(interval)
	h := &Handle{
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer release()
		for {
			select {
			case <-h.quit:
				return
			case now, ok := <-ticks:
				if !ok {
					return
				}
				if now.IsZero() {
					continue
				}
				fn(now)
			}
		}
	}()

	return h, nil
}

// Cancel stops the callback loop and blocks until any in-flight callback has
// returned. No callback runs after Cancel returns.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		close(h.quit)
	})
	<-h.done
}

// Done is closed once the callback loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ManualTicks is a TickSource driven explicitly by the caller.
type ManualTicks struct {
	ch chan time.Time

	mu       sync.Mutex
	sources  int
	released int
}

// NewManualTicks returns a tick source whose ticks are delivered by Tick.
func NewManualTicks() *ManualTicks {
	return &ManualTicks{ch: make(chan time.Time)}
}

// Source implements TickSource.
func (m *ManualTicks) Source(time.Duration) (<-chan time.Time, func()) {
	m.mu.Lock()
	m.sources++
	m.mu.Unlock()
	return m.ch, func() {
		m.mu.Lock()
		m.released++
		m.mu.Unlock()
	}
}

// Tick delivers one tick and reports whether a consumer received it before the
// timeout elapsed.
func (m *ManualTicks) Tick(now time.Time, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m.ch <- now:
		return true
	case <-timer.C:
		return false
	}
}

// Step delivers one tick and returns once the consumer has finished handling
// it. It reports false when no consumer received the tick before the timeout.
func (m *ManualTicks) Step(now time.Time, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m.ch <- now:
	case <-timer.C:
		return false
	}
	// The consumer only receives again after its callback returned.
	select {
	case m.ch <- time.Time{}:
	case <-timer.C:
	}
	return true
}

// Active reports how many sources were handed out and not yet released.
func (m *ManualTicks) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sources - m.released
}

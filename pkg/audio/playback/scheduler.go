// Package playback schedules decoded model speech onto an output device so
// that consecutive chunks play back-to-back with no gaps.
//
// The Scheduler keeps a monotonic write cursor on the device's output
// timeline. Each enqueued buffer starts at the later of the cursor and the
// device's current position, and advances the cursor by the buffer's
// duration. A barge-in interrupt stops everything that is queued or playing
// and rewinds the cursor so the next response starts immediately.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karkuvel/pesu/pkg/audio"
)

// Handle identifies one buffer submitted to a [Device]. Stop cancels the
// buffer whether it is still pending or already audible; stopping a finished
// buffer is a no-op.
type Handle interface {
	Stop()
}

// Device is an audio output sink with its own monotonic clock.
//
// Play must not block and must not invoke done before returning; done is
// called exactly once when the buffer finishes on its own (not when it is
// stopped). Implementations must be safe for concurrent use.
type Device interface {
	// Now returns the current position on the device's output timeline.
	Now() time.Duration

	// Play schedules buf to start at the given timeline position.
	Play(buf audio.Buffer, at time.Duration, done func()) (Handle, error)
}

// Scheduler serialises model speech onto a Device. All methods are safe for
// concurrent use.
type Scheduler struct {
	dev Device

	mu       sync.Mutex
	cursor   time.Duration
	active   map[uint64]Handle
	nextID   uint64
	onIdle   func()
	shutdown bool
}

// NewScheduler creates a Scheduler writing to dev.
func NewScheduler(dev Device) *Scheduler {
	return &Scheduler{
		dev:    dev,
		active: make(map[uint64]Handle),
	}
}

// OnIdle registers a callback fired whenever the active set becomes empty —
// after the last buffer finishes, or after an interrupt or shutdown cleared a
// non-empty set. The callback runs outside the scheduler lock and may call
// back into the Scheduler. Passing nil clears the callback.
func (s *Scheduler) OnIdle(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIdle = fn
}

// Playing reports whether any buffer is queued or audible.
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// Enqueue schedules buf for gapless playback after everything enqueued before
// it. Returns an error after Shutdown or when the device rejects the buffer.
func (s *Scheduler) Enqueue(buf audio.Buffer) error {
	if len(buf.Samples) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return fmt.Errorf("playback: scheduler is shut down")
	}

	start := s.cursor
	if now := s.dev.Now(); now > start {
		start = now
	}

	s.nextID++
	id := s.nextID

	handle, err := s.dev.Play(buf, start, func() { s.finished(id) })
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("playback: enqueue: %w", err)
	}

	s.active[id] = handle
	s.cursor = start + buf.Duration()
	s.mu.Unlock()
	return nil
}

// finished removes a completed buffer from the active set and fires the idle
// callback when it was the last one.
func (s *Scheduler) finished(id uint64) {
	s.mu.Lock()
	_, ok := s.active[id]
	if ok {
		delete(s.active, id)
	}
	idle := ok && len(s.active) == 0
	fn := s.onIdle
	s.mu.Unlock()

	if idle && fn != nil {
		fn()
	}
}

// Interrupt stops every queued and audible buffer and rewinds the cursor to
// the start of the timeline, so the next enqueue plays immediately. Used for
// barge-in: the user spoke over the model and the remainder of the response
// must be discarded. Idempotent.
func (s *Scheduler) Interrupt() {
	s.clear(true)
}

// Shutdown stops every queued and audible buffer and rejects further
// enqueues. The cursor is left untouched. Idempotent.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.clear(false)
}

func (s *Scheduler) clear(rewind bool) {
	s.mu.Lock()
	stopped := make([]Handle, 0, len(s.active))
	for _, h := range s.active {
		stopped = append(stopped, h)
	}
	hadActive := len(s.active) > 0
	s.active = make(map[uint64]Handle)
	if rewind {
		s.cursor = 0
	}
	fn := s.onIdle
	s.mu.Unlock()

	for _, h := range stopped {
		h.Stop()
	}
	if hadActive {
		slog.Debug("playback: cleared active buffers", "count", len(stopped), "rewind", rewind)
		if fn != nil {
			fn()
		}
	}
}

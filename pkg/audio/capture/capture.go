// Package capture turns a microphone stream into fixed-size encoded windows
// for upstream delivery.
//
// A Source produces float32 sample chunks at 16 kHz mono. The Tap regroups
// them into 4096-sample windows (~256 ms), encodes each full window as s16le
// PCM and hands it to the current sink. Delivery is strictly best-effort: a
// missing sink or a failed send drops the window and capture carries on —
// a hiccup on the network path must never stall or kill the microphone.
package capture

import (
	"log/slog"
	"sync"

	"github.com/karkuvel/pesu/pkg/audio"
)

// WindowSize is the number of samples per delivered window. At 16 kHz this is
// roughly a quarter second of speech.
const WindowSize = 4096

// Source is a stream of microphone samples.
type Source interface {
	// Samples returns the channel on which float32 chunks (16 kHz, mono)
	// arrive. The channel is closed when the source stops.
	Samples() <-chan []float32

	// Close releases the underlying device. Safe to call more than once.
	Close() error
}

// Sink receives one encoded window (s16le, 16 kHz, mono). A non-nil error
// drops the window without affecting capture.
type Sink func(pcm []byte) error

// Tap accumulates source samples into windows and forwards them to a
// swappable sink. All methods are safe for concurrent use.
type Tap struct {
	src Source

	mu   sync.Mutex
	sink Sink

	stopOnce sync.Once
	done     chan struct{}
}

// NewTap creates a Tap reading from src. Call Start to begin forwarding.
func NewTap(src Source) *Tap {
	return &Tap{
		src:  src,
		done: make(chan struct{}),
	}
}

// SetSink replaces the delivery target. A nil sink silently discards windows
// (used while the upstream connection is down).
func (t *Tap) SetSink(sink Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

// Start launches the forwarding loop in a background goroutine. The loop ends
// when the source's sample channel closes.
func (t *Tap) Start() {
	go t.run()
}

// Done returns a channel closed when the forwarding loop has exited.
func (t *Tap) Done() <-chan struct{} {
	return t.done
}

// Stop detaches the sink and closes the source. Idempotent; a failure to
// release the device is logged, never propagated — there is nothing useful a
// caller can do about it during teardown.
func (t *Tap) Stop() {
	t.stopOnce.Do(func() {
		t.SetSink(nil)
		if err := t.src.Close(); err != nil {
			slog.Warn("capture: source close failed", "err", err)
		}
	})
}

func (t *Tap) run() {
	defer close(t.done)

	window := make([]float32, 0, WindowSize)
	for chunk := range t.src.Samples() {
		for len(chunk) > 0 {
			n := WindowSize - len(window)
			if n > len(chunk) {
				n = len(chunk)
			}
			window = append(window, chunk[:n]...)
			chunk = chunk[n:]

			if len(window) == WindowSize {
				t.deliver(window)
				window = window[:0]
			}
		}
	}
	// A partial trailing window is discarded: the model only ever sees
	// full-size chunks.
}

func (t *Tap) deliver(window []float32) {
	t.mu.Lock()
	sink := t.sink
	t.mu.Unlock()

	if sink == nil {
		return
	}
	if err := sink(audio.EncodePCM16(window)); err != nil {
		slog.Debug("capture: window dropped", "err", err)
	}
}

package playback

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/karkuvel/pesu/pkg/audio"
)

// Compile-time assertion that OtoDevice satisfies Device.
var _ Device = (*OtoDevice)(nil)

// OtoDevice plays scheduled buffers through the system speaker using an oto
// audio context (24 kHz, mono, s16le). The device timeline starts at zero
// when the device is created and advances in real time.
type OtoDevice struct {
	ctx   *oto.Context
	epoch time.Time

	mu     sync.Mutex
	closed bool
}

// NewOtoDevice initialises the speaker output context. The call blocks until
// the audio backend is ready.
func NewOtoDevice() (*OtoDevice, error) {
	op := &oto.NewContextOptions{
		SampleRate:   audio.PlaybackRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   200 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("playback: init oto context: %w", err)
	}
	<-ready

	return &OtoDevice{ctx: ctx, epoch: time.Now()}, nil
}

// Now returns the position on the device timeline.
func (d *OtoDevice) Now() time.Duration {
	return time.Since(d.epoch)
}

// Play schedules buf to start at the given timeline position. The done
// callback fires after the buffer's full duration has elapsed, unless the
// returned handle is stopped first.
func (d *OtoDevice) Play(buf audio.Buffer, at time.Duration, done func()) (Handle, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, fmt.Errorf("playback: oto device closed")
	}
	d.mu.Unlock()

	delay := at - d.Now()
	if delay < 0 {
		delay = 0
	}

	h := &otoHandle{dev: d, buf: buf, done: done}
	h.startTimer = time.AfterFunc(delay, h.start)
	return h, nil
}

// Close suspends the audio context. Pending handles should be stopped by the
// caller first; buffers started after Close are rejected.
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if err := d.ctx.Suspend(); err != nil {
		return fmt.Errorf("playback: suspend oto context: %w", err)
	}
	return nil
}

// otoHandle tracks one scheduled buffer through its pending and audible phases.
type otoHandle struct {
	dev  *OtoDevice
	buf  audio.Buffer
	done func()

	mu         sync.Mutex
	startTimer *time.Timer
	doneTimer  *time.Timer
	player     *oto.Player
	stopped    bool
}

// start fires when the scheduled start time arrives.
func (h *otoHandle) start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}

	pcm := audio.EncodePCM16(h.buf.Samples)
	h.player = h.dev.ctx.NewPlayer(bytes.NewReader(pcm))
	h.player.Play()

	// The player drains its reader asynchronously; completion is signalled
	// after the buffer's nominal duration rather than by polling IsPlaying.
	h.doneTimer = time.AfterFunc(h.buf.Duration(), h.finish)
}

// finish fires when the buffer has fully played out.
func (h *otoHandle) finish() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	player := h.player
	h.mu.Unlock()

	if player != nil {
		_ = player.Close()
	}
	if h.done != nil {
		h.done()
	}
}

// Stop cancels the buffer. Safe to call at any phase, any number of times.
func (h *otoHandle) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	if h.startTimer != nil {
		h.startTimer.Stop()
	}
	if h.doneTimer != nil {
		h.doneTimer.Stop()
	}
	player := h.player
	h.player = nil
	h.mu.Unlock()

	if player != nil {
		player.Pause()
		_ = player.Close()
	}
}

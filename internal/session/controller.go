// Package session drives the lifecycle of one voice conversation: microphone
// capture, the bidirectional model session, gapless playback, and the bounded
// retry policy that bridges transient connection failures.
//
// The controller is a small state machine:
//
//	Idle → Configuring → Connecting → Active
//	                         ↑           │ transient failure
//	                         └── Reconnecting
//	any state → Disconnected (user stop, fatal failure, retries exhausted)
//
// Only one conversation runs at a time. A generation counter guards every
// asynchronous callback (retry timers, event pumps) so that work belonging to
// a superseded conversation is discarded instead of corrupting the next one.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/karkuvel/pesu/internal/observe"
	"github.com/karkuvel/pesu/internal/persona"
	"github.com/karkuvel/pesu/pkg/audio"
	"github.com/karkuvel/pesu/pkg/audio/capture"
	"github.com/karkuvel/pesu/pkg/audio/playback"
	"github.com/karkuvel/pesu/pkg/s2s"
)

// State identifies where the controller is in the conversation lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateConfiguring  State = "configuring"
	StateConnecting   State = "connecting"
	StateActive       State = "active"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

// Default retry policy: a failed connection is redialled after a fixed pause.
// The first dial of a cycle is attempt 0; up to maxRetries redials follow, so
// a persistently failing cycle performs maxRetries+1 dials in total.
const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

// Status is a point-in-time snapshot of the conversation for display.
type Status struct {
	State State

	// Connected reports an open model session.
	Connected bool

	// Talking reports that model speech is queued or audible.
	Talking bool

	// Retrying reports that a redial is pending.
	Retrying bool

	// Err is a user-facing description of the last failure, empty when none.
	Err string
}

// SourceFactory opens the microphone. Called once per conversation.
type SourceFactory func() (capture.Source, error)

// DeviceFactory opens the speaker output. Called once per conversation. If
// the returned device also implements [io.Closer] it is closed on teardown.
type DeviceFactory func() (playback.Device, error)

// Option is a functional option for configuring a Controller.
type Option func(*Controller)

// WithRetryDelay overrides the pause between redials. Used in tests.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Controller) { c.retryDelay = d }
}

// WithMaxRetries overrides the redial budget per connection cycle.
func WithMaxRetries(n int) Option {
	return func(c *Controller) { c.maxRetries = n }
}

// WithMetrics overrides the metrics instance (tests use a manual reader).
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller owns one conversation at a time. All methods are safe for
// concurrent use.
type Controller struct {
	provider  s2s.Provider
	newSource SourceFactory
	newDevice DeviceFactory
	metrics   *observe.Metrics

	maxRetries int
	retryDelay time.Duration

	mu         sync.Mutex
	state      State
	generation uint64
	ctx        context.Context
	cfg        s2s.Config
	attempt    int
	handle     s2s.SessionHandle
	tap        *capture.Tap
	sched      *playback.Scheduler
	device     playback.Device
	retryTimer *time.Timer
	userStop   bool
	lastErr    error
}

// NewController creates an idle controller.
func NewController(provider s2s.Provider, src SourceFactory, dev DeviceFactory, opts ...Option) *Controller {
	c := &Controller{
		provider:   provider,
		newSource:  src,
		newDevice:  dev,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		state:      StateIdle,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Status returns a snapshot of the conversation.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:     c.state,
		Connected: c.state == StateActive,
		Retrying:  c.state == StateReconnecting,
		Err:       FriendlyMessage(c.lastErr),
	}
	if c.sched != nil {
		st.Talking = c.sched.Playing()
	}
	return st
}

// Start begins a conversation with the given persona. It opens the audio
// devices, then dials the model. A fatal failure (bad persona, microphone,
// rejected credentials) is returned immediately; a transient dial failure
// returns nil and redials in the background per the retry policy.
//
// ctx bounds the whole conversation: redials stop when it is cancelled.
// Start fails if a conversation is already in progress.
func (c *Controller) Start(ctx context.Context, lang persona.Language, mode persona.Mode) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StateDisconnected:
	default:
		c.mu.Unlock()
		return fmt.Errorf("session: already in progress (state %s)", c.state)
	}

	cfg, err := persona.SessionConfig(lang, mode)
	if err != nil {
		c.state = StateDisconnected
		c.lastErr = err
		c.mu.Unlock()
		return fmt.Errorf("session: %w", err)
	}

	c.generation++
	gen := c.generation
	// Configuring spans persona validation and audio device acquisition. The
	// command-driven flow has no separate "chosen but not started" resting
	// step, so the state is passed through rather than parked in.
	c.state = StateConfiguring
	c.ctx = ctx
	c.cfg = cfg
	c.attempt = 0
	c.userStop = false
	c.lastErr = nil
	c.mu.Unlock()

	slog.Info("starting session", "language", lang, "mode", mode, "voice", cfg.Voice)

	// Audio setup first: a conversation without a microphone or speaker is
	// pointless, and these failures are always fatal.
	dev, err := c.newDevice()
	if err != nil {
		err = fmt.Errorf("session: open audio device: %w", err)
		c.abandon(gen, err)
		return err
	}
	src, err := c.newSource()
	if err != nil {
		closeDevice(dev)
		err = fmt.Errorf("session: open microphone: %w", err)
		c.abandon(gen, err)
		return err
	}

	tap := capture.NewTap(src)
	sched := playback.NewScheduler(dev)
	sched.OnIdle(func() {
		slog.Debug("model finished speaking")
	})

	c.mu.Lock()
	if c.generation != gen || c.userStop {
		c.mu.Unlock()
		tap.Stop()
		sched.Shutdown()
		closeDevice(dev)
		return nil
	}
	c.tap = tap
	c.sched = sched
	c.device = dev
	c.mu.Unlock()

	tap.Start()
	return c.dial(gen)
}

// Stop ends the conversation from any state: it suppresses pending redials,
// releases the microphone and speaker, and closes the model session. Each
// release failure is logged and swallowed — teardown always completes.
// Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.userStop = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	handle := c.handle
	c.handle = nil
	alreadyDown := c.state == StateIdle || c.state == StateDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()

	if handle != nil {
		c.metrics.ActiveSessions.Add(context.Background(), -1)
		if err := handle.Close(); err != nil {
			slog.Warn("session close failed", "err", err)
		}
	}
	c.releaseAudio()

	if !alreadyDown {
		slog.Info("session stopped by user")
	}
}

// ── dialling and retries ──────────────────────────────────────────────────────

// dial performs one connection attempt for the given generation and either
// activates the session, schedules a redial, or gives up.
func (c *Controller) dial(gen uint64) error {
	c.mu.Lock()
	if c.generation != gen || c.userStop {
		c.mu.Unlock()
		return nil
	}
	attempt := c.attempt
	cfg := c.cfg
	ctx := c.ctx
	c.state = StateConnecting
	c.mu.Unlock()

	slog.Info("connecting to voice model", "attempt", attempt, "max_retries", c.maxRetries)

	start := time.Now()
	handle, err := c.provider.Connect(ctx, cfg)
	c.metrics.RecordConnectAttempt(ctx, time.Since(start), err)
	if err != nil {
		return c.dialFailed(gen, err)
	}

	c.mu.Lock()
	if c.generation != gen || c.userStop {
		c.mu.Unlock()
		_ = handle.Close()
		return nil
	}
	c.handle = handle
	c.state = StateActive
	c.attempt = 0
	tap := c.tap
	sched := c.sched
	c.mu.Unlock()

	c.metrics.ActiveSessions.Add(ctx, 1)
	tap.SetSink(func(pcm []byte) error {
		if err := handle.SendAudio(pcm); err != nil {
			return err
		}
		c.metrics.FramesSent.Add(ctx, 1)
		return nil
	})
	go c.pump(gen, handle, sched)

	slog.Info("session active", "attempt", attempt)
	return nil
}

// dialFailed decides between redial and giving up after a failed attempt.
func (c *Controller) dialFailed(gen uint64, err error) error {
	class := Classify(err)

	c.mu.Lock()
	if c.generation != gen || c.userStop {
		c.mu.Unlock()
		return nil
	}

	if class == FailureFatal {
		c.mu.Unlock()
		slog.Error("connection rejected", "err", err)
		c.abandon(gen, err)
		return err
	}
	if c.attempt >= c.maxRetries {
		c.mu.Unlock()
		slog.Error("giving up after repeated connection failures",
			"retries", c.maxRetries, "err", err)
		c.abandon(gen, err)
		return err
	}

	c.attempt++
	c.state = StateReconnecting
	c.lastErr = err
	attempt := c.attempt
	c.retryTimer = time.AfterFunc(c.retryDelay, func() {
		_ = c.dial(gen)
	})
	c.mu.Unlock()

	slog.Warn("connection failed; will retry",
		"attempt", attempt, "retry_in", c.retryDelay, "err", err)
	return nil
}

// ── downstream event pump ─────────────────────────────────────────────────────

// pump consumes the session's downstream until it closes. One pump goroutine
// exists per open connection; the generation guard keeps a stale pump from
// touching a newer conversation's state.
func (c *Controller) pump(gen uint64, handle s2s.SessionHandle, sched *playback.Scheduler) {
	ctx := context.Background()

	for ev := range handle.Events() {
		switch ev.Kind {
		case s2s.EventInterrupted:
			c.metrics.Interruptions.Add(ctx, 1)
			slog.Debug("model interrupted by user speech")
			sched.Interrupt()

		case s2s.EventAudio:
			c.metrics.FramesReceived.Add(ctx, 1)
			samples, err := audio.DecodePCM16(ev.Audio)
			if err != nil {
				// One bad frame is not a failed conversation.
				c.metrics.DecodeFailures.Add(ctx, 1)
				slog.Warn("dropping undecodable audio chunk", "bytes", len(ev.Audio), "err", err)
				continue
			}
			buf := audio.Buffer{Samples: samples, SampleRate: audio.PlaybackRate}
			if err := sched.Enqueue(buf); err != nil {
				slog.Debug("playback enqueue failed", "err", err)
			}
		}
	}

	c.sessionEnded(gen, handle.Err())
}

// sessionEnded runs when a connection's downstream closes: clean end, user
// stop, or mid-session drop.
func (c *Controller) sessionEnded(gen uint64, cause error) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	if c.handle != nil {
		c.handle = nil
		c.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	if c.tap != nil {
		c.tap.SetSink(nil)
	}

	if c.userStop {
		// Stop already handled teardown.
		c.mu.Unlock()
		return
	}

	if cause == nil {
		c.mu.Unlock()
		slog.Info("session ended by remote")
		c.abandon(gen, nil)
		return
	}

	class := Classify(cause)
	if class == FailureFatal || c.attempt >= c.maxRetries {
		c.mu.Unlock()
		slog.Error("session lost", "err", cause)
		c.abandon(gen, cause)
		return
	}

	c.attempt++
	c.state = StateReconnecting
	c.lastErr = cause
	c.retryTimer = time.AfterFunc(c.retryDelay, func() {
		_ = c.dial(gen)
	})
	c.mu.Unlock()

	slog.Warn("session dropped; will reconnect", "retry_in", c.retryDelay, "err", cause)
}

// ── teardown ──────────────────────────────────────────────────────────────────

// abandon moves the conversation to Disconnected with the given cause and
// releases the audio devices. No-op for superseded generations.
func (c *Controller) abandon(gen uint64, cause error) {
	c.mu.Lock()
	if c.generation != gen || c.userStop {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	if cause != nil {
		c.lastErr = cause
	}
	handle := c.handle
	c.handle = nil
	c.mu.Unlock()

	if handle != nil {
		c.metrics.ActiveSessions.Add(context.Background(), -1)
		if err := handle.Close(); err != nil {
			slog.Warn("session close failed", "err", err)
		}
	}
	c.releaseAudio()
}

// releaseAudio stops capture and playback and closes the output device.
// Every failure is logged and swallowed.
func (c *Controller) releaseAudio() {
	c.mu.Lock()
	tap := c.tap
	sched := c.sched
	dev := c.device
	c.tap = nil
	c.sched = nil
	c.device = nil
	c.mu.Unlock()

	if tap != nil {
		tap.Stop()
	}
	if sched != nil {
		sched.Shutdown()
	}
	if dev != nil {
		closeDevice(dev)
	}
}

func closeDevice(dev playback.Device) {
	closer, ok := dev.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("audio device close failed", "err", err)
	}
}

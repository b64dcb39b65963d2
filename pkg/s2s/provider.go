// Package s2s defines the Provider interface for speech-to-speech backends.
//
// An s2s provider wraps a realtime voice model that accepts raw audio input
// and returns synthesised audio output over a single, stateful session —
// there is no separate STT → LLM → TTS pipeline.
//
// The central abstraction is SessionHandle: a bidirectional stream that
// carries microphone audio up and model audio plus control events down.
// Sessions are long-lived (seconds to minutes) and end either cleanly or with
// an error retrievable via Err.
//
// All implementations must be safe for concurrent use.
package s2s

import "context"

// EventKind discriminates the variants carried on the session event stream.
type EventKind int

const (
	// EventAudio carries a chunk of synthesised model speech.
	EventAudio EventKind = iota

	// EventInterrupted signals that the model detected the user speaking over
	// it and has abandoned the current response. Any audio already delivered
	// for that response should be discarded by the consumer.
	EventInterrupted
)

// Event is a single item on the session's downstream. Audio is only set for
// EventAudio and holds raw mono s16le PCM at 24 kHz.
type Event struct {
	Kind  EventKind
	Audio []byte
}

// Config is the initial configuration for a new session.
type Config struct {
	// Voice selects the prebuilt voice the model speaks with (e.g. "Puck").
	Voice string

	// Instructions is the system-level prompt defining the persona and the
	// reply language.
	Instructions string
}

// SessionHandle represents an open speech-to-speech session. It is an
// interface so that test code can supply mock implementations without a live
// connection.
//
// The session is the hot path of the voice pipeline — every method must
// return quickly. Downstream delivery is channel-based to avoid blocking the
// provider's receive loop. All methods must be safe for concurrent use.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers a raw PCM chunk (16 kHz, s16le, mono) to the model.
	// Returns an error if the session is closed or the transport write fails.
	SendAudio(chunk []byte) error

	// Events returns a read-only channel of downstream events. The channel is
	// closed when the session ends, cleanly or otherwise; check
	// [SessionHandle.Err] after it closes to distinguish the two. Consumers
	// must drain this channel promptly.
	Events() <-chan Event

	// Err returns the error that terminated the session, or nil if it ended
	// cleanly (or is still open).
	Err() error

	// Close terminates the session and releases all resources. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any speech-to-speech backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Connect establishes a new session with the given configuration. The
	// returned SessionHandle is ready to accept audio immediately.
	//
	// Returns an error if the session cannot be established (authentication
	// failure, invalid voice, ctx already cancelled). The caller owns the
	// SessionHandle and is responsible for calling Close.
	Connect(ctx context.Context, cfg Config) (SessionHandle, error)
}

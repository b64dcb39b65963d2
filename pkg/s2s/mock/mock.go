// Package mock provides test doubles for the s2s package interfaces.
//
// Use Provider to verify Connect calls and feed controlled sessions.
// Use Session to drive the downstream event channel and inspect which methods
// were invoked by the session controller.
//
// Example:
//
//	sess := &mock.Session{EventsCh: make(chan s2s.Event, 8)}
//	p := &mock.Provider{Sessions: []mock.ConnectResult{{Session: sess}}}
//	handle, _ := p.Connect(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/karkuvel/pesu/pkg/s2s"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the Config passed to Connect.
	Cfg s2s.Config
}

// ConnectResult scripts the outcome of one Connect call.
type ConnectResult struct {
	// Session is returned when Err is nil. If nil, a fresh default Session
	// with a buffered channel is returned.
	Session s2s.SessionHandle

	// Err, if non-nil, is returned as the error from Connect.
	Err error
}

// Provider is a mock implementation of s2s.Provider. Successive Connect calls
// consume Sessions in order; once the script is exhausted the last entry is
// repeated (or a default session when the script is empty).
type Provider struct {
	mu sync.Mutex

	// Sessions scripts the outcome of each Connect call in order.
	Sessions []ConnectResult

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

// Connect records the call and returns the next scripted result.
func (p *Provider) Connect(ctx context.Context, cfg s2s.Config) (s2s.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})

	var res ConnectResult
	switch n := len(p.ConnectCalls); {
	case len(p.Sessions) == 0:
	case n <= len(p.Sessions):
		res = p.Sessions[n-1]
	default:
		res = p.Sessions[len(p.Sessions)-1]
	}

	if res.Err != nil {
		return nil, res.Err
	}
	if res.Session != nil {
		return res.Session, nil
	}
	return &Session{EventsCh: make(chan s2s.Event, 64)}, nil
}

// Calls returns a copy of the recorded Connect calls. Thread-safe.
func (p *Provider) Calls() []ConnectCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ConnectCall, len(p.ConnectCalls))
	copy(out, p.ConnectCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = nil
}

// Ensure Provider implements s2s.Provider at compile time.
var _ s2s.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Session is a mock implementation of s2s.SessionHandle.
// Callers should pre-populate EventsCh, then close it to signal
// end-of-session; set ErrVal first to simulate an abnormal termination.
type Session struct {
	mu sync.Mutex

	// EventsCh is the channel returned by Events(). Callers own this channel.
	EventsCh chan s2s.Event

	// ErrVal is returned by Err.
	ErrVal error

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by the first Close call.
	CloseErr error

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// AudioCalls returns a copy of the recorded SendAudio calls. Thread-safe.
func (s *Session) AudioCalls() []SendAudioCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SendAudioCall, len(s.SendAudioCalls))
	copy(out, s.SendAudioCalls)
	return out
}

// Events returns EventsCh.
func (s *Session) Events() <-chan s2s.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.EventsCh
}

// Err returns ErrVal. Thread-safe.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrVal
}

// SetErr sets the value returned by Err. Thread-safe.
func (s *Session) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrVal = err
}

// Close records the call and returns CloseErr on the first invocation.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if s.CloseCallCount == 1 {
		return s.CloseErr
	}
	return nil
}

// Closes returns the number of Close calls so far. Thread-safe.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// Ensure Session implements s2s.SessionHandle at compile time.
var _ s2s.SessionHandle = (*Session)(nil)

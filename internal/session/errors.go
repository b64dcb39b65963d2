package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/karkuvel/pesu/pkg/s2s"
)

// FailureClass determines how the controller reacts to a session failure.
type FailureClass int

const (
	// FailureTransient failures are worth redialling: network drops, service
	// hiccups, remote closes without a cause.
	FailureTransient FailureClass = iota

	// FailureFatal failures will not improve on retry: rejected credentials,
	// missing permissions, a microphone that cannot be opened.
	FailureFatal
)

// Classify maps a session failure to a retry decision. A dial handshake
// rejected with 401 or 403 means the credentials are wrong and every retry
// would burn an attempt for nothing; anything else is assumed transient.
func Classify(err error) FailureClass {
	var ce *s2s.ConnectError
	if errors.As(err, &ce) {
		switch ce.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return FailureFatal
		}
	}
	return FailureTransient
}

// FriendlyMessage reduces a raw session error to a short sentence fit for the
// user. The mapping is by pattern over the error text because failures arrive
// from several layers (handshake HTTP status, websocket close, audio device)
// without a shared error type.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "401", "unauthorized", "unauthenticated", "api key"):
		return "The API key was rejected. Check the configured key and try again."
	case containsAny(msg, "403", "forbidden", "permission"):
		return "Access was denied for this account."
	case containsAny(msg, "unavailable", "overloaded", "quota", "resource_exhausted", "429", "503"):
		return "The voice service is busy right now. Please try again in a moment."
	case containsAny(msg, "microphone", "capture", "audio device"):
		return "The microphone could not be opened. Check that it is connected and not in use."
	case containsAny(msg, "dial", "connection", "network", "timeout", "no such host", "refused"):
		return "Could not reach the voice service. Check your network connection."
	default:
		return "Something went wrong with the voice session. Please try again."
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

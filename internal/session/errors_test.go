package session

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/karkuvel/pesu/pkg/s2s"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"unauthorized handshake", &s2s.ConnectError{StatusCode: 401, Err: errors.New("bad key")}, FailureFatal},
		{"forbidden handshake", &s2s.ConnectError{StatusCode: 403, Err: errors.New("no access")}, FailureFatal},
		{"server error handshake", &s2s.ConnectError{StatusCode: 503, Err: errors.New("unavailable")}, FailureTransient},
		{"transport failure", &s2s.ConnectError{Err: errors.New("dial tcp: refused")}, FailureTransient},
		{"wrapped auth failure", fmt.Errorf("connect: %w", &s2s.ConnectError{StatusCode: 401}), FailureFatal},
		{"plain error", errors.New("websocket: connection reset"), FailureTransient},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %v; want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestFriendlyMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string // substring of the friendly message
	}{
		{"nil", nil, ""},
		{"auth", errors.New("handshake rejected: 401 Unauthorized"), "API key"},
		{"forbidden", errors.New("403 Forbidden"), "denied"},
		{"quota", errors.New("RESOURCE_EXHAUSTED: quota exceeded"), "busy"},
		{"overloaded", errors.New("model is overloaded"), "busy"},
		{"microphone", errors.New("open capture device: not found"), "microphone"},
		{"network", errors.New("dial tcp 1.2.3.4:443: i/o timeout"), "network"},
		{"dns", errors.New("lookup host: no such host"), "network"},
		{"unknown", errors.New("something exploded"), "try again"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := FriendlyMessage(tc.err)
			if tc.want == "" {
				if got != "" {
					t.Errorf("FriendlyMessage(nil) = %q; want empty", got)
				}
				return
			}
			if !strings.Contains(got, tc.want) {
				t.Errorf("FriendlyMessage(%v) = %q; want substring %q", tc.err, got, tc.want)
			}
		})
	}
}

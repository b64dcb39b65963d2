package s2s

import "fmt"

// ConnectError wraps a failed connection attempt with the HTTP status code of
// the handshake response, when one was received. StatusCode is zero for pure
// transport failures (DNS, refused connection, timeout).
type ConnectError struct {
	StatusCode int
	Err        error
}

func (e *ConnectError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("s2s: connect: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("s2s: connect: %v", e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

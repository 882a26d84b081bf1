package session

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrAuthTokenNotFound means the login page yielded no anti-forgery token.
	ErrAuthTokenNotFound = errors.New("login page anti-forgery token not found")

	// ErrAuthenticationFailed means the panel rejected the credentials or
	// never issued a session cookie.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNetworkTimeout means a remote call exceeded its per-call budget.
	ErrNetworkTimeout = errors.New("network timeout")

	// ErrTransport means a remote call failed below HTTP (DNS, TCP, TLS).
	ErrTransport = errors.New("transport error")
)

// classifyCallError maps a transport-level failure onto the error taxonomy.
// Returns nil for nil input.
func classifyCallError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrNetworkTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrNetworkTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

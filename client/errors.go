package client

import "fmt"

// ValidationError reports a request rejected client-side before any
// network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthenticationError reports a failed login or an expired session that
// could not be refreshed; callers should re-authenticate.
type AuthenticationError struct {
	Status  int
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("authentication failed: %s", e.Message)
	}
	return fmt.Sprintf("authentication failed: %s (Status %d)", e.Message, e.Status)
}

// HTTPError is any other non-2xx response. Error() always contains the
// literal substring "Status <code>"; callers match on it.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed: %s (Status %d)", e.Message, e.Status)
}

// StreamError reports a streaming request that failed before the first
// byte of the stream.
type StreamError struct {
	Status  int
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream request failed: %s (Status %d)", e.Message, e.Status)
}

// NetworkError wraps transport-level failures with no HTTP status.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

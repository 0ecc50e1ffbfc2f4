package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork matches every *NetworkError via errors.Is.
	ErrNetwork = errors.New("network failure")

	// ErrInvalidPayload indicates a response body that failed decoding or
	// schema validation.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrClientOutdated indicates the server requires a newer client.
	ErrClientOutdated = errors.New("client version is no longer supported")
)

// NetworkError is a transport failure, timeout, or a server-side (5xx, 429)
// response. These are safe to retry for idempotent reads.
type NetworkError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNetwork) match.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// APIError is a client-side (4xx) rejection reported by the backend.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
}

// PayloadError wraps a decoding or validation problem.
type PayloadError struct {
	Op  string
	Err error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s: invalid payload: %v", e.Op, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidPayload) match.
func (e *PayloadError) Is(target error) bool { return target == ErrInvalidPayload }

// classifyStatus maps a non-2xx status onto the error taxonomy.
func classifyStatus(op string, status int, message string) error {
	if status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		msg := message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &NetworkError{Op: op, StatusCode: status, Err: errors.New(msg)}
	}
	return &APIError{Op: op, StatusCode: status, Message: message}
}

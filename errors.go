package procureagent

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidOrder is matched by every ValidationError.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrDirectoryUnavailable means the vendor pool could not be loaded at all.
	ErrDirectoryUnavailable = errors.New("vendor directory unavailable")

	// ErrTransport marks a conversation create/send failure after the client's own retries.
	ErrTransport = errors.New("transport failure")
)

// ValidationError reports a malformed order. It aborts a run before vendor work begins.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid order: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidOrder }

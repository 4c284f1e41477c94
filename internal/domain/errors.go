package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy. Wrap these with fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	// ErrStorage - the store medium is unavailable or corrupt
	ErrStorage = errors.New("storage error")
	// ErrNotFound - a key, account or remote resource is absent
	ErrNotFound = errors.New("not found")
	// ErrResolution - a cross-system account link cannot be established (fatal at setup)
	ErrResolution = errors.New("resolution error")
	// ErrTranslation - an Upstream transaction cannot be mapped to a Budget entry
	ErrTranslation = errors.New("translation error")
	// ErrTransport - a remote API is unreachable or answered non-2xx
	ErrTransport = errors.New("transport error")
)

// TransportError describes a failed call to a remote API.
// It matches ErrTransport, and ErrNotFound when the status is 404.
type TransportError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("%s: status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is see the taxonomy sentinels through a TransportError
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

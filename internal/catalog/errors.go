package catalog

import (
	"errors"
	"fmt"
)

// Error taxonomy. Only ErrPersistence is fatal to a run.
var (
	ErrTransport          = errors.New("transport error")
	ErrParse              = errors.New("parse error")
	ErrPipelineExhaustion = errors.New("ranking source unavailable")
	ErrPersistence        = errors.New("persistence error")
	ErrNoSnapshot         = errors.New("no snapshot available")
	ErrRunInProgress      = errors.New("run already in progress")
)

// FetchError reports the failure of the final fetch attempt.
type FetchError struct {
	URL        string
	Egress     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s via %s: status %d", e.URL, e.Egress, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s via %s: %v", e.URL, e.Egress, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransport so callers can classify without a type assertion.
func (e *FetchError) Is(target error) bool {
	return target == ErrTransport
}

// PersistenceError wraps a snapshot write failure.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist snapshot %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

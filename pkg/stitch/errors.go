package stitch

import (
	"fmt"
	"time"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ValidationError reports a configuration or argument problem detected
// before any network I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// AuthenticationError reports rejected credentials (HTTP 401/403).
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("stitch: authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// NotFoundError reports a missing account, source, or stream (HTTP 404).
type NotFoundError struct {
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("stitch: %s not found: %s", e.Resource, e.Message)
}

// RemoteServiceError reports a transport failure or an HTTP error that is
// not an authentication or not-found condition, after retries.
type RemoteServiceError struct {
	Operation string
	Err       error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("stitch: %s: %v", e.Operation, e.Err)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// JobFailedError reports that Stitch refused or failed a replication job.
type JobFailedError struct {
	SourceID string
	Phase    string // trigger, discovery, tap, target, load
	Stream   string // set for load-phase failures
	Detail   string
}

func (e *JobFailedError) Error() string {
	if e.Stream != "" {
		return fmt.Sprintf("stitch: %s failed for source %s stream %s: %s", e.Phase, e.SourceID, e.Stream, e.Detail)
	}
	return fmt.Sprintf("stitch: %s failed for source %s: %s", e.Phase, e.SourceID, e.Detail)
}

// TimeoutError reports that a poll phase exceeded its configured timeout.
// The remote job keeps running; only polling stops.
type TimeoutError struct {
	SourceID string
	Phase    string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stitch: %s for source %s timed out after %s", e.Phase, e.SourceID, e.Timeout)
}

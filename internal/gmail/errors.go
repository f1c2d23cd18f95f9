package gmail

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// UnknownLabelError is returned when a label name is not present in the
// remote label listing.
type UnknownLabelError struct {
	Name string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("unknown label %q", e.Name)
}

// MalformedThreadError is returned when a thread payload cannot be turned into
// a Thread, typically because a message lacks a required header.
type MalformedThreadError struct {
	ThreadID  string
	MessageID string
	Reason    string
}

func (e *MalformedThreadError) Error() string {
	if e.MessageID != "" {
		return fmt.Sprintf("malformed thread %s: message %s: %s", e.ThreadID, e.MessageID, e.Reason)
	}
	return fmt.Sprintf("malformed thread %s: %s", e.ThreadID, e.Reason)
}

// RemoteServiceError wraps a failure of a Gmail API call with the operation
// and the resource it targeted.
type RemoteServiceError struct {
	Op         string // list_labels, list_threads, get_thread, modify_thread
	ID         string // thread or label id, empty for list_labels
	StatusCode int    // HTTP status when the API returned one, 0 otherwise
	Err        error
}

func (e *RemoteServiceError) Error() string {
	msg := "gmail " + e.Op
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	return msg + ": " + e.Err.Error()
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the API answered 404 for the targeted resource.
func (e *RemoteServiceError) NotFound() bool {
	return e.StatusCode == 404
}

// CacheWriteError reports that a hydrated thread could not be persisted. The
// thread itself is still usable; a later run will fetch it again.
type CacheWriteError struct {
	ThreadID string
	Err      error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("caching thread %s: %v", e.ThreadID, e.Err)
}

func (e *CacheWriteError) Unwrap() error {
	return e.Err
}

// newRemoteError builds a RemoteServiceError, lifting the HTTP status out of
// a *googleapi.Error when present.
func newRemoteError(op, id string, err error) error {
	if err == nil {
		return nil
	}
	rerr := &RemoteServiceError{Op: op, ID: id, Err: err}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		rerr.StatusCode = apiErr.Code
	}
	return rerr
}

package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies gateway errors for routing decisions.
type ErrorKind string

const (
	// KindValidation indicates a malformed key, id, or operation. Caller bug,
	// never retried.
	KindValidation ErrorKind = "validation_error"
	// KindStorage indicates a backend I/O failure on a cache or queue
	// primitive. Always surfaced.
	KindStorage ErrorKind = "storage_error"
	// KindOfflineNoCache is terminal: a read arrived with no connectivity and
	// no cached result to fall back on.
	KindOfflineNoCache ErrorKind = "offline_no_cache_error"
	// KindNonCacheableOffline is terminal: a non-cacheable read arrived while
	// offline, so no fallback path exists.
	KindNonCacheableOffline ErrorKind = "non_cacheable_offline_error"
	// KindRemote wraps an error propagated verbatim from the remote executor
	// while online.
	KindRemote ErrorKind = "remote_execution_error"
)

// ErrNotFound indicates a requested queue operation was not found.
var ErrNotFound = errors.New("operation not found")

// ErrNotReady indicates a store handle was used before Open completed.
var ErrNotReady = errors.New("store not opened")

// Error is the base error type for gateway, cache, and queue failures.
type Error struct {
	Kind    ErrorKind
	Message string
	// Err is the underlying cause, kept for unwrapping.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError reports a malformed caller input.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewStorageError wraps a backend I/O failure.
func NewStorageError(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// NewOfflineNoCacheError reports a read with no cache and no connectivity.
func NewOfflineNoCacheError(key string) *Error {
	return &Error{Kind: KindOfflineNoCache, Message: fmt.Sprintf("offline and no cached result for key %s", key)}
}

// NewNonCacheableOfflineError reports a non-cacheable read while offline.
func NewNonCacheableOfflineError() *Error {
	return &Error{Kind: KindNonCacheableOffline, Message: "offline and caching is disabled for this command"}
}

// NewRemoteError wraps an error from the remote executor.
func NewRemoteError(err error) *Error {
	return &Error{Kind: KindRemote, Message: "remote execution failed", Err: err}
}

// IsKind reports whether err is (or wraps) an Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

package errors

import (
	"errors"
	"fmt"
)

// Linking error taxonomy. The benign errors (AlreadyCompleted, AlreadyLinked)
// mark idempotent replays and must never trigger alerting or retries.
var (
	ErrTokenNotFound    = errors.New("link token not found")
	ErrTokenExpired     = errors.New("link token expired")
	ErrAlreadyCompleted = errors.New("link request already completed")
	ErrAlreadyLinked    = errors.New("chat user already linked")
	ErrLinkNotFound     = errors.New("linked account not found")
	ErrConfigNotFound   = errors.New("community config not found")
)

// IsBenign reports whether the error marks an idempotent replay rather than
// a real failure.
func IsBenign(err error) bool {
	return errors.Is(err, ErrAlreadyCompleted) || errors.Is(err, ErrAlreadyLinked)
}

// IdentityFetchError wraps a failure talking to the wiki identity service.
// Transient: the user may retry the flow, and welcome handling degrades
// instead of aborting.
type IdentityFetchError struct {
	Op  string
	Err error
}

func (e *IdentityFetchError) Error() string {
	return fmt.Sprintf("identity fetch failed during %s: %v", e.Op, e.Err)
}

func (e *IdentityFetchError) Unwrap() error { return e.Err }

// NewIdentityFetchError wraps err as a transient identity-service failure.
func NewIdentityFetchError(op string, err error) *IdentityFetchError {
	return &IdentityFetchError{Op: op, Err: err}
}

// IsIdentityFetch reports whether err is an identity-service failure.
func IsIdentityFetch(err error) bool {
	var ife *IdentityFetchError
	return errors.As(err, &ife)
}

// StorageError wraps a failure of the shared durable storage. Operation
// fatal: it is surfaced to the caller and reported, never swallowed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err as an operation-fatal storage failure.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err is a storage failure.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

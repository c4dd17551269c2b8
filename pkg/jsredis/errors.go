package jsredis

import (
	"errors"
	"fmt"
)

// ErrExpirationRange is returned for an expiration that is not finite or is
// too long to express as a deadline
var ErrExpirationRange = errors.New("jsredis: expiration out of range")

// EncodingError reports a value or member that could not be serialized.
// It is always a caller bug and is never retried.
type EncodingError struct {
	Key string
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("jsredis: encode value for %q: %v", e.Key, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports stored bytes that do not match the requested type,
// typically a key reused across incompatible schemas.
type DecodingError struct {
	Key string
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("jsredis: decode value at %q: %v", e.Key, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// StoreError reports a failed remote command. Err wraps the backend error, so
// errors.Is(err, kv.ErrBackendUnavailable) distinguishes connectivity faults.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("jsredis: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

package accounts

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCount    = errors.New("count must be a positive integer")
	ErrInvalidConsumer = errors.New("consumer must not be blank")
	ErrNoValidTokens   = errors.New("no valid accounts in batch")

	// ErrNoneAvailable means the pool has no unused accounts. It is not a
	// store failure.
	ErrNoneAvailable = errors.New("no unused accounts available")

	// ErrTokenConflict is wrapped by store errors raised when the store
	// reports a unique violation on token. It is a store fault, not retried.
	ErrTokenConflict = errors.New("token already exists")
)

// ValidationError rejects a request before it reaches the store.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

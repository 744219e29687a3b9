package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the ledger. Callers classify with errors.Is and
// errors.As; nothing in the ledger retries on its own.
var (
	ErrUnauthenticated  = errors.New("not signed in")
	ErrValidationFailed = errors.New("validation failed")
	ErrNotFound         = errors.New("transaction not found")
)

// RemoteError wraps any store failure that is not a NotFound.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote store %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err carries a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

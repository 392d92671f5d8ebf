package graph

import (
	"errors"
	"fmt"
)

// Common error types
var (
	ErrReadOnly              = errors.New("graph is read-only")
	ErrNotFound              = errors.New("node not found")
	ErrDuplicateRegistration = errors.New("duplicate schema registration")
	ErrTypeMismatch          = errors.New("type mismatch")
	ErrUnknownType           = errors.New("unknown node type")
	ErrClosed                = errors.New("graph is not open")
	ErrAlreadyOpen           = errors.New("graph is already open")
	ErrNotSupported          = errors.New("not supported by backend")
)

// NotFoundError reports a node identity that does not exist in the backend.
// Exactly one of OID or UUID is set.
type NotFoundError struct {
	OID  OID
	UUID string
}

func (e *NotFoundError) Error() string {
	if e.UUID != "" {
		return fmt.Sprintf("node not found: uuid %s", e.UUID)
	}
	return fmt.Sprintf("node not found: oid %d", e.OID)
}

// Is makes errors.Is(err, ErrNotFound) hold for every NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsReadOnly checks if an error came from a write on a read-only graph
func IsReadOnly(err error) bool {
	return errors.Is(err, ErrReadOnly)
}

// IsTypeMismatch checks if an error is a type mismatch error
func IsTypeMismatch(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}

func typeMismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTypeMismatch, fmt.Sprintf(format, args...))
}

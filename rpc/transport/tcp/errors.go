package tcp

import (
	"github.com/pkg/errors"
)

// causeError pairs a transport error kind with the error that caused it,
// usually a unix.Errno. errors.Is matches either of them.
type causeError struct {
	kind  error
	cause error
}

func (e *causeError) Error() string {
	return e.cause.Error() + ": " + e.kind.Error()
}

func (e *causeError) Unwrap() []error {
	return []error{e.kind, e.cause}
}

// withCause annotates kind with a message and keeps cause matchable
func withCause(kind, cause error, format string, args ...interface{}) error {
	return errors.Wrapf(&causeError{kind: kind, cause: cause}, format, args...)
}

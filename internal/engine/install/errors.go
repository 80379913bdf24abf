package install

import (
	"errors"
	"fmt"
)

// Failure classes. Step errors wrap one of these so callers can tell an
// operator cancellation from a broken host or a bad download.
var (
	ErrEnvironment  = errors.New("environment")
	ErrCancelled    = errors.New("cancelled by operator")
	ErrDeclined     = errors.New("declined by operator")
	ErrCollaborator = errors.New("collaborator failure")
	ErrData         = errors.New("invalid data")
)

// stepError keeps the operator-facing message while exposing the class to
// errors.Is.
type stepError struct {
	class error
	msg   string
	cause error
}

func (e *stepError) Error() string { return e.msg }

func (e *stepError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.class}
	}
	return []error{e.class, e.cause}
}

func fail(class error, msg string) error {
	return &stepError{class: class, msg: msg}
}

// failWrap prefixes cause's text with msg, e.g. "Failed to download DLLs: 403".
func failWrap(class error, msg string, cause error) error {
	return &stepError{class: class, msg: msg + ": " + cause.Error(), cause: cause}
}

// runStepError is what Controller.Run returns: the failing step's error
// prefixed with its id.
type runStepError struct {
	id  string
	err error
}

func (e *runStepError) Error() string { return fmt.Sprintf("step %q: %v", e.id, e.err) }

func (e *runStepError) Unwrap() error { return e.err }

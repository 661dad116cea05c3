package download

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError
	ErrValidation = errors.New("validation failed")
	// ErrInternal marks unexpected failures during orchestration
	ErrInternal = errors.New("internal error")
)

// ValidationError reports input rejected before a job is admitted
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// diagnostic is implemented by collaborator errors that carry the tool's own output
type diagnostic interface {
	Diagnostic() string
}

// CollaboratorError wraps a failure of the external inspection or fetch tool
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	if msg := e.Diagnostic(); msg != "" {
		return fmt.Sprintf("%s failed: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the collaborator's verbatim error output, if it produced any
func (e *CollaboratorError) Diagnostic() string {
	var d diagnostic
	if errors.As(e.Err, &d) {
		return d.Diagnostic()
	}
	return ""
}

func collaboratorFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Op: op, Err: err}
}

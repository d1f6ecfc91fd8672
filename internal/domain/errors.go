package domain

import (
	"errors"
	"fmt"
)

// Transfer errors. All of them are fatal for the task they occur in.
var (
	ErrInconsistentLocalFile = errors.New("local file is larger than the declared size")
	ErrSizeMismatch          = errors.New("remote size does not match the declared size")
	ErrMissingContentLength  = errors.New("response carries no content-length")
	ErrUnexpectedStatus      = errors.New("unexpected http status")
	ErrInvalidManifest       = errors.New("invalid manifest")
)

// TransientError marks a failure that is expected to clear up by waiting and
// retrying. Kind is a short name used to bucket the failure in an ErrorHistogram.
type TransientError struct {
	Kind string
	Err  error
}

// Error returns the error message
func (e *TransientError) Error() string {
	if e.Err != nil {
		return e.Kind + ": " + e.Err.Error()
	}
	return e.Kind
}

// Unwrap returns the underlying error
func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a new transient error
func NewTransientError(kind string, err error) *TransientError {
	if kind == "" {
		kind = "TransientError"
	}
	return &TransientError{Kind: kind, Err: err}
}

// IsTransient returns true if the error should be retried
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// TransientKind returns the kind of a transient error, or "" if err is not transient.
func TransientKind(err error) string {
	var te *TransientError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// TaskError wraps the fatal error of a single manifest row so the batch
// boundary can report which task failed.
type TaskError struct {
	Index int
	Label string
	Err   error
}

// Error returns the error message
func (e *TaskError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("task %d (%s): %v", e.Index, e.Label, e.Err)
	}
	return fmt.Sprintf("task %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error
func (e *TaskError) Unwrap() error {
	return e.Err
}

// NewTaskError creates a new task error
func NewTaskError(task *DownloadTask, err error) *TaskError {
	return &TaskError{Index: task.Index, Label: task.Label, Err: err}
}

// SizeMismatchError returns ErrSizeMismatch annotated with both sizes.
func SizeMismatchError(declared, remote int64) error {
	return fmt.Errorf("%w: declared %d bytes, server reports %d", ErrSizeMismatch, declared, remote)
}

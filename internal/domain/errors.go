package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfig signals an invalid engine or workflow configuration.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidPath signals a malformed dotted path or a write through a scalar.
	ErrInvalidPath = errors.New("invalid path")
	// ErrIndexOutOfRange signals a write into an empty sequence.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrLengthMismatch signals two positionally aligned batches of different length.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrMissingFields signals select fields absent from the dataset schema.
	ErrMissingFields = errors.New("missing fields in schema")
	// ErrMalformedResponse signals a pull response that cannot be used.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrMaxRetriesExceeded signals an exhausted pull retry budget. Fatal for the run.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrEngineConsumed signals a second Apply on a single-use engine.
	ErrEngineConsumed = errors.New("engine already applied")
	// ErrCoverageTimeout signals written fields never reaching the required coverage.
	ErrCoverageTimeout = errors.New("field coverage timeout")
	// ErrEmbeddingProvider signals a failed call to the embedding provider.
	ErrEmbeddingProvider = errors.New("embedding provider error")
)

// UserError carries a human-readable failure reason that is attached to the
// remote job record, separate from the technical error chain.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *UserError) Unwrap() error { return e.Err }

// NewUserError wraps err with a message meant for the person watching the job.
func NewUserError(message string, err error) error {
	return &UserError{Message: message, Err: err}
}

// UserMessage returns the user-facing message found in err's chain, if any.
func UserMessage(err error) (string, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message, true
	}
	return "", false
}

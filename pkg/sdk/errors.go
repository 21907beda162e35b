package workflows

import "github.com/kailas-cloud/workflows/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound           = domain.ErrNotFound
	ErrInvalidConfig      = domain.ErrInvalidConfig
	ErrInvalidPath        = domain.ErrInvalidPath
	ErrLengthMismatch     = domain.ErrLengthMismatch
	ErrMissingFields      = domain.ErrMissingFields
	ErrMalformedResponse  = domain.ErrMalformedResponse
	ErrMaxRetriesExceeded = domain.ErrMaxRetriesExceeded
	ErrEngineConsumed     = domain.ErrEngineConsumed
	ErrCoverageTimeout    = domain.ErrCoverageTimeout
	ErrEmbeddingProvider  = domain.ErrEmbeddingProvider
)

// UserError carries a message for the person watching the job.
type UserError = domain.UserError

// NewUserError wraps err with a user-facing message. A workflow that fails
// with it attaches the message to the job record.
func NewUserError(message string, err error) error {
	return domain.NewUserError(message, err)
}

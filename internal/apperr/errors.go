// Package apperr defines the error taxonomy shared by the repositories and
// mapped to HTTP status codes at the handler boundary. None of these are
// retryable: each one is a caller-input or caller-permission problem.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidAssignee means the assignment target is absent or disabled
	// at assignment time.
	ErrInvalidAssignee = errors.New("assignee not found or not active")

	// ErrNotFoundOrForbidden merges "does not exist" and "exists but the
	// caller lacks access" so responses never leak which one it was.
	ErrNotFoundOrForbidden = errors.New("not found")

	// ErrAccessDenied means the caller's identity resolved but it lacks the
	// specific capability (non-creator delete, partial reorder batch).
	ErrAccessDenied = errors.New("access denied")

	// ErrUnsupportedFileType rejects uploads outside the extension/media-type
	// allow-list. Applies batch-wide.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrFileTooLarge rejects uploads over the configured size cap.
	// Applies batch-wide.
	ErrFileTooLarge = errors.New("file too large")

	// ErrStorageInconsistency means a metadata record references a blob that
	// no longer exists. Logged server-side, surfaced to the caller as a
	// plain not-found since no recovery is possible at request time.
	ErrStorageInconsistency = errors.New("storage object missing for metadata record")
)

// ValidationError carries field-level detail for a missing or malformed
// required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for the given field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AsValidation extracts a ValidationError from an error chain.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// HTTPStatus maps a taxonomy error to its response status code. Unknown
// errors map to 500.
func HTTPStatus(err error) int {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidAssignee):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFoundOrForbidden):
		return http.StatusNotFound
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrUnsupportedFileType), errors.Is(err, ErrFileTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrStorageInconsistency):
		// Surfaced as a plain not-found; the divergence itself is logged
		// server-side.
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

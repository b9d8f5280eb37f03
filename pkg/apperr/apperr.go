// Package apperr provides a typed application error taxonomy mapped onto
// the note graph's failure modes: validation, storage, and the several
// ways an LLM-backed pipeline stage can misbehave.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError for logging, metrics, and HTTP mapping.
type ErrorType string

const (
	TypeValidation        ErrorType = "VALIDATION"
	TypeNotFound          ErrorType = "NOT_FOUND"
	TypeConflict          ErrorType = "CONFLICT"
	TypeInternal          ErrorType = "INTERNAL"
	TypeStorage           ErrorType = "STORAGE"
	TypeExtractionFailure ErrorType = "EXTRACTION_FAILURE"
	TypeEmbeddingFailure  ErrorType = "EMBEDDING_FAILURE"
	TypeLLMUnavailable    ErrorType = "LLM_UNAVAILABLE"
)

// AppError is the application-specific error type carried across package
// boundaries. Handlers map it to an HTTP status via HTTPStatus.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	NoteID     string                 `json:"noteId,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

func (e *AppError) WithNote(noteID string) *AppError {
	e.NoteID = noteID
	return e
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// NewValidationError reports a malformed or missing request field.
func NewValidationError(message string) *AppError {
	return &AppError{Type: TypeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// NewNotFoundError reports a missing note, tag, or cluster.
func NewNotFoundError(resource string) *AppError {
	return &AppError{Type: TypeNotFound, Message: fmt.Sprintf("%s not found", resource), HTTPStatus: http.StatusNotFound}
}

// NewConflictError reports e.g. a tag rename colliding with an existing tag.
func NewConflictError(message string) *AppError {
	return &AppError{Type: TypeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

// NewInternalError reports an unexpected failure with no clearer category.
func NewInternalError(message string) *AppError {
	return &AppError{Type: TypeInternal, Message: message, HTTPStatus: http.StatusInternalServerError}
}

// NewStorageError reports a SQLite-layer failure.
func NewStorageError(operation string, err error) *AppError {
	return &AppError{
		Type:       TypeStorage,
		Message:    fmt.Sprintf("storage operation %q failed", operation),
		Cause:      err,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewExtractionFailure reports that episodic or prospective extraction
// could not produce usable structured output for a note - the note is
// still persisted with empty metadata, per the capture_note failure policy.
func NewExtractionFailure(noteID string, err error) *AppError {
	return &AppError{
		Type:       TypeExtractionFailure,
		Message:    "metadata extraction failed",
		NoteID:     noteID,
		Cause:      err,
		HTTPStatus: http.StatusOK, // non-fatal: capture_note still succeeds
	}
}

// NewEmbeddingFailure reports that embedding generation failed for a note
// already persisted. Recoverable via POST /graph/rebuild_edges once the
// embedding backend is healthy again.
func NewEmbeddingFailure(noteID string, err error) *AppError {
	return &AppError{
		Type:       TypeEmbeddingFailure,
		Message:    "embedding generation failed",
		NoteID:     noteID,
		Cause:      err,
		HTTPStatus: http.StatusOK,
	}
}

// NewLLMUnavailableError reports the circuit breaker is open or the LLM
// call itself failed outright (not just returned unparseable output).
func NewLLMUnavailableError(operation string, err error) *AppError {
	return &AppError{
		Type:       TypeLLMUnavailable,
		Message:    fmt.Sprintf("llm operation %q unavailable", operation),
		Cause:      err,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// As extracts an *AppError from err's chain, if present.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Is reports whether err's chain contains an AppError of the given type.
func Is(err error, t ErrorType) bool {
	appErr := As(err)
	return appErr != nil && appErr.Type == t
}

// Wrap attaches message as additional context, preserving the underlying
// AppError's type when present, or creating a new internal error otherwise.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr := As(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

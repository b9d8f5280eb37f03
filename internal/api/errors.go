package api

import (
	"encoding/json"
	"net/http"

	"github.com/notegraph/notegraph/internal/api/dto"
	"github.com/notegraph/notegraph/pkg/apperr"
)

// writeJSON marshals v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the HTTP error taxonomy in pkg/apperr, falling
// back to a generic 500 for errors that never went through apperr.
func writeError(w http.ResponseWriter, err error) {
	appErr := apperr.As(err)
	if appErr == nil {
		appErr = apperr.NewInternalError(err.Error())
	}
	writeJSON(w, appErr.HTTPStatus, dto.ErrorResponse{
		Type:    string(appErr.Type),
		Message: appErr.Message,
		NoteID:  appErr.NoteID,
		Details: appErr.Details,
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeError(w, apperr.NewValidationError(err.Error()))
}

func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.NewValidationError("malformed JSON body: " + err.Error())
	}
	if err := validateStruct(dst); err != nil {
		return apperr.NewValidationError(err.Error())
	}
	return nil
}

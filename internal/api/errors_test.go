package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/notegraph/notegraph/internal/api/dto"
	"github.com/notegraph/notegraph/pkg/apperr"
)

func TestWriteErrorMapsAppErrorStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperr.NewNotFoundError("note abc"))

	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Type != string(apperr.TypeNotFound) {
		t.Errorf("expected type %q, got %q", apperr.TypeNotFound, body.Type)
	}
}

func TestWriteErrorFallsBackToInternalForPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errPlain("boom"))

	if rec.Code != 500 {
		t.Fatalf("expected 500 for an unrecognized error, got %d", rec.Code)
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

package api

import (
	"testing"

	"github.com/notegraph/notegraph/internal/api/dto"
)

func TestValidateStructRejectsMissingRequiredField(t *testing.T) {
	req := dto.CaptureNoteRequest{Text: ""}
	if err := validateStruct(&req); err == nil {
		t.Fatal("expected a validation error for empty text")
	}
}

func TestValidateStructAcceptsValidRequest(t *testing.T) {
	req := dto.CaptureNoteRequest{Text: "Meeting with Sarah"}
	if err := validateStruct(&req); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFieldNameUsesJSONTag(t *testing.T) {
	req := dto.MergeTagsRequest{SourceIDs: nil, TargetName: ""}
	err := validateStruct(&req)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	fe, ok := err.(*fieldError)
	if !ok {
		t.Fatalf("expected *fieldError, got %T", err)
	}
	if fe.field != "source_ids" && fe.field != "target_name" {
		t.Errorf("expected field error to reference a json-tag name, got %q", fe.field)
	}
}

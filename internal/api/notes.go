package api

import (
	"net/http"

	"github.com/notegraph/notegraph/internal/api/dto"
)

// handleCaptureNote implements POST /capture_note: C10's synchronous
// sequence runs inline; C5/C6 are scheduled by the orchestrator in the
// background, so this handler returns as soon as persistence succeeds.
func (s *Server) handleCaptureNote(w http.ResponseWriter, r *http.Request) {
	var req dto.CaptureNoteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.ingest.CaptureNote(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CaptureNoteResponse{
		NoteID:   result.NoteID,
		Title:    result.Title,
		Episodic: toEpisodic(result.Episodic),
		Path:     result.Path,
	})
}

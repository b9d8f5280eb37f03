package api

import (
	"net/http"
	"os"

	"github.com/notegraph/notegraph/internal/api/dto"
)

// handleSynthesize implements POST /synthesize: runs the same retrieval
// pipeline as /search, then streams an SSE answer grounded in the result.
// A SynthesisFailure becomes an "error" SSE event, not an HTTP error
// status, since headers are already committed by the time streaming
// starts - per spec.md §7's streaming error propagation rule.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req dto.SearchRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.runRetrieval(r, req)
	if err != nil {
		writeError(w, err)
		return
	}

	bodies := make(map[string]string)
	noteIDs := make([]string, 0, len(resp.Primary)+len(resp.Expanded))
	for _, p := range resp.Primary {
		noteIDs = append(noteIDs, p.NoteID)
		bodies[p.NoteID] = s.readNoteBody(p.NoteID)
	}
	for _, e := range resp.Expanded {
		noteIDs = append(noteIDs, e.NoteID)
		bodies[e.NoteID] = s.readNoteBody(e.NoteID)
	}

	contextBlock := s.synth.BuildContext(resp, bodies)
	_ = s.synth.Stream(r.Context(), w, req.Query, contextBlock, noteIDs)
}

func (s *Server) readNoteBody(noteID string) string {
	note, err := s.store.GetNote(noteID)
	if err != nil || note == nil {
		return ""
	}
	data, err := os.ReadFile(note.Path)
	if err != nil {
		return ""
	}
	return string(data)
}

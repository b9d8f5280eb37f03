package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/notegraph/notegraph/internal/api/dto"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/pkg/apperr"
)

// handleListTags implements GET /tags.
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	all, err := s.tags.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTags(all))
}

// handleCreateTag implements POST /tags.
func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTagRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	source := req.Source
	if source == "" {
		source = store.TagSourceUser
	}
	tag, err := s.tags.GetOrCreate(req.Name, source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTag(tag))
}

// handleSearchTags implements GET /tags/search?q=&limit=.
func (s *Server) handleSearchTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := s.tags.Search(q, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTagSearchHits(results))
}

// handleTagChildren implements GET /tags/{id}/children.
func (s *Server) handleTagChildren(w http.ResponseWriter, r *http.Request) {
	children, err := s.tags.GetChildren(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTags(children))
}

// handleTagNotes implements GET /tags/{id}/notes?include_children=.
func (s *Server) handleTagNotes(w http.ResponseWriter, r *http.Request) {
	includeChildren := r.URL.Query().Get("include_children") == "true"
	notes, err := s.tags.GetNotesByTag(chi.URLParam(r, "id"), includeChildren)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteSummaries(notes))
}

// handleRenameTag implements PUT /tags/{id}.
func (s *Server) handleRenameTag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.RenameTagRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.tags.Rename(id, req.Name); err != nil {
		writeError(w, err)
		return
	}
	tag, err := s.store.GetTag(id)
	if err != nil {
		writeError(w, apperr.NewStorageError("get_tag", err))
		return
	}
	if tag == nil {
		writeError(w, apperr.NewNotFoundError("tag "+id))
		return
	}
	writeJSON(w, http.StatusOK, toTag(tag))
}

// handleMergeTags implements POST /tags/merge.
func (s *Server) handleMergeTags(w http.ResponseWriter, r *http.Request) {
	var req dto.MergeTagsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	target, err := s.tags.Merge(req.SourceIDs, req.TargetName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTag(target))
}

// handleDeleteTag implements DELETE /tags/{id}.
func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.tags.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTagStats implements GET /tags/stats.
func (s *Server) handleTagStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tags.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TagStats{
		Active: stats.Active, Recent: stats.Recent, Stale: stats.Stale, Dormant: stats.Dormant,
	})
}

// handleNoteTags implements GET /notes/{id}/tags.
func (s *Server) handleNoteTags(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "id")
	tags, err := s.tags.ListForNote(noteID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTags(tags))
}

// handleAddNoteTag implements POST /notes/{id}/tags.
func (s *Server) handleAddNoteTag(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "id")
	var req dto.AddNoteTagRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tag, err := s.tags.AddToNote(noteID, req.Name, store.TagSourceUser)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTag(tag))
}

// handleRemoveNoteTag implements DELETE /notes/{id}/tags/{tag_id}.
func (s *Server) handleRemoveNoteTag(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "id")
	tagID := chi.URLParam(r, "tag_id")
	if err := s.tags.RemoveFromNote(noteID, tagID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

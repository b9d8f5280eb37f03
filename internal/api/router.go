// Package api implements notegraphd's HTTP surface: a chi router wiring
// every component (C1-C10) to the endpoints in spec.md §6.1, grounded on
// 2lar-b2's rest.Router.Setup middleware chain and handler/DTO split.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/notegraph/notegraph/internal/community"
	"github.com/notegraph/notegraph/internal/embed"
	"github.com/notegraph/notegraph/internal/ingest"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/internal/synth"
	"github.com/notegraph/notegraph/internal/tags"
	"github.com/notegraph/notegraph/internal/api/dto"
	"github.com/notegraph/notegraph/pkg/applog"
	"github.com/notegraph/notegraph/pkg/config"
)

// Server holds every dependency a handler needs. Handlers are methods on
// Server rather than closures so each one stays independently testable
// against a fake store.
type Server struct {
	store     store.Storer
	ingest    *ingest.Orchestrator
	tags      *tags.Service
	embed     *embed.Service
	community *community.Detector
	synth     *synth.Synthesizer
	cfg       *config.Config
	log       *zap.Logger
}

// New builds a Server. All dependencies are constructed by the caller
// (cmd/notegraphd) and passed in ready to use.
func New(s store.Storer, orch *ingest.Orchestrator, tagSvc *tags.Service, embedSvc *embed.Service, detector *community.Detector, synthesizer *synth.Synthesizer, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		store: s, ingest: orch, tags: tagSvc, embed: embedSvc,
		community: detector, synth: synthesizer, cfg: cfg, log: logger,
	}
}

// Router builds the full chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(applog.HTTPMiddleware(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Post("/capture_note", s.handleCaptureNote)

	r.Route("/graph", func(r chi.Router) {
		r.Get("/nodes", s.handleGraphNodes)
		r.Get("/edges", s.handleGraphEdges)
		r.Get("/stats", s.handleGraphStats)
		r.Post("/cluster", s.handleGraphCluster)
		r.Get("/clusters", s.handleGraphClusters)
		r.Get("/clusters/{id}", s.handleGraphClusterDetail)
		r.Post("/rebuild_edges", s.handleRebuildEdges)
	})

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", s.handleListTags)
		r.Post("/", s.handleCreateTag)
		r.Get("/search", s.handleSearchTags)
		r.Get("/stats", s.handleTagStats)
		r.Get("/{id}/children", s.handleTagChildren)
		r.Get("/{id}/notes", s.handleTagNotes)
		r.Put("/{id}", s.handleRenameTag)
		r.Delete("/{id}", s.handleDeleteTag)
		r.Post("/merge", s.handleMergeTags)
	})

	r.Route("/notes/{id}/tags", func(r chi.Router) {
		r.Get("/", s.handleNoteTags)
		r.Post("/", s.handleAddNoteTag)
		r.Delete("/{tag_id}", s.handleRemoveNoteTag)
	})

	r.Post("/search", s.handleSearch)
	r.Post("/synthesize", s.handleSynthesize)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}

package api

import (
	"net/http"
	"time"

	"github.com/notegraph/notegraph/internal/api/dto"
	"github.com/notegraph/notegraph/internal/retrieval"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/pkg/apperr"
)

// runRetrieval executes the shared FTS + vector + graph-expansion pipeline
// behind both POST /search and POST /synthesize.
func (s *Server) runRetrieval(r *http.Request, req dto.SearchRequest) (*retrieval.Response, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}
	hops := req.Hops
	if hops <= 0 {
		hops = 1
	}
	expand := true
	if req.ExpandGraph != nil {
		expand = *req.ExpandGraph
	}

	ftsHits, err := s.store.SearchFTS(req.Query, 4*topK)
	if err != nil {
		return nil, apperr.NewStorageError("search_fts", err)
	}

	var queryVector []float32
	if v, embedErr := s.embed.Embed(r.Context(), req.Query); embedErr == nil {
		queryVector = v
	}

	allEmbeddings, err := s.store.ListEmbeddings()
	if err != nil {
		return nil, apperr.NewStorageError("list_embeddings", err)
	}

	params := retrieval.Params{
		FTSWeight:    s.cfg.Retrieval.FTSWeight,
		VectorWeight: s.cfg.Retrieval.VectorWeight,
		HopDecay:     s.cfg.Retrieval.HopDecay,
	}
	return retrieval.Search(s.store, ftsHits, queryVector, allEmbeddings, topK, expand, hops, params)
}

func (s *Server) toScoredResults(rs []retrieval.Result) []dto.ScoredResult {
	out := make([]dto.ScoredResult, 0, len(rs))
	for _, r := range rs {
		title := ""
		if note, err := s.store.GetNote(r.NoteID); err == nil && note != nil {
			title = note.Title
		}
		out = append(out, dto.ScoredResult{
			NoteID: r.NoteID, Title: title,
			FTSScore: r.FTSScore, VectorScore: r.VectorScore, Score: r.Score,
		})
	}
	return out
}

func (s *Server) toExpandedResults(rs []retrieval.ExpandedResult) []dto.ExpandedResult {
	out := make([]dto.ExpandedResult, 0, len(rs))
	for _, r := range rs {
		title := ""
		if note, err := s.store.GetNote(r.NoteID); err == nil && note != nil {
			title = note.Title
		}
		out = append(out, dto.ExpandedResult{
			NoteID: r.NoteID, Title: title, Score: r.Score,
			Relation: r.Relation, HopDistance: r.HopDistance, ParentNoteID: r.ParentNoteID,
		})
	}
	return out
}

func toClusterSummaries(cs []*store.Cluster) []dto.ClusterSummary {
	out := make([]dto.ClusterSummary, 0, len(cs))
	for _, c := range cs {
		out = append(out, toClusterSummary(c))
	}
	return out
}

// handleSearch implements POST /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

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

	writeJSON(w, http.StatusOK, dto.SearchResponse{
		Query:           req.Query,
		Primary:         s.toScoredResults(resp.Primary),
		Expanded:        s.toExpandedResults(resp.Expanded),
		Clusters:        toClusterSummaries(resp.Clusters),
		TotalResults:    len(resp.Primary) + len(resp.Expanded),
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	})
}

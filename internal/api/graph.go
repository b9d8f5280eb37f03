package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/notegraph/notegraph/internal/api/dto"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/pkg/apperr"
)

func (s *Server) allNotes() ([]*store.Note, error) {
	total, err := s.store.CountNotes()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}
	return s.store.ListNotes(total, 0)
}

// handleGraphNodes implements GET /graph/nodes.
func (s *Server) handleGraphNodes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.allNotes()
	if err != nil {
		writeError(w, apperr.NewStorageError("list notes", err))
		return
	}

	nodes := make([]dto.GraphNode, 0, len(notes))
	for _, n := range notes {
		node := dto.GraphNode{ID: n.ID, Path: n.Path, Created: n.CreatedAt}
		if ep, err := s.store.GetEpisodic(n.ID); err == nil && ep != nil {
			episodic := toEpisodic(ep)
			node.Episodic = &episodic
		}
		if pr, err := s.store.GetProspective(n.ID); err == nil && pr != nil {
			node.Prospective = toProspective(pr)
		}
		nodes = append(nodes, node)
	}

	writeJSON(w, http.StatusOK, dto.GraphNodesResponse{Count: len(nodes), Nodes: nodes})
}

// handleGraphEdges implements GET /graph/edges?relation=&limit=.
func (s *Server) handleGraphEdges(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListAllEdges()
	if err != nil {
		writeError(w, apperr.NewStorageError("list edges", err))
		return
	}

	relation := r.URL.Query().Get("relation")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	out := make([]dto.Edge, 0, len(all))
	for _, e := range all {
		if relation != "" && e.Relation != relation {
			continue
		}
		out = append(out, dto.Edge{A: e.A, B: e.B, Relation: e.Relation, Weight: e.Weight, Metadata: e.MetadataJSON})
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, out)
}

// handleGraphStats implements GET /graph/stats.
func (s *Server) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	total, err := s.store.CountNotes()
	if err != nil {
		writeError(w, apperr.NewStorageError("count notes", err))
		return
	}
	edges, err := s.store.ListAllEdges()
	if err != nil {
		writeError(w, apperr.NewStorageError("list edges", err))
		return
	}

	byRelation := make(map[string]int)
	for _, e := range edges {
		byRelation[e.Relation]++
	}

	var resp dto.GraphStatsResponse
	resp.Nodes.Total = total
	resp.Edges.Total = len(edges)
	resp.Edges.ByRelation = byRelation
	writeJSON(w, http.StatusOK, resp)
}

// handleGraphCluster implements POST /graph/cluster?resolution=: runs C7
// and replaces all prior cluster state. A ClusteringFailure propagates as
// 5xx and leaves prior cluster state untouched, per spec.md §7.
func (s *Server) handleGraphCluster(w http.ResponseWriter, r *http.Request) {
	resolution := 1.0
	if v := r.URL.Query().Get("resolution"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			resolution = parsed
		}
	}

	notes, err := s.allNotes()
	if err != nil {
		writeError(w, apperr.NewStorageError("list notes", err))
		return
	}
	edges, err := s.store.ListAllEdges()
	if err != nil {
		writeError(w, apperr.NewStorageError("list edges", err))
		return
	}

	assignments, clusters := s.community.Detect(r.Context(), notes, edges, resolution)

	if err := s.store.DeleteAllClusters(); err != nil {
		writeError(w, apperr.NewStorageError("clear clusters", err))
		return
	}
	for _, c := range clusters {
		if err := s.store.UpsertCluster(c); err != nil {
			writeError(w, apperr.NewStorageError("upsert cluster", err))
			return
		}
	}
	for _, a := range assignments {
		if err := s.store.SetNoteCluster(a.NoteID, a.ClusterID); err != nil {
			writeError(w, apperr.NewStorageError("assign note cluster", err))
			return
		}
	}

	writeJSON(w, http.StatusOK, dto.ClusterResponse{ClustersCreated: len(clusters), TotalNodes: len(notes)})
}

// handleGraphClusters implements GET /graph/clusters.
func (s *Server) handleGraphClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := s.store.ListClusters()
	if err != nil {
		writeError(w, apperr.NewStorageError("list clusters", err))
		return
	}
	out := make([]dto.ClusterSummary, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, toClusterSummary(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGraphClusterDetail implements GET /graph/clusters/{id}.
func (s *Server) handleGraphClusterDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cluster, err := s.store.GetCluster(id)
	if err != nil {
		writeError(w, apperr.NewStorageError("get cluster", err))
		return
	}
	if cluster == nil {
		writeError(w, apperr.NewNotFoundError("cluster "+id))
		return
	}

	notes, err := s.allNotes()
	if err != nil {
		writeError(w, apperr.NewStorageError("list notes", err))
		return
	}
	var members []string
	for _, n := range notes {
		if n.ClusterID == id {
			members = append(members, n.ID)
		}
	}

	writeJSON(w, http.StatusOK, dto.ClusterDetail{ClusterSummary: toClusterSummary(cluster), MemberNoteIDs: members})
}

// handleRebuildEdges implements POST /graph/rebuild_edges: the manual
// recovery path for EmbeddingFailure/EdgeConstructionFailure, re-running
// C5+C6 for one note id synchronously.
func (s *Server) handleRebuildEdges(w http.ResponseWriter, r *http.Request) {
	var req dto.RebuildEdgesRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.ingest.RebuildEdges(r.Context(), req.NoteID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Package dto holds the request/response shapes for notegraphd's HTTP
// surface. Field names follow spec.md's bit-level contract (snake_case),
// which differs from the domain structs in internal/store (camelCase) -
// these types exist specifically to decouple the wire format from storage.
package dto

// CaptureNoteRequest is the body of POST /capture_note.
type CaptureNoteRequest struct {
	Text string `json:"text" validate:"required"`
}

// TimeRef is one resolved temporal mention.
type TimeRef struct {
	Original string `json:"original"`
	Parsed   *int64 `json:"parsed"`
	Kind     string `json:"kind"`
}

// Episodic is the who/what/where/when/tags payload for a note.
type Episodic struct {
	Who   []string  `json:"who"`
	What  []string  `json:"what"`
	Where []string  `json:"where"`
	When  []TimeRef `json:"when"`
	Tags  []string  `json:"tags"`
}

// ProspectiveItem is one future-oriented item.
type ProspectiveItem struct {
	Content  string `json:"content"`
	Timedata *int64 `json:"timedata"`
}

// Prospective is the contains_prospective/items payload for a note.
type Prospective struct {
	ContainsProspective bool              `json:"contains_prospective"`
	Items               []ProspectiveItem `json:"items"`
}

// CaptureNoteResponse is the body of POST /capture_note's 200 response.
type CaptureNoteResponse struct {
	NoteID   string   `json:"note_id"`
	Title    string   `json:"title"`
	Episodic Episodic `json:"episodic"`
	Path     string   `json:"path"`
}

// GraphNode is one entry in GET /graph/nodes.
type GraphNode struct {
	ID          string       `json:"id"`
	Path        string       `json:"path"`
	Created     int64        `json:"created"`
	Episodic    *Episodic    `json:"episodic,omitempty"`
	Prospective *Prospective `json:"prospective,omitempty"`
}

// GraphNodesResponse is the body of GET /graph/nodes.
type GraphNodesResponse struct {
	Count int         `json:"count"`
	Nodes []GraphNode `json:"nodes"`
}

// Edge is one entry in GET /graph/edges.
type Edge struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
	Metadata string  `json:"metadata,omitempty"`
}

// GraphStatsResponse is the body of GET /graph/stats.
type GraphStatsResponse struct {
	Nodes struct {
		Total int `json:"total"`
	} `json:"nodes"`
	Edges struct {
		Total      int            `json:"total"`
		ByRelation map[string]int `json:"by_relation"`
	} `json:"edges"`
}

// ClusterResponse is the body of POST /graph/cluster.
type ClusterResponse struct {
	ClustersCreated int `json:"clusters_created"`
	TotalNodes      int `json:"total_nodes"`
}

// ClusterSummary is one entry in GET /graph/clusters.
type ClusterSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Size    int    `json:"size"`
}

// ClusterDetail is the body of GET /graph/clusters/{id}.
type ClusterDetail struct {
	ClusterSummary
	MemberNoteIDs []string `json:"member_note_ids"`
}

// RebuildEdgesRequest is the body of POST /graph/rebuild_edges.
type RebuildEdgesRequest struct {
	NoteID string `json:"note_id" validate:"required"`
}

// Tag mirrors store.Tag with snake_case wire names.
type Tag struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ParentID   string `json:"parent_id,omitempty"`
	Level      int    `json:"level"`
	UseCount   int    `json:"use_count"`
	CreatedAt  int64  `json:"created_at"`
	LastUsedAt int64  `json:"last_used_at"`
	Source     string `json:"source"`
	ChildCount int    `json:"child_count,omitempty"`
	ParentName string `json:"parent_name,omitempty"`
}

// TagSearchHit is one entry in GET /tags/search.
type TagSearchHit struct {
	Tag  Tag    `json:"tag"`
	Tier string `json:"tier"`
}

// CreateTagRequest is the body of POST /tags.
type CreateTagRequest struct {
	Name   string `json:"name" validate:"required"`
	Source string `json:"source"`
}

// RenameTagRequest is the body of PUT /tags/{id}.
type RenameTagRequest struct {
	Name string `json:"name" validate:"required"`
}

// MergeTagsRequest is the body of POST /tags/merge.
type MergeTagsRequest struct {
	SourceIDs  []string `json:"source_ids" validate:"required,min=1"`
	TargetName string   `json:"target_name" validate:"required"`
}

// TagStats is the body of GET /tags/stats.
type TagStats struct {
	Active  int `json:"active"`
	Recent  int `json:"recent"`
	Stale   int `json:"stale"`
	Dormant int `json:"dormant"`
}

// NoteSummary is one entry in GET /tags/{id}/notes.
type NoteSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Path    string `json:"path"`
	Created int64  `json:"created"`
}

// AddNoteTagRequest is the body of POST /notes/{id}/tags.
type AddNoteTagRequest struct {
	Name string `json:"name" validate:"required"`
}

// SearchRequest is the body of POST /search and POST /synthesize.
type SearchRequest struct {
	Query       string `json:"query" validate:"required"`
	TopK        int    `json:"top_k"`
	ExpandGraph *bool  `json:"expand_graph"`
	Hops        int    `json:"hops"`
}

// ScoredResult is one primary search hit.
type ScoredResult struct {
	NoteID      string  `json:"note_id"`
	Title       string  `json:"title"`
	FTSScore    float64 `json:"fts_score"`
	VectorScore float64 `json:"vector_score"`
	Score       float64 `json:"score"`
}

// ExpandedResult is one graph-expansion hit.
type ExpandedResult struct {
	NoteID       string  `json:"note_id"`
	Title        string  `json:"title"`
	Score        float64 `json:"score"`
	Relation     string  `json:"relation"`
	HopDistance  int     `json:"hop_distance"`
	ParentNoteID string  `json:"parent_note_id"`
}

// SearchResponse is the body of POST /search.
type SearchResponse struct {
	Query           string           `json:"query"`
	Primary         []ScoredResult   `json:"primary"`
	Expanded        []ExpandedResult `json:"expanded"`
	Clusters        []ClusterSummary `json:"clusters"`
	TotalResults    int              `json:"total_results"`
	ExecutionTimeMS int64            `json:"execution_time_ms"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	NoteID  string                 `json:"note_id,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

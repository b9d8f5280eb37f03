// Package store provides SQLite-backed persistence for the note graph.
// Uses ncruces/go-sqlite3's database/sql driver (pure Go, no cgo) with the
// sqlite-vec extension registered so the brute-force similarity scan
// documented in internal/embed has a drop-in ANN replacement path.
package store

// Note is the fundamental content unit. The database is authoritative for
// all metadata; the markdown file on disk (see Note.Path) holds the body.
type Note struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Path      string `json:"path"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	ClusterID string `json:"clusterId,omitempty"`
}

// TimeReference is a single parsed temporal mention from a note body.
type TimeReference struct {
	Original string `json:"original"`
	Parsed   *int64 `json:"parsed"` // Unix millis, nil when unresolvable
	Kind     string `json:"kind"`   // absolute, relative, duration, recurring
}

const (
	TimeKindAbsolute  = "absolute"
	TimeKindRelative  = "relative"
	TimeKindDuration  = "duration"
	TimeKindRecurring = "recurring"
)

// EpisodicMetadata is objective "what IS in the text": who/what/where/when,
// plus the note's title and the verbatim hashtags found in its body.
type EpisodicMetadata struct {
	NoteID string          `json:"noteId"`
	Who    []string        `json:"who"`
	What   []string        `json:"what"`
	Where  []string        `json:"where"`
	When   []TimeReference `json:"when"`
	Tags   []string        `json:"tags"`
	Title  string          `json:"title"`
}

// ProspectiveItem is one future-oriented item (action/question/plan).
type ProspectiveItem struct {
	Content  string `json:"content"`
	Timedata *int64 `json:"timedata"` // Unix millis, must match an episodic When.Parsed
}

// ProspectiveMetadata is future-oriented metadata extracted from a note.
// It never feeds edge construction - internal/edges.NoteContext carries
// only entities, tag names and embeddings.
type ProspectiveMetadata struct {
	NoteID              string            `json:"noteId"`
	ContainsProspective bool              `json:"containsProspective"`
	Items               []ProspectiveItem `json:"items"`
}

// Tag is a hierarchical, user-facing label. Name is canonical: lowercase,
// slash-delimited ("project/backend"). Level is the slash depth, 0-based.
type Tag struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ParentID   string `json:"parentId,omitempty"`
	Level      int    `json:"level"`
	UseCount   int    `json:"useCount"`
	CreatedAt  int64  `json:"createdAt"`
	LastUsedAt int64  `json:"lastUsedAt"`
	Source     string `json:"source"` // user, detected, suggested

	// Populated only by queries that join tags_with_hierarchy.
	ChildCount int    `json:"childCount,omitempty"`
	ParentName string `json:"parentName,omitempty"`
}

const (
	TagSourceUser      = "user"
	TagSourceDetected  = "detected"
	TagSourceSuggested = "suggested"
)

// NoteTag is the join row between a note and a canonical tag.
type NoteTag struct {
	NoteID    string `json:"noteId"`
	TagID     string `json:"tagId"`
	CreatedAt int64  `json:"createdAt"`
	Source    string `json:"source"`
}

// TagUsageStats buckets tags by last-use recency, in days since LastUsedAt.
type TagUsageStats struct {
	Active  int `json:"active"`  // <= 7 days
	Recent  int `json:"recent"`  // 8-30 days
	Stale   int `json:"stale"`   // 31-90 days
	Dormant int `json:"dormant"` // > 90 days
}

// Relation names for graph edges.
const (
	RelationSemantic   = "semantic"
	RelationEntityLink = "entity_link"
	RelationTagLink    = "tag_link"
)

// Edge is an undirected, typed relation between two distinct notes, always
// stored in canonical orientation (A < B lexicographically).
type Edge struct {
	A            string  `json:"a"`
	B            string  `json:"b"`
	Relation     string  `json:"relation"`
	Weight       float64 `json:"weight"`
	MetadataJSON string  `json:"metadata,omitempty"`
	CreatedAt    int64   `json:"createdAt"`
}

// Cluster is a regenerated community of notes, labeled by an LLM.
type Cluster struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Size      int    `json:"size"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// LLM operation kinds, used for LLMOperation.Kind and audit filtering.
const (
	LLMOpEpisodic     = "episodic"
	LLMOpProspective  = "prospective"
	LLMOpClusterTitle = "cluster_title"
	LLMOpSynthesis    = "synthesis"
)

// LLMOperation audits a single LLM call made while processing a note.
type LLMOperation struct {
	ID               string  `json:"id"`
	NoteID           string  `json:"noteId,omitempty"`
	Kind             string  `json:"kind"`
	PromptText       string  `json:"promptText"`
	RawResponse      string  `json:"rawResponse"`
	ParsedOutputJSON string  `json:"parsedOutputJson,omitempty"`
	TokensIn         int     `json:"tokensIn"`
	TokensOut        int     `json:"tokensOut"`
	DurationMS       int64   `json:"durationMs"`
	CostUSD          float64 `json:"costUsd"`
	CreatedAt        int64   `json:"createdAt"`
}

// SearchHit is one full-text match from the notes_fts virtual table.
type SearchHit struct {
	NoteID  string  `json:"noteId"`
	Score   float64 `json:"score"` // bm25-family score, more negative is better
	Snippet string  `json:"snippet"`
}

// Embedding is a fixed-dimension dense vector attached to a note.
type Embedding struct {
	NoteID string    `json:"noteId"`
	Vector []float32 `json:"vector"`
	Model  string    `json:"model"`
}

// Storer defines persistence for every component of the note graph. The
// concrete SQLiteStore is the sole implementation; domain packages depend
// on this interface so they can be exercised against fakes in tests.
type Storer interface {
	// Notes
	CreateNote(note *Note) error
	UpdateNote(note *Note) error
	GetNote(id string) (*Note, error)
	DeleteNote(id string) error
	ListNotes(limit, offset int) ([]*Note, error)
	CountNotes() (int, error)
	SetNoteCluster(noteID, clusterID string) error

	// Full text search
	IndexNoteBody(noteID, title, body string) error
	SearchFTS(query string, limit int) ([]SearchHit, error)

	// Episodic / prospective metadata
	UpsertEpisodic(meta *EpisodicMetadata) error
	GetEpisodic(noteID string) (*EpisodicMetadata, error)
	UpsertProspective(meta *ProspectiveMetadata) error
	GetProspective(noteID string) (*ProspectiveMetadata, error)

	// Tags
	GetOrCreateTag(name, source string) (*Tag, error)
	GetTag(id string) (*Tag, error)
	GetTagByName(name string) (*Tag, error)
	TouchTag(tagID string) error
	RenameTag(tagID, newName string) error
	MergeTags(fromID, intoID string) error
	DeleteTag(tagID string) error
	ListTags() ([]*Tag, error)
	ListChildTags(parentID string) ([]*Tag, error)
	TagUsageStats() (*TagUsageStats, error)

	// Note-tag associations
	AddNoteTag(nt *NoteTag) error
	RemoveNoteTag(noteID, tagID string) error
	ListTagsForNote(noteID string) ([]*Tag, error)
	ListNotesForTag(tagID string) ([]*Note, error)

	// Embeddings
	UpsertEmbedding(emb *Embedding) error
	GetEmbedding(noteID string) (*Embedding, error)
	ListEmbeddings() ([]*Embedding, error)

	// Edges
	UpsertEdge(edge *Edge) error
	DeleteEdgesForRelation(noteID, relation string) error
	ListEdgesForNote(noteID string) ([]*Edge, error)
	ListAllEdges() ([]*Edge, error)

	// Clusters
	UpsertCluster(c *Cluster) error
	GetCluster(id string) (*Cluster, error)
	ListClusters() ([]*Cluster, error)
	DeleteAllClusters() error

	// LLM audit trail
	RecordLLMOperation(op *LLMOperation) error

	// Lifecycle
	Close() error
}

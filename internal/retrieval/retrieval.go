// Package retrieval implements the hybrid retriever (C8): FTS and vector
// scores fused into one ranking, then an optional graph BFS expansion
// around the fused primary set. Grounded structurally on the teacher's
// multi-pass pipeline idiom (read from pkg/scanner/conductor before that
// package was deleted as non-compiling in the pack) - scan, then refine,
// then expand, as separate named steps rather than one monolithic query.
package retrieval

import (
	"container/heap"
	"sort"

	"github.com/notegraph/notegraph/internal/embed"
	"github.com/notegraph/notegraph/internal/store"
)

// Default fusion weights and hop decay, used when a caller passes a zero
// Params. Per spec.md's open question, these are configuration values
// rather than compiled-in constants - pkg/config.RetrievalConfig is the
// source of truth at runtime; these defaults only cover callers (and
// tests) that don't thread config through.
const (
	defaultFTSWeight    = 0.4
	defaultVectorWeight = 0.6
	defaultHopDecay     = 0.5
)

var edgePriority = map[string]int{
	store.RelationEntityLink: 0,
	store.RelationSemantic:   1,
	store.RelationTagLink:    2,
}

// Params tunes fusion and expansion. A zero Params (FTSWeight == 0 and
// VectorWeight == 0) falls back to the package defaults above.
type Params struct {
	FTSWeight    float64
	VectorWeight float64
	HopDecay     float64
}

func (p Params) withDefaults() Params {
	if p.FTSWeight == 0 && p.VectorWeight == 0 {
		p.FTSWeight, p.VectorWeight = defaultFTSWeight, defaultVectorWeight
	}
	if p.HopDecay == 0 {
		p.HopDecay = defaultHopDecay
	}
	return p
}

// Result is a single scored note in the response. FTSScore and VectorScore
// are the pre-fusion components, each normalized to [0,1], kept alongside
// the fused Score so the HTTP layer can report all three per the bit-level
// contract.
type Result struct {
	NoteID      string
	Score       float64
	FTSScore    float64
	VectorScore float64
	CreatedAt   int64
}

// ExpandedResult is a graph-expansion hit, labeled with how it was reached.
type ExpandedResult struct {
	NoteID       string
	Score        float64
	Relation     string
	HopDistance  int
	ParentNoteID string
}

// Response is the full shape returned to the HTTP layer for a search.
type Response struct {
	Primary  []Result
	Expanded []ExpandedResult
	Clusters []*store.Cluster
}

// Store is the subset of store.Storer the retriever reads through.
type Store interface {
	ListEdgesForNote(noteID string) ([]*store.Edge, error)
	GetNote(id string) (*store.Note, error)
	GetCluster(id string) (*store.Cluster, error)
}

// Search runs the full hybrid retrieval pipeline: FTS + vector fusion,
// then (if expandGraph) BFS expansion up to hops (clamped to [1,2]). The
// caller has already run the FTS query (ftsHits) and embedded the query
// text (queryVector, empty if embedding is unavailable) - this package
// owns fusion, ranking, and expansion, not query execution.
func Search(s Store, ftsHits []store.SearchHit, queryVector []float32, allEmbeddings []*store.Embedding, k int, expandGraph bool, hops int, params Params) (*Response, error) {
	params = params.withDefaults()
	if hops < 1 {
		hops = 1
	}
	if hops > 2 {
		hops = 2
	}
	if k <= 0 {
		k = 10
	}

	fused := fuseScores(ftsHits, queryVector, allEmbeddings, 4*k, params)

	for i := range fused {
		if note, err := s.GetNote(fused[i].NoteID); err == nil && note != nil {
			fused[i].CreatedAt = note.CreatedAt
		}
	}
	sortWithTieBreak(fused)

	primary := fused
	if len(primary) > k {
		primary = primary[:k]
	}

	resp := &Response{Primary: primary}
	if expandGraph && len(primary) > 0 {
		resp.Expanded = expand(s, primary, hops, params)
	}

	clusterIDs := make(map[string]bool)
	for _, p := range primary {
		note, err := s.GetNote(p.NoteID)
		if err != nil || note == nil || note.ClusterID == "" {
			continue
		}
		if clusterIDs[note.ClusterID] {
			continue
		}
		clusterIDs[note.ClusterID] = true
		if c, err := s.GetCluster(note.ClusterID); err == nil && c != nil {
			resp.Clusters = append(resp.Clusters, c)
		}
	}

	return resp, nil
}

func fuseScores(ftsHits []store.SearchHit, queryVector []float32, allEmbeddings []*store.Embedding, limit int, params Params) []Result {
	ftsTop := ftsHits
	if len(ftsTop) > limit {
		ftsTop = ftsTop[:limit]
	}
	// notes_fts's bm25() returns a score that is <= 0, more negative for a
	// better match (store.SQLiteStore.SearchFTS orders ascending on it for
	// that reason). The "top score" to normalize against is therefore the
	// most negative value, not the largest - tracking a plain running max
	// against a zero-seeded accumulator would never move off 0.
	var ftsBest float64
	haveBest := false
	for _, h := range ftsTop {
		if !haveBest || h.Score < ftsBest {
			ftsBest = h.Score
			haveBest = true
		}
	}

	ftsNorm := make(map[string]float64, len(ftsTop))
	for _, h := range ftsTop {
		if ftsBest != 0 {
			ftsNorm[h.NoteID] = h.Score / ftsBest
		}
	}

	vectorScores := make(map[string]float64)
	if len(queryVector) > 0 {
		scored := embed.TopKSimilar(queryVector, allEmbeddings, "", limit)
		for _, sc := range scored {
			vectorScores[sc.NoteID] = sc.Score
		}
	}

	combined := make(map[string]float64)
	for id, v := range ftsNorm {
		combined[id] += params.FTSWeight * v
	}
	for id, v := range vectorScores {
		combined[id] += params.VectorWeight * v
	}

	out := make([]Result, 0, len(combined))
	for id, score := range combined {
		out = append(out, Result{NoteID: id, Score: score, FTSScore: ftsNorm[id], VectorScore: vectorScores[id]})
	}
	return out
}

// sortWithTieBreak applies the spec's tie-break rule: fused score
// descending, then created-at descending (newer first), then note id
// ascending for a fully deterministic order.
func sortWithTieBreak(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.NoteID < b.NoteID
	})
}

type bfsItem struct {
	noteID   string
	score    float64
	hop      int
	priority int
}

type bfsQueue []bfsItem

func (q bfsQueue) Len() int { return len(q) }
func (q bfsQueue) Less(i, j int) bool {
	if q[i].hop != q[j].hop {
		return q[i].hop < q[j].hop
	}
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].score > q[j].score
}
func (q bfsQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *bfsQueue) Push(x interface{}) { *q = append(*q, x.(bfsItem)) }
func (q *bfsQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// expand performs BFS from the primary result set along edges in priority
// order entity_link > semantic > tag_link, applying a 0.5-per-hop decay
// beyond the first hop and excluding notes already in the primary set.
func expand(s Store, primary []Result, maxHops int, params Params) []ExpandedResult {
	inPrimary := make(map[string]bool, len(primary))
	for _, p := range primary {
		inPrimary[p.NoteID] = true
	}

	visited := make(map[string]bool)
	q := &bfsQueue{}
	heap.Init(q)
	for _, p := range primary {
		heap.Push(q, bfsItem{noteID: p.NoteID, score: p.Score, hop: 0})
	}

	var out []ExpandedResult
	for q.Len() > 0 {
		item := heap.Pop(q).(bfsItem)
		if item.hop >= maxHops {
			continue
		}

		edges, err := s.ListEdgesForNote(item.noteID)
		if err != nil {
			continue
		}
		sort.Slice(edges, func(i, j int) bool { return edgePriority[edges[i].Relation] < edgePriority[edges[j].Relation] })

		for _, e := range edges {
			neighbor := e.A
			if neighbor == item.noteID {
				neighbor = e.B
			}
			if inPrimary[neighbor] || visited[neighbor] {
				continue
			}
			visited[neighbor] = true

			decay := 1.0
			if item.hop+1 > 1 {
				decay = params.HopDecay
			}
			score := item.score * e.Weight * decay

			out = append(out, ExpandedResult{
				NoteID: neighbor, Score: score, Relation: e.Relation,
				HopDistance: item.hop + 1, ParentNoteID: item.noteID,
			})
			heap.Push(q, bfsItem{noteID: neighbor, score: score, hop: item.hop + 1, priority: edgePriority[e.Relation]})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NoteID < out[j].NoteID
	})
	return out
}

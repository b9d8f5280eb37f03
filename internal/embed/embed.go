// Package embed generates and compares dense vector embeddings for note
// text (C5). Embeddings are L2-normalized on generation so that cosine
// similarity reduces to a plain dot product everywhere downstream.
//
// Similarity search here is a brute-force O(n) scan over every stored
// embedding, matching how KittClouds-Go-Machine-n's store layer favors
// a single SQL/Go pass over building a secondary index structure. This is
// fine at note-collection scale (thousands, not millions) and is the
// documented swap point: github.com/asg017/sqlite-vec-go-bindings is
// already blank-imported by internal/store, which registers the sqlite-vec
// extension; embeddings sit in a plain BLOB table with no vec0 virtual
// table, and replacing TopKSimilar's Go loop with a
// `SELECT ... ORDER BY vec_distance_cosine(...)` query is a storage-layer
// change only, with no change to this package's exported API.
package embed

import (
	"context"
	"math"

	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/pkg/apperr"
	"github.com/notegraph/notegraph/pkg/config"
)

// Service generates and compares note embeddings.
type Service struct {
	llm       *llm.Client
	model     string
	dimension int
}

func New(client *llm.Client, cfg config.EmbeddingConfig) *Service {
	return &Service{llm: client, model: cfg.Model, dimension: cfg.Dimension}
}

// Embed generates a single L2-normalized embedding vector for text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.llm.Embeddings(ctx, s.model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, apperr.NewEmbeddingFailure("", errNoVectors)
	}
	return normalize(vectors[0]), nil
}

var errNoVectors = apperr.NewInternalError("embedding backend returned no vectors")

// normalize scales v to unit length so later cosine comparisons are plain
// dot products. A zero vector is returned unchanged to avoid a NaN split.
func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	norm := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Cosine computes the cosine similarity of two unit-normalized vectors
// (equivalent to their dot product). Vectors of mismatched length score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Scored pairs a note id with its similarity score against a query vector.
type Scored struct {
	NoteID string
	Score  float64
}

// TopKSimilar brute-force scans every stored embedding and returns the k
// highest-scoring notes against query, excluding excludeNoteID (typically
// the note the query vector came from). Ties break on note id for
// determinism.
func TopKSimilar(query []float32, all []*store.Embedding, excludeNoteID string, k int) []Scored {
	scored := make([]Scored, 0, len(all))
	for _, e := range all {
		if e.NoteID == excludeNoteID {
			continue
		}
		scored = append(scored, Scored{NoteID: e.NoteID, Score: Cosine(query, e.Vector)})
	}

	for i := 1; i < len(scored); i++ {
		for j := i; j > 0; j-- {
			if better(scored[j], scored[j-1]) {
				scored[j], scored[j-1] = scored[j-1], scored[j]
			} else {
				break
			}
		}
	}

	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

func better(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.NoteID < b.NoteID
}

// Package edges builds the three edge classes (semantic, entity_link,
// tag_link) that connect a single new note to the rest of the graph
// (C6). It runs in the background after embedding generation and only
// touches edges that have the note it was invoked for as an endpoint:
// Build deletes and recomputes those, and edges between any other pair of
// notes are never modified.
package edges

import (
	"sort"
	"strings"

	"github.com/notegraph/notegraph/internal/embed"
	"github.com/notegraph/notegraph/internal/normalize"
	"github.com/notegraph/notegraph/internal/store"
)

const (
	defaultSemanticThreshold = 0.5
	defaultTagJaccardFloor   = 0.3
)

// Thresholds tunes edge-creation cutoffs. A zero Thresholds (both fields
// zero) falls back to the package defaults above. Per spec.md's open
// question about the fusion weights being configuration rather than
// compiled-in constants, the same reasoning applies here -
// pkg/config.RetrievalConfig's SemanticThresh/TagJaccardThresh are the
// runtime source of truth.
type Thresholds struct {
	Semantic   float64
	TagJaccard float64
}

func (t Thresholds) withDefaults() Thresholds {
	if t.Semantic == 0 {
		t.Semantic = defaultSemanticThreshold
	}
	if t.TagJaccard == 0 {
		t.TagJaccard = defaultTagJaccardFloor
	}
	return t
}

// NoteContext bundles the pieces of a note the edge builder needs:
// its entity mentions (who/what/where, pre-normalization), its tag set,
// and (for the candidate side) its embedding vector.
type NoteContext struct {
	NoteID    string
	Entities  []string
	TagNames  []string
	Embedding []float32
}

// Store is the subset of store.Storer the edge builder writes through.
type Store interface {
	UpsertEdge(edge *store.Edge) error
	DeleteEdgesForRelation(noteID, relation string) error
}

// Build computes semantic, entity_link, and tag_link edges between target
// and every note in candidates, writing them via s. It deletes and
// recomputes target's own edges for each relation first so that retrying
// (e.g. via a manual rebuild_edges call) is idempotent rather than
// additive.
func Build(s Store, target NoteContext, targetEmbedding []float32, candidates []NoteContext, candidateEmbeddings map[string][]float32, createdAtMS int64, thresholds Thresholds) error {
	thresholds = thresholds.withDefaults()
	for _, relation := range []string{store.RelationSemantic, store.RelationEntityLink, store.RelationTagLink} {
		if err := s.DeleteEdgesForRelation(target.NoteID, relation); err != nil {
			return err
		}
	}

	targetEntities := normalizeSet(target.Entities)
	targetTags := normalizeSet(target.TagNames)

	for _, candidate := range candidates {
		if candidate.NoteID == target.NoteID {
			continue
		}

		if vec, ok := candidateEmbeddings[candidate.NoteID]; ok && len(targetEmbedding) > 0 {
			if score := embed.Cosine(targetEmbedding, vec); score >= thresholds.Semantic {
				if err := upsertEdge(s, target.NoteID, candidate.NoteID, store.RelationSemantic, score, "", createdAtMS); err != nil {
					return err
				}
			}
		}

		candidateEntities := normalizeSet(candidate.Entities)
		if shared := intersect(targetEntities, candidateEntities); len(shared) > 0 {
			meta := metadataJSON(shared)
			if err := upsertEdge(s, target.NoteID, candidate.NoteID, store.RelationEntityLink, float64(len(shared)), meta, createdAtMS); err != nil {
				return err
			}
		}

		candidateTags := normalizeSet(candidate.TagNames)
		if jaccard := jaccardSimilarity(targetTags, candidateTags); jaccard >= thresholds.TagJaccard {
			shared := intersect(targetTags, candidateTags)
			meta := metadataJSON(shared)
			if err := upsertEdge(s, target.NoteID, candidate.NoteID, store.RelationTagLink, jaccard, meta, createdAtMS); err != nil {
				return err
			}
		}
	}

	return nil
}

func upsertEdge(s Store, noteA, noteB, relation string, weight float64, metadataJSON string, createdAtMS int64) error {
	a, b := noteA, noteB
	if a > b {
		a, b = b, a
	}
	return s.UpsertEdge(&store.Edge{
		A: a, B: b, Relation: relation, Weight: weight,
		MetadataJSON: metadataJSON, CreatedAt: createdAtMS,
	})
}

func normalizeSet(items []string) map[string]string {
	out := make(map[string]string, len(items))
	for _, item := range items {
		key := normalize.ForMatch(item)
		if key == "" || normalize.IsStopword(key) {
			continue
		}
		if _, exists := out[key]; !exists {
			out[key] = item
		}
	}
	return out
}

// intersect returns the original-cased labels (from a) for keys shared
// between the two normalized sets, sorted for deterministic metadata.
func intersect(a, b map[string]string) []string {
	shared := make([]string, 0)
	for key, label := range a {
		if _, ok := b[key]; ok {
			shared = append(shared, strings.ToLower(label))
		}
	}
	sort.Strings(shared)
	return shared
}

func jaccardSimilarity(a, b map[string]string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for key := range a {
		if _, ok := b[key]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func metadataJSON(shared []string) string {
	if len(shared) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, s := range shared {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(s, `"`, `\"`))
		b.WriteByte('"')
	}
	b.WriteByte(']')
	return b.String()
}

package retrieval

import (
	"testing"

	"github.com/notegraph/notegraph/internal/store"
)

type fakeStore struct {
	notes    map[string]*store.Note
	edges    map[string][]*store.Edge
	clusters map[string]*store.Cluster
}

func (f *fakeStore) ListEdgesForNote(noteID string) ([]*store.Edge, error) {
	return f.edges[noteID], nil
}

func (f *fakeStore) GetNote(id string) (*store.Note, error) {
	return f.notes[id], nil
}

func (f *fakeStore) GetCluster(id string) (*store.Cluster, error) {
	return f.clusters[id], nil
}

func TestFuseScoresCombinesFTSAndVector(t *testing.T) {
	ftsHits := []store.SearchHit{{NoteID: "a", Score: 10}, {NoteID: "b", Score: 5}}
	allEmbeddings := []*store.Embedding{
		{NoteID: "a", Vector: []float32{1, 0}},
		{NoteID: "c", Vector: []float32{1, 0}},
	}
	query := []float32{1, 0}

	results := fuseScores(ftsHits, query, allEmbeddings, 10, Params{}.withDefaults())

	byID := make(map[string]float64, len(results))
	for _, r := range results {
		byID[r.NoteID] = r.Score
	}

	if byID["a"] <= byID["b"] {
		t.Errorf("expected 'a' (fts+vector) to outscore 'b' (fts only), got a=%f b=%f", byID["a"], byID["b"])
	}
	if _, ok := byID["c"]; !ok {
		t.Errorf("expected 'c' (vector only) to appear in fused results")
	}
}

// TestFuseScoresNormalizesNegativeBM25Scores pins bm25()'s actual
// convention (more negative is a better match) against real-shaped
// scores, not the fabricated positive ones above - a zero-seeded "running
// max" guard would silently zero out every FTS contribution here.
func TestFuseScoresNormalizesNegativeBM25Scores(t *testing.T) {
	ftsHits := []store.SearchHit{
		{NoteID: "best", Score: -8.4},
		{NoteID: "mid", Score: -3.2},
		{NoteID: "worst", Score: -0.5},
	}

	results := fuseScores(ftsHits, nil, nil, 10, Params{}.withDefaults())

	byID := make(map[string]float64, len(results))
	for _, r := range results {
		byID[r.NoteID] = r.FTSScore
	}

	if byID["best"] != 1.0 {
		t.Fatalf("expected the most negative bm25 score to normalize to 1.0, got %f", byID["best"])
	}
	if byID["mid"] <= 0 || byID["mid"] >= byID["best"] {
		t.Fatalf("expected mid's normalized score strictly between 0 and 1, got %f", byID["mid"])
	}
	if byID["worst"] <= 0 || byID["worst"] >= byID["mid"] {
		t.Fatalf("expected worst < mid in normalized score, got worst=%f mid=%f", byID["worst"], byID["mid"])
	}
}

func TestSortWithTieBreak(t *testing.T) {
	results := []Result{
		{NoteID: "z", Score: 0.5, CreatedAt: 100},
		{NoteID: "a", Score: 0.5, CreatedAt: 200},
		{NoteID: "m", Score: 0.9, CreatedAt: 50},
	}
	sortWithTieBreak(results)
	if results[0].NoteID != "m" {
		t.Fatalf("expected highest score first, got %+v", results)
	}
	if results[1].NoteID != "a" || results[2].NoteID != "z" {
		t.Fatalf("expected tie broken by newer created-at first, got %+v", results)
	}
}

func TestExpandReachesFirstHopNeighborsOverEveryRelation(t *testing.T) {
	fs := &fakeStore{
		edges: map[string][]*store.Edge{
			"primary": {
				{A: "primary", B: "far", Relation: store.RelationTagLink, Weight: 1.0},
				{A: "entity", B: "primary", Relation: store.RelationEntityLink, Weight: 1.0},
			},
			"far":    {{A: "primary", B: "far", Relation: store.RelationTagLink, Weight: 1.0}},
			"entity": {{A: "entity", B: "primary", Relation: store.RelationEntityLink, Weight: 1.0}},
		},
	}

	primary := []Result{{NoteID: "primary", Score: 1.0}}
	expanded := expand(fs, primary, 2, Params{}.withDefaults())

	if len(expanded) != 2 {
		t.Fatalf("expected 2 expanded notes, got %+v", expanded)
	}

	var entityHit, tagHit *ExpandedResult
	for i := range expanded {
		switch expanded[i].NoteID {
		case "entity":
			entityHit = &expanded[i]
		case "far":
			tagHit = &expanded[i]
		}
	}
	if entityHit == nil || tagHit == nil {
		t.Fatalf("expected both neighbors present, got %+v", expanded)
	}
	if entityHit.HopDistance != 1 || tagHit.HopDistance != 1 {
		t.Errorf("expected both at hop 1, got entity=%d tag=%d", entityHit.HopDistance, tagHit.HopDistance)
	}
}

func TestExpandExcludesPrimarySet(t *testing.T) {
	fs := &fakeStore{
		edges: map[string][]*store.Edge{
			"a": {{A: "a", B: "b", Relation: store.RelationSemantic, Weight: 0.8}},
			"b": {{A: "a", B: "b", Relation: store.RelationSemantic, Weight: 0.8}},
		},
	}
	primary := []Result{{NoteID: "a", Score: 1.0}, {NoteID: "b", Score: 0.9}}
	expanded := expand(fs, primary, 1, Params{}.withDefaults())
	if len(expanded) != 0 {
		t.Fatalf("expected no expansion when all neighbors already primary, got %+v", expanded)
	}
}

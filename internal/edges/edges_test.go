package edges

import (
	"testing"

	"github.com/notegraph/notegraph/internal/store"
)

type fakeStore struct {
	upserted []*store.Edge
	deleted  []string
}

func (f *fakeStore) UpsertEdge(e *store.Edge) error {
	f.upserted = append(f.upserted, e)
	return nil
}

func (f *fakeStore) DeleteEdgesForRelation(noteID, relation string) error {
	f.deleted = append(f.deleted, noteID+":"+relation)
	return nil
}

func TestBuildSemanticEdge(t *testing.T) {
	fs := &fakeStore{}
	target := NoteContext{NoteID: "n2"}
	targetVec := []float32{1, 0}
	candidates := []NoteContext{{NoteID: "n1"}}
	candidateVecs := map[string][]float32{"n1": {0.95, 0.312}}

	if err := Build(fs, target, targetVec, candidates, candidateVecs, 1000, Thresholds{}); err != nil {
		t.Fatalf("build: %v", err)
	}

	found := false
	for _, e := range fs.upserted {
		if e.Relation == store.RelationSemantic {
			found = true
			if e.A != "n1" || e.B != "n2" {
				t.Errorf("expected canonical orientation n1<n2, got %s/%s", e.A, e.B)
			}
		}
	}
	if !found {
		t.Errorf("expected a semantic edge above threshold, got %+v", fs.upserted)
	}
}

func TestBuildEntityLinkEdge(t *testing.T) {
	fs := &fakeStore{}
	target := NoteContext{NoteID: "b", Entities: []string{"Sarah", "FAISS"}}
	candidates := []NoteContext{{NoteID: "a", Entities: []string{"sarah", "faiss-index"}}}

	if err := Build(fs, target, nil, candidates, nil, 1000, Thresholds{}); err != nil {
		t.Fatalf("build: %v", err)
	}

	var edge *store.Edge
	for _, e := range fs.upserted {
		if e.Relation == store.RelationEntityLink {
			edge = e
		}
	}
	if edge == nil {
		t.Fatalf("expected an entity_link edge, got %+v", fs.upserted)
	}
	if edge.Weight != 1 {
		t.Errorf("expected weight 1 (only 'sarah' shared, faiss != faiss-index), got %f", edge.Weight)
	}
}

func TestBuildTagLinkEdgeBelowThresholdSkipped(t *testing.T) {
	fs := &fakeStore{}
	target := NoteContext{NoteID: "b", TagNames: []string{"go", "backend", "infra", "testing"}}
	candidates := []NoteContext{{NoteID: "a", TagNames: []string{"go"}}}

	if err := Build(fs, target, nil, candidates, nil, 1000, Thresholds{}); err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, e := range fs.upserted {
		if e.Relation == store.RelationTagLink {
			t.Fatalf("expected no tag_link edge below jaccard floor, got %+v", e)
		}
	}
}

func TestBuildTagLinkEdgeAboveThreshold(t *testing.T) {
	fs := &fakeStore{}
	target := NoteContext{NoteID: "b", TagNames: []string{"go", "backend"}}
	candidates := []NoteContext{{NoteID: "a", TagNames: []string{"go", "backend", "infra"}}}

	if err := Build(fs, target, nil, candidates, nil, 1000, Thresholds{}); err != nil {
		t.Fatalf("build: %v", err)
	}
	found := false
	for _, e := range fs.upserted {
		if e.Relation == store.RelationTagLink {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a tag_link edge, got %+v", fs.upserted)
	}
}

func TestBuildDeletesExistingEdgesFirst(t *testing.T) {
	fs := &fakeStore{}
	target := NoteContext{NoteID: "n1"}
	if err := Build(fs, target, nil, nil, nil, 1000, Thresholds{}); err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(fs.deleted) != 3 {
		t.Fatalf("expected 3 relation deletes (one per edge class), got %v", fs.deleted)
	}
}

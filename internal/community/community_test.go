package community

import (
	"context"
	"testing"

	"github.com/notegraph/notegraph/internal/store"
)

func TestEntityLinkNormalizer(t *testing.T) {
	if got := entityLinkNormalizer(1); got != 0.5 {
		t.Errorf("expected 0.5 for weight 1, got %f", got)
	}
	if got := entityLinkNormalizer(0); got != 0 {
		t.Errorf("expected 0 for weight 0, got %f", got)
	}
}

func TestParseLabelValidJSON(t *testing.T) {
	title, summary, ok := parseLabel(`{"title": "Backend infra work", "summary": "Notes about service deployment."}`)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if title != "Backend infra work" || summary != "Notes about service deployment." {
		t.Errorf("unexpected parse result: %q / %q", title, summary)
	}
}

func TestParseLabelCodeFence(t *testing.T) {
	_, _, ok := parseLabel("```json\n" + `{"title": "Travel plans", "summary": "Trip logistics."}` + "\n```")
	if !ok {
		t.Fatalf("expected parse to succeed through code fence")
	}
}

func TestParseLabelInvalid(t *testing.T) {
	if _, _, ok := parseLabel("not json"); ok {
		t.Errorf("expected invalid input to fail")
	}
}

func TestFallbackLabelUsesTopThreeCentral(t *testing.T) {
	degree := map[string]int{"a": 5, "b": 1, "c": 3, "d": 2}
	idByTitle := map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"}
	title, summary := fallbackLabel("cl_2", []string{"A", "B", "C", "D"}, degree, idByTitle)
	if title != "Cluster #2" {
		t.Errorf("expected deterministic title, got %q", title)
	}
	if summary != "A, C, D" {
		t.Errorf("expected top 3 by degree (A=5,C=3,D=2), got %q", summary)
	}
}

func TestDetectSingletonsAndPairs(t *testing.T) {
	notes := []*store.Note{
		{ID: "n1", Title: "Alpha"},
		{ID: "n2", Title: "Beta"},
		{ID: "n3", Title: "Gamma"},
	}
	edges := []*store.Edge{
		{A: "n1", B: "n2", Relation: store.RelationSemantic, Weight: 0.9},
	}

	d := New(nil)
	assignments, clusters := d.Detect(context.Background(), notes, edges, 1.0)

	if len(assignments) != 3 {
		t.Fatalf("expected assignment for every note, got %d", len(assignments))
	}

	byNote := make(map[string]string, 3)
	for _, a := range assignments {
		byNote[a.NoteID] = a.ClusterID
	}
	if byNote["n1"] != byNote["n2"] {
		t.Errorf("expected n1 and n2 in the same cluster (connected by an edge), got %v", byNote)
	}
	if byNote["n3"] == byNote["n1"] {
		t.Errorf("expected n3 to be its own cluster (isolated node), got %v", byNote)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters (one pair, one singleton), got %d: %+v", len(clusters), clusters)
	}
}

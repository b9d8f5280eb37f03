package synth

import (
	"strings"
	"testing"

	"github.com/notegraph/notegraph/internal/retrieval"
	"github.com/notegraph/notegraph/internal/store"
)

type fakeReader struct {
	notes map[string]*store.Note
}

func (f *fakeReader) GetNote(id string) (*store.Note, error) {
	return f.notes[id], nil
}

func (f *fakeReader) GetEpisodic(noteID string) (*store.EpisodicMetadata, error) {
	return nil, nil
}

func TestBuildContextIncludesPrimaryAndExpanded(t *testing.T) {
	reader := &fakeReader{notes: map[string]*store.Note{
		"p1": {ID: "p1", Title: "Roadmap review"},
		"e1": {ID: "e1", Title: "Related budget note"},
	}}
	s := New(nil, reader)

	resp := &retrieval.Response{
		Primary:  []retrieval.Result{{NoteID: "p1", Score: 0.9}},
		Expanded: []retrieval.ExpandedResult{{NoteID: "e1", Relation: "semantic", HopDistance: 1}},
		Clusters: []*store.Cluster{{ID: "cl_0", Title: "Q3 planning", Summary: "Quarterly planning notes."}},
	}
	bodies := map[string]string{"p1": "Full body text about the roadmap.", "e1": "Budget details here."}

	ctx := s.BuildContext(resp, bodies)

	if !strings.Contains(ctx, "Roadmap review") {
		t.Errorf("expected primary note title in context, got: %s", ctx)
	}
	if !strings.Contains(ctx, "Full body text about the roadmap.") {
		t.Errorf("expected primary note full body in context")
	}
	if !strings.Contains(ctx, "Related budget note") {
		t.Errorf("expected expanded note title in context")
	}
	if !strings.Contains(ctx, "Q3 planning") {
		t.Errorf("expected cluster title in context")
	}
}

func TestBuildContextTruncatesExpandedPreviews(t *testing.T) {
	reader := &fakeReader{notes: map[string]*store.Note{"e1": {ID: "e1", Title: "Long note"}}}
	s := New(nil, reader)

	longBody := strings.Repeat("x", 500)
	resp := &retrieval.Response{
		Expanded: []retrieval.ExpandedResult{{NoteID: "e1", Relation: "tag_link", HopDistance: 2}},
	}
	ctx := s.BuildContext(resp, map[string]string{"e1": longBody})

	if strings.Contains(ctx, strings.Repeat("x", 500)) {
		t.Errorf("expected expanded preview to be truncated")
	}
}

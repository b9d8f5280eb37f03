package store

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNoteCRUD(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UnixMilli()

	note := &Note{ID: "n1", Title: "First note", Path: "n1.md", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateNote(note); err != nil {
		t.Fatalf("create note: %v", err)
	}

	got, err := s.GetNote("n1")
	if err != nil {
		t.Fatalf("get note: %v", err)
	}
	if got == nil || got.Title != "First note" {
		t.Fatalf("expected note to round-trip, got %+v", got)
	}

	note.Title = "Renamed"
	note.UpdatedAt = now + 1
	if err := s.UpdateNote(note); err != nil {
		t.Fatalf("update note: %v", err)
	}
	got, _ = s.GetNote("n1")
	if got.Title != "Renamed" {
		t.Fatalf("expected renamed title, got %q", got.Title)
	}

	if err := s.DeleteNote("n1"); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	got, _ = s.GetNote("n1")
	if got != nil {
		t.Fatalf("expected note to be gone after delete")
	}
}

func TestFTSSearch(t *testing.T) {
	s := newTestStore(t)
	if err := s.IndexNoteBody("n1", "Quarterly planning", "We reviewed the budget for Q3 and Q4."); err != nil {
		t.Fatalf("index note: %v", err)
	}
	if err := s.IndexNoteBody("n2", "Grocery list", "milk eggs bread"); err != nil {
		t.Fatalf("index note: %v", err)
	}

	hits, err := s.SearchFTS("budget", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].NoteID != "n1" {
		t.Fatalf("expected single hit for n1, got %+v", hits)
	}

	// Re-indexing should not duplicate the row.
	if err := s.IndexNoteBody("n1", "Quarterly planning", "Budget budget budget."); err != nil {
		t.Fatalf("re-index note: %v", err)
	}
	hits, err = s.SearchFTS("budget", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected still one hit after re-index, got %d", len(hits))
	}
}

func TestTagHierarchyAndUseCount(t *testing.T) {
	s := newTestStore(t)

	child, err := s.GetOrCreateTag("project/backend", TagSourceUser)
	if err != nil {
		t.Fatalf("get or create tag: %v", err)
	}
	if child.Level != 1 {
		t.Fatalf("expected level 1 for project/backend, got %d", child.Level)
	}

	parent, err := s.GetTagByName("project")
	if err != nil {
		t.Fatalf("get parent tag: %v", err)
	}
	if parent == nil {
		t.Fatalf("expected parent tag 'project' to be auto-created")
	}
	if child.ParentID != parent.ID {
		t.Fatalf("expected child.ParentID to reference parent, got %q want %q", child.ParentID, parent.ID)
	}

	if err := s.AddNoteTag(&NoteTag{NoteID: "n1", TagID: child.ID, CreatedAt: time.Now().UnixMilli(), Source: TagSourceUser}); err != nil {
		t.Fatalf("add note tag: %v", err)
	}
	got, err := s.GetTag(child.ID)
	if err != nil {
		t.Fatalf("get tag: %v", err)
	}
	if got.UseCount != 1 {
		t.Fatalf("expected use_count 1 after trigger fired, got %d", got.UseCount)
	}

	if err := s.RemoveNoteTag("n1", child.ID); err != nil {
		t.Fatalf("remove note tag: %v", err)
	}
	got, _ = s.GetTag(child.ID)
	if got.UseCount != 0 {
		t.Fatalf("expected use_count 0 after removal, got %d", got.UseCount)
	}
}

func TestTagMerge(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.GetOrCreateTag("golang", TagSourceUser)
	b, _ := s.GetOrCreateTag("go", TagSourceUser)
	now := time.Now().UnixMilli()

	if err := s.AddNoteTag(&NoteTag{NoteID: "n1", TagID: a.ID, CreatedAt: now, Source: TagSourceUser}); err != nil {
		t.Fatalf("add note tag: %v", err)
	}
	if err := s.MergeTags(a.ID, b.ID); err != nil {
		t.Fatalf("merge tags: %v", err)
	}

	tags, err := s.ListTagsForNote("n1")
	if err != nil {
		t.Fatalf("list tags for note: %v", err)
	}
	if len(tags) != 1 || tags[0].ID != b.ID {
		t.Fatalf("expected note to be retagged to %q, got %+v", b.ID, tags)
	}
	if gone, _ := s.GetTag(a.ID); gone != nil {
		t.Fatalf("expected merged-from tag to be deleted")
	}
}

func TestEdgeCanonicalOrientation(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UnixMilli()

	if err := s.UpsertEdge(&Edge{A: "n2", B: "n1", Relation: RelationSemantic, Weight: 0.8, CreatedAt: now}); err != nil {
		t.Fatalf("upsert edge: %v", err)
	}
	edges, err := s.ListEdgesForNote("n1")
	if err != nil {
		t.Fatalf("list edges: %v", err)
	}
	if len(edges) != 1 || edges[0].A != "n1" || edges[0].B != "n2" {
		t.Fatalf("expected canonical orientation a<b, got %+v", edges)
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	vec := []float32{0.1, -0.2, 0.3, 0.45}
	if err := s.UpsertEmbedding(&Embedding{NoteID: "n1", Vector: vec, Model: "test-embed"}); err != nil {
		t.Fatalf("upsert embedding: %v", err)
	}
	got, err := s.GetEmbedding("n1")
	if err != nil {
		t.Fatalf("get embedding: %v", err)
	}
	if len(got.Vector) != len(vec) {
		t.Fatalf("expected %d dims, got %d", len(vec), len(got.Vector))
	}
	for i := range vec {
		if got.Vector[i] != vec[i] {
			t.Fatalf("dim %d: expected %v, got %v", i, vec[i], got.Vector[i])
		}
	}
}

package tags

import (
	"testing"

	"github.com/notegraph/notegraph/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore()
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	svc, err := New(s)
	if err != nil {
		t.Fatalf("new tag service: %v", err)
	}
	return svc, s
}

func TestParseHashtags(t *testing.T) {
	got := ParseHashtags("Status update #project/alpha and #project/beta, also #Project/Alpha again")
	want := []string{"project/alpha", "project/beta"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestHashtagHierarchyUseCount(t *testing.T) {
	svc, s := newTestService(t)

	names := ParseHashtags("Status update #project/alpha and #project/beta")
	if _, err := svc.AddManyToNote("n1", names, store.TagSourceDetected); err != nil {
		t.Fatalf("add many to note: %v", err)
	}

	project, err := s.GetTagByName("project")
	if err != nil || project == nil {
		t.Fatalf("expected project tag to exist, err=%v", err)
	}
	if project.Level != 0 {
		t.Fatalf("expected level 0 for project, got %d", project.Level)
	}
	if project.UseCount != 1 {
		t.Fatalf("expected use_count 1 for project (single note), got %d", project.UseCount)
	}

	alpha, _ := s.GetTagByName("project/alpha")
	if alpha.UseCount != 1 {
		t.Fatalf("expected use_count 1 for project/alpha, got %d", alpha.UseCount)
	}
	if alpha.ParentID != project.ID {
		t.Fatalf("expected project/alpha to have project as parent")
	}
}

func TestSearchTiers(t *testing.T) {
	svc, _ := newTestService(t)
	for _, n := range []string{"golang", "goroutines", "cooking"} {
		if _, err := svc.GetOrCreate(n, store.TagSourceUser); err != nil {
			t.Fatalf("get or create %q: %v", n, err)
		}
	}
	if err := svc.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	results, err := svc.Search("go", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) < 2 {
		t.Fatalf("expected at least 2 prefix matches for 'go', got %+v", results)
	}

	exact, err := svc.Search("golang", 10)
	if err != nil {
		t.Fatalf("search exact: %v", err)
	}
	if len(exact) == 0 || exact[0].Tier != TierExact {
		t.Fatalf("expected first result to be an exact match, got %+v", exact)
	}
}

// TestSearchOrdersByUsageWithinTier pins spec.md §4.2's ranking rule:
// within a tier, higher use_count sorts first. Regressed silently once
// before (prefix tier was alphabetical, substring tier was raw automaton
// order) since TestSearchTiers only checked tier membership/count.
func TestSearchOrdersByUsageWithinTier(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GetOrCreate("golang", store.TagSourceUser); err != nil {
		t.Fatalf("get or create golang: %v", err)
	}
	if _, err := svc.GetOrCreate("goroutines", store.TagSourceUser); err != nil {
		t.Fatalf("get or create goroutines: %v", err)
	}
	if err := svc.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	// golang is used on two notes, goroutines only on one, so golang's
	// use_count must outrank goroutines' regardless of match order.
	if _, err := svc.AddToNote("n1", "golang", store.TagSourceUser); err != nil {
		t.Fatalf("add to note n1: %v", err)
	}
	if _, err := svc.AddToNote("n2", "golang", store.TagSourceUser); err != nil {
		t.Fatalf("add to note n2: %v", err)
	}
	if _, err := svc.AddToNote("n3", "goroutines", store.TagSourceUser); err != nil {
		t.Fatalf("add to note n3: %v", err)
	}

	results, err := svc.Search("go", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) < 2 {
		t.Fatalf("expected at least 2 prefix matches for 'go', got %+v", results)
	}
	if results[0].Tag.Name != "golang" || results[1].Tag.Name != "goroutines" {
		t.Fatalf("expected golang (use_count 2) before goroutines (use_count 1), got %+v", results)
	}
}

func TestMerge(t *testing.T) {
	svc, s := newTestService(t)
	a, _ := svc.GetOrCreate("golang", store.TagSourceUser)
	if _, err := svc.AddToNote("n1", "golang", store.TagSourceUser); err != nil {
		t.Fatalf("add to note: %v", err)
	}

	target, err := svc.Merge([]string{a.ID}, "go")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	tagsForNote, err := s.ListTagsForNote("n1")
	if err != nil {
		t.Fatalf("list tags for note: %v", err)
	}
	if len(tagsForNote) != 1 || tagsForNote[0].ID != target.ID {
		t.Fatalf("expected note to be retagged under merged tag, got %+v", tagsForNote)
	}
}

package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/notegraph/notegraph/internal/store"
)

func TestNewNoteIDShape(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 34, 56, 0, time.UTC)
	id, err := newNoteID(now)
	if err != nil {
		t.Fatalf("newNoteID: %v", err)
	}
	wantPrefix := "2026-07-30T12:34:56Z_"
	if !strings.HasPrefix(id, wantPrefix) {
		t.Fatalf("expected id to start with %q, got %q", wantPrefix, id)
	}
	suffix := strings.TrimPrefix(id, wantPrefix)
	if len(suffix) != 4 {
		t.Fatalf("expected a 4-hex-character suffix, got %q", suffix)
	}
}

func TestNewNoteIDDisambiguatesSameSecondCaptures(t *testing.T) {
	now := time.Now()
	a, err := newNoteID(now)
	if err != nil {
		t.Fatalf("newNoteID: %v", err)
	}
	b, err := newNoteID(now)
	if err != nil {
		t.Fatalf("newNoteID: %v", err)
	}
	if a == b {
		t.Errorf("expected two notes captured in the same second to get distinct ids, got %q twice", a)
	}
}

func TestUnionEntitiesCombinesWhoWhatWhere(t *testing.T) {
	ep := &store.EpisodicMetadata{
		Who: []string{"Alex"}, What: []string{"roadmap"}, Where: []string{"office"},
	}
	got := unionEntities(ep)
	want := []string{"Alex", "roadmap", "office"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestUnionEntitiesNilEpisodic(t *testing.T) {
	if got := unionEntities(nil); got != nil {
		t.Errorf("expected nil for nil episodic, got %v", got)
	}
}

func TestTagNames(t *testing.T) {
	tagList := []*store.Tag{{Name: "go"}, {Name: "backend"}}
	got := tagNames(tagList)
	if len(got) != 2 || got[0] != "go" || got[1] != "backend" {
		t.Fatalf("unexpected tag names: %v", got)
	}
}

func TestAtomicWriteFileReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")

	if err := atomicWriteFile(path, []byte("first")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := atomicWriteFile(path, []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected final content 'second', got %q", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be renamed away, got err=%v", err)
	}
}

func TestLockForReturnsSameMutexPerNote(t *testing.T) {
	o := &Orchestrator{}
	a := o.lockFor("n1")
	b := o.lockFor("n1")
	if a != b {
		t.Errorf("expected the same mutex instance for repeated calls with the same note id")
	}
	c := o.lockFor("n2")
	if a == c {
		t.Errorf("expected a different mutex for a different note id")
	}
}

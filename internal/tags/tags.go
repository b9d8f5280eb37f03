// Package tags implements the hierarchical hashtag store (C2): parsing
// "#parent/child" hashtags out of note bodies, normalizing and persisting
// the tag hierarchy, and fuzzy autocomplete over the tag corpus.
//
// Search runs three non-overlapping tiers - exact, prefix, substring - each
// backed by a different structure: a direct store lookup, a
// derekparker/trie/v3 prefix trie kept in sync with the tag table, and a
// coregx/ahocorasick automaton rebuilt on Compile for whole-corpus substring
// scans. The trie was an indirect, never-implemented dependency in the
// repo this package is descended from (its own prefix-search package,
// pkg/dafsa, was never finished); this is its first real use.
package tags

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coregx/ahocorasick"
	"github.com/derekparker/trie/v3"

	"github.com/notegraph/notegraph/internal/normalize"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/pkg/apperr"
)

// hashtagPattern matches "#parent/child" style hashtags: letters, digits,
// hyphens and underscores, with "/" separating hierarchy levels.
var hashtagPattern = regexp.MustCompile(`#([a-zA-Z0-9_\-]+(?:/[a-zA-Z0-9_\-]+)*)`)

// ParseHashtags extracts tag names from text in first-appearance order,
// case-insensitively deduplicated.
func ParseHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)

	var names []string
	seen := make(map[string]bool)
	for _, m := range matches {
		name := normalize.TagName(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// SearchTier identifies which tier of Search produced a result.
type SearchTier string

const (
	TierExact     SearchTier = "exact"
	TierPrefix    SearchTier = "prefix"
	TierSubstring SearchTier = "substring"
)

// SearchResult is one autocomplete hit.
type SearchResult struct {
	Tag  *store.Tag `json:"tag"`
	Tier SearchTier `json:"tier"`
}

// Store is the persistence layer needed by this package.
type Store interface {
	GetOrCreateTag(name, source string) (*store.Tag, error)
	GetTag(id string) (*store.Tag, error)
	GetTagByName(name string) (*store.Tag, error)
	TouchTag(tagID string) error
	RenameTag(tagID, newName string) error
	MergeTags(fromID, intoID string) error
	DeleteTag(tagID string) error
	ListTags() ([]*store.Tag, error)
	ListChildTags(parentID string) ([]*store.Tag, error)
	TagUsageStats() (*store.TagUsageStats, error)
	AddNoteTag(nt *store.NoteTag) error
	RemoveNoteTag(noteID, tagID string) error
	ListTagsForNote(noteID string) ([]*store.Tag, error)
	ListNotesForTag(tagID string) ([]*store.Note, error)
}

// Service owns the tag hierarchy and the search-acceleration structures
// built over it. The trie and automaton are rebuilt wholesale on Compile;
// for the tag corpus sizes this system targets (thousands, not millions)
// a full rebuild per mutation batch is simpler than incremental updates
// and cheap enough to run synchronously.
type Service struct {
	store Store

	mu  sync.RWMutex
	pt  *trie.Trie
	ac  *ahocorasick.Automaton
	ids []string // index i => tag id matched by automaton pattern i
}

// New builds a Service and performs an initial Compile from the store.
func New(s Store) (*Service, error) {
	svc := &Service{store: s}
	if err := svc.Compile(); err != nil {
		return nil, err
	}
	return svc, nil
}

// Compile rebuilds the prefix trie and substring automaton from the
// current tag table. Call after any batch of tag mutations (rename,
// merge, delete) that search tiers need to observe.
func (s *Service) Compile() error {
	allTags, err := s.store.ListTags()
	if err != nil {
		return apperr.NewStorageError("list_tags", err)
	}

	pt := trie.New()
	patterns := make([]string, 0, len(allTags))
	ids := make([]string, 0, len(allTags))
	for _, t := range allTags {
		pt.Add(t.Name, t.ID)
		patterns = append(patterns, t.Name)
		ids = append(ids, t.ID)
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return apperr.NewInternalError("build tag automaton").WithCause(err)
	}

	s.mu.Lock()
	s.pt = pt
	s.ac = automaton
	s.ids = ids
	s.mu.Unlock()
	return nil
}

// GetOrCreate normalizes name and ensures it (and every ancestor along its
// "/" path) exists in the tag table.
func (s *Service) GetOrCreate(name, source string) (*store.Tag, error) {
	name = normalize.TagName(name)
	if name == "" {
		return nil, apperr.NewValidationError("tag name must not be empty")
	}
	existing, err := s.store.GetTagByName(name)
	if err != nil {
		return nil, apperr.NewStorageError("get_tag_by_name", err)
	}
	tag, err := s.store.GetOrCreateTag(name, source)
	if err != nil {
		return nil, apperr.NewStorageError("get_or_create_tag", err)
	}
	if existing == nil {
		if err := s.Compile(); err != nil {
			return nil, err
		}
	}
	return tag, nil
}

// AddToNote tags a note with name, also tagging it with every ancestor
// along name's "/" path. Ancestors get their own NoteTag row so a tag's
// use_count reflects distinct notes carrying it or any of its descendants,
// without double counting when a note carries two siblings under the
// same parent - the (note_id, tag_id) primary key makes the ancestor
// insert idempotent.
func (s *Service) AddToNote(noteID, name, source string) (*store.Tag, error) {
	leaf, err := s.GetOrCreate(name, source)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	for _, ancestorName := range ancestorChain(leaf.Name) {
		ancestor, err := s.store.GetTagByName(ancestorName)
		if err != nil {
			return nil, apperr.NewStorageError("get_tag_by_name", err)
		}
		if ancestor == nil {
			continue
		}
		if err := s.store.AddNoteTag(&store.NoteTag{
			NoteID: noteID, TagID: ancestor.ID, CreatedAt: now, Source: source,
		}); err != nil {
			return nil, apperr.NewStorageError("add_note_tag", err)
		}
	}

	if err := s.store.AddNoteTag(&store.NoteTag{
		NoteID: noteID, TagID: leaf.ID, CreatedAt: now, Source: source,
	}); err != nil {
		return nil, apperr.NewStorageError("add_note_tag", err)
	}
	return leaf, nil
}

// AddManyToNote tags a note with every name in names, in order.
func (s *Service) AddManyToNote(noteID string, names []string, source string) ([]*store.Tag, error) {
	out := make([]*store.Tag, 0, len(names))
	for _, name := range names {
		tag, err := s.AddToNote(noteID, name, source)
		if err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, nil
}

// RemoveFromNote removes only the given tag from the note - ancestor tags
// added alongside it are left alone, since they may still be warranted by
// sibling tags on the same note.
func (s *Service) RemoveFromNote(noteID, tagID string) error {
	if err := s.store.RemoveNoteTag(noteID, tagID); err != nil {
		return apperr.NewStorageError("remove_note_tag", err)
	}
	return nil
}

// ancestorChain returns every proper ancestor name of a slash-delimited tag
// name, root first. "project/backend/api" -> ["project", "project/backend"].
func ancestorChain(name string) []string {
	parts := strings.Split(name, "/")
	if len(parts) <= 1 {
		return nil
	}
	chain := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		chain = append(chain, strings.Join(parts[:i], "/"))
	}
	return chain
}

// Search runs the three-tier lookup: exact name match, prefix match via
// the trie, then substring match via the Aho-Corasick automaton over
// every tag name. Tiers do not overlap - a tag already returned by a more
// specific tier is excluded from later, broader tiers.
func (s *Service) Search(query string, limit int) ([]SearchResult, error) {
	query = normalize.TagName(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	seen := make(map[string]bool)
	var results []SearchResult

	if exact, err := s.store.GetTagByName(query); err != nil {
		return nil, apperr.NewStorageError("get_tag_by_name", err)
	} else if exact != nil {
		results = append(results, SearchResult{Tag: exact, Tier: TierExact})
		seen[exact.ID] = true
	}

	s.mu.RLock()
	pt := s.pt
	ac := s.ac
	ids := s.ids
	s.mu.RUnlock()

	if pt != nil && len(results) < limit {
		prefixMatches := pt.PrefixSearch(query)
		var candidates []*store.Tag
		for _, name := range prefixMatches {
			tag, err := s.store.GetTagByName(name)
			if err != nil || tag == nil || seen[tag.ID] {
				continue
			}
			candidates = append(candidates, tag)
			seen[tag.ID] = true
		}
		sortByUsage(candidates)
		for _, tag := range candidates {
			if len(results) >= limit {
				break
			}
			results = append(results, SearchResult{Tag: tag, Tier: TierPrefix})
		}
	}

	if ac != nil && len(results) < limit {
		var candidates []*store.Tag
		for _, m := range ac.FindAllOverlapping(query) {
			if m.PatternID < 0 || m.PatternID >= len(ids) {
				continue
			}
			tagID := ids[m.PatternID]
			if seen[tagID] {
				continue
			}
			tag, err := s.store.GetTag(tagID)
			if err != nil || tag == nil {
				continue
			}
			candidates = append(candidates, tag)
			seen[tag.ID] = true
		}
		sortByUsage(candidates)
		for _, tag := range candidates {
			if len(results) >= limit {
				break
			}
			results = append(results, SearchResult{Tag: tag, Tier: TierSubstring})
		}
	}

	return results, nil
}

// sortByUsage orders tags within a tier by the spec's autocomplete
// ranking: higher use_count first, ties broken by last_used_at desc.
func sortByUsage(tags []*store.Tag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].UseCount != tags[j].UseCount {
			return tags[i].UseCount > tags[j].UseCount
		}
		return tags[i].LastUsedAt > tags[j].LastUsedAt
	})
}

func (s *Service) GetChildren(tagID string) ([]*store.Tag, error) {
	children, err := s.store.ListChildTags(tagID)
	if err != nil {
		return nil, apperr.NewStorageError("list_child_tags", err)
	}
	return children, nil
}

// GetNotesByTag returns the notes tagged with tagID, and if
// includeDescendants is true, also every note tagged with a descendant of
// tagID, via repeated expansion over parent_id.
func (s *Service) GetNotesByTag(tagID string, includeDescendants bool) ([]*store.Note, error) {
	notes, err := s.store.ListNotesForTag(tagID)
	if err != nil {
		return nil, apperr.NewStorageError("list_notes_for_tag", err)
	}
	if !includeDescendants {
		return notes, nil
	}

	seen := make(map[string]bool, len(notes))
	for _, n := range notes {
		seen[n.ID] = true
	}

	frontier := []string{tagID}
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			children, err := s.store.ListChildTags(id)
			if err != nil {
				return nil, apperr.NewStorageError("list_child_tags", err)
			}
			for _, c := range children {
				childNotes, err := s.store.ListNotesForTag(c.ID)
				if err != nil {
					return nil, apperr.NewStorageError("list_notes_for_tag", err)
				}
				for _, n := range childNotes {
					if !seen[n.ID] {
						seen[n.ID] = true
						notes = append(notes, n)
					}
				}
				next = append(next, c.ID)
			}
		}
		frontier = next
	}
	return notes, nil
}

// Rename changes a tag's name in place, preserving its id so existing
// NoteTag rows remain valid. Recompile the search structures afterward.
func (s *Service) Rename(tagID, newName string) error {
	newName = normalize.TagName(newName)
	if newName == "" {
		return apperr.NewValidationError("tag name must not be empty")
	}
	if existing, err := s.store.GetTagByName(newName); err != nil {
		return apperr.NewStorageError("get_tag_by_name", err)
	} else if existing != nil && existing.ID != tagID {
		return apperr.NewConflictError("a tag with that name already exists")
	}
	if err := s.store.RenameTag(tagID, newName); err != nil {
		return apperr.NewStorageError("rename_tag", err)
	}
	return s.Compile()
}

// Merge rewrites every NoteTag row pointing at any id in sourceIDs to point
// at the (possibly newly created) tag named targetName, then deletes the
// source tags, all within a single store-level transaction per source.
func (s *Service) Merge(sourceIDs []string, targetName string) (*store.Tag, error) {
	target, err := s.GetOrCreate(targetName, store.TagSourceUser)
	if err != nil {
		return nil, err
	}
	for _, sourceID := range sourceIDs {
		if sourceID == target.ID {
			continue
		}
		if err := s.store.MergeTags(sourceID, target.ID); err != nil {
			return nil, apperr.NewStorageError("merge_tags", err)
		}
	}
	return target, s.Compile()
}

func (s *Service) Delete(tagID string) error {
	if err := s.store.DeleteTag(tagID); err != nil {
		return apperr.NewStorageError("delete_tag", err)
	}
	return s.Compile()
}

func (s *Service) List() ([]*store.Tag, error) {
	all, err := s.store.ListTags()
	if err != nil {
		return nil, apperr.NewStorageError("list_tags", err)
	}
	return all, nil
}

func (s *Service) ListForNote(noteID string) ([]*store.Tag, error) {
	t, err := s.store.ListTagsForNote(noteID)
	if err != nil {
		return nil, apperr.NewStorageError("list_tags_for_note", err)
	}
	return t, nil
}

func (s *Service) Stats() (*store.TagUsageStats, error) {
	stats, err := s.store.TagUsageStats()
	if err != nil {
		return nil, apperr.NewStorageError("tag_usage_stats", err)
	}
	return stats, nil
}

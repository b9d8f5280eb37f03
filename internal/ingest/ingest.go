// Package ingest implements the ingestion orchestrator (C10): capture a
// note's text, run the synchronous extraction + persistence sequence, and
// schedule the embedding + edge-building background task. The
// persist-then-background-goroutine shape is grounded on
// pkg/chat.ChatService.AddMessage, which persists a message transactionally
// then launches memory extraction in an unawaited goroutine - here that
// becomes "persist the note" then "embed and link it".
package ingest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notegraph/notegraph/internal/edges"
	"github.com/notegraph/notegraph/internal/embed"
	"github.com/notegraph/notegraph/internal/episodic"
	"github.com/notegraph/notegraph/internal/prospective"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/internal/tags"
	"github.com/notegraph/notegraph/pkg/apperr"
)

// Result is what capture_note responds to the client with.
type Result struct {
	NoteID   string                  `json:"noteId"`
	Title    string                  `json:"title"`
	Episodic *store.EpisodicMetadata `json:"episodic"`
	Path     string                  `json:"path"`
}

// Orchestrator sequences C3 -> C4 -> persist -> respond -> background(C5, C6).
type Orchestrator struct {
	store      store.Storer
	episodic   *episodic.Extractor
	prospect   *prospective.Extractor
	tags       *tags.Service
	embed      *embed.Service
	notesDir       string
	log            *zap.Logger
	edgeThresholds edges.Thresholds
	noteLocks      sync.Map // note id -> *sync.Mutex, enforcing per-note mutual exclusion
}

func New(s store.Storer, ep *episodic.Extractor, pr *prospective.Extractor, tagSvc *tags.Service, embedSvc *embed.Service, notesDir string, logger *zap.Logger, edgeThresholds edges.Thresholds) *Orchestrator {
	return &Orchestrator{
		store: s, episodic: ep, prospect: pr, tags: tagSvc, embed: embedSvc,
		notesDir: notesDir, log: logger, edgeThresholds: edgeThresholds,
	}
}

// CaptureNote runs the full C10 sequence for a freshly submitted note.
func (o *Orchestrator) CaptureNote(ctx context.Context, text string) (*Result, error) {
	noteID, err := newNoteID(time.Now())
	if err != nil {
		return nil, apperr.NewInternalError("generate note id").WithCause(err)
	}
	lock := o.lockFor(noteID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UnixMilli()
	path := filepath.Join(o.notesDir, noteID+".md")

	if err := atomicWriteFile(path, []byte(text)); err != nil {
		return nil, apperr.NewStorageError("write note file", err)
	}

	currentDate := time.UnixMilli(now)
	var recorded []*store.LLMOperation
	record := func(op *store.LLMOperation) { recorded = append(recorded, op) }

	episodicMeta := o.episodic.Extract(ctx, noteID, text, currentDate, record)
	prospectMeta := o.prospect.Extract(ctx, noteID, text, episodicMeta.When, record)

	note := &store.Note{
		ID: noteID, Title: episodicMeta.Title, Path: path,
		CreatedAt: now, UpdatedAt: now,
	}

	if err := o.persist(note, text, episodicMeta, prospectMeta, recorded); err != nil {
		_ = os.Remove(path)
		return nil, apperr.NewStorageError("persist note", err)
	}

	go o.buildGraphLinks(noteID)

	return &Result{NoteID: noteID, Title: note.Title, Episodic: episodicMeta, Path: path}, nil
}

// newNoteID builds a note's stable textual identity: an RFC3339 timestamp
// plus a 4-hex-character disambiguator for notes captured within the same
// second. Distinct from the opaque UUIDs internal/tags uses for tag ids.
func newNoteID(now time.Time) (string, error) {
	var suffix [2]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", now.UTC().Format(time.RFC3339), hex.EncodeToString(suffix[:])), nil
}

// persist performs step 5 of C10: note row, FTS index, episodic and
// prospective metadata, and tag upserts, all within one logical sequence.
// SQLiteStore's individual methods are each already transactional; this
// package does not reach into *sql.Tx directly, matching how
// internal/tags and internal/store keep SQL ownership inside the store
// layer.
func (o *Orchestrator) persist(note *store.Note, text string, ep *store.EpisodicMetadata, pr *store.ProspectiveMetadata, ops []*store.LLMOperation) error {
	if err := o.store.CreateNote(note); err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	if err := o.store.IndexNoteBody(note.ID, note.Title, text); err != nil {
		return fmt.Errorf("index note body: %w", err)
	}
	if err := o.store.UpsertEpisodic(ep); err != nil {
		return fmt.Errorf("upsert episodic: %w", err)
	}
	if err := o.store.UpsertProspective(pr); err != nil {
		return fmt.Errorf("upsert prospective: %w", err)
	}

	if _, err := o.tags.AddManyToNote(note.ID, ep.Tags, store.TagSourceDetected); err != nil {
		return fmt.Errorf("tag note: %w", err)
	}

	for _, op := range ops {
		op.CreatedAt = note.CreatedAt
		if err := o.store.RecordLLMOperation(op); err != nil {
			o.logWarn("record llm operation failed", err)
		}
	}
	return nil
}

// buildGraphLinks is the background task scheduled after a successful
// capture: generate and store the note's embedding (C5), then build all
// three edge classes against every other note (C6). Failures here are
// logged only, per the spec's no-retry background policy - the client
// already has its response and manual recovery is POST /graph/rebuild_edges.
func (o *Orchestrator) buildGraphLinks(noteID string) {
	lock := o.lockFor(noteID)
	lock.Lock()
	defer lock.Unlock()

	ctx := context.Background()

	note, err := o.store.GetNote(noteID)
	if err != nil || note == nil {
		o.logWarn("buildGraphLinks: note missing", err)
		return
	}

	episodicMeta, err := o.store.GetEpisodic(noteID)
	if err != nil {
		o.logWarn("buildGraphLinks: episodic lookup failed", err)
		return
	}

	var bodyText string
	if data, readErr := os.ReadFile(note.Path); readErr == nil {
		bodyText = string(data)
	}

	vector, err := o.embed.Embed(ctx, bodyText)
	if err != nil {
		o.logWarn("embedding generation failed", err)
		return
	}
	if err := o.store.UpsertEmbedding(&store.Embedding{NoteID: noteID, Vector: vector, Model: "default"}); err != nil {
		o.logWarn("embedding persist failed", err)
		return
	}

	if err := o.rebuildEdgesFor(note, episodicMeta); err != nil {
		o.logWarn("edge construction failed", err)
	}
}

// RebuildEdges re-runs C5 and C6 for an existing note, the manually
// triggered recovery path for background-step failures.
func (o *Orchestrator) RebuildEdges(ctx context.Context, noteID string) error {
	lock := o.lockFor(noteID)
	lock.Lock()
	defer lock.Unlock()

	note, err := o.store.GetNote(noteID)
	if err != nil || note == nil {
		return apperr.NewNotFoundError(fmt.Sprintf("note %q", noteID))
	}
	episodicMeta, err := o.store.GetEpisodic(noteID)
	if err != nil {
		return apperr.NewStorageError("get episodic", err)
	}

	var bodyText string
	if data, readErr := os.ReadFile(note.Path); readErr == nil {
		bodyText = string(data)
	}

	vector, err := o.embed.Embed(ctx, bodyText)
	if err != nil {
		return err
	}
	if err := o.store.UpsertEmbedding(&store.Embedding{NoteID: noteID, Vector: vector, Model: "default"}); err != nil {
		return apperr.NewStorageError("persist embedding", err)
	}

	return o.rebuildEdgesFor(note, episodicMeta)
}

func (o *Orchestrator) rebuildEdgesFor(note *store.Note, episodicMeta *store.EpisodicMetadata) error {
	total, err := o.store.CountNotes()
	if err != nil {
		return err
	}
	allNotes, err := o.store.ListNotes(total, 0)
	if err != nil {
		return err
	}
	allEmbeddings, err := o.store.ListEmbeddings()
	if err != nil {
		return err
	}
	embeddingByNote := make(map[string][]float32, len(allEmbeddings))
	for _, e := range allEmbeddings {
		embeddingByNote[e.NoteID] = e.Vector
	}

	targetTags, err := o.store.ListTagsForNote(note.ID)
	if err != nil {
		return err
	}

	target := edges.NoteContext{
		NoteID:   note.ID,
		Entities: unionEntities(episodicMeta),
		TagNames: tagNames(targetTags),
	}

	candidates := make([]edges.NoteContext, 0, len(allNotes))
	for _, n := range allNotes {
		if n.ID == note.ID {
			continue
		}
		ep, err := o.store.GetEpisodic(n.ID)
		if err != nil {
			continue
		}
		cTags, err := o.store.ListTagsForNote(n.ID)
		if err != nil {
			continue
		}
		candidates = append(candidates, edges.NoteContext{
			NoteID: n.ID, Entities: unionEntities(ep), TagNames: tagNames(cTags),
		})
	}

	return edges.Build(o.store, target, embeddingByNote[note.ID], candidates, embeddingByNote, time.Now().UnixMilli(), o.edgeThresholds)
}

func unionEntities(ep *store.EpisodicMetadata) []string {
	if ep == nil {
		return nil
	}
	out := make([]string, 0, len(ep.Who)+len(ep.What)+len(ep.Where))
	out = append(out, ep.Who...)
	out = append(out, ep.What...)
	out = append(out, ep.Where...)
	return out
}

func tagNames(ts []*store.Tag) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Name)
	}
	return out
}

func (o *Orchestrator) lockFor(noteID string) *sync.Mutex {
	actual, _ := o.noteLocks.LoadOrStore(noteID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (o *Orchestrator) logWarn(msg string, err error) {
	if o.log == nil {
		return
	}
	o.log.Warn(msg, zap.Error(err))
}

func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

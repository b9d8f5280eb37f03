// Package store provides SQLite-backed persistence for the note graph.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
)

// SQLiteStore is the SQLite-backed data store. Safe for concurrent use; a
// single RWMutex serializes writers against the underlying *sql.DB the way
// an in-process embedded database expects.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schema defines every table, index, trigger and view the note graph needs.
// There are no foreign key constraints - referential integrity between
// notes/tags/edges is managed at the application level, matching how this
// schema's ancestor handled entities and edges.
const schema = `
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    path TEXT NOT NULL,
    cluster_id TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_cluster ON notes(cluster_id);

-- Standalone FTS5 table holding its own copy of title and body; kept in sync explicitly by IndexNoteBody
-- rather than SQLite generated-column triggers, since body text lives in
-- Go-land (parsed from the markdown file) at index time, not in a column.
CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
    note_id UNINDEXED,
    title,
    body,
    tokenize = 'porter unicode61'
);

CREATE TABLE IF NOT EXISTS episodic_metadata (
    note_id TEXT PRIMARY KEY,
    who_json TEXT NOT NULL DEFAULT '[]',
    what_json TEXT NOT NULL DEFAULT '[]',
    where_json TEXT NOT NULL DEFAULT '[]',
    when_json TEXT NOT NULL DEFAULT '[]',
    tags_json TEXT NOT NULL DEFAULT '[]',
    title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS prospective_metadata (
    note_id TEXT PRIMARY KEY,
    contains_prospective INTEGER NOT NULL DEFAULT 0,
    items_json TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS tags (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE COLLATE NOCASE,
    parent_id TEXT,
    level INTEGER NOT NULL DEFAULT 0,
    use_count INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    last_used_at INTEGER NOT NULL,
    source TEXT NOT NULL DEFAULT 'user'
);
CREATE INDEX IF NOT EXISTS idx_tags_parent ON tags(parent_id);
CREATE INDEX IF NOT EXISTS idx_tags_name_prefix ON tags(name);

CREATE TABLE IF NOT EXISTS note_tags (
    note_id TEXT NOT NULL,
    tag_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    source TEXT NOT NULL DEFAULT 'user',
    PRIMARY KEY (note_id, tag_id)
);
CREATE INDEX IF NOT EXISTS idx_note_tags_tag ON note_tags(tag_id);

-- use_count/last_used_at are maintained purely by trigger so every
-- insertion path (capture, retag, merge) keeps tag stats consistent
-- without each caller remembering to bump them.
CREATE TRIGGER IF NOT EXISTS trg_note_tags_ai AFTER INSERT ON note_tags
BEGIN
    UPDATE tags SET use_count = use_count + 1, last_used_at = NEW.created_at WHERE id = NEW.tag_id;
END;

CREATE TRIGGER IF NOT EXISTS trg_note_tags_ad AFTER DELETE ON note_tags
BEGIN
    UPDATE tags SET use_count = MAX(0, use_count - 1) WHERE id = OLD.tag_id;
END;

CREATE VIEW IF NOT EXISTS tags_with_hierarchy AS
SELECT
    t.id, t.name, t.parent_id, t.level, t.use_count, t.created_at, t.last_used_at, t.source,
    p.name AS parent_name,
    (SELECT COUNT(*) FROM tags c WHERE c.parent_id = t.id) AS child_count
FROM tags t
LEFT JOIN tags p ON p.id = t.parent_id;

CREATE TABLE IF NOT EXISTS embeddings (
    note_id TEXT PRIMARY KEY,
    vector BLOB NOT NULL,
    dim INTEGER NOT NULL,
    model TEXT NOT NULL
);

-- Canonical orientation enforced in Go (a < b); relation distinguishes the
-- three edge kinds sharing this table.
CREATE TABLE IF NOT EXISTS edges (
    a TEXT NOT NULL,
    b TEXT NOT NULL,
    relation TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 0,
    metadata_json TEXT,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (a, b, relation)
);
CREATE INDEX IF NOT EXISTS idx_edges_a ON edges(a);
CREATE INDEX IF NOT EXISTS idx_edges_b ON edges(b);

CREATE TABLE IF NOT EXISTS clusters (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    size INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS llm_operations (
    id TEXT PRIMARY KEY,
    note_id TEXT,
    kind TEXT NOT NULL,
    prompt_text TEXT NOT NULL,
    raw_response TEXT NOT NULL,
    parsed_output_json TEXT,
    tokens_in INTEGER NOT NULL DEFAULT 0,
    tokens_out INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    cost_usd REAL NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_llm_ops_note ON llm_operations(note_id);
`

// NewSQLiteStore opens an in-memory database, useful for tests.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN opens (or creates) the database at dsn and applies
// the schema. Use ":memory:" for ephemeral stores, a file path otherwise.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// Notes
// =============================================================================

func (s *SQLiteStore) CreateNote(note *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO notes (id, title, path, cluster_id, created_at, updated_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, ?)
	`, note.ID, note.Title, note.Path, note.ClusterID, note.CreatedAt, note.UpdatedAt)
	return err
}

func (s *SQLiteStore) UpdateNote(note *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		UPDATE notes SET title = ?, path = ?, cluster_id = NULLIF(?, ''), updated_at = ?
		WHERE id = ?
	`, note.Title, note.Path, note.ClusterID, note.UpdatedAt, note.ID)
	return err
}

func (s *SQLiteStore) SetNoteCluster(noteID, clusterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE notes SET cluster_id = NULLIF(?, '') WHERE id = ?`, clusterID, noteID)
	return err
}

func (s *SQLiteStore) GetNote(id string) (*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n Note
	var clusterID sql.NullString
	err := s.db.QueryRow(`
		SELECT id, title, path, cluster_id, created_at, updated_at FROM notes WHERE id = ?
	`, id).Scan(&n.ID, &n.Title, &n.Path, &clusterID, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if clusterID.Valid {
		n.ClusterID = clusterID.String
	}
	return &n, nil
}

func (s *SQLiteStore) DeleteNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM notes WHERE id = ?`, []any{id}},
		{`DELETE FROM notes_fts WHERE note_id = ?`, []any{id}},
		{`DELETE FROM episodic_metadata WHERE note_id = ?`, []any{id}},
		{`DELETE FROM prospective_metadata WHERE note_id = ?`, []any{id}},
		{`DELETE FROM embeddings WHERE note_id = ?`, []any{id}},
		{`DELETE FROM note_tags WHERE note_id = ?`, []any{id}},
		{`DELETE FROM edges WHERE a = ? OR b = ?`, []any{id, id}},
	}
	for _, st := range stmts {
		if _, err := tx.Exec(st.query, st.args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListNotes(limit, offset int) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, title, path, cluster_id, created_at, updated_at
		FROM notes ORDER BY updated_at DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		var n Note
		var clusterID sql.NullString
		if err := rows.Scan(&n.ID, &n.Title, &n.Path, &clusterID, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		if clusterID.Valid {
			n.ClusterID = clusterID.String
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

func (s *SQLiteStore) CountNotes() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&count)
	return count, err
}

// =============================================================================
// Full text search
// =============================================================================

// IndexNoteBody replaces the FTS row for a note. Safe to call repeatedly;
// the prior row (if any) is deleted first since FTS5 has no upsert.
func (s *SQLiteStore) IndexNoteBody(noteID, title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE note_id = ?`, noteID); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO notes_fts (note_id, title, body) VALUES (?, ?, ?)`, noteID, title, body); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SearchFTS(query string, limit int) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT note_id, bm25(notes_fts), snippet(notes_fts, 2, '[', ']', '...', 12)
		FROM notes_fts WHERE notes_fts MATCH ? ORDER BY bm25(notes_fts) LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.NoteID, &h.Score, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// =============================================================================
// Episodic / prospective metadata
// =============================================================================

func (s *SQLiteStore) UpsertEpisodic(meta *EpisodicMetadata) error {
	who, err := json.Marshal(meta.Who)
	if err != nil {
		return err
	}
	what, err := json.Marshal(meta.What)
	if err != nil {
		return err
	}
	where, err := json.Marshal(meta.Where)
	if err != nil {
		return err
	}
	when, err := json.Marshal(meta.When)
	if err != nil {
		return err
	}
	tags, err := json.Marshal(meta.Tags)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO episodic_metadata (note_id, who_json, what_json, where_json, when_json, tags_json, title)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET
			who_json = excluded.who_json, what_json = excluded.what_json,
			where_json = excluded.where_json, when_json = excluded.when_json,
			tags_json = excluded.tags_json, title = excluded.title
	`, meta.NoteID, string(who), string(what), string(where), string(when), string(tags), meta.Title)
	return err
}

func (s *SQLiteStore) GetEpisodic(noteID string) (*EpisodicMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var meta EpisodicMetadata
	var who, what, where, when, tags string
	err := s.db.QueryRow(`
		SELECT note_id, who_json, what_json, where_json, when_json, tags_json, title
		FROM episodic_metadata WHERE note_id = ?
	`, noteID).Scan(&meta.NoteID, &who, &what, &where, &when, &tags, &meta.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(who), &meta.Who); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(what), &meta.What); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(where), &meta.Where); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(when), &meta.When); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &meta.Tags); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *SQLiteStore) UpsertProspective(meta *ProspectiveMetadata) error {
	items, err := json.Marshal(meta.Items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO prospective_metadata (note_id, contains_prospective, items_json)
		VALUES (?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET
			contains_prospective = excluded.contains_prospective, items_json = excluded.items_json
	`, meta.NoteID, boolToInt(meta.ContainsProspective), string(items))
	return err
}

func (s *SQLiteStore) GetProspective(noteID string) (*ProspectiveMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var meta ProspectiveMetadata
	var containsProspective int
	var items string
	err := s.db.QueryRow(`
		SELECT note_id, contains_prospective, items_json FROM prospective_metadata WHERE note_id = ?
	`, noteID).Scan(&meta.NoteID, &containsProspective, &items)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	meta.ContainsProspective = containsProspective != 0
	if err := json.Unmarshal([]byte(items), &meta.Items); err != nil {
		return nil, err
	}
	return &meta, nil
}

// =============================================================================
// Tags
// =============================================================================

func tagLevel(name string) int {
	level := 0
	for _, r := range name {
		if r == '/' {
			level++
		}
	}
	return level
}

func tagParentName(name string) string {
	last := -1
	for i, r := range name {
		if r == '/' {
			last = i
		}
	}
	if last < 0 {
		return ""
	}
	return name[:last]
}

// GetOrCreateTag returns the existing tag matching name (case-insensitively)
// or creates one, inserting missing ancestor tags along the slash path.
func (s *SQLiteStore) GetOrCreateTag(name, source string) (*Tag, error) {
	if existing, err := s.GetTagByName(name); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	var parentID string
	if parentName := tagParentName(name); parentName != "" {
		parent, err := s.GetOrCreateTag(parentName, source)
		if err != nil {
			return nil, err
		}
		parentID = parent.ID
	}

	now := time.Now().UnixMilli()
	tag := &Tag{
		ID:         newID(),
		Name:       name,
		ParentID:   parentID,
		Level:      tagLevel(name),
		CreatedAt:  now,
		LastUsedAt: now,
		Source:     source,
	}

	s.mu.Lock()
	_, err := s.db.Exec(`
		INSERT INTO tags (id, name, parent_id, level, use_count, created_at, last_used_at, source)
		VALUES (?, ?, NULLIF(?, ''), ?, 0, ?, ?, ?)
	`, tag.ID, tag.Name, tag.ParentID, tag.Level, tag.CreatedAt, tag.LastUsedAt, tag.Source)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func scanTag(row interface{ Scan(...any) error }) (*Tag, error) {
	var t Tag
	var parentID sql.NullString
	err := row.Scan(&t.ID, &t.Name, &parentID, &t.Level, &t.UseCount, &t.CreatedAt, &t.LastUsedAt, &t.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		t.ParentID = parentID.String
	}
	return &t, nil
}

func (s *SQLiteStore) GetTag(id string) (*Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`
		SELECT id, name, parent_id, level, use_count, created_at, last_used_at, source FROM tags WHERE id = ?
	`, id)
	return scanTag(row)
}

func (s *SQLiteStore) GetTagByName(name string) (*Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`
		SELECT id, name, parent_id, level, use_count, created_at, last_used_at, source
		FROM tags WHERE name = ? COLLATE NOCASE
	`, name)
	return scanTag(row)
}

func (s *SQLiteStore) TouchTag(tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE tags SET last_used_at = ? WHERE id = ?`, time.Now().UnixMilli(), tagID)
	return err
}

func (s *SQLiteStore) RenameTag(tagID, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE tags SET name = ?, level = ? WHERE id = ?`, newName, tagLevel(newName), tagID)
	return err
}

// MergeTags repoints every note_tags row from fromID to intoID and deletes
// fromID. Rows that would collide (note already tagged with intoID) are
// dropped instead of violating the (note_id, tag_id) primary key.
func (s *SQLiteStore) MergeTags(fromID, intoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM note_tags WHERE tag_id = ? AND note_id IN (
			SELECT note_id FROM note_tags WHERE tag_id = ?
		)
	`, fromID, intoID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE note_tags SET tag_id = ? WHERE tag_id = ?`, intoID, fromID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE tags SET parent_id = ? WHERE parent_id = ?`, intoID, fromID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tags WHERE id = ?`, fromID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteTag(tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM note_tags WHERE tag_id = ?`, tagID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE tags SET parent_id = NULL WHERE parent_id = ?`, tagID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tags WHERE id = ?`, tagID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListTags() ([]*Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT id, name, parent_id, level, use_count, created_at, last_used_at, source FROM tags ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

func (s *SQLiteStore) ListChildTags(parentID string) ([]*Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT id, name, parent_id, level, use_count, created_at, last_used_at, source
		FROM tags WHERE parent_id = ? ORDER BY name
	`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

func scanTags(rows *sql.Rows) ([]*Tag, error) {
	var tags []*Tag
	for rows.Next() {
		var t Tag
		var parentID sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &parentID, &t.Level, &t.UseCount, &t.CreatedAt, &t.LastUsedAt, &t.Source); err != nil {
			return nil, err
		}
		if parentID.Valid {
			t.ParentID = parentID.String
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// TagUsageStats buckets every tag by days since last use, computed in SQL
// against the wall-clock time read when the method is called.
func (s *SQLiteStore) TagUsageStats() (*TagUsageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UnixMilli()
	var stats TagUsageStats
	err := s.db.QueryRow(`
		SELECT
			SUM(CASE WHEN (? - last_used_at) <= 7*86400000 THEN 1 ELSE 0 END),
			SUM(CASE WHEN (? - last_used_at) > 7*86400000 AND (? - last_used_at) <= 30*86400000 THEN 1 ELSE 0 END),
			SUM(CASE WHEN (? - last_used_at) > 30*86400000 AND (? - last_used_at) <= 90*86400000 THEN 1 ELSE 0 END),
			SUM(CASE WHEN (? - last_used_at) > 90*86400000 THEN 1 ELSE 0 END)
		FROM tags
	`, now, now, now, now, now, now).Scan(&stats.Active, &stats.Recent, &stats.Stale, &stats.Dormant)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// =============================================================================
// Note-tag associations
// =============================================================================

func (s *SQLiteStore) AddNoteTag(nt *NoteTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO note_tags (note_id, tag_id, created_at, source) VALUES (?, ?, ?, ?)
	`, nt.NoteID, nt.TagID, nt.CreatedAt, nt.Source)
	return err
}

func (s *SQLiteStore) RemoveNoteTag(noteID, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM note_tags WHERE note_id = ? AND tag_id = ?`, noteID, tagID)
	return err
}

func (s *SQLiteStore) ListTagsForNote(noteID string) ([]*Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT t.id, t.name, t.parent_id, t.level, t.use_count, t.created_at, t.last_used_at, t.source
		FROM tags t JOIN note_tags nt ON nt.tag_id = t.id
		WHERE nt.note_id = ? ORDER BY t.name
	`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

func (s *SQLiteStore) ListNotesForTag(tagID string) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT n.id, n.title, n.path, n.cluster_id, n.created_at, n.updated_at
		FROM notes n JOIN note_tags nt ON nt.note_id = n.id
		WHERE nt.tag_id = ? ORDER BY n.updated_at DESC
	`, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		var n Note
		var clusterID sql.NullString
		if err := rows.Scan(&n.ID, &n.Title, &n.Path, &clusterID, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		if clusterID.Valid {
			n.ClusterID = clusterID.String
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// =============================================================================
// Embeddings
// =============================================================================

func float32ToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func bytesToFloat32(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		v[i] = math.Float32frombits(bits)
	}
	return v
}

func (s *SQLiteStore) UpsertEmbedding(emb *Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO embeddings (note_id, vector, dim, model) VALUES (?, ?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET vector = excluded.vector, dim = excluded.dim, model = excluded.model
	`, emb.NoteID, float32ToBytes(emb.Vector), len(emb.Vector), emb.Model)
	return err
}

func (s *SQLiteStore) GetEmbedding(noteID string) (*Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var emb Embedding
	var vector []byte
	err := s.db.QueryRow(`SELECT note_id, vector, model FROM embeddings WHERE note_id = ?`, noteID).
		Scan(&emb.NoteID, &vector, &emb.Model)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	emb.Vector = bytesToFloat32(vector)
	return &emb, nil
}

func (s *SQLiteStore) ListEmbeddings() ([]*Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT note_id, vector, model FROM embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var embs []*Embedding
	for rows.Next() {
		var emb Embedding
		var vector []byte
		if err := rows.Scan(&emb.NoteID, &vector, &emb.Model); err != nil {
			return nil, err
		}
		emb.Vector = bytesToFloat32(vector)
		embs = append(embs, &emb)
	}
	return embs, rows.Err()
}

// =============================================================================
// Edges
// =============================================================================

func (s *SQLiteStore) UpsertEdge(edge *Edge) error {
	a, b := edge.A, edge.B
	if a > b {
		a, b = b, a
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO edges (a, b, relation, weight, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(a, b, relation) DO UPDATE SET weight = excluded.weight, metadata_json = excluded.metadata_json
	`, a, b, edge.Relation, edge.Weight, nullIfEmpty(edge.MetadataJSON), edge.CreatedAt)
	return err
}

// DeleteEdgesForRelation removes all edges of relation touching noteID,
// used to recompute a note's semantic/entity_link/tag_link edges from
// scratch rather than diffing the previous set.
func (s *SQLiteStore) DeleteEdgesForRelation(noteID, relation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM edges WHERE relation = ? AND (a = ? OR b = ?)`, relation, noteID, noteID)
	return err
}

func (s *SQLiteStore) ListEdgesForNote(noteID string) ([]*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT a, b, relation, weight, metadata_json, created_at FROM edges WHERE a = ? OR b = ?
	`, noteID, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

func (s *SQLiteStore) ListAllEdges() ([]*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT a, b, relation, weight, metadata_json, created_at FROM edges`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]*Edge, error) {
	var edges []*Edge
	for rows.Next() {
		var e Edge
		var meta sql.NullString
		if err := rows.Scan(&e.A, &e.B, &e.Relation, &e.Weight, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		if meta.Valid {
			e.MetadataJSON = meta.String
		}
		edges = append(edges, &e)
	}
	return edges, rows.Err()
}

// =============================================================================
// Clusters
// =============================================================================

func (s *SQLiteStore) UpsertCluster(c *Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO clusters (id, title, summary, size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, summary = excluded.summary,
			size = excluded.size, updated_at = excluded.updated_at
	`, c.ID, c.Title, c.Summary, c.Size, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *SQLiteStore) GetCluster(id string) (*Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c Cluster
	err := s.db.QueryRow(`
		SELECT id, title, summary, size, created_at, updated_at FROM clusters WHERE id = ?
	`, id).Scan(&c.ID, &c.Title, &c.Summary, &c.Size, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) ListClusters() ([]*Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT id, title, summary, size, created_at, updated_at FROM clusters ORDER BY size DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []*Cluster
	for rows.Next() {
		var c Cluster
		if err := rows.Scan(&c.ID, &c.Title, &c.Summary, &c.Size, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		clusters = append(clusters, &c)
	}
	return clusters, rows.Err()
}

// DeleteAllClusters clears cluster assignments and rows ahead of a full
// community detection rebuild.
func (s *SQLiteStore) DeleteAllClusters() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`UPDATE notes SET cluster_id = NULL`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM clusters`); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// LLM audit trail
// =============================================================================

func (s *SQLiteStore) RecordLLMOperation(op *LLMOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op.ID == "" {
		op.ID = newID()
	}
	_, err := s.db.Exec(`
		INSERT INTO llm_operations (id, note_id, kind, prompt_text, raw_response, parsed_output_json,
			tokens_in, tokens_out, duration_ms, cost_usd, created_at)
		VALUES (?, NULLIF(?, ''), ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?)
	`, op.ID, op.NoteID, op.Kind, op.PromptText, op.RawResponse, op.ParsedOutputJSON,
		op.TokensIn, op.TokensOut, op.DurationMS, op.CostUSD, op.CreatedAt)
	return err
}

// =============================================================================
// Helpers
// =============================================================================

func newID() string {
	return uuid.NewString()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

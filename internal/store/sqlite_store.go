package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)

	engerrors "github.com/memengine/memengine/internal/errors"
)

// Store is the encrypted, single-file embedded database described by the
// Encrypted Store component: a Memory table, its FTS5 full-text index, an
// embeddings table, and a small key-value state table, all in one sqlite
// file guarded by an exclusive cross-process advisory lock.
//
// Content, tags, and metadata columns are sealed at rest with AES-256-GCM
// under a key derived via PBKDF2-HMAC-SHA256 from the caller-supplied
// passphrase. content_hash is computed over the plaintext, so dedupe and
// the FTS index (fed pre-tokenized plaintext) are unaffected by encryption.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	lock   *flock.Flock
	keys   *keyring
	closed bool
}

var _ MetadataStore = (*Store)(nil)
var _ FTSIndex = (*Store)(nil)

// Open creates or opens the store at <projectRoot>/.store/db, acquiring an
// exclusive writer lock and deriving the encryption key from passphrase.
// Returns ErrKeyMismatch if an existing database's key-check value does not
// verify under the derived key.
func Open(ctx context.Context, projectRoot string, passphrase []byte) (*Store, error) {
	storeDir := filepath.Join(projectRoot, ".store")
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "create store directory", err)
	}
	dbPath := filepath.Join(storeDir, "db")

	lock := flock.New(filepath.Join(storeDir, ".writer.lock"))
	if err := lock.Lock(); err != nil {
		return nil, engerrors.StoreError(engerrors.ErrCodeConflict, "acquire exclusive store lock", err)
	}

	if err := validateIntegrity(dbPath); err != nil {
		slog.Warn("store_corrupted", slog.String("path", dbPath), slog.String("error", err.Error()))
		if recErr := quarantine(dbPath); recErr != nil {
			_ = lock.Unlock()
			return nil, engerrors.StoreError(engerrors.ErrCodeCorruption, "quarantine corrupted database", recErr)
		}
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "open database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "set pragma "+p, err)
		}
	}

	s := &Store{db: db, path: dbPath, lock: lock}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "initialize schema", err)
	}

	salt, err := s.loadOrCreateSalt(ctx)
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	s.keys = deriveKeyring(passphrase, salt)

	if err := s.verifyOrWriteKeyCheck(ctx); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	return s, nil
}

func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='memories'`).Scan(&count); err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("memories table missing")
	}
	return nil
}

// quarantine renames a corrupted database aside so a fresh one can be created,
// per the db-doctor rebuild-with-backup contract.
func quarantine(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	ts := time.Now().UTC().Format("20060102-150405")
	dest := fmt.Sprintf("%s.corrupt-%s", path, ts)
	if err := os.Rename(path, dest); err != nil {
		return err
	}
	_ = os.Rename(path+"-wal", dest+"-wal")
	_ = os.Rename(path+"-shm", dest+"-shm")
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		context TEXT NOT NULL,
		kind TEXT NOT NULL,
		tags TEXT,
		metadata TEXT,
		content_hash TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_kind ON memories(kind);

	CREATE TABLE IF NOT EXISTS embeddings (
		memory_id INTEGER PRIMARY KEY REFERENCES memories(id) ON DELETE CASCADE,
		dimension INTEGER NOT NULL,
		vector BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS fts_content USING fts5(
		doc_id UNINDEXED,
		content,
		tokenize='unicode61'
	);
	CREATE TABLE IF NOT EXISTS doc_ids (
		doc_id TEXT PRIMARY KEY
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO meta(key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(CurrentSchemaVersion))
	return err
}

func (s *Store) loadOrCreateSalt(ctx context.Context) ([]byte, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'salt'`).Scan(&encoded)
	if err == nil {
		return decodeSalt(encoded)
	}
	if err != sql.ErrNoRows {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "load salt", err)
	}
	salt, genErr := newSalt()
	if genErr != nil {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "generate salt", genErr)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES ('salt', ?)`, encodeSalt(salt)); err != nil {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "persist salt", err)
	}
	return salt, nil
}

func (s *Store) verifyOrWriteKeyCheck(ctx context.Context) error {
	expected := s.keys.keyCheckValue()
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, StateKeyKeyCheck).Scan(&stored)
	if err == sql.ErrNoRows {
		_, err := s.db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES (?, ?)`,
			StateKeyKeyCheck, encodeSalt(expected))
		if err != nil {
			return engerrors.StoreError(engerrors.ErrCodeInternal, "persist key check", err)
		}
		return nil
	}
	if err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "load key check", err)
	}
	got, err := decodeSalt(stored)
	if err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "decode key check", err)
	}
	if !bytesEqual(got, expected) {
		return engerrors.New(engerrors.ErrCodeKeyMismatch, "encryption key does not match this database", ErrKeyMismatch{})
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- Memory CRUD ---

// InsertMemory computes content_hash over content+context and inserts the
// row, sealing content/tags/metadata at rest. On a content_hash collision it
// returns the existing row's id with created=false.
func (s *Store) InsertMemory(ctx context.Context, m *Memory) (int64, bool, error) {
	if len([]rune(m.Content)) > MaxContentLength {
		return 0, false, engerrors.New(engerrors.ErrCodeInputTooLarge,
			fmt.Sprintf("content exceeds %d characters", MaxContentLength), nil)
	}
	if m.Context == "" {
		m.Context = "general"
	}
	if m.Kind == "" {
		m.Kind = "general"
	}
	hash := contentHash(m.Content, m.Context)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false, engerrors.InternalError("store is closed", nil)
	}

	var existingID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM memories WHERE content_hash = ?`, hash).Scan(&existingID)
	if err == nil {
		return existingID, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, engerrors.StoreError(engerrors.ErrCodeInternal, "lookup content hash", err)
	}

	sealedContent, err := s.keys.sealString(m.Content)
	if err != nil {
		return 0, false, engerrors.StoreError(engerrors.ErrCodeInternal, "seal content", err)
	}
	tagsJSON, _ := json.Marshal(m.Tags)
	metaJSON, _ := json.Marshal(m.Metadata)
	sealedTags, err := s.keys.sealString(string(tagsJSON))
	if err != nil {
		return 0, false, engerrors.StoreError(engerrors.ErrCodeInternal, "seal tags", err)
	}
	sealedMeta, err := s.keys.sealString(string(metaJSON))
	if err != nil {
		return 0, false, engerrors.StoreError(engerrors.ErrCodeInternal, "seal metadata", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memories(content, context, kind, tags, metadata, content_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sealedContent, m.Context, m.Kind, sealedTags, sealedMeta, hash,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return 0, false, engerrors.StoreError(engerrors.ErrCodeInternal, "insert memory", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, engerrors.StoreError(engerrors.ErrCodeInternal, "read inserted id", err)
	}

	if err := s.indexFTSLocked(ctx, strconv.FormatInt(id, 10), m.Content); err != nil {
		return 0, false, err
	}

	m.ID = id
	m.ContentHash = hash
	m.CreatedAt = now
	m.UpdatedAt = now
	return id, true, nil
}

func contentHash(content, context string) string {
	return sha256Hex(context + "\x00" + content)
}

func (s *Store) scanMemory(row interface {
	Scan(dest ...any) error
}) (*Memory, error) {
	var (
		id                                    int64
		content, context, kind               string
		sealedTags, sealedMeta               sql.NullString
		hash, createdAt, updatedAt            string
	)
	if err := row.Scan(&id, &content, &context, &kind, &sealedTags, &sealedMeta, &hash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	plainContent, err := s.keys.openString(content)
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeKeyMismatch, "decrypt memory content", err)
	}
	plainTags, err := s.keys.openString(sealedTags.String)
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeKeyMismatch, "decrypt memory tags", err)
	}
	plainMeta, err := s.keys.openString(sealedMeta.String)
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeKeyMismatch, "decrypt memory metadata", err)
	}
	var tags []string
	_ = json.Unmarshal([]byte(orEmptyJSONArray(plainTags)), &tags)
	meta := map[string]string{}
	_ = json.Unmarshal([]byte(orEmptyJSONObject(plainMeta)), &meta)

	createdT, _ := time.Parse(time.RFC3339Nano, createdAt)
	updatedT, _ := time.Parse(time.RFC3339Nano, updatedAt)

	return &Memory{
		ID: id, Content: plainContent, Context: context, Kind: kind,
		Tags: tags, Metadata: meta, ContentHash: hash,
		CreatedAt: createdT, UpdatedAt: updatedT,
	}, nil
}

func orEmptyJSONArray(s string) string {
	if s == "" {
		return "[]"
	}
	return s
}

func orEmptyJSONObject(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}

func (s *Store) GetMemory(ctx context.Context, id int64) (*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, context, kind, tags, metadata, content_hash, created_at, updated_at
		 FROM memories WHERE id = ?`, id)
	m, err := s.scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, engerrors.New(engerrors.ErrCodeNotFound, fmt.Sprintf("memory %d not found", id), err)
	}
	return m, err
}

func (s *Store) GetMemoryByHash(ctx context.Context, hash string) (*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, context, kind, tags, metadata, content_hash, created_at, updated_at
		 FROM memories WHERE content_hash = ?`, hash)
	m, err := s.scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, engerrors.New(engerrors.ErrCodeNotFound, "memory not found", err)
	}
	return m, err
}

func (s *Store) ListMemories(ctx context.Context, kind string, limit int) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows *sql.Rows
	var err error
	if kind == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, content, context, kind, tags, metadata, content_hash, created_at, updated_at
			 FROM memories ORDER BY id LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, content, context, kind, tags, metadata, content_hash, created_at, updated_at
			 FROM memories WHERE kind = ? ORDER BY id LIMIT ?`, kind, limit)
	}
	if err != nil {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "list memories", err)
	}
	defer rows.Close()
	var out []*Memory
	for rows.Next() {
		m, err := s.scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListMemoriesByPath(ctx context.Context, path string) ([]*Memory, error) {
	// metadata is sealed, so filtering happens after decryption.
	all, err := s.ListMemories(ctx, "", 1_000_000)
	if err != nil {
		return nil, err
	}
	var out []*Memory
	for _, m := range all {
		if m.Metadata["path"] == path {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) UpdateMemoryMetadata(ctx context.Context, id int64, tags []string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tagsJSON, _ := json.Marshal(tags)
	metaJSON, _ := json.Marshal(metadata)
	sealedTags, err := s.keys.sealString(string(tagsJSON))
	if err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "seal tags", err)
	}
	sealedMeta, err := s.keys.sealString(string(metaJSON))
	if err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "seal metadata", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET tags = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		sealedTags, sealedMeta, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "update memory metadata", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return engerrors.New(engerrors.ErrCodeNotFound, fmt.Sprintf("memory %d not found", id), nil)
	}
	return nil
}

func (s *Store) DeleteMemory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "delete memory", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE memory_id = ?`, id); err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "delete embedding", err)
	}
	docID := strconv.FormatInt(id, 10)
	return s.deleteFTSLocked(ctx, []string{docID})
}

// --- Embeddings ---

func (s *Store) PutEmbedding(ctx context.Context, e *Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob := float32sToBytes(e.Vector)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings(memory_id, dimension, vector) VALUES (?, ?, ?)
		 ON CONFLICT(memory_id) DO UPDATE SET dimension = excluded.dimension, vector = excluded.vector`,
		e.MemoryID, e.Dimension, blob)
	if err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "put embedding", err)
	}
	return nil
}

func (s *Store) GetEmbedding(ctx context.Context, memoryID int64) (*Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var dim int
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT dimension, vector FROM embeddings WHERE memory_id = ?`, memoryID).Scan(&dim, &blob)
	if err == sql.ErrNoRows {
		return nil, engerrors.New(engerrors.ErrCodeNotFound, "embedding not found", err)
	}
	if err != nil {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "get embedding", err)
	}
	return &Embedding{MemoryID: memoryID, Dimension: dim, Vector: bytesToFloat32s(blob)}, nil
}

func (s *Store) GetAllEmbeddings(ctx context.Context) (map[int64][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT memory_id, vector FROM embeddings`)
	if err != nil {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "list embeddings", err)
	}
	defer rows.Close()
	out := map[int64][]float32{}
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		out[id] = bytesToFloat32s(blob)
	}
	return out, rows.Err()
}

func (s *Store) DeleteEmbedding(ctx context.Context, memoryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE memory_id = ?`, memoryID)
	return err
}

// --- State / checkpoint ---

func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

func (s *Store) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state(key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

func (s *Store) SaveIndexCheckpoint(ctx context.Context, stage string, total, embeddedCount int, embedderModel string) error {
	fields := map[string]string{
		StateKeyCheckpointStage:         stage,
		StateKeyCheckpointTotal:         strconv.Itoa(total),
		StateKeyCheckpointEmbedded:      strconv.Itoa(embeddedCount),
		StateKeyCheckpointTimestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		StateKeyCheckpointEmbedderModel: embedderModel,
	}
	for k, v := range fields {
		if err := s.SetState(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LoadIndexCheckpoint(ctx context.Context) (*IndexCheckpoint, error) {
	stage, _ := s.GetState(ctx, StateKeyCheckpointStage)
	if stage == "" {
		return nil, nil
	}
	totalStr, _ := s.GetState(ctx, StateKeyCheckpointTotal)
	embeddedStr, _ := s.GetState(ctx, StateKeyCheckpointEmbedded)
	tsStr, _ := s.GetState(ctx, StateKeyCheckpointTimestamp)
	model, _ := s.GetState(ctx, StateKeyCheckpointEmbedderModel)
	total, _ := strconv.Atoi(totalStr)
	embedded, _ := strconv.Atoi(embeddedStr)
	ts, _ := time.Parse(time.RFC3339Nano, tsStr)
	return &IndexCheckpoint{Stage: stage, Total: total, EmbeddedCount: embedded, Timestamp: ts, EmbedderModel: model}, nil
}

func (s *Store) ClearIndexCheckpoint(ctx context.Context) error {
	keys := []string{StateKeyCheckpointStage, StateKeyCheckpointTotal, StateKeyCheckpointEmbedded,
		StateKeyCheckpointTimestamp, StateKeyCheckpointEmbedderModel}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, k); err != nil {
			return err
		}
	}
	return nil
}

// --- Maintenance ---

func (s *Store) DBDoctor(ctx context.Context) (*DoctorReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "integrity check", err)
	}
	var count int
	_ = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&count)
	if result == "ok" {
		return &DoctorReport{Healthy: true, MemoryCount: count, Detail: "ok"}, nil
	}
	return &DoctorReport{Healthy: false, MemoryCount: count, Detail: result}, nil
}

func (s *Store) GC(ctx context.Context, opts GCOptions) (*GCReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report := &GCReport{}
	if opts.PruneOrphanVectors {
		res, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE memory_id NOT IN (SELECT id FROM memories)`)
		if err != nil {
			return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "prune orphan vectors", err)
		}
		n, _ := res.RowsAffected()
		report.OrphanVectorsDropped = int(n)
	}
	if opts.Vacuum {
		if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
			return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "vacuum", err)
		}
		report.Vacuumed = true
	}
	return report, nil
}

// --- FTS (full-text, BM25 via sqlite FTS5) ---
// These implement FTSIndex directly against the same database file so the
// store stays a single file, per the single-file requirement.

func (s *Store) indexFTSLocked(ctx context.Context, docID, content string) error {
	processed := strings.Join(TokenizeCode(content), " ")
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fts_content WHERE doc_id = ?`, docID); err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "clear fts row", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO fts_content(doc_id, content) VALUES (?, ?)`, docID, processed); err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "index fts row", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO doc_ids(doc_id) VALUES (?)`, docID); err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "track doc id", err)
	}
	return nil
}

func (s *Store) deleteFTSLocked(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(docIDs))
	args := make([]any, len(docIDs))
	for i, id := range docIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	in := strings.Join(placeholders, ",")
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM fts_content WHERE doc_id IN (%s)`, in), args...); err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "delete fts rows", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM doc_ids WHERE doc_id IN (%s)`, in), args...); err != nil {
		return engerrors.StoreError(engerrors.ErrCodeInternal, "delete doc ids", err)
	}
	return nil
}

// Index implements FTSIndex for bulk reindex paths (index-code).
func (s *Store) Index(ctx context.Context, docs []*Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if err := s.indexFTSLocked(ctx, d.ID, d.Content); err != nil {
			return err
		}
	}
	return nil
}

// Search performs a BM25 full-text query via FTS5's bm25() ranking function,
// negated so higher is better, matching the vector index's convention.
func (s *Store) Search(ctx context.Context, queryStr string, limit int) ([]*BM25Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if strings.TrimSpace(queryStr) == "" {
		return []*BM25Result{}, nil
	}
	tokens := TokenizeCode(queryStr)
	if len(tokens) == 0 {
		return []*BM25Result{}, nil
	}
	processed := strings.Join(tokens, " ")
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, bm25(fts_content) as score FROM fts_content WHERE content MATCH ? ORDER BY score LIMIT ?`,
		processed, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*BM25Result{}, nil
		}
		return nil, engerrors.StoreError(engerrors.ErrCodeInternal, "fts search", err)
	}
	defer rows.Close()
	var results []*BM25Result
	for rows.Next() {
		var docID string
		var score float64
		if err := rows.Scan(&docID, &score); err != nil {
			return nil, err
		}
		results = append(results, &BM25Result{DocID: docID, Score: -score, MatchedTerms: tokens})
	}
	return results, rows.Err()
}

func (s *Store) Delete(ctx context.Context, docIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteFTSLocked(ctx, docIDs)
}

func (s *Store) AllIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT doc_id FROM doc_ids ORDER BY doc_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Stats() *IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM doc_ids`).Scan(&count)
	return &IndexStats{DocumentCount: count}
}

// Save forces a WAL checkpoint; Load/path are no-ops since the FTS table
// lives inside the already-open store database (single-file requirement).
func (s *Store) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

func (s *Store) Load(path string) error { return nil }

// Close checkpoints the WAL, closes the database, and releases the writer lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	_ = s.lock.Unlock()
	return err
}

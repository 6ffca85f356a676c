// Package store provides the record stores behind rag.VectorStore: a
// SQLite-backed persistent index, an explicit in-memory store, and a Qdrant
// adapter. All of them rank by exact cosine similarity so results do not
// depend on which backend is configured.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/rag"
)

// SQLiteStore is a rag.VectorStore backed by a single-table SQLite database.
type SQLiteStore struct {
	// path is the database file, or ":memory:".
	path string
	// mu guards db across Init and Close.
	mu sync.RWMutex
	// db is nil until Init succeeds and after Close.
	db *sql.DB
}

// DefaultDBPath returns the default index location, ~/.acrecall/index.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".acrecall", "index.db"), nil
}

// NewSQLite returns an uninitialized SQLiteStore for path. Use ":memory:"
// for an in-memory database in tests.
func NewSQLite(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Name returns "sqlite".
func (s *SQLiteStore) Name() string { return "sqlite" }

// Init opens (or creates) the database and runs the schema migration.
// Calling Init on an open store is a no-op.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	dsn := s.path
	if s.path != ":memory:" {
		if dir := filepath.Dir(s.path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return errs.Wrap(errs.ErrStorageUnavailable, errs.CodeStorageUnavailable,
					fmt.Sprintf("store: create %s: %v", dir, err), "path", s.path)
			}
		}
		dsn = "file:" + s.path
	}
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return errs.Wrap(errs.ErrStorageUnavailable, errs.CodeStorageUnavailable,
			fmt.Sprintf("store: open %s: %v", s.path, err), "path", s.path)
	}
	// Limit to a single connection: it keeps ":memory:" databases shared and
	// avoids SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errs.Wrap(errs.ErrStorageUnavailable, errs.CodeStorageUnavailable,
			fmt.Sprintf("store: ping %s: %v", s.path, err), "path", s.path)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return errs.Wrap(errs.ErrStorageUnavailable, errs.CodeStorageUnavailable,
			err.Error(), "path", s.path)
	}
	s.db = db
	return nil
}

// migrate creates the schema if it does not already exist.
func migrate(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS records (
    id          TEXT PRIMARY KEY,
    text        TEXT NOT NULL,
    embedding   TEXT NOT NULL,  -- JSON float array
    sourceFile  TEXT NOT NULL,
    created     TEXT NOT NULL,  -- RFC3339Nano
    author      TEXT NULL,
    type        TEXT NOT NULL
);
`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// conn returns the open handle or ErrNotInitialized. The read lock is held
// until release is called.
func (s *SQLiteStore) conn(op string) (db *sql.DB, release func(), err error) {
	s.mu.RLock()
	if s.db == nil {
		s.mu.RUnlock()
		return nil, nil, fmt.Errorf("store: %s: %w", op, errs.ErrNotInitialized)
	}
	return s.db, s.mu.RUnlock, nil
}

// AddRecord upserts r. The row keeps its original position in scan order
// when overwritten.
func (s *SQLiteStore) AddRecord(ctx context.Context, r rag.Record) error {
	db, release, err := s.conn("add record")
	if err != nil {
		return err
	}
	defer release()

	emb, err := json.Marshal(nonNil(r.Embedding))
	if err != nil {
		return fmt.Errorf("store: add record: marshal embedding: %w", err)
	}
	created := r.Metadata.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	const q = `
INSERT INTO records (id, text, embedding, sourceFile, created, author, type)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    text = excluded.text,
    embedding = excluded.embedding,
    sourceFile = excluded.sourceFile,
    created = excluded.created,
    author = excluded.author,
    type = excluded.type`
	if _, err := db.ExecContext(ctx, q,
		r.ID, r.Text, string(emb), r.SourceFile,
		created.Format(time.RFC3339Nano), nullString(r.Metadata.Author), string(r.Metadata.Type),
	); err != nil {
		return errs.Wrap(err, errs.CodeStorageFailure, "store: add record", "id", r.ID)
	}
	return nil
}

// GetRecord returns the record with id. A missing id is not an error.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (rag.Record, bool, error) {
	db, release, err := s.conn("get record")
	if err != nil {
		return rag.Record{}, false, err
	}
	defer release()

	recs, err := queryRecords(ctx, db, selectRecords+` WHERE id = ?`, id)
	if err != nil {
		return rag.Record{}, false, fmt.Errorf("store: get record: %w", err)
	}
	if len(recs) == 0 {
		return rag.Record{}, false, nil
	}
	return recs[0], true, nil
}

// FindByText returns every record whose text equals text, ignoring case.
func (s *SQLiteStore) FindByText(ctx context.Context, text string) ([]rag.Record, error) {
	all, err := s.GetAllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: find by text: %w", err)
	}
	return matchText(all, text), nil
}

// GetAllRecords returns every record in insertion order.
func (s *SQLiteStore) GetAllRecords(ctx context.Context) ([]rag.Record, error) {
	db, release, err := s.conn("get all records")
	if err != nil {
		return nil, err
	}
	defer release()

	recs, err := queryRecords(ctx, db, selectRecords+` ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: get all records: %w", err)
	}
	return recs, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	db, release, err := s.conn("count")
	if err != nil {
		return 0, err
	}
	defer release()

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, errs.Wrap(err, errs.CodeStorageFailure, "store: count")
	}
	return n, nil
}

// DeleteRecord removes id if present.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	db, release, err := s.conn("delete record")
	if err != nil {
		return err
	}
	defer release()

	if _, err := db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return errs.Wrap(err, errs.CodeStorageFailure, "store: delete record", "id", id)
	}
	return nil
}

// ClearAll removes every record.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	db, release, err := s.conn("clear all")
	if err != nil {
		return err
	}
	defer release()

	if _, err := db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return errs.Wrap(err, errs.CodeStorageFailure, "store: clear all")
	}
	return nil
}

// Search scans every record and ranks it against query.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, topK int, threshold float64) ([]rag.SearchResult, error) {
	all, err := s.GetAllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	return rag.Rank(query, all, topK, threshold), nil
}

// IsAvailable reports whether the database is open and answering.
func (s *SQLiteStore) IsAvailable(ctx context.Context) bool {
	db, release, err := s.conn("ping")
	if err != nil {
		return false
	}
	defer release()
	return db.PingContext(ctx) == nil
}

// Close releases the database handle. Closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

const selectRecords = `SELECT id, text, embedding, sourceFile, created, author, type FROM records`

// queryRecords runs q and decodes every row into a rag.Record.
func queryRecords(ctx context.Context, db *sql.DB, q string, args ...any) ([]rag.Record, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStorageFailure, "query")
	}
	defer rows.Close()

	recs := []rag.Record{}
	for rows.Next() {
		var (
			r       rag.Record
			emb     string
			created string
			author  sql.NullString
			typ     string
		)
		if err := rows.Scan(&r.ID, &r.Text, &emb, &r.SourceFile, &created, &author, &typ); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal([]byte(emb), &r.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for %q: %w", r.ID, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.Metadata.Created = t
		}
		r.Metadata.Author = author.String
		r.Metadata.Type = rag.RecordType(typ)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return recs, nil
}

// matchText filters recs to those whose text equals text, ignoring case.
func matchText(recs []rag.Record, text string) []rag.Record {
	out := []rag.Record{}
	for _, r := range recs {
		if strings.EqualFold(r.Text, text) {
			out = append(out, r)
		}
	}
	return out
}

// nonNil keeps empty embeddings encoded as [] rather than null.
func nonNil(v []float32) []float32 {
	if v == nil {
		return []float32{}
	}
	return v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

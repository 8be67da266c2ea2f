package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/ragcore/internal/index"
	"github.com/dshills/ragcore/pkg/types"
)

// Index metadata keys
const (
	MetaDimension      = "dimension"
	MetaEmbeddingModel = "embedding_model"
)

// ErrNotFound is returned when a requested meta key doesn't exist
var ErrNotFound = errors.New("not found")

// SQLite is a persistent index.Index backed by a single SQLite file.
// Vectors are stored as little-endian float32 blobs and scored in Go.
type SQLite struct {
	db *sql.DB

	// mu serializes writers against readers so a batch is never partially visible
	mu  sync.RWMutex
	dim int
}

var _ index.Index = (*SQLite)(nil)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single connection also keeps ":memory:" databases alive between calls
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLite opens (or creates) the index stored at dbPath and applies migrations.
// Use ":memory:" for a throwaway database.
func NewSQLite(ctx context.Context, dbPath string) (*SQLite, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.loadDimension(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) loadDimension(ctx context.Context) error {
	raw, err := s.getMeta(ctx, s.db, MetaDimension)
	if errors.Is(err, ErrNotFound) {
		s.dim = 0
		return nil
	}
	if err != nil {
		return err
	}
	dim, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid stored dimension %q: %w", raw, err)
	}
	s.dim = dim
	return nil
}

// Add inserts the batch in a single transaction after validating every embedding
func (s *SQLite) Add(ctx context.Context, entries []types.Entry) ([]string, error) {
	if len(entries) == 0 {
		return []string{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := index.ValidateBatch(s.dim, entries)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin transaction: %w", index.OpAdd, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (id, text, metadata, embedding, dimension)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: prepare insert: %w", index.OpAdd, err)
	}
	defer func() { _ = stmt.Close() }()

	ids := make([]string, len(entries))
	for i := range entries {
		meta, err := json.Marshal(types.CopyMetadata(entries[i].Metadata))
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: encode metadata: %w", index.OpAdd, i, err)
		}
		ids[i] = uuid.NewString()
		if _, err := stmt.ExecContext(ctx, ids[i], entries[i].Text, string(meta),
			serializeVector(entries[i].Embedding), len(entries[i].Embedding)); err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", index.OpAdd, i, err)
		}
	}

	if s.dim == 0 {
		if err := s.setMeta(ctx, tx, MetaDimension, strconv.Itoa(dim)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", index.OpAdd, err)
	}

	s.dim = dim
	return ids, nil
}

// Search loads every stored vector and ranks it by cosine similarity to query
func (s *SQLite) Search(ctx context.Context, query []float32, k int) ([]types.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, err := s.count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []types.Result{}, nil
	}
	if err := index.ValidateQuery(s.dim, query, k); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT seq, id, text, metadata, embedding FROM entries ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("%s: query entries: %w", index.OpSearch, err)
	}
	defer func() { _ = rows.Close() }()

	queryNorm := index.Norm(query)
	candidates := make([]index.Candidate, 0, n)
	for rows.Next() {
		var (
			c    index.Candidate
			meta string
			blob []byte
		)
		if err := rows.Scan(&c.Seq, &c.ID, &c.Text, &meta, &blob); err != nil {
			return nil, fmt.Errorf("%s: scan entry: %w", index.OpSearch, err)
		}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("%s: entry %s: decode metadata: %w", index.OpSearch, c.ID, err)
		}

		vec := deserializeVector(blob)
		if queryNorm != 0 {
			c.Score = index.CosineSimilarity(query, vec)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", index.OpSearch, err)
	}

	return index.Rank(candidates, k), nil
}

// Len returns the number of stored entries
func (s *SQLite) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count(ctx)
}

func (s *SQLite) count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Dimension returns the fixed embedding length, 0 while empty
func (s *SQLite) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Reset deletes every entry along with the stored dimension and embedding
// model. AUTOINCREMENT keeps sequence numbers from being reused.
func (s *SQLite) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta WHERE key IN (?, ?)", MetaDimension, MetaEmbeddingModel); err != nil {
		return fmt.Errorf("failed to clear index meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	s.dim = 0
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Meta returns an index-level setting such as the embedding model that built it
func (s *SQLite) Meta(ctx context.Context, key string) (string, error) {
	return s.getMeta(ctx, s.db, key)
}

// SetMeta stores an index-level setting
func (s *SQLite) SetMeta(ctx context.Context, key, value string) error {
	return s.setMeta(ctx, s.db, key, value)
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) getMeta(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLite) setMeta(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO index_meta (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// Package sqlitevec stores collections in SQLite using the sqlite-vec
// extension: one vec0 virtual table per collection plus a shared chunk
// text table.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"ragd/internal/embedding"
	"ragd/internal/vectorstore"
)

func init() {
	sqlite_vec.Auto()
}

// Store is a vectorstore.Store on a single SQLite database file.
type Store struct {
	db       *sql.DB
	embedder embedding.Embedder
	cache    *vectorstore.Cache
	log      zerolog.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// Config for Open. Path is a file path or ":memory:".
type Config struct {
	Path      string
	CacheSize int
	Logger    zerolog.Logger
}

// Open opens (creating if needed) the database at cfg.Path.
func Open(cfg Config, e embedding.Embedder) (*Store, error) {
	dsn := cfg.Path
	if dsn == "" || dsn == ":memory:" {
		// a private in-memory database shared by the pool's connections
		dsn = "file:ragd-" + uuid.NewString() + "?mode=memory&cache=shared"
	} else {
		dsn = "file:" + dsn + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.Path == "" || cfg.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	s := &Store{db: db, embedder: e, cache: vectorstore.NewCache(cfg.CacheSize), log: cfg.Logger}
	if err := s.initDB(); err != nil {
		_ = db.Close()
		return nil, err
	}
	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err == nil {
		s.log.Debug().Str("vec_version", version).Str("path", cfg.Path).Msg("sqlite-vec store opened")
	}
	return s, nil
}

func (s *Store) initDB() error {
	const q = `
	CREATE TABLE IF NOT EXISTS chunks (
		collection  TEXT    NOT NULL,
		chunk_index INTEGER NOT NULL,
		content     TEXT    NOT NULL,
		PRIMARY KEY (collection, chunk_index)
	);
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dim  INTEGER NOT NULL
	);`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Cache exposes the collection handle cache for status reporting.
func (s *Store) Cache() *vectorstore.Cache { return s.cache }

// serializeFloat32 converts a vector to the little-endian blob sqlite-vec expects.
func serializeFloat32(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// quoteIdent quotes a table name. Collection names are validated ids, so
// they never contain a double quote.
func quoteIdent(name string) string { return `"` + name + `"` }

func (s *Store) ReplaceCollection(ctx context.Context, docID string, chunks []string) (int, error) {
	if err := vectorstore.ValidateID(docID); err != nil {
		return 0, err
	}
	name := vectorstore.CollectionName(docID)
	// embed before opening the transaction so writers hold the lock briefly
	vecs, dim, err := vectorstore.EmbedAll(ctx, s.embedder, chunks)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := dropLocked(ctx, tx, name); err != nil {
		return 0, err
	}
	if len(chunks) > 0 {
		create := fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING vec0(chunk_index INTEGER PRIMARY KEY, embedding FLOAT[%d])`, quoteIdent(name), dim)
		if _, err := tx.ExecContext(ctx, create); err != nil {
			return 0, fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO collections (name, dim) VALUES (?, ?)`, name, dim); err != nil {
			return 0, fmt.Errorf("register %s: %w", name, err)
		}
		insVec, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (chunk_index, embedding) VALUES (?, ?)`, quoteIdent(name)))
		if err != nil {
			return 0, err
		}
		defer insVec.Close()
		insText, err := tx.PrepareContext(ctx, `INSERT INTO chunks (collection, chunk_index, content) VALUES (?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer insText.Close()
		for i, c := range chunks {
			if _, err := insVec.ExecContext(ctx, i, serializeFloat32(vecs[i])); err != nil {
				return 0, fmt.Errorf("insert vector %d: %w", i, err)
			}
			if _, err := insText.ExecContext(ctx, name, i, c); err != nil {
				return 0, fmt.Errorf("insert chunk %d: %w", i, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.cache.Invalidate(name)
	if len(chunks) > 0 {
		s.cache.Put(name, vectorstore.Handle{Dim: dim, Chunks: len(chunks)})
	}
	return len(chunks), nil
}

func dropLocked(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(name)); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("unregister %s: %w", name, err)
	}
	return nil
}

// handle returns the cached handle for name, loading it on a miss. ok is
// false when the collection does not exist. Misses are not cached.
func (s *Store) handle(ctx context.Context, name string) (vectorstore.Handle, bool, error) {
	if h, ok := s.cache.Get(name); ok {
		return h, true, nil
	}
	var h vectorstore.Handle
	err := s.db.QueryRowContext(ctx,
		`SELECT dim, (SELECT COUNT(*) FROM chunks WHERE collection = ?) FROM collections WHERE name = ?`,
		name, name).Scan(&h.Dim, &h.Chunks)
	if errors.Is(err, sql.ErrNoRows) {
		return vectorstore.Handle{}, false, nil
	}
	if err != nil {
		return vectorstore.Handle{}, false, fmt.Errorf("lookup %s: %w", name, err)
	}
	s.cache.Put(name, h)
	return h, true, nil
}

func (s *Store) Query(ctx context.Context, docID, queryText string, k int) ([]vectorstore.Hit, error) {
	if err := vectorstore.ValidateID(docID); err != nil {
		return nil, err
	}
	name := vectorstore.CollectionName(docID)
	h, ok, err := s.handle(ctx, name)
	if err != nil || !ok || k <= 0 {
		return nil, err
	}
	q, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	if len(q) != h.Dim {
		return nil, fmt.Errorf("query dimension %d does not match collection %s (%d)", len(q), name, h.Dim)
	}

	// vector and text are read in one transaction so a concurrent replace is
	// seen either entirely or not at all
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	query := fmt.Sprintf(`
		SELECT v.chunk_index, v.distance, c.content
		FROM %s v
		JOIN chunks c ON c.collection = ? AND c.chunk_index = v.chunk_index
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`, quoteIdent(name))
	rows, err := tx.QueryContext(ctx, query, name, serializeFloat32(q), k)
	if err != nil {
		// dropped between the handle lookup and the query
		s.cache.Invalidate(name)
		if isNoSuchTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("vector search %s: %w", name, err)
	}
	defer rows.Close()
	var hits []vectorstore.Hit
	for rows.Next() {
		hit := vectorstore.Hit{DocumentID: docID}
		if err := rows.Scan(&hit.ChunkIndex, &hit.Distance, &hit.Text); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *Store) DeleteCollection(ctx context.Context, docID string) error {
	if err := vectorstore.ValidateID(docID); err != nil {
		return err
	}
	name := vectorstore.CollectionName(docID)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := dropLocked(ctx, tx, name); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.cache.Invalidate(name)
	return nil
}

func (s *Store) Count(ctx context.Context, docID string) (int, error) {
	if err := vectorstore.ValidateID(docID); err != nil {
		return 0, err
	}
	h, _, err := s.handle(ctx, vectorstore.CollectionName(docID))
	return h.Chunks, err
}

func isNoSuchTable(err error) bool {
	return strings.Contains(err.Error(), "no such table")
}

// Package pgvector stores collections as rows of one Postgres table using
// the pgvector extension. A collection is the set of rows sharing a
// collection name.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	pgv "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"ragd/internal/embedding"
	"ragd/internal/vectorstore"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS ragd_chunks (
	collection  TEXT    NOT NULL,
	chunk_index INTEGER NOT NULL,
	content     TEXT    NOT NULL,
	embedding   vector  NOT NULL,
	PRIMARY KEY (collection, chunk_index)
);`

// Store is a vectorstore.Store backed by Postgres.
type Store struct {
	db       *sql.DB
	embedder embedding.Embedder
	cache    *vectorstore.Cache
	log      zerolog.Logger
}

var _ vectorstore.Store = (*Store)(nil)

type Config struct {
	DSN       string
	CacheSize int
	Logger    zerolog.Logger
}

// Open connects to cfg.DSN and creates the schema if needed.
func Open(ctx context.Context, cfg Config, e embedding.Embedder) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, embedder: e, cache: vectorstore.NewCache(cfg.CacheSize), log: cfg.Logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Cache() *vectorstore.Cache { return s.cache }

func (s *Store) ReplaceCollection(ctx context.Context, docID string, chunks []string) (int, error) {
	if err := vectorstore.ValidateID(docID); err != nil {
		return 0, err
	}
	name := vectorstore.CollectionName(docID)
	vecs, dim, err := vectorstore.EmbedAll(ctx, s.embedder, chunks)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM ragd_chunks WHERE collection = $1`, name); err != nil {
		return 0, fmt.Errorf("delete %s: %w", name, err)
	}
	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("ragd_chunks", "collection", "chunk_index", "content", "embedding"))
		if err != nil {
			return 0, fmt.Errorf("prepare copy: %w", err)
		}
		for i, c := range chunks {
			if _, err := stmt.ExecContext(ctx, name, i, c, pgv.NewVector(vecs[i])); err != nil {
				_ = stmt.Close()
				return 0, fmt.Errorf("copy chunk %d: %w", i, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("flush copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.cache.Invalidate(name)
	if len(chunks) > 0 {
		s.cache.Put(name, vectorstore.Handle{Dim: dim, Chunks: len(chunks)})
	}
	s.log.Debug().Str("collection", name).Int("chunks", len(chunks)).Msg("collection replaced")
	return len(chunks), nil
}

func (s *Store) handle(ctx context.Context, name string) (vectorstore.Handle, bool, error) {
	if h, ok := s.cache.Get(name); ok {
		return h, true, nil
	}
	var (
		dim sql.NullInt64
		n   int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(vector_dims(embedding)), COUNT(*) FROM ragd_chunks WHERE collection = $1`, name).Scan(&dim, &n)
	if err != nil {
		return vectorstore.Handle{}, false, fmt.Errorf("lookup %s: %w", name, err)
	}
	if n == 0 || !dim.Valid {
		return vectorstore.Handle{}, false, nil
	}
	h := vectorstore.Handle{Dim: int(dim.Int64), Chunks: n}
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_index, content, embedding <=> $2 AS distance
		FROM ragd_chunks
		WHERE collection = $1
		ORDER BY distance
		LIMIT $3`, name, pgv.NewVector(q), k)
	if err != nil {
		return nil, fmt.Errorf("vector search %s: %w", name, err)
	}
	defer rows.Close()
	var hits []vectorstore.Hit
	for rows.Next() {
		hit := vectorstore.Hit{DocumentID: docID}
		var dist float64
		if err := rows.Scan(&hit.ChunkIndex, &hit.Text, &dist); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		hit.Distance = float32(dist)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *Store) DeleteCollection(ctx context.Context, docID string) error {
	if err := vectorstore.ValidateID(docID); err != nil {
		return err
	}
	name := vectorstore.CollectionName(docID)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ragd_chunks WHERE collection = $1`, name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
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

// Collections lists the collection names for the given document ids that
// currently hold chunks.
func (s *Store) Collections(ctx context.Context, docIDs []string) ([]string, error) {
	names := make([]string, 0, len(docIDs))
	for _, id := range docIDs {
		if err := vectorstore.ValidateID(id); err != nil {
			return nil, err
		}
		names = append(names, vectorstore.CollectionName(id))
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT collection FROM ragd_chunks WHERE collection = ANY($1) ORDER BY collection`, pq.Array(names))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

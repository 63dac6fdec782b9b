// Package ingest turns an uploaded file into a document collection:
// extract text, split it into overlapping windows, replace the collection.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ragd/internal/chunker"
	"ragd/internal/extract"
	"ragd/internal/vectorstore"
)

// Config wires a Pipeline. ChunkSize and Overlap default to the chunker defaults.
type Config struct {
	Extractor extract.Extractor
	Store     vectorstore.Store
	ChunkSize int
	Overlap   int
	Logger    zerolog.Logger
}

// Pipeline ingests documents. Calls for the same document id are serialised;
// different ids proceed concurrently.
type Pipeline struct {
	extractor extract.Extractor
	store     vectorstore.Store
	size      int
	overlap   int
	locks     *keyLock
	log       zerolog.Logger
}

func New(cfg Config) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultSize
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = chunker.DefaultOverlap
	}
	return &Pipeline{
		extractor: cfg.Extractor,
		store:     cfg.Store,
		size:      cfg.ChunkSize,
		overlap:   cfg.Overlap,
		locks:     newKeyLock(),
		log:       cfg.Logger.With().Str("component", "ingest").Logger(),
	}
}

// Ingest extracts sourcePath, chunks it and replaces the collection of
// documentID. It returns the number of chunks written. Running it twice
// with the same inputs leaves the store in the same state.
func (p *Pipeline) Ingest(ctx context.Context, sourcePath, documentID string) (n int, err error) {
	start := time.Now()
	defer func() {
		ingestDuration.Observe(time.Since(start).Seconds())
		ingestTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	if err := vectorstore.ValidateID(documentID); err != nil {
		return 0, err
	}
	unlock, err := p.locks.Lock(ctx, documentID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	text, err := p.extractor.Extract(ctx, sourcePath)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		p.log.Warn().Err(err).Str("doc", documentID).Str("path", sourcePath).Msg("extraction failed")
		return 0, &ExtractionError{Path: sourcePath, Err: err}
	}
	chunks, err := chunker.SplitAll(text, p.size, p.overlap)
	if err != nil {
		p.log.Warn().Err(err).Str("doc", documentID).Str("path", sourcePath).Msg("no usable text")
		return 0, err
	}
	n, err = p.store.ReplaceCollection(ctx, documentID, chunks)
	if err != nil {
		return 0, err
	}
	ingestChunks.Observe(float64(n))
	p.log.Info().Str("doc", documentID).Int("chunks", n).Dur("took", time.Since(start)).Msg("document ingested")
	return n, nil
}

// Delete drops the collection of documentID.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	if err := vectorstore.ValidateID(documentID); err != nil {
		return err
	}
	unlock, err := p.locks.Lock(ctx, documentID)
	if err != nil {
		return err
	}
	defer unlock()
	if err := p.store.DeleteCollection(ctx, documentID); err != nil {
		return err
	}
	p.log.Info().Str("doc", documentID).Msg("document deleted")
	return nil
}

// Chunks reports how many chunks are stored for documentID.
func (p *Pipeline) Chunks(ctx context.Context, documentID string) (int, error) {
	if err := vectorstore.ValidateID(documentID); err != nil {
		return 0, err
	}
	return p.store.Count(ctx, documentID)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrExtractionFailure):
		return "extraction_failure"
	case errors.Is(err, chunker.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, vectorstore.ErrInvalidID):
		return "invalid_id"
	default:
		return "error"
	}
}

// Package vectorstore keeps one named collection of embedded chunks per
// document and answers similarity queries against it.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Hit is one retrieved chunk. Distances are only comparable within the
// collection they came from.
type Hit struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Distance   float32 `json:"distance"`
}

// Store is implemented by every backend.
//
// ReplaceCollection drops any existing collection for docID and writes chunks
// in its place; readers observe either the old or the new collection.
// Query on a missing collection returns no hits and no error.
// DeleteCollection is idempotent.
type Store interface {
	ReplaceCollection(ctx context.Context, docID string, chunks []string) (int, error)
	Query(ctx context.Context, docID, queryText string, k int) ([]Hit, error)
	DeleteCollection(ctx context.Context, docID string) error
	Count(ctx context.Context, docID string) (int, error)
	Close() error
}

// Backend names.
const (
	BackendMemory    = "memory"
	BackendSQLiteVec = "sqlitevec"
	BackendPgvector  = "pgvector"
)

const collectionPrefix = "doc_"

var (
	ErrInvalidID = errors.New("invalid document id")
	idPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// ValidateID reports whether id can name a collection in every backend.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// CollectionName returns the collection for document id.
func CollectionName(id string) string { return collectionPrefix + id }

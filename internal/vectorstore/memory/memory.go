// Package memory is an in-process brute-force vector store.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"ragd/internal/embedding"
	"ragd/internal/vectorstore"
)

type entry struct {
	text string
	vec  []float32
}

// Store keeps collections in a map. A replace builds the new collection
// outside the lock and swaps it in one step.
type Store struct {
	embedder embedding.Embedder
	mu       sync.RWMutex
	cols     map[string][]entry
}

var _ vectorstore.Store = (*Store)(nil)

func New(e embedding.Embedder) *Store {
	return &Store{embedder: e, cols: make(map[string][]entry)}
}

func (s *Store) ReplaceCollection(ctx context.Context, docID string, chunks []string) (int, error) {
	if err := vectorstore.ValidateID(docID); err != nil {
		return 0, err
	}
	vecs, _, err := vectorstore.EmbedAll(ctx, s.embedder, chunks)
	if err != nil {
		return 0, err
	}
	col := make([]entry, len(chunks))
	for i, c := range chunks {
		col[i] = entry{text: c, vec: vecs[i]}
	}
	s.mu.Lock()
	s.cols[vectorstore.CollectionName(docID)] = col
	s.mu.Unlock()
	return len(col), nil
}

func (s *Store) Query(ctx context.Context, docID, queryText string, k int) ([]vectorstore.Hit, error) {
	if err := vectorstore.ValidateID(docID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	col, ok := s.cols[vectorstore.CollectionName(docID)]
	s.mu.RUnlock()
	if !ok || len(col) == 0 || k <= 0 {
		return nil, nil
	}
	q, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	hits := make([]vectorstore.Hit, 0, len(col))
	for i, e := range col {
		hits = append(hits, vectorstore.Hit{DocumentID: docID, ChunkIndex: i, Text: e.text, Distance: cosineDistance(q, e.vec)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *Store) DeleteCollection(_ context.Context, docID string) error {
	if err := vectorstore.ValidateID(docID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.cols, vectorstore.CollectionName(docID))
	s.mu.Unlock()
	return nil
}

func (s *Store) Count(_ context.Context, docID string) (int, error) {
	if err := vectorstore.ValidateID(docID); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cols[vectorstore.CollectionName(docID)]), nil
}

func (s *Store) Close() error { return nil }

// cosineDistance is 1 - cosine similarity; mismatched or zero vectors are maximally distant.
func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragd/internal/chunker"
	"ragd/internal/embedding"
	"ragd/internal/extract"
	"ragd/internal/vectorstore"
	"ragd/internal/vectorstore/memory"
)

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newPipeline(store vectorstore.Store) *Pipeline {
	return New(Config{Extractor: extract.New(""), Store: store, Logger: zerolog.Nop()})
}

func TestIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("2500 characters give 4 chunks", func(t *testing.T) {
		store := memory.New(embedding.Hash{})
		p := newPipeline(store)
		path := writeDoc(t, "doc.txt", strings.Repeat("abcde ", 417)[:2500])
		n, err := p.Ingest(ctx, path, "doc-a")
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		c, err := p.Chunks(ctx, "doc-a")
		require.NoError(t, err)
		assert.Equal(t, 4, c)
	})

	t.Run("idempotent", func(t *testing.T) {
		store := memory.New(embedding.Hash{})
		p := newPipeline(store)
		path := writeDoc(t, "doc.md", strings.Repeat("Satz über Verträge. ", 200))
		first, err := p.Ingest(ctx, path, "same")
		require.NoError(t, err)
		second, err := p.Ingest(ctx, path, "same")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		c, err := store.Count(ctx, "same")
		require.NoError(t, err)
		assert.Equal(t, first, c)
	})

	t.Run("empty document is a failure", func(t *testing.T) {
		p := newPipeline(memory.New(embedding.Hash{}))
		_, err := p.Ingest(ctx, writeDoc(t, "blank.txt", " \n\t "), "blank")
		assert.ErrorIs(t, err, chunker.ErrEmptyInput)
		c, _ := p.Chunks(ctx, "blank")
		assert.Zero(t, c)
	})

	t.Run("unreadable file is an extraction failure", func(t *testing.T) {
		p := newPipeline(memory.New(embedding.Hash{}))
		_, err := p.Ingest(ctx, filepath.Join(t.TempDir(), "missing.pdf"), "x")
		require.ErrorIs(t, err, ErrExtractionFailure)
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.ErrorIs(t, ee, os.ErrNotExist)
	})

	t.Run("invalid id", func(t *testing.T) {
		p := newPipeline(memory.New(embedding.Hash{}))
		_, err := p.Ingest(ctx, writeDoc(t, "a.txt", "text"), "../../etc")
		assert.ErrorIs(t, err, vectorstore.ErrInvalidID)
	})

	t.Run("delete drops the collection", func(t *testing.T) {
		store := memory.New(embedding.Hash{})
		p := newPipeline(store)
		_, err := p.Ingest(ctx, writeDoc(t, "a.txt", "Inhalt"), "del")
		require.NoError(t, err)
		require.NoError(t, p.Delete(ctx, "del"))
		require.NoError(t, p.Delete(ctx, "del"))
		c, _ := store.Count(ctx, "del")
		assert.Zero(t, c)
	})
}

// slowStore records how many replaces run concurrently per document id.
type slowStore struct {
	vectorstore.Store
	mu        sync.Mutex
	active    map[string]int
	maxSameID int
	maxTotal  int
	total     int
}

func (s *slowStore) ReplaceCollection(ctx context.Context, id string, chunks []string) (int, error) {
	s.mu.Lock()
	s.active[id]++
	s.total++
	s.maxSameID = max(s.maxSameID, s.active[id])
	s.maxTotal = max(s.maxTotal, s.total)
	s.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	defer func() {
		s.mu.Lock()
		s.active[id]--
		s.total--
		s.mu.Unlock()
	}()
	return s.Store.ReplaceCollection(ctx, id, chunks)
}

func TestIngestSerializesSameID(t *testing.T) {
	ctx := context.Background()
	store := &slowStore{Store: memory.New(embedding.Hash{}), active: map[string]int{}}
	p := newPipeline(store)
	path := writeDoc(t, "doc.txt", strings.Repeat("wort ", 300))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		id := "one"
		if i%2 == 1 {
			id = "two"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Ingest(ctx, path, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, store.maxSameID, "same id must not be replaced concurrently")
	assert.Equal(t, 2, store.maxTotal, "different ids run concurrently")
	assert.Zero(t, p.locks.size(), "idle keys are forgotten")
}

func TestKeyLockRespectsContext(t *testing.T) {
	kl := newKeyLock()
	unlock, err := kl.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = kl.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Zero(t, kl.size())
}

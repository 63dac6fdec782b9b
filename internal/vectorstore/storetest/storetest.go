// Package storetest holds the behaviour every vectorstore backend must share.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragd/internal/vectorstore"
)

// Run exercises a backend. The store passed in must embed with
// embedding.Hash so that word overlap decides ranking.
func Run(t *testing.T, s vectorstore.Store) {
	t.Helper()
	ctx := context.Background()

	chunks := []string{
		"Die Kündigungsfrist beträgt drei Monate zum Quartalsende.",
		"Das Wetter in Berlin ist heute sonnig.",
		"Rechnungen sind innerhalb von dreißig Tagen zu bezahlen.",
	}

	t.Run("replace returns count", func(t *testing.T) {
		n, err := s.ReplaceCollection(ctx, "contract", chunks)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		c, err := s.Count(ctx, "contract")
		require.NoError(t, err)
		assert.Equal(t, 3, c)
	})

	t.Run("replace is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			n, err := s.ReplaceCollection(ctx, "contract", chunks)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		}
		c, err := s.Count(ctx, "contract")
		require.NoError(t, err)
		assert.Equal(t, 3, c, "no stale or duplicated chunks")
	})

	t.Run("replace supersedes old chunks", func(t *testing.T) {
		_, err := s.ReplaceCollection(ctx, "shrinking", chunks)
		require.NoError(t, err)
		_, err = s.ReplaceCollection(ctx, "shrinking", []string{"nur noch ein Abschnitt"})
		require.NoError(t, err)
		hits, err := s.Query(ctx, "shrinking", "Kündigungsfrist", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "nur noch ein Abschnitt", hits[0].Text)
	})

	t.Run("query ranks by similarity", func(t *testing.T) {
		hits, err := s.Query(ctx, "contract", "Wie lang ist die Kündigungsfrist? drei Monate", 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, chunks[0], hits[0].Text)
		assert.Equal(t, 0, hits[0].ChunkIndex)
		assert.Equal(t, "contract", hits[0].DocumentID)
		assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
	})

	t.Run("k larger than collection", func(t *testing.T) {
		hits, err := s.Query(ctx, "contract", "Wetter", 50)
		require.NoError(t, err)
		assert.Len(t, hits, 3)
	})

	t.Run("missing collection is empty", func(t *testing.T) {
		hits, err := s.Query(ctx, "never-ingested", "anything", 3)
		require.NoError(t, err)
		assert.Empty(t, hits)
		c, err := s.Count(ctx, "never-ingested")
		require.NoError(t, err)
		assert.Zero(t, c)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		_, err := s.ReplaceCollection(ctx, "gone", chunks)
		require.NoError(t, err)
		require.NoError(t, s.DeleteCollection(ctx, "gone"))
		require.NoError(t, s.DeleteCollection(ctx, "gone"))
		hits, err := s.Query(ctx, "gone", "Wetter", 3)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := s.ReplaceCollection(ctx, "bad id;", chunks)
		assert.ErrorIs(t, err, vectorstore.ErrInvalidID)
		_, err = s.Query(ctx, "bad id;", "x", 1)
		assert.ErrorIs(t, err, vectorstore.ErrInvalidID)
	})

	t.Run("readers never see a mix", func(t *testing.T) {
		gen := func(tag string, n int) []string {
			out := make([]string, n)
			for i := range out {
				out[i] = fmt.Sprintf("%s Abschnitt %d", tag, i)
			}
			return out
		}
		a, b := gen("alpha", 3), gen("beta", 5)
		_, err := s.ReplaceCollection(ctx, "swap", a)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				next := a
				if i%2 == 0 {
					next = b
				}
				if _, err := s.ReplaceCollection(ctx, "swap", next); err != nil {
					t.Errorf("replace: %v", err)
				}
			}
		}()
		for i := 0; i < 20; i++ {
			hits, err := s.Query(ctx, "swap", "Abschnitt", 10)
			if !assert.NoError(t, err) {
				break
			}
			if len(hits) == 0 {
				continue
			}
			tag := strings.Fields(hits[0].Text)[0]
			want := 3
			if tag == "beta" {
				want = 5
			}
			assert.Len(t, hits, want)
			for _, h := range hits {
				assert.True(t, strings.HasPrefix(h.Text, tag), "mixed collection: %q vs %q", h.Text, tag)
			}
		}
		wg.Wait()
	})
}

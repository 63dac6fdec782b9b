package vectorstore

import (
	"context"
	"fmt"

	"ragd/internal/embedding"
)

// EmbedAll embeds every chunk and checks that all vectors share one dimension.
func EmbedAll(ctx context.Context, e embedding.Embedder, chunks []string) ([][]float32, int, error) {
	vecs := make([][]float32, len(chunks))
	dim := 0
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		v, err := e.Embed(ctx, c)
		if err != nil {
			return nil, 0, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		if i == 0 {
			dim = len(v)
		} else if len(v) != dim {
			return nil, 0, fmt.Errorf("embed chunk %d: dimension %d, want %d", i, len(v), dim)
		}
		vecs[i] = v
	}
	return vecs, dim, nil
}

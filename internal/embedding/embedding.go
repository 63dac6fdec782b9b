// Package embedding turns text into vectors for the vector store backends.
package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder produces a fixed-dimension vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain function to Embedder.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

// ErrNoEmbedding is returned when a backend answers without a vector.
var ErrNoEmbedding = errors.New("no embedding returned")

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderHugot  = "hugot"
	ProviderHash   = "hash"
)

// Hash is a deterministic bag-of-words embedder: every lower-cased word is
// hashed into one of Dim buckets and the result is L2-normalised. It needs
// no model and is used by the dev profile and by tests.
type Hash struct {
	Dim int
}

const defaultHashDim = 256

func (h Hash) Embed(_ context.Context, text string) ([]float32, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = defaultHashDim
	}
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[f.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// keep the vector non-zero so cosine distance stays defined
		vec[0] = 1
		return vec, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}

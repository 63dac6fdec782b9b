//go:build !llama

package manager

// Compiled when the 'llama' build tag is NOT set, keeping default builds
// CGO-free. The real adapter lives in adapter_llama.go.

import (
	"context"

	"ragd/pkg/types"
)

const llamaNotBuilt = "llama support not built (missing 'llama' build tag)"

// llamaAdapter refuses to start a model without the 'llama' build tag.
type llamaAdapter struct{}

func NewLlamaAdapter(ctxSize, threads, gpuLayers int) InferenceAdapter {
	return &llamaAdapter{}
}

func (a *llamaAdapter) Start(ctx context.Context, mdl types.Model) (InferSession, error) {
	return nil, ErrDependencyUnavailable(llamaNotBuilt)
}

package manager

import (
	"context"

	"ragd/pkg/types"
)

// InferenceAdapter abstracts the model runtime used by the Manager.
type InferenceAdapter interface {
	// Start loads the model and returns a session holding it. The session
	// stays resident until Close.
	Start(ctx context.Context, mdl types.Model) (InferSession, error)
}

// InferSession is one loaded model.
type InferSession interface {
	// Generate streams tokens for the given prompt. The onToken callback is
	// invoked for each token. Implementations must return when ctx is canceled.
	Generate(ctx context.Context, prompt string, params InferParams, onToken func(string) error) (FinalResult, error)
	// Close releases the model.
	Close() error
}

// RemoteAdapter is implemented by adapters whose models do not live on the
// local filesystem; the manager then skips the file existence check.
type RemoteAdapter interface {
	Remote() bool
}

// InferParams captures generation parameters passed to the adapter.
type InferParams struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
}

// withDefaults fills zero fields from def.
func (p InferParams) withDefaults(def InferParams) InferParams {
	if p.Temperature == 0 {
		p.Temperature = def.Temperature
	}
	if p.TopP == 0 {
		p.TopP = def.TopP
	}
	if p.TopK == 0 {
		p.TopK = def.TopK
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = def.MaxTokens
	}
	if len(p.Stop) == 0 {
		p.Stop = def.Stop
	}
	if p.Seed == 0 {
		p.Seed = def.Seed
	}
	if p.RepeatPenalty == 0 {
		p.RepeatPenalty = def.RepeatPenalty
	}
	return p
}

// FinalResult summarizes the generation after streaming.
type FinalResult struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// Usage contains token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

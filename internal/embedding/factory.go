package embedding

import (
	"fmt"
	"time"
)

// Config selects and parameterises an embedding backend.
type Config struct {
	Provider       string
	OllamaURL      string
	Model          string
	HugotModelPath string
	HugotDownload  bool
	Timeout        time.Duration
	Dim            int
}

// New builds the embedder named by cfg.Provider. The returned close function
// is never nil.
func New(cfg Config) (Embedder, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Provider {
	case "", ProviderHash:
		return Hash{Dim: cfg.Dim}, noop, nil
	case ProviderOllama:
		return NewOllama(cfg.OllamaURL, cfg.Model, cfg.Timeout), noop, nil
	case ProviderHugot:
		h, err := NewHugot(cfg.HugotModelPath, cfg.HugotDownload)
		if err != nil {
			return nil, noop, err
		}
		return h, h.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

package manager

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ragd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultReadyTimeout  = 60 * time.Second
)

// Backend names accepted by ManagerConfig.Backend.
const (
	BackendLlama       = "llama"
	BackendLlamaServer = "llama_server"
	BackendOllama      = "ollama"
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry     []types.Model
	BudgetMB     int
	MarginMB     int
	DefaultModel string
	// Fallback is tried in order after the requested model fails to start.
	Fallback      []string
	MaxQueueDepth int
	MaxWait       time.Duration
	// Params are the sampling defaults used when a caller passes zero values.
	Params InferParams

	// Backend selects the runtime; Adapter, when set, takes precedence.
	Backend string
	Adapter InferenceAdapter

	// llama.cpp (in-process and subprocess)
	LlamaBin          string
	LlamaHost         string
	LlamaPortStart    int
	LlamaPortEnd      int
	LlamaCtxSize      int
	LlamaThreads      int
	LlamaNGL          int
	LlamaExtraArgs    []string
	LlamaReadyTimeout time.Duration

	// Ollama
	OllamaURL       string
	OllamaKeepAlive string

	Publisher EventPublisher
	Logger    *zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:        StateUnloaded,
		registry:     append([]types.Model(nil), cfg.Registry...),
		budgetMB:     cfg.BudgetMB,
		marginMB:     cfg.MarginMB,
		defaultModel: cfg.DefaultModel,
		fallback:     append([]string(nil), cfg.Fallback...),
		params:       cfg.Params,
		owner:        make(chan struct{}, 1),
		publisher:    noopPublisher{},
		log:          zerolog.Nop(),
		startTime:    time.Now(),
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	}
	if cfg.Publisher != nil {
		m.publisher = cfg.Publisher
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	m.queueCh = make(chan struct{}, m.maxQueueDepth)
	if cfg.LlamaReadyTimeout <= 0 {
		cfg.LlamaReadyTimeout = defaultReadyTimeout
	}

	switch {
	case cfg.Adapter != nil:
		m.adapter = cfg.Adapter
	case strings.EqualFold(cfg.Backend, BackendLlamaServer):
		m.adapter = NewLlamaSubprocessAdapter(cfg, m.log)
	case strings.EqualFold(cfg.Backend, BackendOllama):
		m.adapter = NewOllamaAdapter(cfg.OllamaURL, cfg.OllamaKeepAlive)
	default:
		m.adapter = NewLlamaAdapter(cfg.LlamaCtxSize, cfg.LlamaThreads, cfg.LlamaNGL)
	}
	if ps, ok := m.adapter.(publisherSetter); ok {
		ps.setPublisher(m.publisher)
	}
	return m
}

// publisherSetter is implemented by adapters that emit their own events.
type publisherSetter interface {
	setPublisher(EventPublisher)
}

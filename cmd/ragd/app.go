package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"ragd/internal/common/fsutil"
	"ragd/internal/config"
	"ragd/internal/embedding"
	"ragd/internal/extract"
	"ragd/internal/httpapi"
	"ragd/internal/ingest"
	"ragd/internal/manager"
	"ragd/internal/quality"
	"ragd/internal/rag"
	"ragd/internal/registry"
	"ragd/internal/retrieval"
	"ragd/internal/vectorstore"
	"ragd/internal/vectorstore/memory"
	"ragd/internal/vectorstore/pgvector"
	"ragd/internal/vectorstore/sqlitevec"
	"ragd/internal/websearch"
)

// app owns every long-lived component of one process.
type app struct {
	cfg        config.Config
	log        zerolog.Logger
	catalog    *registry.Catalog
	manager    *manager.Manager
	events     *manager.EventLog
	store      vectorstore.Store
	pipeline   *ingest.Pipeline
	controller *rag.Controller
	closers    []func() error
}

func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	var err error
	if a.catalog, err = registry.Load(cfg.Models.Catalog, cfg.Models.Dir); err != nil {
		return nil, fmt.Errorf("model catalog: %w", err)
	}
	a.events = manager.NewEventLog(recentEvents)
	a.manager = newManager(cfg, a.catalog, a.events, log)
	a.closers = append(a.closers, a.manager.Close)

	emb, closeEmb, err := embedding.New(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaURL:      cfg.Embedding.OllamaURL,
		Model:          cfg.Embedding.Model,
		HugotModelPath: cfg.Embedding.HugotModelDir,
		HugotDownload:  cfg.Embedding.HugotDownload,
		Timeout:        cfg.Embedding.Timeout,
		Dim:            cfg.Embedding.Dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	a.closers = append(a.closers, closeEmb)

	if a.store, err = openStore(ctx, cfg.VectorStore, emb, log); err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	a.pipeline = ingest.New(ingest.Config{
		Extractor: extract.New(cfg.Ingest.PDFToText),
		Store:     a.store,
		ChunkSize: cfg.Ingest.ChunkSize,
		Overlap:   cfg.Ingest.Overlap,
		Logger:    log,
	})

	rcfg := rag.Config{
		Runtime:       a.manager,
		Retriever:     retrieval.New(a.store, cfg.Retrieval.FanOut, log),
		Detector:      quality.New(nil, nil),
		KPerDoc:       cfg.Retrieval.KPerDoc,
		WebMaxResults: cfg.WebSearch.MaxResults,
		Language:      cfg.Prompt.Language,
		Params:        samplingParams(cfg.Sampling),
		Logger:        log,
	}
	// a typed nil would count as an enabled searcher
	if cfg.WebSearch.Enabled {
		rcfg.Searcher = websearch.New(websearch.Config{
			URL:        cfg.WebSearch.URL,
			MaxResults: cfg.WebSearch.MaxResults,
			Timeout:    cfg.WebSearch.Timeout,
			Language:   cfg.WebSearch.Language,
			TimeRange:  cfg.WebSearch.TimeRange,
			SafeSearch: cfg.WebSearch.SafeSearch,
			RPS:        cfg.WebSearch.RPS,
			Burst:      cfg.WebSearch.Burst,
			Logger:     log,
		})
	}
	if a.controller, err = rag.New(rcfg); err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

// recentEvents is how many runtime events /status reports.
const recentEvents = 20

func newManager(cfg config.Config, cat *registry.Catalog, events *manager.EventLog, log zerolog.Logger) *manager.Manager {
	def := cfg.Models.Default
	if def == "" {
		def = cat.Default
	}
	fallback := cfg.Models.Fallback
	if len(fallback) == 0 {
		fallback = cat.Fallback
	}
	return manager.NewWithConfig(manager.ManagerConfig{
		Registry:          cat.Models,
		BudgetMB:          cfg.Models.BudgetMB,
		MarginMB:          cfg.Models.MarginMB,
		DefaultModel:      def,
		Fallback:          fallback,
		MaxQueueDepth:     cfg.Runtime.MaxQueueDepth,
		MaxWait:           cfg.Runtime.MaxWait,
		Params:            samplingParams(cfg.Sampling),
		Backend:           cfg.Runtime.Backend,
		LlamaBin:          cfg.Runtime.LlamaBin,
		LlamaHost:         cfg.Runtime.LlamaHost,
		LlamaPortStart:    cfg.Runtime.LlamaPortStart,
		LlamaPortEnd:      cfg.Runtime.LlamaPortEnd,
		LlamaCtxSize:      cfg.Runtime.CtxSize,
		LlamaThreads:      cfg.Runtime.Threads,
		LlamaNGL:          cfg.Runtime.GPULayers,
		LlamaReadyTimeout: cfg.Runtime.ReadyTimeout,
		LlamaExtraArgs:    cfg.Runtime.LlamaExtraArgs,
		OllamaURL:         cfg.Runtime.OllamaURL,
		OllamaKeepAlive:   cfg.Runtime.OllamaKeepAlive,
		Publisher:         manager.MultiPublisher{manager.LogPublisher{Logger: log}, events},
		Logger:            &log,
	})
}

func samplingParams(s config.SamplingConfig) manager.InferParams {
	return manager.InferParams{
		Temperature:   s.Temperature,
		TopP:          s.TopP,
		TopK:          s.TopK,
		MaxTokens:     s.MaxTokens,
		Stop:          s.Stop,
		RepeatPenalty: s.RepeatPenalty,
	}
}

func openStore(ctx context.Context, cfg config.VectorStoreConfig, emb embedding.Embedder, log zerolog.Logger) (vectorstore.Store, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(emb), nil
	case "pgvector":
		return pgvector.Open(ctx, pgvector.Config{DSN: cfg.PostgresDSN, CacheSize: cfg.CacheSize, Logger: log}, emb)
	default:
		path, err := fsutil.EnsureParentDir(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return sqlitevec.Open(sqlitevec.Config{Path: path, CacheSize: cfg.CacheSize, Logger: log}, emb)
	}
}

func (a *app) engine() *httpapi.Engine {
	return &httpapi.Engine{Manager: a.manager, Pipeline: a.pipeline, Controller: a.controller, Events: a.events, Logger: a.log}
}

// Close releases components in reverse construction order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

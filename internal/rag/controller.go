// Package rag answers questions from document context, the model alone, or
// a mix of local context and web search results.
package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ragd/internal/manager"
	"ragd/internal/quality"
	"ragd/internal/retrieval"
	"ragd/internal/vectorstore"
)

const (
	// MaxPromptChunks caps the chunks joined into one prompt.
	MaxPromptChunks = 5
	// HybridLocalChunks is how many local chunks precede the web block.
	HybridLocalChunks = 3
	// WebSourceLabel is reported in Result.WebSources after an escalation.
	WebSourceLabel = "web search"
)

// Provenance labels derived from a Result.
const (
	SourceLLMOnly = "llm_only"
	SourceRAG     = "rag"
	SourceHybrid  = "hybrid"
	SourceError   = "error"
)

// Runtime is the part of the model manager the controller needs.
type Runtime interface {
	EnsureDesired(ctx context.Context) error
	Generate(ctx context.Context, prompt string, params manager.InferParams) (string, error)
	ActiveModel() (manager.ModelInfo, bool)
}

// Retriever assembles context from document collections.
type Retriever interface {
	Assemble(ctx context.Context, query string, docIDs []string, kPerDoc int) (retrieval.Assembly, error)
}

// Searcher returns a formatted web context block, or "" when nothing was
// found or the search failed.
type Searcher interface {
	SearchAndFormat(ctx context.Context, query string, maxResults int) string
}

type Config struct {
	Runtime   Runtime
	Retriever Retriever
	// Searcher nil disables escalation.
	Searcher Searcher
	Detector *quality.Detector
	KPerDoc  int
	// WebMaxResults is passed to the searcher; 0 keeps its default.
	WebMaxResults int
	Language      string
	// Params override the runtime's sampling defaults. Stop defaults to
	// the ChatML markers.
	Params manager.InferParams
	Logger zerolog.Logger
}

// Result is one answer with its provenance.
type Result struct {
	Answer        string            `json:"answer"`
	ContextUsed   bool              `json:"context_used"`
	WebSearchUsed bool              `json:"web_search_used"`
	Sources       []vectorstore.Hit `json:"sources"`
	WebSources    []string          `json:"web_sources"`
	// Escalation names the quality rule that fired, if any.
	Escalation quality.Reason `json:"escalation,omitempty"`
}

// SourceType derives the provenance label for a finished answer.
func SourceType(res Result, err error) string {
	switch {
	case err != nil:
		return SourceError
	case res.WebSearchUsed:
		return SourceHybrid
	case res.ContextUsed:
		return SourceRAG
	default:
		return SourceLLMOnly
	}
}

// Controller orchestrates retrieval, generation and escalation.
type Controller struct {
	runtime   Runtime
	retriever Retriever
	searcher  Searcher
	detector  *quality.Detector
	prompter  *Prompter
	kPerDoc   int
	webMax    int
	params    manager.InferParams
	log       zerolog.Logger
}

func New(cfg Config) (*Controller, error) {
	if cfg.Runtime == nil {
		return nil, errors.New("rag: runtime is required")
	}
	if cfg.Retriever == nil {
		return nil, errors.New("rag: retriever is required")
	}
	p, err := NewPrompter(cfg.Language)
	if err != nil {
		return nil, err
	}
	if cfg.Detector == nil {
		cfg.Detector = quality.New(nil, nil)
	}
	if len(cfg.Params.Stop) == 0 {
		cfg.Params.Stop = StopSequences
	}
	return &Controller{
		runtime:   cfg.Runtime,
		retriever: cfg.Retriever,
		searcher:  cfg.Searcher,
		detector:  cfg.Detector,
		prompter:  p,
		kPerDoc:   cfg.KPerDoc,
		webMax:    cfg.WebMaxResults,
		params:    cfg.Params,
		log:       cfg.Logger.With().Str("component", "rag").Logger(),
	}, nil
}

// WebSearchEnabled reports whether answers may be escalated.
func (c *Controller) WebSearchEnabled() bool { return c.searcher != nil }

// Answer answers question using the collections of docIDs. Web search
// failures never fail an answer; generation and load errors are returned.
func (c *Controller) Answer(ctx context.Context, question string, docIDs []string) (res Result, err error) {
	start := time.Now()
	defer func() {
		st := SourceType(res, err)
		answersTotal.WithLabelValues(st).Inc()
		answerDuration.WithLabelValues(st).Observe(time.Since(start).Seconds())
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, errors.New("rag: empty question")
	}
	if err := c.runtime.EnsureDesired(ctx); err != nil {
		return Result{}, err
	}
	info := c.prompter.ModelInfo(c.runtime.ActiveModel())

	res = Result{Sources: []vectorstore.Hit{}, WebSources: []string{}}
	var chunks []string
	if len(docIDs) > 0 {
		asm, err := c.retriever.Assemble(ctx, question, docIDs, c.kPerDoc)
		if err != nil {
			return Result{}, err
		}
		if asm.ContextUsed {
			res.ContextUsed = true
			res.Sources = asm.Hits
			chunks = asm.Context
		}
	}

	var prompt string
	if res.ContextUsed {
		prompt, err = c.prompter.WithContext(info, question, chunks, false)
	} else {
		prompt, err = c.prompter.WithoutContext(info, question)
	}
	if err != nil {
		return Result{}, err
	}
	res.Answer, err = c.runtime.Generate(ctx, prompt, c.params)
	if err != nil {
		return Result{}, err
	}
	c.log.Debug().Bool("context_used", res.ContextUsed).Int("chunks", len(chunks)).
		Int("chars", len(res.Answer)).Msg("baseline answer generated")

	if c.searcher == nil {
		return res, nil
	}
	reason := c.detector.Reason(question, res.Answer, res.ContextUsed)
	if reason == quality.ReasonNone {
		return res, nil
	}
	res.Escalation = reason
	c.log.Info().Str("event", "escalate").Str("reason", string(reason)).Msg("answer needs web search")

	web := c.searcher.SearchAndFormat(ctx, question, c.webMax)
	if web == "" {
		escalationsTotal.WithLabelValues(string(reason), "no_results").Inc()
		return res, nil
	}
	combined := append(append([]string(nil), chunks[:min(len(chunks), HybridLocalChunks)]...), web)
	prompt, err = c.prompter.WithContext(info, question, combined, true)
	if err != nil {
		return Result{}, err
	}
	answer, err := c.runtime.Generate(ctx, prompt, c.params)
	if err != nil {
		return Result{}, err
	}
	escalationsTotal.WithLabelValues(string(reason), "augmented").Inc()
	res.Answer = answer
	res.WebSearchUsed = true
	res.WebSources = []string{WebSourceLabel}
	return res, nil
}

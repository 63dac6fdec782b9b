package rag

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragd/internal/embedding"
	"ragd/internal/manager"
	"ragd/internal/quality"
	"ragd/internal/retrieval"
	"ragd/internal/vectorstore/memory"
	"ragd/internal/websearch"
)

// fakeRuntime answers prompts with canned replies in order.
type fakeRuntime struct {
	mu        sync.Mutex
	replies   []string
	prompts   []string
	params    []manager.InferParams
	ensureErr error
	genErr    error
	ensured   int
	active    *manager.ModelInfo
}

func (f *fakeRuntime) EnsureDesired(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured++
	return f.ensureErr
}

func (f *fakeRuntime) Generate(_ context.Context, prompt string, p manager.InferParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.params = append(f.params, p)
	if f.genErr != nil {
		return "", f.genErr
	}
	if len(f.replies) == 0 {
		return "Keine weitere Antwort vorgesehen, aber ausreichend lang für die Prüfung.", nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeRuntime) ActiveModel() (manager.ModelInfo, bool) {
	if f.active == nil {
		return manager.ModelInfo{}, false
	}
	return *f.active, true
}

const longAnswer = "Die Kündigungsfrist beträgt laut Vertrag drei Monate zum Quartalsende."

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New(embedding.Hash{})
	ctx := context.Background()
	_, err := s.ReplaceCollection(ctx, "vertrag", []string{
		"Die Kündigungsfrist beträgt drei Monate zum Quartalsende.",
		"Der Urlaub umfasst dreißig Arbeitstage im Jahr.",
	})
	require.NoError(t, err)
	return s
}

func searxServer(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

const weatherResults = `{"results":[{"title":"Wetter Berlin","url":"https://wetter.example","content":"Heute sonnig bei 22 Grad.","engine":"ddg"}]}`

func newController(t *testing.T, rt Runtime, searcher Searcher) *Controller {
	t.Helper()
	cfg := Config{
		Runtime:   rt,
		Retriever: retrieval.New(newStore(t), 0, zerolog.Nop()),
		Detector:  quality.New(nil, nil),
	}
	if searcher != nil {
		cfg.Searcher = searcher
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestAnswerWithoutDocuments(t *testing.T) {
	rt := &fakeRuntime{replies: []string{longAnswer + " Mehr braucht es nicht."}}
	srv, calls := searxServer(t, weatherResults)
	c := newController(t, rt, websearch.New(websearch.Config{URL: srv.URL}))

	res, err := c.Answer(context.Background(), "Erkläre mir bitte die Photosynthese.", nil)
	require.NoError(t, err)
	assert.False(t, res.ContextUsed)
	assert.False(t, res.WebSearchUsed)
	assert.Empty(t, res.Sources)
	assert.Empty(t, res.WebSources)
	assert.Equal(t, SourceLLMOnly, SourceType(res, nil))
	assert.Zero(t, calls.Load())
	require.Len(t, rt.prompts, 1)
	assert.NotContains(t, rt.prompts[0], "DOKUMENTEN-AUSZÜGE")
	assert.Contains(t, rt.prompts[0], "Du bist ein deutschsprachiger KI-Assistent.")
	assert.Equal(t, 1, rt.ensured)
}

func TestAnswerFromDocument(t *testing.T) {
	rt := &fakeRuntime{
		replies: []string{longAnswer},
		active:  &manager.ModelInfo{ID: "qwen2.5-3b", Name: "Qwen2.5-3B", Params: "3B", QualityTier: "High", Description: "Deutsch"},
	}
	srv, calls := searxServer(t, weatherResults)
	c := newController(t, rt, websearch.New(websearch.Config{URL: srv.URL}))

	res, err := c.Answer(context.Background(), "Wie lang ist die Kündigungsfrist? drei Monate", []string{"vertrag"})
	require.NoError(t, err)
	assert.True(t, res.ContextUsed)
	assert.False(t, res.WebSearchUsed)
	assert.Equal(t, SourceRAG, SourceType(res, nil))
	require.NotEmpty(t, res.Sources)
	assert.Equal(t, "vertrag", res.Sources[0].DocumentID)
	assert.Equal(t, 0, res.Sources[0].ChunkIndex)
	assert.Zero(t, calls.Load())

	require.Len(t, rt.prompts, 1)
	p := rt.prompts[0]
	assert.True(t, strings.HasPrefix(p, "<|im_start|>system\n"))
	assert.True(t, strings.HasSuffix(p, "<|im_start|>assistant\n"))
	assert.Contains(t, p, "**Qwen2.5-3B** (3B Parameter)")
	assert.Contains(t, p, "DOKUMENTEN-AUSZÜGE:\nDie Kündigungsfrist beträgt drei Monate")
	assert.Contains(t, p, "FRAGE: Wie lang ist die Kündigungsfrist?")
	assert.NotContains(t, p, "Laut Web-Suche")
	assert.Equal(t, StopSequences, rt.params[0].Stop)
}

func TestAnswerEscalatesToWebSearch(t *testing.T) {
	rt := &fakeRuntime{replies: []string{"Das weiß ich nicht.", "Laut Web-Suche: Heute ist es sonnig bei 22 Grad in Berlin."}}
	srv, calls := searxServer(t, weatherResults)
	c := newController(t, rt, websearch.New(websearch.Config{URL: srv.URL}))

	res, err := c.Answer(context.Background(), "Was ist das Wetter heute?", nil)
	require.NoError(t, err)
	assert.True(t, res.WebSearchUsed)
	assert.False(t, res.ContextUsed)
	assert.Equal(t, []string{WebSourceLabel}, res.WebSources)
	assert.Equal(t, quality.ReasonUncertainty, res.Escalation)
	assert.Equal(t, SourceHybrid, SourceType(res, nil))
	assert.Contains(t, res.Answer, "sonnig")
	assert.Equal(t, int32(1), calls.Load())

	require.Len(t, rt.prompts, 2)
	hybrid := rt.prompts[1]
	assert.Contains(t, hybrid, "INFORMATIONSQUELLEN (Dokumente + Web):\nWEB-SUCHERGEBNISSE:")
	assert.Contains(t, hybrid, `7. Kennzeichne Web-Informationen mit "Laut Web-Suche:"`)
	assert.Contains(t, hybrid, "Dokumenten und Web-Suchergebnissen")
}

func TestHybridKeepsThreeLocalChunks(t *testing.T) {
	rt := &fakeRuntime{replies: []string{"Nicht im Dokument enthalten.", longAnswer}}
	store := memory.New(embedding.Hash{})
	_, err := store.ReplaceCollection(context.Background(), "bericht", []string{"Kapitel Alpha", "Kapitel Bravo", "Kapitel Charlie", "Kapitel Delta", "Kapitel Echo"})
	require.NoError(t, err)
	srv, _ := searxServer(t, weatherResults)
	c, err := New(Config{
		Runtime:   rt,
		Retriever: retrieval.New(store, 0, zerolog.Nop()),
		Searcher:  websearch.New(websearch.Config{URL: srv.URL}),
		KPerDoc:   5,
	})
	require.NoError(t, err)

	res, err := c.Answer(context.Background(), "Was steht im Bericht?", []string{"bericht"})
	require.NoError(t, err)
	assert.True(t, res.ContextUsed)
	assert.True(t, res.WebSearchUsed)
	require.Len(t, res.Sources, 5)

	require.Len(t, rt.prompts, 2)
	first, hybrid := rt.prompts[0], rt.prompts[1]
	for _, h := range res.Sources {
		assert.Contains(t, first, h.Text)
	}
	for i, h := range res.Sources {
		if i < HybridLocalChunks {
			assert.Contains(t, hybrid, h.Text)
		} else {
			assert.NotContains(t, hybrid, h.Text)
		}
	}
	assert.Contains(t, hybrid, res.Sources[2].Text+"\n\nWEB-SUCHERGEBNISSE:")
}

func TestEscalationWithoutResultsKeepsAnswer(t *testing.T) {
	rt := &fakeRuntime{replies: []string{"Weiß ich nicht."}}
	srv, calls := searxServer(t, `{"results":[]}`)
	c := newController(t, rt, websearch.New(websearch.Config{URL: srv.URL}))

	res, err := c.Answer(context.Background(), "Wer gewann die Wahl 2031?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Weiß ich nicht.", res.Answer)
	assert.False(t, res.WebSearchUsed)
	assert.Empty(t, res.WebSources)
	assert.Equal(t, SourceLLMOnly, SourceType(res, nil))
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, rt.prompts, 1)
}

func TestEscalationDisabled(t *testing.T) {
	rt := &fakeRuntime{replies: []string{"Weiß ich nicht."}}
	c := newController(t, rt, nil)
	assert.False(t, c.WebSearchEnabled())
	res, err := c.Answer(context.Background(), "Was ist heute los?", nil)
	require.NoError(t, err)
	assert.False(t, res.WebSearchUsed)
	assert.Empty(t, res.Escalation)
}

func TestUnknownDocumentFallsBackToPlainPrompt(t *testing.T) {
	rt := &fakeRuntime{replies: []string{longAnswer}}
	c := newController(t, rt, nil)
	res, err := c.Answer(context.Background(), "Was steht im Dokument?", []string{"unbekannt"})
	require.NoError(t, err)
	assert.False(t, res.ContextUsed)
	assert.NotContains(t, rt.prompts[0], "DOKUMENTEN-AUSZÜGE")
}

func TestAnswerErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("load failure", func(t *testing.T) {
		loadErr := &manager.RuntimeUnavailableError{}
		rt := &fakeRuntime{ensureErr: loadErr}
		res, err := newController(t, rt, nil).Answer(ctx, "Frage?", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, manager.ErrRuntimeUnavailable)
		assert.Equal(t, SourceError, SourceType(res, err))
		assert.Empty(t, rt.prompts)
	})

	t.Run("generation failure", func(t *testing.T) {
		rt := &fakeRuntime{genErr: errors.New("backend crashed")}
		_, err := newController(t, rt, nil).Answer(ctx, "Frage?", []string{"vertrag"})
		assert.EqualError(t, err, "backend crashed")
	})

	t.Run("empty question", func(t *testing.T) {
		_, err := newController(t, &fakeRuntime{}, nil).Answer(ctx, "   ", nil)
		assert.Error(t, err)
	})
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{Runtime: &fakeRuntime{}, Retriever: retrieval.New(memory.New(embedding.Hash{}), 0, zerolog.Nop()), Language: "fr"})
	assert.Error(t, err)
}

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"ragd/internal/embedding"
	"ragd/internal/extract"
	"ragd/internal/httpapi"
	"ragd/internal/ingest"
	"ragd/internal/manager"
	"ragd/internal/quality"
	"ragd/internal/rag"
	"ragd/internal/registry"
	"ragd/internal/retrieval"
	"ragd/internal/vectorstore/memory"
	"ragd/internal/websearch"
)

// createTempModelsDir creates a temporary directory populated with empty .gguf files
// and returns the directory path and the list of model IDs (filenames).
func createTempModelsDir(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir, names
}

// removeModels deletes the model files but keeps the directory.
func removeModels(t *testing.T, dir string) {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(dir, "*.gguf"))
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			t.Fatalf("remove %s: %v", m, err)
		}
	}
}

// ollamaStub answers /api/generate. Empty prompts are load and unload calls.
type ollamaStub struct {
	answer      func(prompt string) string
	generations atomic.Int32
	prompts     chan string
}

func newOllamaStub(t *testing.T, answer func(prompt string) string) (*httptest.Server, *ollamaStub) {
	t.Helper()
	s := &ollamaStub{answer: answer, prompts: make(chan string, 32)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt == "" {
			fmt.Fprintln(w, `{"done":true,"done_reason":"load"}`)
			return
		}
		s.generations.Add(1)
		select {
		case s.prompts <- req.Prompt:
		default:
		}
		b, _ := json.Marshal(map[string]any{"response": s.answer(req.Prompt), "done": false})
		fmt.Fprintln(w, string(b))
		fmt.Fprintln(w, `{"response":"","done":true,"done_reason":"stop","prompt_eval_count":10,"eval_count":5}`)
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

// newSearxStub serves a fixed SearxNG result list and counts requests.
func newSearxStub(t *testing.T, results string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"results":%s}`, results)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

type stackConfig struct {
	modelsDir string
	mgr       manager.ManagerConfig
	searxURL  string
}

// newStack wires the full answer path over an in-memory store and returns the
// HTTP server in front of it.
func newStack(t *testing.T, sc stackConfig) (*httptest.Server, *manager.Manager) {
	t.Helper()
	reg, err := registry.NewGGUFScanner().Scan(sc.modelsDir)
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	log := zerolog.Nop()
	cfg := sc.mgr
	cfg.Registry = reg
	events := manager.NewEventLog(50)
	if cfg.Publisher == nil {
		cfg.Publisher = events
	}
	if cfg.DefaultModel == "" && len(reg) > 0 {
		cfg.DefaultModel = reg[0].ID
	}
	mgr := manager.NewWithConfig(cfg)
	t.Cleanup(func() { _ = mgr.Close() })

	store := memory.New(embedding.Hash{})
	pipeline := ingest.New(ingest.Config{Extractor: extract.New(""), Store: store, ChunkSize: 200, Overlap: 40, Logger: log})
	rcfg := rag.Config{
		Runtime:   mgr,
		Retriever: retrieval.New(store, 4, log),
		Detector:  quality.New(nil, nil),
		KPerDoc:   3,
		Logger:    log,
	}
	if sc.searxURL != "" {
		rcfg.Searcher = websearch.New(websearch.Config{URL: sc.searxURL, Logger: log})
	}
	ctrl, err := rag.New(rcfg)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(&httpapi.Engine{Manager: mgr, Pipeline: pipeline, Controller: ctrl, Events: events, Logger: log}))
	t.Cleanup(srv.Close)
	return srv, mgr
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	return httpDo(t, http.MethodGet, url, nil)
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	return httpDo(t, http.MethodPost, url, payload)
}

func httpDo(t *testing.T, method, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

// jsonString escapes a string for embedding inside a JSON literal we build manually.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func contains(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ragd/pkg/types"
)

// createModelFile creates a file of approximately sizeMB megabytes and returns its path.
func createModelFile(t *testing.T, dir, name string, sizeMB int) string {
	t.Helper()
	if sizeMB <= 0 {
		sizeMB = 1
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer f.Close()
	block := make([]byte, 1024*1024)
	for i := 0; i < sizeMB; i++ {
		if _, err := f.Write(block); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return p
}

// fakeAdapter is an in-memory runtime that records what the manager asked of it.
type fakeAdapter struct {
	mu          sync.Mutex
	failFor     map[string]error
	genErr      error
	reply       string
	genDelay    time.Duration
	startDelay  map[string]time.Duration
	closeDelay  time.Duration
	live        int
	maxLive     int
	started     []string
	prompts     []string
	servedBy    []string
	params      []InferParams
	inflight    int
	maxInflight int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{failFor: map[string]error{}, reply: "Das ist eine Antwort."}
}

func (f *fakeAdapter) Start(ctx context.Context, mdl types.Model) (InferSession, error) {
	f.mu.Lock()
	delay := f.startDelay[mdl.ID]
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, mdl.ID)
	if err := f.failFor[mdl.ID]; err != nil {
		return nil, err
	}
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	return &fakeSession{f: f, id: mdl.ID}, nil
}

func (f *fakeAdapter) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

func (f *fakeAdapter) ServedBy() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.servedBy...)
}

func (f *fakeAdapter) Started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

type fakeSession struct {
	f      *fakeAdapter
	id     string
	closed bool
}

func (s *fakeSession) Generate(ctx context.Context, prompt string, params InferParams, onToken func(string) error) (FinalResult, error) {
	f := s.f
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.servedBy = append(f.servedBy, s.id)
	f.params = append(f.params, params)
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	delay, genErr, reply := f.genDelay, f.genErr, f.reply
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return FinalResult{}, ctx.Err()
		}
	}
	if genErr != nil {
		return FinalResult{}, genErr
	}
	for _, tok := range strings.SplitAfter(reply, " ") {
		if err := onToken(tok); err != nil {
			return FinalResult{}, err
		}
	}
	return FinalResult{FinishReason: "stop"}, nil
}

func (s *fakeSession) Close() error {
	s.f.mu.Lock()
	delay := s.f.closeDelay
	s.f.mu.Unlock()
	time.Sleep(delay)
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.f.live--
	}
	return nil
}

// newTestManager builds a manager over two on-disk models "a" and "b" and a
// catalog entry "ghost" whose file does not exist.
func newTestManager(t *testing.T, fa *fakeAdapter, mutate func(*ManagerConfig)) *Manager {
	t.Helper()
	dir := t.TempDir()
	cfg := ManagerConfig{
		Registry: []types.Model{
			{ID: "a", Name: "Model A", Path: createModelFile(t, dir, "a.gguf", 1), Params: "1B"},
			{ID: "b", Name: "Model B", Path: createModelFile(t, dir, "b.gguf", 1), Params: "3B"},
			{ID: "ghost", Path: filepath.Join(dir, "ghost.gguf")},
		},
		DefaultModel: "a",
		Adapter:      fa,
		MaxWait:      time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewWithConfig(cfg)
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ragd/pkg/types"
)

// llamaSubprocessAdapter spawns one llama-server per loaded model and talks to
// it over the OpenAI-compatible completions API.
type llamaSubprocessAdapter struct {
	cfg        ManagerConfig
	mu         sync.Mutex
	procs      map[string]*procInfo // key: model path
	httpClient *http.Client
	publisher  EventPublisher
	log        zerolog.Logger
}

type procInfo struct {
	cmd     *exec.Cmd
	baseURL string
	ready   bool
	pid     int
	exited  chan struct{}
}

// NewLlamaSubprocessAdapter constructs a subprocess-backed adapter.
func NewLlamaSubprocessAdapter(cfg ManagerConfig, log zerolog.Logger) InferenceAdapter {
	if strings.TrimSpace(cfg.LlamaHost) == "" {
		cfg.LlamaHost = "127.0.0.1"
	}
	if cfg.LlamaBin == "" {
		cfg.LlamaBin = "llama-server"
	}
	if cfg.LlamaReadyTimeout <= 0 {
		cfg.LlamaReadyTimeout = defaultReadyTimeout
	}
	// Timeout=0: every call carries a context deadline instead.
	cli := &http.Client{Timeout: 0}
	return &llamaSubprocessAdapter{
		cfg:        cfg,
		procs:      make(map[string]*procInfo),
		httpClient: cli,
		publisher:  noopPublisher{},
		log:        log.With().Str("adapter", "llama_subprocess").Logger(),
	}
}

// llamaSubprocessSession is one running llama-server. Close stops it.
type llamaSubprocessSession struct {
	a         *llamaSubprocessAdapter
	modelPath string
	baseURL   string
}

func (a *llamaSubprocessAdapter) Start(ctx context.Context, mdl types.Model) (InferSession, error) {
	if strings.TrimSpace(mdl.Path) == "" {
		return nil, errors.New("model path is empty")
	}
	baseURL, err := a.ensureProcess(ctx, mdl)
	if err != nil {
		return nil, err
	}
	return &llamaSubprocessSession{a: a, modelPath: mdl.Path, baseURL: baseURL}, nil
}

func (s *llamaSubprocessSession) Close() error { return s.a.Stop(s.modelPath) }

// openAICompletionRequest represents the payload for /v1/completions.
type openAICompletionRequest struct {
	Model         string   `json:"model,omitempty"`
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   float32  `json:"temperature,omitempty"`
	TopP          float32  `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	Seed          int      `json:"seed,omitempty"`
	Stream        bool     `json:"stream"`
	RepeatPenalty float32  `json:"repeat_penalty,omitempty"`
}

// openAIStreamChoice covers both the completions ("text") and chat ("delta")
// streaming shapes.
type openAIStreamChoice struct {
	Text  string `json:"text"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Object  string               `json:"object"`
	Choices []openAIStreamChoice `json:"choices"`
}

func (s *llamaSubprocessSession) Generate(ctx context.Context, prompt string, params InferParams, onToken func(string) error) (FinalResult, error) {
	payload := openAICompletionRequest{
		Prompt:        prompt,
		MaxTokens:     params.MaxTokens,
		Temperature:   params.Temperature,
		TopP:          params.TopP,
		TopK:          params.TopK,
		Stop:          params.Stop,
		Seed:          params.Seed,
		Stream:        true,
		RepeatPenalty: params.RepeatPenalty,
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return FinalResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return FinalResult{}, ctx.Err()
		}
		return FinalResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return FinalResult{}, fmt.Errorf("llama server http error: %s: %s", resp.Status, string(b))
	}
	return readSSE(ctx, resp.Body, onToken)
}

// readSSE consumes an OpenAI-style "data:" event stream until [DONE] or EOF.
func readSSE(ctx context.Context, body io.Reader, onToken func(string) error) (FinalResult, error) {
	r := bufio.NewReader(body)
	var final FinalResult
	for {
		line, err := r.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" && strings.HasPrefix(strings.ToLower(l), "data:") {
			data := strings.TrimSpace(l[len("data:"):])
			if data == "[DONE]" {
				break
			}
			var msg openAIStreamResponse
			if e := json.Unmarshal([]byte(data), &msg); e == nil && len(msg.Choices) > 0 {
				c := msg.Choices[0]
				frag := c.Text
				if frag == "" {
					frag = c.Delta.Content
				}
				if frag != "" {
					if cbErr := onToken(frag); cbErr != nil {
						return final, cbErr
					}
				}
				if c.FinishReason != "" {
					final.FinishReason = c.FinishReason
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return final, ctx.Err()
			}
			return final, err
		}
	}
	return final, nil
}

// isHealthy checks if the llama-server at baseURL responds OK to /v1/models.
func (a *llamaSubprocessAdapter) isHealthy(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ensureProcess starts a llama-server for mdl (or reuses a healthy one) and
// waits until it answers health checks.
func (a *llamaSubprocessAdapter) ensureProcess(ctx context.Context, mdl types.Model) (string, error) {
	modelPath := mdl.Path
	a.mu.Lock()
	p := a.procs[modelPath]
	a.mu.Unlock()
	if p != nil {
		if a.isHealthy(ctx, p.baseURL) {
			return p.baseURL, nil
		}
		_ = a.Stop(modelPath)
	}

	host := a.cfg.LlamaHost
	var port int
	var err error
	if a.cfg.LlamaPortStart > 0 && a.cfg.LlamaPortEnd >= a.cfg.LlamaPortStart {
		port, err = pickPortInRange(host, a.cfg.LlamaPortStart, a.cfg.LlamaPortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return "", err
	}
	baseURL := fmt.Sprintf("http://%s:%d", host, port)

	args := []string{"-m", modelPath, "--host", host, "--port", strconv.Itoa(port)}
	ctxSize := a.cfg.LlamaCtxSize
	if mdl.ContextWindow > 0 && (ctxSize <= 0 || mdl.ContextWindow < ctxSize) {
		ctxSize = mdl.ContextWindow
	}
	if ctxSize > 0 {
		args = append(args, "-c", strconv.Itoa(ctxSize))
	}
	if a.cfg.LlamaNGL > 0 {
		args = append(args, "-ngl", strconv.Itoa(a.cfg.LlamaNGL))
	}
	if a.cfg.LlamaThreads > 0 {
		args = append(args, "-t", strconv.Itoa(a.cfg.LlamaThreads))
	}
	args = append(args, a.cfg.LlamaExtraArgs...)

	cmd := exec.Command(a.cfg.LlamaBin, args...)
	// stderr is kept in memory; its tail is reported when startup fails.
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start llama-server: %w", err)
	}
	pid := cmd.Process.Pid
	a.log.Info().Str("event", "spawn_start").Str("model", mdl.ID).Int("pid", pid).Int("port", port).Msg("llama-server started")
	a.pub().Publish(Event{Name: "spawn_start", ModelID: mdl.ID, Fields: map[string]any{"pid": pid, "port": port}})

	info := &procInfo{cmd: cmd, baseURL: baseURL, pid: pid, exited: make(chan struct{})}
	a.mu.Lock()
	a.procs[modelPath] = info
	a.mu.Unlock()

	waitErrCh := make(chan error, 1)
	go func() {
		waitErrCh <- cmd.Wait()
		close(info.exited)
	}()

	fail := func(err error) (string, error) {
		a.mu.Lock()
		delete(a.procs, modelPath)
		a.mu.Unlock()
		a.log.Error().Err(err).Str("event", "spawn_failed").Str("model", mdl.ID).Int("pid", pid).Msg("llama-server not ready")
		a.pub().Publish(Event{Name: "spawn_failed", ModelID: mdl.ID, Fields: map[string]any{"pid": pid, "error": err.Error()}})
		return "", err
	}

	deadline := time.NewTimer(a.cfg.LlamaReadyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case werr := <-waitErrCh:
			tail := stderr.String()
			if len(tail) > 4096 {
				tail = tail[len(tail)-4096:]
			}
			if werr == nil {
				return fail(fmt.Errorf("llama-server exited before ready: %s", baseURL))
			}
			return fail(fmt.Errorf("llama-server exited early: %v; stderr tail: %s", werr, tail))
		case <-deadline.C:
			terminate(cmd, info.exited)
			return fail(fmt.Errorf("llama-server not ready in time: %s", baseURL))
		case <-ctx.Done():
			terminate(cmd, info.exited)
			return fail(ctx.Err())
		case <-tick.C:
			if a.isHealthy(ctx, baseURL) {
				a.mu.Lock()
				info.ready = true
				a.mu.Unlock()
				a.log.Info().Str("event", "spawn_ready").Str("model", mdl.ID).Int("pid", pid).Str("url", baseURL).Msg("llama-server ready")
				a.pub().Publish(Event{Name: "spawn_ready", ModelID: mdl.ID, Fields: map[string]any{"pid": pid, "url": baseURL}})
				return baseURL, nil
			}
		}
	}
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	_, portStr, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}

// procInfoFor returns a snapshot of the process serving modelPath.
func (a *llamaSubprocessAdapter) procInfoFor(modelPath string) (pid int, baseURL string, ready bool, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p := a.procs[modelPath]; p != nil {
		return p.pid, p.baseURL, p.ready, true
	}
	return 0, "", false, false
}

// terminate sends SIGTERM and kills the process if it has not exited after 2s.
func terminate(cmd *exec.Cmd, exited <-chan struct{}) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		_ = cmd.Process.Kill()
		<-exited
	}
}

// Stop terminates the llama-server serving modelPath, if present.
func (a *llamaSubprocessAdapter) Stop(modelPath string) error {
	a.mu.Lock()
	p := a.procs[modelPath]
	delete(a.procs, modelPath)
	a.mu.Unlock()
	if p == nil {
		return nil
	}
	terminate(p.cmd, p.exited)
	a.log.Info().Str("event", "spawn_stop").Str("path", modelPath).Int("pid", p.pid).Msg("llama-server stopped")
	a.pub().Publish(Event{Name: "spawn_stop", ModelID: modelPath, Fields: map[string]any{"pid": p.pid}})
	return nil
}

// StopAll terminates all managed subprocesses. Best effort.
func (a *llamaSubprocessAdapter) StopAll() {
	a.mu.Lock()
	paths := make([]string, 0, len(a.procs))
	for k := range a.procs {
		paths = append(paths, k)
	}
	a.mu.Unlock()
	for _, path := range paths {
		_ = a.Stop(path)
	}
}

func (a *llamaSubprocessAdapter) pub() EventPublisher {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.publisher
}

func (a *llamaSubprocessAdapter) setPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	a.mu.Lock()
	a.publisher = p
	a.mu.Unlock()
}

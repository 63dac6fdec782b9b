package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ragd/pkg/types"
)

// ollamaAdapter drives a remote Ollama daemon. Loading pre-warms the model
// with keep_alive, releasing sends keep_alive=0 so the daemon evicts it.
type ollamaAdapter struct {
	baseURL    string
	keepAlive  string
	httpClient *http.Client
}

// NewOllamaAdapter returns an adapter for the Ollama daemon at baseURL.
func NewOllamaAdapter(baseURL, keepAlive string) InferenceAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if keepAlive == "" {
		keepAlive = "30m"
	}
	return &ollamaAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keepAlive:  keepAlive,
		httpClient: &http.Client{Timeout: 0},
	}
}

func (a *ollamaAdapter) Remote() bool { return true }

type ollamaOptions struct {
	Temperature   float32  `json:"temperature,omitempty"`
	TopP          float32  `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	NumPredict    int      `json:"num_predict,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	Seed          int      `json:"seed,omitempty"`
	RepeatPenalty float32  `json:"repeat_penalty,omitempty"`
	NumCtx        int      `json:"num_ctx,omitempty"`
}

type ollamaGenerateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt,omitempty"`
	Stream    bool           `json:"stream"`
	Raw       bool           `json:"raw,omitempty"`
	KeepAlive any            `json:"keep_alive,omitempty"`
	Options   *ollamaOptions `json:"options,omitempty"`
}

type ollamaGenerateChunk struct {
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	Error      string `json:"error"`
	PromptEval int    `json:"prompt_eval_count"`
	EvalCount  int    `json:"eval_count"`
}

func ollamaTag(mdl types.Model) string {
	if mdl.Tag != "" {
		return mdl.Tag
	}
	return mdl.ID
}

func (a *ollamaAdapter) post(ctx context.Context, body ollamaGenerateRequest) (*http.Response, error) {
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama http error: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func (a *ollamaAdapter) Start(ctx context.Context, mdl types.Model) (InferSession, error) {
	tag := ollamaTag(mdl)
	resp, err := a.post(ctx, ollamaGenerateRequest{Model: tag, KeepAlive: a.keepAlive})
	if err != nil {
		return nil, fmt.Errorf("preload %s: %w", tag, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return &ollamaSession{a: a, tag: tag, numCtx: mdl.ContextWindow}, nil
}

type ollamaSession struct {
	a      *ollamaAdapter
	tag    string
	numCtx int
}

func (s *ollamaSession) Generate(ctx context.Context, prompt string, params InferParams, onToken func(string) error) (FinalResult, error) {
	resp, err := s.a.post(ctx, ollamaGenerateRequest{
		Model:     s.tag,
		Prompt:    prompt,
		Stream:    true,
		Raw:       true,
		KeepAlive: s.a.keepAlive,
		Options: &ollamaOptions{
			Temperature:   params.Temperature,
			TopP:          params.TopP,
			TopK:          params.TopK,
			NumPredict:    params.MaxTokens,
			Stop:          params.Stop,
			Seed:          params.Seed,
			RepeatPenalty: params.RepeatPenalty,
			NumCtx:        s.numCtx,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return FinalResult{}, ctx.Err()
		}
		return FinalResult{}, err
	}
	defer resp.Body.Close()

	var final FinalResult
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaGenerateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return final, errors.New("ollama: " + chunk.Error)
		}
		if chunk.Response != "" {
			if err := onToken(chunk.Response); err != nil {
				return final, err
			}
		}
		if chunk.Done {
			final.FinishReason = chunk.DoneReason
			final.Usage = Usage{
				PromptTokens:     chunk.PromptEval,
				CompletionTokens: chunk.EvalCount,
				TotalTokens:      chunk.PromptEval + chunk.EvalCount,
			}
			break
		}
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return final, ctx.Err()
		}
		return final, err
	}
	return final, nil
}

// Close asks the daemon to evict the model immediately.
func (s *ollamaSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultMaxWait)
	defer cancel()
	resp, err := s.a.post(ctx, ollamaGenerateRequest{Model: s.tag, KeepAlive: 0})
	if err != nil {
		return fmt.Errorf("unload %s: %w", s.tag, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

//go:build llama

package manager

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"ragd/pkg/types"
)

// llamaAdapter loads GGUF files into this process through go-llama.cpp.
type llamaAdapter struct {
	ctxSize   int
	threads   int
	gpuLayers int
}

func NewLlamaAdapter(ctxSize, threads, gpuLayers int) InferenceAdapter {
	return &llamaAdapter{ctxSize: ctxSize, threads: threads, gpuLayers: gpuLayers}
}

// llamaSession owns one loaded model. Predict is not reentrant; the manager
// serializes generations.
type llamaSession struct {
	model   *llama.LLama
	threads int
}

func (a *llamaAdapter) Start(ctx context.Context, mdl types.Model) (InferSession, error) {
	if strings.TrimSpace(mdl.Path) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctxSize := a.ctxSize
	if mdl.ContextWindow > 0 && (ctxSize <= 0 || mdl.ContextWindow < ctxSize) {
		ctxSize = mdl.ContextWindow
	}
	mo := []llama.ModelOption{llama.SetContext(max(ctxSize, 512))}
	if a.gpuLayers > 0 {
		mo = append(mo, llama.SetGPULayers(a.gpuLayers))
	}
	m, err := llama.New(mdl.Path, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaSession{model: m, threads: a.threads}, nil
}

func (s *llamaSession) Generate(ctx context.Context, prompt string, params InferParams, onToken func(string) error) (FinalResult, error) {
	if s.model == nil {
		return FinalResult{}, errors.New("llama model not initialized")
	}

	var produced int
	s.model.SetTokenCallback(func(tok string) bool {
		if ctx.Err() != nil {
			return false
		}
		produced++
		return onToken(tok) == nil
	})
	text, err := s.model.Predict(prompt, predictOptions(params, s.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return FinalResult{}, ctx.Err()
		}
		return FinalResult{}, err
	}
	finish := "stop"
	if params.MaxTokens > 0 && produced >= params.MaxTokens {
		finish = "length"
	}
	return FinalResult{Content: text, FinishReason: finish}, nil
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts our adapter params into go-llama.cpp options
func predictOptions(params InferParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, params.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(params.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(params.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(params.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(params.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if params.Seed != 0 {
		po = append(po, llama.SetSeed(params.Seed))
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}
	return po
}

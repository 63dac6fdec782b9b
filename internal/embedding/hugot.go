package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
)

// DefaultHugotModel is the sentence transformer downloaded when no local
// model directory is configured. It produces 384-dimensional vectors.
const DefaultHugotModel = "sentence-transformers/all-MiniLM-L6-v2"

// Hugot runs a feature-extraction pipeline in-process with the pure Go
// backend. RunPipeline is not safe for concurrent use, so calls are serialised.
type Hugot struct {
	mu      sync.Mutex
	session *hugot.Session
	run     func(text string) ([]float32, error)
}

// NewHugot loads the ONNX model at modelPath. If modelPath does not exist and
// download is true, DefaultHugotModel is fetched into its parent directory.
func NewHugot(modelPath string, download bool) (*Hugot, error) {
	path, err := prepareModel(modelPath, download)
	if err != nil {
		return nil, err
	}
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("create hugot session: %w", err)
	}
	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: path,
		Name:      "ragd-embedder",
	})
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("create embedding pipeline: %w", err)
	}
	return &Hugot{
		session: session,
		run: func(text string) ([]float32, error) {
			result, err := pipeline.RunPipeline([]string{text})
			if err != nil {
				return nil, fmt.Errorf("run embedding pipeline: %w", err)
			}
			if len(result.Embeddings) == 0 {
				return nil, ErrNoEmbedding
			}
			return result.Embeddings[0], nil
		},
	}, nil
}

func prepareModel(modelPath string, download bool) (string, error) {
	if strings.TrimSpace(modelPath) == "" {
		return "", fmt.Errorf("hugot model path is empty")
	}
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) || !download {
		return "", fmt.Errorf("hugot model %s: %w", modelPath, err)
	}
	dir := filepath.Dir(modelPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}
	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	downloaded, err := hugot.DownloadModel(DefaultHugotModel, dir, opts)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", DefaultHugotModel, err)
	}
	return downloaded, nil
}

func (h *Hugot) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run(text)
}

// Close releases the hugot session.
func (h *Hugot) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return nil
	}
	err := h.session.Destroy()
	h.session = nil
	return err
}

package types

// Model describes one entry of the model catalog.
type Model struct {
	// Stable identifier for the model.
	// example: deepseek-r1-1.5b
	ID string `json:"id" yaml:"id" example:"deepseek-r1-1.5b"`
	// Human-friendly name.
	// example: DeepSeek-R1-1.5B
	Name string `json:"name" yaml:"name" example:"DeepSeek-R1-1.5B"`
	// Absolute path to the model file on disk.
	// example: /models/DeepSeek-R1-Distill-Qwen-1.5B-Q4_K_M.gguf
	Path string `json:"path" yaml:"path" example:"/models/DeepSeek-R1-Distill-Qwen-1.5B-Q4_K_M.gguf"`
	// Backend-specific reference (e.g. an Ollama tag). Empty means the id is used.
	// example: deepseek-r1:1.5b
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty" example:"deepseek-r1:1.5b"`
	// Approximate resident size in MB. Zero means the file size is used.
	// example: 1150
	SizeMB int `json:"size_mb" yaml:"size_mb" example:"1150"`
	// Context window in tokens.
	// example: 4096
	ContextWindow int `json:"context_window" yaml:"context_window" example:"4096"`
	// Coarse quality tier shown to operators.
	// example: High
	QualityTier string `json:"quality_tier" yaml:"quality_tier" example:"High"`
	// Parameter count label.
	// example: 1.5B
	Params string `json:"params,omitempty" yaml:"params,omitempty" example:"1.5B"`
	// Short description of what the model is good at.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// DisplayName returns Name, or ID when no name is set.
func (m Model) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// LoadAttempt records one step of a model load with fallback.
type LoadAttempt struct {
	// example: deepseek-r1-1.5b
	ModelID string `json:"model_id" example:"deepseek-r1-1.5b"`
	// Why the attempt did not produce a ready runtime.
	// example: start_failed
	Reason string `json:"reason" example:"start_failed"`
	Error  string `json:"error,omitempty"`
}

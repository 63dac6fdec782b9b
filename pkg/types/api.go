package types

// IngestRequest is the body of POST /documents/{id}/ingest.
type IngestRequest struct {
	// Path to an already validated file on the server.
	// example: /data/uploads/handbook.pdf
	Path string `json:"path" example:"/data/uploads/handbook.pdf"`
}

// IngestResponse reports the result of an ingestion.
type IngestResponse struct {
	// example: handbook
	DocumentID string `json:"document_id" example:"handbook"`
	// Name of the vector collection holding the chunks.
	// example: doc_handbook
	Collection string `json:"collection" example:"doc_handbook"`
	// Number of chunks written.
	// example: 42
	Chunks int `json:"chunks" example:"42"`
}

// AnswerRequest is the body of POST /answer.
type AnswerRequest struct {
	// The user's question.
	// example: Wie viele Urlaubstage habe ich?
	Question string `json:"question" example:"Wie viele Urlaubstage habe ich?"`
	// Documents the caller may see, already filtered by the identity layer.
	// example: ["handbook"]
	DocumentIDs []string `json:"document_ids,omitempty" example:"handbook"`
}

// AnswerResponse carries the generated answer and its provenance.
type AnswerResponse struct {
	Answer string `json:"answer"`
	// One of llm_only, rag, hybrid.
	// example: rag
	SourceType    string `json:"source_type" example:"rag"`
	ContextUsed   bool   `json:"context_used"`
	WebSearchUsed bool   `json:"web_search_used"`
	// Retrieved sections, in caller document order.
	Sources []Source `json:"sources"`
	// example: ["web search"]
	WebSources []string `json:"web_sources"`
	// Number of document sections used as context.
	// example: 3
	SourceCount int `json:"source_count" example:"3"`
}

// Source is one retrieved document section.
type Source struct {
	// example: handbook
	DocumentID string `json:"document_id" example:"handbook"`
	// example: 2
	ChunkIndex int `json:"chunk_index" example:"2"`
	// Cosine distance within the document's collection.
	// example: 0.21
	Distance float32 `json:"distance" example:"0.21"`
}

// SwitchRequest is the body of POST /switch.
type SwitchRequest struct {
	// example: qwen2.5-3b
	Model string `json:"model" example:"qwen2.5-3b"`
}

// SwitchResponse is returned after a successful switch.
type SwitchResponse struct {
	// example: qwen2.5-3b
	Model string `json:"model" example:"qwen2.5-3b"`
	// example: ready
	State string `json:"state" example:"ready"`
	// Operation id for correlating logs.
	OpID string `json:"op_id"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
	// example: deepseek-r1-1.5b
	Default string `json:"default" example:"deepseek-r1-1.5b"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Runtime state: unloaded, loading, ready or switching.
	// example: ready
	State string `json:"state" example:"ready"`
	// example: deepseek-r1-1.5b
	ActiveModel string `json:"active_model_id,omitempty" example:"deepseek-r1-1.5b"`
	// Model the next lazy load will use.
	// example: deepseek-r1-1.5b
	DesiredModel string `json:"desired_model_id,omitempty" example:"deepseek-r1-1.5b"`
	// Number of live runtime sessions. Never above 1.
	// example: 1
	Resident int `json:"resident" example:"1"`
	// example: 8192
	BudgetMB int `json:"budget_mb" example:"8192"`
	// example: 512
	MarginMB int `json:"margin_mb" example:"512"`
	// Estimated size of the resident model.
	// example: 1150
	UsedMB int `json:"used_est_mb" example:"1150"`
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Last error observed by the runtime manager.
	LastError string `json:"last_error,omitempty"`
	// Attempts made by the most recent load.
	LastAttempts []LoadAttempt `json:"last_attempts,omitempty"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// example: 1
	SwitchesTotal uint64 `json:"switches_total" example:"1"`
	// example: 0
	FallbacksTotal uint64 `json:"fallbacks_total" example:"0"`
	// Most recent runtime lifecycle events, oldest first.
	RecentEvents []RuntimeEvent `json:"recent_events,omitempty"`
}

// RuntimeEvent is one lifecycle event of the model runtime.
type RuntimeEvent struct {
	// example: switch_done
	Name string `json:"name" example:"switch_done"`
	// example: qwen2.5-3b
	ModelID string         `json:"model_id,omitempty" example:"qwen2.5-3b"`
	Fields  map[string]any `json:"fields,omitempty"`
	// example: 1700000000
	AtUnix int64 `json:"at_unix" example:"1700000000"`
}

// Package config loads service configuration from defaults, an optional
// file (.yaml/.yml, .json or .toml) and RAGD_ environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides. Sections are separated by a double
// underscore: RAGD_SERVER__ADDR sets server.addr.
const EnvPrefix = "RAGD_"

// Config holds runtime parameters for the service.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Models      ModelsConfig      `koanf:"models"`
	Runtime     RuntimeConfig     `koanf:"runtime"`
	Sampling    SamplingConfig    `koanf:"sampling"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	WebSearch   WebSearchConfig   `koanf:"websearch"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Prompt      PromptConfig      `koanf:"prompt"`
}

type ServerConfig struct {
	Addr          string        `koanf:"addr"`
	MaxBodyBytes  int64         `koanf:"max_body_bytes"`
	AnswerTimeout time.Duration `koanf:"answer_timeout"`
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string `koanf:"cors_origins"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	// Format is "console" or "json".
	Format string `koanf:"format"`
	// Requests is the access log level: off, error, info or debug.
	Requests string `koanf:"requests"`
}

type ModelsConfig struct {
	Dir string `koanf:"dir"`
	// Catalog is a models.yaml file; empty scans Dir, then falls back to the
	// built-in catalog.
	Catalog  string   `koanf:"catalog"`
	Default  string   `koanf:"default"`
	Fallback []string `koanf:"fallback"`
	BudgetMB int      `koanf:"budget_mb"`
	MarginMB int      `koanf:"margin_mb"`
}

type RuntimeConfig struct {
	// Backend is llama, llama_server or ollama.
	Backend         string        `koanf:"backend"`
	CtxSize         int           `koanf:"ctx_size"`
	Threads         int           `koanf:"threads"`
	GPULayers       int           `koanf:"gpu_layers"`
	LlamaBin        string        `koanf:"llama_bin"`
	LlamaHost       string        `koanf:"llama_host"`
	LlamaPortStart  int           `koanf:"llama_port_start"`
	LlamaPortEnd    int           `koanf:"llama_port_end"`
	ReadyTimeout    time.Duration `koanf:"ready_timeout"`
	// LlamaExtraArgs are appended to the llama-server command line.
	LlamaExtraArgs  []string      `koanf:"llama_extra_args"`
	OllamaURL       string        `koanf:"ollama_url"`
	OllamaKeepAlive string        `koanf:"ollama_keep_alive"`
	MaxQueueDepth   int           `koanf:"max_queue_depth"`
	MaxWait         time.Duration `koanf:"max_wait"`
	DrainTimeout    time.Duration `koanf:"drain_timeout"`
}

type SamplingConfig struct {
	MaxTokens     int      `koanf:"max_tokens"`
	Temperature   float32  `koanf:"temperature"`
	TopP          float32  `koanf:"top_p"`
	TopK          int      `koanf:"top_k"`
	RepeatPenalty float32  `koanf:"repeat_penalty"`
	Stop          []string `koanf:"stop"`
}

type VectorStoreConfig struct {
	// Backend is sqlitevec, pgvector or memory.
	Backend     string `koanf:"backend"`
	SQLitePath  string `koanf:"sqlite_path"`
	PostgresDSN string `koanf:"postgres_dsn"`
	CacheSize   int    `koanf:"cache_size"`
}

type EmbeddingConfig struct {
	// Provider is hugot, ollama or hash.
	Provider      string        `koanf:"provider"`
	OllamaURL     string        `koanf:"ollama_url"`
	Model         string        `koanf:"model"`
	HugotModelDir string        `koanf:"hugot_model_dir"`
	HugotDownload bool          `koanf:"hugot_download"`
	Timeout       time.Duration `koanf:"timeout"`
	Dim           int           `koanf:"dim"`
}

type RetrievalConfig struct {
	KPerDoc int `koanf:"k_per_doc"`
	FanOut  int `koanf:"fan_out"`
}

type WebSearchConfig struct {
	Enabled    bool          `koanf:"enabled"`
	URL        string        `koanf:"url"`
	MaxResults int           `koanf:"max_results"`
	Timeout    time.Duration `koanf:"timeout"`
	Language   string        `koanf:"language"`
	TimeRange  string        `koanf:"time_range"`
	SafeSearch int           `koanf:"safesearch"`
	RPS        float64       `koanf:"rps"`
	Burst      int           `koanf:"burst"`
}

type IngestConfig struct {
	ChunkSize int    `koanf:"chunk_size"`
	Overlap   int    `koanf:"overlap"`
	PDFToText string `koanf:"pdftotext_bin"`
}

type PromptConfig struct {
	Language string `koanf:"language"`
}

var defaults = map[string]any{
	"server.addr":           ":8080",
	"server.max_body_bytes": 1 << 20,
	"server.answer_timeout": "10m",

	"log.level":    "info",
	"log.format":   "console",
	"log.requests": "info",

	"models.dir":       "./models",
	"models.budget_mb": 8192,
	"models.margin_mb": 512,

	"runtime.backend":           "llama_server",
	"runtime.ctx_size":          4096,
	"runtime.threads":           4,
	"runtime.llama_bin":         "llama-server",
	"runtime.llama_host":        "127.0.0.1",
	"runtime.ready_timeout":     "60s",
	"runtime.ollama_url":        "http://localhost:11434",
	"runtime.ollama_keep_alive": "10m",
	"runtime.max_queue_depth":   32,
	"runtime.max_wait":          "30s",
	"runtime.drain_timeout":     "30s",

	"sampling.max_tokens":     1024,
	"sampling.temperature":    0.3,
	"sampling.top_p":          0.9,
	"sampling.top_k":          40,
	"sampling.repeat_penalty": 1.15,
	"sampling.stop":           []string{"<|im_end|>", "<|im_start|>"},

	"vectorstore.backend":     "sqlitevec",
	"vectorstore.sqlite_path": "./data/vectors.db",
	"vectorstore.cache_size":  128,

	"embedding.provider":        "hugot",
	"embedding.ollama_url":      "http://localhost:11434",
	"embedding.model":           "nomic-embed-text",
	"embedding.hugot_model_dir": "./models/embeddings/sentence-transformers_all-MiniLM-L6-v2",
	"embedding.hugot_download":  true,
	"embedding.timeout":         "60s",

	"retrieval.k_per_doc": 3,
	"retrieval.fan_out":   8,

	"websearch.enabled":     true,
	"websearch.url":         "http://localhost:8888",
	"websearch.max_results": 5,
	"websearch.timeout":     "30s",
	"websearch.language":    "de",
	"websearch.time_range":  "year",
	"websearch.safesearch":  1,
	"websearch.rps":         1.0,
	"websearch.burst":       2,

	"ingest.chunk_size":    1000,
	"ingest.overlap":       200,
	"ingest.pdftotext_bin": "pdftotext",

	"prompt.language": "de",
}

// Defaults returns the built-in configuration without file or environment
// overrides.
func Defaults() Config {
	cfg, err := load("", false)
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads the file at path (optional) over the defaults and applies
// RAGD_ environment overrides.
func Load(path string) (Config, error) {
	return load(path, true)
}

func load(path string, environ bool) (Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return Config{}, fmt.Errorf("set default %s: %w", key, err)
		}
	}
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return Config{}, err
		}
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if environ {
		if err := k.Load(env.Provider(".", env.Opt{Prefix: EnvPrefix, TransformFunc: envKey}), nil); err != nil {
			return Config{}, fmt.Errorf("load environment: %w", err)
		}
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envKey maps RAGD_WEBSEARCH__MAX_RESULTS to websearch.max_results. Values
// containing commas become lists.
func envKey(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if strings.Contains(v, ",") {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, v
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return tomlParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	var errs []error
	switch c.Runtime.Backend {
	case "llama", "llama_server", "ollama":
	default:
		errs = append(errs, fmt.Errorf("runtime.backend %q: want llama, llama_server or ollama", c.Runtime.Backend))
	}
	switch c.VectorStore.Backend {
	case "sqlitevec", "memory":
	case "pgvector":
		if c.VectorStore.PostgresDSN == "" {
			errs = append(errs, errors.New("vectorstore.postgres_dsn is required for the pgvector backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("vectorstore.backend %q: want sqlitevec, pgvector or memory", c.VectorStore.Backend))
	}
	switch c.Embedding.Provider {
	case "hugot", "ollama", "hash":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q: want hugot, ollama or hash", c.Embedding.Provider))
	}
	if c.Ingest.ChunkSize <= 0 || c.Ingest.Overlap < 0 || c.Ingest.Overlap >= c.Ingest.ChunkSize {
		errs = append(errs, fmt.Errorf("ingest: need 0 <= overlap (%d) < chunk_size (%d)", c.Ingest.Overlap, c.Ingest.ChunkSize))
	}
	if c.Models.BudgetMB < 0 || c.Models.MarginMB < 0 {
		errs = append(errs, errors.New("models: budget_mb and margin_mb must not be negative"))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q: want console or json", c.Log.Format))
	}
	switch c.Log.Requests {
	case "off", "error", "info", "debug":
	default:
		errs = append(errs, fmt.Errorf("log.requests %q: want off, error, info or debug", c.Log.Requests))
	}
	return errors.Join(errs...)
}

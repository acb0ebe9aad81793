// Package config provides configuration loading and structs for the kaiwa server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/kaiwa/internal/models"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Document  DocumentConfig  `yaml:"document"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Generator GeneratorConfig `yaml:"generator"`
	Rewrite   RewriteConfig   `yaml:"rewrite"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	MaxUploadSize int64  `yaml:"max_upload_size"` // bytes
}

// DocumentConfig names a document to load at server start and optionally watch.
type DocumentConfig struct {
	Path       string `yaml:"path"`
	Watch      bool   `yaml:"watch"`
	DebounceMS int    `yaml:"debounce_ms"`
}

// ChunkingConfig holds chunk window settings in characters.
type ChunkingConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap *int `yaml:"chunk_overlap"`
}

// Overlap returns the configured overlap; defaults to DefaultChunkOverlap when unset.
func (c *ChunkingConfig) Overlap() int {
	if c.ChunkOverlap != nil {
		return *c.ChunkOverlap
	}
	return DefaultChunkOverlap
}

// RetrievalConfig selects the retrieval strategy.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	Strategy       string  `yaml:"strategy"` // semantic | hybrid
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	// Fuzzy lets hybrid keyword matching tolerate typos up to Fuzziness edits.
	Fuzzy     bool `yaml:"fuzzy"`
	Fuzziness int  `yaml:"fuzziness"`
}

// EmbeddingConfig selects and configures the embedder.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // hashing | ollama | onnx
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	ModelPath      string `yaml:"model_path"`
	LibraryPath    string `yaml:"library_path"`
	Dimensions     int    `yaml:"dimensions"`
	MaxTokens      int    `yaml:"max_tokens"`
	CacheSize      int    `yaml:"cache_size"`
	BatchSize      int    `yaml:"batch_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the HTTP timeout for remote embedders.
func (e *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// GeneratorConfig selects and configures the text generator.
type GeneratorConfig struct {
	Provider          string  `yaml:"provider"` // groq | openai | ollama
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Timeout returns the HTTP timeout for generator requests.
func (g *GeneratorConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// APIKey reads the provider key from the environment variable named by APIKeyEnv.
func (g *GeneratorConfig) APIKey() string {
	if g.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(g.APIKeyEnv)
}

// RewriteConfig controls the follow-up question rewriter.
type RewriteConfig struct {
	// Guard falls back to the original question when a rewrite looks like an
	// answer rather than a question.
	Guard          bool    `yaml:"guard"`
	MaxLengthRatio float64 `yaml:"max_length_ratio"`
}

// ArchiveConfig configures the transcript archive. An empty path disables it.
type ArchiveConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Document.Path = expandPath(cfg.Document.Path, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Archive.Path = expandPath(cfg.Archive.Path, configDir)

	return &cfg, nil
}

// Default returns a config with every default applied, used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports settings that would make the pipeline unusable. Errors wrap
// models.ErrConfiguration.
func (c *Config) Validate() error {
	var problems []string
	size, overlap := c.Chunking.ChunkSize, c.Chunking.Overlap()
	if size <= 0 {
		problems = append(problems, fmt.Sprintf("chunking.chunk_size must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		problems = append(problems, fmt.Sprintf("chunking.chunk_overlap must be in [0, chunk_size), got %d", overlap))
	}
	if c.Retrieval.TopK <= 0 {
		problems = append(problems, fmt.Sprintf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK))
	}
	switch c.Retrieval.Strategy {
	case StrategySemantic, StrategyHybrid:
	default:
		problems = append(problems, fmt.Sprintf("retrieval.strategy %q is not one of semantic, hybrid", c.Retrieval.Strategy))
	}
	if c.Retrieval.Fuzziness < 0 || c.Retrieval.Fuzziness > MaxFuzziness {
		problems = append(problems, fmt.Sprintf("retrieval.fuzziness must be in [0, %d], got %d", MaxFuzziness, c.Retrieval.Fuzziness))
	}
	switch c.Embedding.Provider {
	case EmbeddingHashing, EmbeddingOllama, EmbeddingONNX:
	default:
		problems = append(problems, fmt.Sprintf("embedding.provider %q is not one of hashing, ollama, onnx", c.Embedding.Provider))
	}
	switch c.Generator.Provider {
	case GeneratorGroq, GeneratorOpenAI, GeneratorOllama:
	default:
		problems = append(problems, fmt.Sprintf("generator.provider %q is not one of groq, openai, ollama", c.Generator.Provider))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", models.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}

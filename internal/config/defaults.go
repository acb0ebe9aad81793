package config

// Provider and strategy names accepted in the config file.
const (
	StrategySemantic = "semantic"
	StrategyHybrid   = "hybrid"

	EmbeddingHashing = "hashing"
	EmbeddingOllama  = "ollama"
	EmbeddingONNX    = "onnx"

	GeneratorGroq   = "groq"
	GeneratorOpenAI = "openai"
	GeneratorOllama = "ollama"
)

// Defaults for chunking and retrieval.
const (
	DefaultChunkSize    = 5000
	DefaultChunkOverlap = 500
	DefaultTopK         = 4

	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3

	DefaultFuzziness = 1
	MaxFuzziness     = 2
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadSize == 0 {
		cfg.Server.MaxUploadSize = 32 << 20
	}
	if cfg.Document.DebounceMS == 0 {
		cfg.Document.DebounceMS = 500
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = DefaultChunkSize
	}
	if cfg.Chunking.ChunkOverlap == nil {
		o := DefaultChunkOverlap
		if o >= cfg.Chunking.ChunkSize {
			o = cfg.Chunking.ChunkSize / 10
		}
		cfg.Chunking.ChunkOverlap = &o
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Retrieval.Strategy == "" {
		cfg.Retrieval.Strategy = StrategySemantic
	}
	if cfg.Retrieval.SemanticWeight == 0 && cfg.Retrieval.KeywordWeight == 0 {
		cfg.Retrieval.SemanticWeight = DefaultSemanticWeight
		cfg.Retrieval.KeywordWeight = DefaultKeywordWeight
	}
	if cfg.Retrieval.Fuzzy && cfg.Retrieval.Fuzziness == 0 {
		cfg.Retrieval.Fuzziness = DefaultFuzziness
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = EmbeddingHashing
	}
	if cfg.Embedding.Dimensions == 0 {
		switch cfg.Embedding.Provider {
		case EmbeddingHashing:
			cfg.Embedding.Dimensions = 1024
		default:
			cfg.Embedding.Dimensions = 384
		}
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 60
	}
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = GeneratorGroq
	}
	if cfg.Generator.APIKeyEnv == "" {
		switch cfg.Generator.Provider {
		case GeneratorGroq:
			cfg.Generator.APIKeyEnv = "GROQ_API_KEY"
		case GeneratorOpenAI:
			cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 512
	}
	if cfg.Generator.TimeoutSeconds == 0 {
		cfg.Generator.TimeoutSeconds = 120
	}
	if cfg.Rewrite.MaxLengthRatio == 0 {
		cfg.Rewrite.MaxLengthRatio = 4
	}
}

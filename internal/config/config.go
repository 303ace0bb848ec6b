// Package config implements GIK's layered configuration: built-in defaults,
// overridden by the global (user) config, overridden by the project config,
// overridden by explicit call-site options, overridden last by GIK_* env
// vars. The merge strategy mirrors the teacher's config package (only
// non-zero fields from a more specific layer override a less specific one).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	gikerrors "github.com/guided-indexing/gik/internal/errors"
)

// SearchConfig tunes hybrid retrieval.
type SearchConfig struct {
	BM25Weight     float64 `yaml:"bm25_weight" json:"bm25_weight"`
	VectorWeight   float64 `yaml:"vector_weight" json:"vector_weight"`
	RRFConstant    int     `yaml:"rrf_constant" json:"rrf_constant"`
	BM25K1         float64 `yaml:"bm25_k1" json:"bm25_k1"`
	BM25B          float64 `yaml:"bm25_b" json:"bm25_b"`
	MaxResults     int     `yaml:"max_results" json:"max_results"`
	RerankTopN     int     `yaml:"rerank_top_n" json:"rerank_top_n"`
	RerankEnabled  bool    `yaml:"rerank_enabled" json:"rerank_enabled"`
}

// ChunkConfig tunes file chunking during commit/reindex.
type ChunkConfig struct {
	ChunkSize       int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap    int `yaml:"chunk_overlap" json:"chunk_overlap"`
	MaxFileBytes    int `yaml:"max_file_bytes" json:"max_file_bytes"`
	MaxFileLines    int `yaml:"max_file_lines" json:"max_file_lines"`
}

// EmbeddingsConfig configures the embedding backend.
type EmbeddingsConfig struct {
	Provider      string `yaml:"provider" json:"provider"`
	Model         string `yaml:"model" json:"model"`
	Dimensions    int    `yaml:"dimensions" json:"dimensions"`
	BatchSize     int    `yaml:"batch_size" json:"batch_size"`
	CacheSize     int    `yaml:"cache_size" json:"cache_size"`
	WarmupEnabled bool   `yaml:"warmup_enabled" json:"warmup_enabled"`
}

// PerformanceConfig configures concurrency limits.
type PerformanceConfig struct {
	IndexWorkers        int  `yaml:"index_workers" json:"index_workers"`
	AskWorkers          int  `yaml:"ask_workers" json:"ask_workers"`
	ParallelFileReading bool `yaml:"parallel_file_reading" json:"parallel_file_reading"`
}

// KGConfig configures knowledge-graph traversal bounds.
type KGConfig struct {
	Enabled  bool `yaml:"enabled" json:"enabled"`
	MaxHops  int  `yaml:"max_hops" json:"max_hops"`
	MaxNodes int  `yaml:"max_nodes" json:"max_nodes"`
	MaxEdges int  `yaml:"max_edges" json:"max_edges"`
}

// MemoryConfig configures the ask-context memory budget.
type MemoryConfig struct {
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
	JSON     bool   `yaml:"json" json:"json"`
}

// Config is the complete GIK configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Chunk       ChunkConfig       `yaml:"chunk" json:"chunk"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	KG          KGConfig          `yaml:"kg" json:"kg"`
	Memory      MemoryConfig      `yaml:"memory" json:"memory"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// Defaults returns the built-in base layer.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			BM25Weight:    0.5,
			VectorWeight:  0.5,
			RRFConstant:   60,
			BM25K1:        1.2,
			BM25B:         0.75,
			MaxResults:    20,
			RerankTopN:    0,
			RerankEnabled: false,
		},
		Chunk: ChunkConfig{
			ChunkSize:    800,
			ChunkOverlap: 100,
			MaxFileBytes: 1 << 20, // 1MB, per the commit pipeline's oversized-file cutoff
			MaxFileLines: 10000,
		},
		Embeddings: EmbeddingsConfig{
			Provider:      "static",
			Model:         "static-768",
			Dimensions:    768,
			BatchSize:     32,
			CacheSize:     4096,
			WarmupEnabled: true,
		},
		Performance: PerformanceConfig{
			IndexWorkers:        0, // 0 means runtime.NumCPU()
			AskWorkers:          0,
			ParallelFileReading: true,
		},
		KG: KGConfig{
			Enabled:  true,
			MaxHops:  2,
			MaxNodes: 200,
			MaxEdges: 400,
		},
		Memory: MemoryConfig{
			MaxTokens: 8000,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
	}
}

// EnvPrefix is the prefix for all GIK environment variable overrides.
const EnvPrefix = "GIK_"

// Load resolves the layered configuration for a workspace rooted at dir:
// defaults -> global (~/.config/gik/config.yaml) -> project (dir/.gik.yaml)
// -> call-site overrides -> environment variables. overrides, when
// non-nil, is merged after the project file; GIK_* environment variables
// are applied after it and take the highest precedence.
func Load(dir string, overrides *Config) (*Config, error) {
	cfg := Defaults()

	if globalCfg, err := loadYAMLIfExists(GlobalConfigPath()); err != nil {
		return nil, gikerrors.New(gikerrors.KindInvalidGlobalConfig, err.Error(), err)
	} else if globalCfg != nil {
		mergeInto(cfg, globalCfg)
	}

	projectPath := filepath.Join(dir, ".gik.yaml")
	if projCfg, err := loadYAMLIfExists(projectPath); err != nil {
		return nil, gikerrors.New(gikerrors.KindInvalidProjectConfig, err.Error(), err)
	} else if projCfg != nil {
		mergeInto(cfg, projCfg)
	}

	if overrides != nil {
		mergeInto(cfg, overrides)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GlobalConfigPath returns the user-level config path, honoring XDG_CONFIG_HOME.
func GlobalConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gik", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gik", "config.yaml")
}

func loadYAMLIfExists(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &parsed, nil
}

// mergeInto copies every non-zero field of other onto c. Numeric zero and
// empty-string fields are treated as "not set at this layer" — a layer that
// wants to force zero must do so via an env var or a negative sentinel; this
// matches the teacher's merge semantics.
func mergeInto(c, other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	mergeSearch(&c.Search, other.Search)
	mergeChunk(&c.Chunk, other.Chunk)
	mergeEmbeddings(&c.Embeddings, other.Embeddings)
	mergePerformance(&c.Performance, other.Performance)
	mergeKG(&c.KG, other.KG)
	if other.Memory.MaxTokens != 0 {
		c.Memory.MaxTokens = other.Memory.MaxTokens
	}
	mergeLogging(&c.Logging, other.Logging)
}

func mergeSearch(c *SearchConfig, o SearchConfig) {
	if o.BM25Weight != 0 {
		c.BM25Weight = o.BM25Weight
	}
	if o.VectorWeight != 0 {
		c.VectorWeight = o.VectorWeight
	}
	if o.RRFConstant != 0 {
		c.RRFConstant = o.RRFConstant
	}
	if o.BM25K1 != 0 {
		c.BM25K1 = o.BM25K1
	}
	if o.BM25B != 0 {
		c.BM25B = o.BM25B
	}
	if o.MaxResults != 0 {
		c.MaxResults = o.MaxResults
	}
	if o.RerankTopN != 0 {
		c.RerankTopN = o.RerankTopN
	}
	if o.RerankEnabled {
		c.RerankEnabled = true
	}
}

func mergeChunk(c *ChunkConfig, o ChunkConfig) {
	if o.ChunkSize != 0 {
		c.ChunkSize = o.ChunkSize
	}
	if o.ChunkOverlap != 0 {
		c.ChunkOverlap = o.ChunkOverlap
	}
	if o.MaxFileBytes != 0 {
		c.MaxFileBytes = o.MaxFileBytes
	}
	if o.MaxFileLines != 0 {
		c.MaxFileLines = o.MaxFileLines
	}
}

func mergeEmbeddings(c *EmbeddingsConfig, o EmbeddingsConfig) {
	if o.Provider != "" {
		c.Provider = o.Provider
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.Dimensions != 0 {
		c.Dimensions = o.Dimensions
	}
	if o.BatchSize != 0 {
		c.BatchSize = o.BatchSize
	}
	if o.CacheSize != 0 {
		c.CacheSize = o.CacheSize
	}
	if o.WarmupEnabled {
		c.WarmupEnabled = true
	}
}

func mergePerformance(c *PerformanceConfig, o PerformanceConfig) {
	if o.IndexWorkers != 0 {
		c.IndexWorkers = o.IndexWorkers
	}
	if o.AskWorkers != 0 {
		c.AskWorkers = o.AskWorkers
	}
	if o.ParallelFileReading {
		c.ParallelFileReading = true
	}
}

func mergeKG(c *KGConfig, o KGConfig) {
	if o.Enabled {
		c.Enabled = true
	}
	if o.MaxHops != 0 {
		c.MaxHops = o.MaxHops
	}
	if o.MaxNodes != 0 {
		c.MaxNodes = o.MaxNodes
	}
	if o.MaxEdges != 0 {
		c.MaxEdges = o.MaxEdges
	}
}

func mergeLogging(c *LoggingConfig, o LoggingConfig) {
	if o.Level != "" {
		c.Level = o.Level
	}
	if o.FilePath != "" {
		c.FilePath = o.FilePath
	}
	if o.JSON {
		c.JSON = true
	}
}

// applyEnvOverrides applies GIK_* environment variables, the highest
// precedence layer.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv(EnvPrefix + "BM25_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.BM25Weight = f
		}
	}
	if v := os.Getenv(EnvPrefix + "VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.VectorWeight = f
		}
	}
	if v := os.Getenv(EnvPrefix + "RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv(EnvPrefix + "EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.MaxResults = n
		}
	}
}

// Validate checks invariants that must hold regardless of which layer set a
// value.
func (c *Config) Validate() error {
	if c.Search.BM25Weight < 0 || c.Search.VectorWeight < 0 {
		return gikerrors.New(gikerrors.KindInvalidConfiguration, "search weights must be non-negative", nil)
	}
	if c.Search.RRFConstant <= 0 {
		return gikerrors.New(gikerrors.KindInvalidConfiguration, "rrf_constant must be positive", nil)
	}
	if c.Search.BM25K1 < 0 {
		return gikerrors.New(gikerrors.KindInvalidConfiguration, "bm25_k1 must be non-negative", nil)
	}
	if c.Search.BM25B < 0 || c.Search.BM25B > 1 {
		return gikerrors.New(gikerrors.KindInvalidConfiguration, "bm25_b must be between 0 and 1", nil)
	}
	if c.Embeddings.Dimensions <= 0 {
		return gikerrors.New(gikerrors.KindInvalidConfiguration, "embeddings.dimensions must be positive", nil)
	}
	if c.Chunk.ChunkOverlap >= c.Chunk.ChunkSize && c.Chunk.ChunkSize > 0 {
		return gikerrors.New(gikerrors.KindInvalidConfiguration, "chunk_overlap must be smaller than chunk_size", nil)
	}
	return nil
}

// WriteYAML persists the configuration to path, creating parent directories
// as needed.
func (c *Config) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// String renders the config for debug logging, redacting nothing (GIK
// config carries no secrets — embedding endpoints are plain local URLs).
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "version=%d bm25Weight=%.2f vectorWeight=%.2f rrfConstant=%d embedder=%s",
		c.Version, c.Search.BM25Weight, c.Search.VectorWeight, c.Search.RRFConstant, c.Embeddings.Provider)
	return sb.String()
}

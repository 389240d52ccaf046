// knowledgecore/config.go
package config

// SearchConfig selects and configures the full-text search backend.
type SearchConfig struct {
	Backend string `yaml:"backend"` // memory|auto|postgres|none
	DSN     string `yaml:"dsn"`
	Index   string `yaml:"index"`
}

// VectorConfig selects and configures the vector-store backend.
type VectorConfig struct {
	Backend    string `yaml:"backend"` // memory|auto|postgres|qdrant|none
	DSN        string `yaml:"dsn"`
	Index      string `yaml:"index"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"` // cosine|l2|ip
}

// GraphConfig selects and configures the graph-edge backend.
type GraphConfig struct {
	Backend string `yaml:"backend"` // memory|auto|postgres|none
	DSN     string `yaml:"dsn"`
}

// DBConfig groups the three pluggable persistence backends behind the
// vector-store contract (component D) plus a shared default DSN.
type DBConfig struct {
	DefaultDSN string       `yaml:"defaultDSN"`
	Search     SearchConfig `yaml:"search"`
	Vector     VectorConfig `yaml:"vector"`
	Graph      GraphConfig  `yaml:"graph"`
}

// EmbeddingConfig configures the dense-embedding HTTP endpoint (BGE-M3 or any
// OpenAI-compatible embeddings server).
type EmbeddingConfig struct {
	BaseURL   string            `yaml:"baseURL"`
	Model     string            `yaml:"model"`
	APIKey    string            `yaml:"apiKey"`
	APIHeader string            `yaml:"apiHeader"`
	Path      string            `yaml:"path"`
	Timeout   int               `yaml:"timeoutSeconds"`
	Headers   map[string]string `yaml:"headers,omitempty"`
}

// ObsConfig controls OpenTelemetry tracing/metrics export.
type ObsConfig struct {
	ServiceName    string `yaml:"serviceName"`
	ServiceVersion string `yaml:"serviceVersion"`
	Environment    string `yaml:"environment"`
	OTLP           string `yaml:"otlp"`
}

// OpenAIConfig configures the OpenAI (or OpenAI-compatible) LLM provider.
type OpenAIConfig struct {
	APIKey      string         `yaml:"apiKey"`
	BaseURL     string         `yaml:"baseURL"`
	Model       string         `yaml:"model"`
	API         string         `yaml:"api"` // "completions" or "responses"
	ExtraParams map[string]any `yaml:"extraParams,omitempty"`
	LogPayloads bool           `yaml:"logPayloads"`
}

// AnthropicPromptCacheConfig controls Anthropic prompt-cache breakpoints.
type AnthropicPromptCacheConfig struct {
	Enabled       bool `yaml:"enabled"`
	CacheSystem   bool `yaml:"cacheSystem"`
	CacheTools    bool `yaml:"cacheTools"`
	CacheMessages bool `yaml:"cacheMessages"`
}

// AnthropicConfig configures the Anthropic LLM provider.
type AnthropicConfig struct {
	APIKey      string                     `yaml:"apiKey"`
	BaseURL     string                     `yaml:"baseURL"`
	Model       string                     `yaml:"model"`
	PromptCache AnthropicPromptCacheConfig `yaml:"promptCache"`
	ExtraParams map[string]any             `yaml:"extraParams,omitempty"`
}

// GoogleConfig configures the Gemini LLM provider.
type GoogleConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
	Timeout int    `yaml:"timeoutSeconds"`
}

// LLMClientConfig selects the active external LLM collaborator used by
// /ask, /explain, /find-feature, and memory merge synthesis.
type LLMClientConfig struct {
	Provider  string          `yaml:"provider"` // openai|anthropic|google|local
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Google    GoogleConfig    `yaml:"google"`
}

// ProjectDefaults carries the PROJECT_NAME / BGE_M3_URL / VECTOR_SIZE family
// of settings named in spec.md §6: the defaults a freshly registered project
// inherits until its own settings override them.
type ProjectDefaults struct {
	Name             string `yaml:"name"`
	CollectionPrefix string `yaml:"collectionPrefix"`
	VectorSize       int    `yaml:"vectorSize"`
	BGEM3URL         string `yaml:"bgeM3URL"`
}

// CacheConfig configures the three-tier cache service (component H): L1 is
// always in-process, L2/L3 share a Redis deployment distinguished by key
// prefix and TTL.
type CacheConfig struct {
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	L1MaxEntries  int    `yaml:"l1MaxEntries"`
	L2TTLSeconds  int    `yaml:"l2TTLSeconds"`
	L3TTLSeconds  int    `yaml:"l3TTLSeconds"`
}

// ReliabilityConfig tunes the retry/circuit-breaker fabric (component I).
type ReliabilityConfig struct {
	MaxRetries                    int     `yaml:"maxRetries"`
	BaseBackoffMS                 int     `yaml:"baseBackoffMS"`
	MaxBackoffMS                  int     `yaml:"maxBackoffMS"`
	JitterFraction                float64 `yaml:"jitterFraction"`
	CircuitBreakerThreshold       int     `yaml:"circuitBreakerThreshold"`
	CircuitBreakerCooldownSeconds int     `yaml:"circuitBreakerCooldownSeconds"`
}

// Config is the process-wide, fully resolved configuration produced by Load.
type Config struct {
	Workdir  string `yaml:"workdir"`
	LogPath  string `yaml:"logPath"`
	LogLevel string `yaml:"logLevel"`

	LLMClient   LLMClientConfig   `yaml:"llmClient"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Databases   DBConfig          `yaml:"databases"`
	Obs         ObsConfig         `yaml:"obs"`
	Project     ProjectDefaults   `yaml:"project"`
	Cache       CacheConfig       `yaml:"cache"`
	Reliability ReliabilityConfig `yaml:"reliability"`
}

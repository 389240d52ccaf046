package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load reads configuration from environment variables (optionally .env),
// applying sane defaults, then overlays an optional YAML file for settings
// that are awkward to express purely as environment variables (project
// defaults, cache/reliability tuning).
func Load() (Config, error) {
	// Use Overload so .env values override existing OS environment variables.
	// This allows repository/local configuration to deterministically control
	// runtime behavior in development unless explicitly changed.
	_ = godotenv.Overload()

	cfg := Config{
		LogLevel: "info",
		Databases: DBConfig{
			Search: SearchConfig{Backend: "memory"},
			Vector: VectorConfig{Backend: "memory", Dimensions: 1024, Metric: "cosine"},
			Graph:  GraphConfig{Backend: "memory"},
		},
		Embedding: EmbeddingConfig{
			Model:   "bge-m3",
			Path:    "/embeddings",
			Timeout: 30,
		},
		Obs: ObsConfig{
			ServiceName: "knowledgecore",
		},
		Project: ProjectDefaults{
			CollectionPrefix: "kc",
			VectorSize:       1024,
		},
		Cache: CacheConfig{
			RedisAddr:    "localhost:6379",
			L1MaxEntries: 4096,
			L2TTLSeconds: 3600,
			L3TTLSeconds: 86400,
		},
		Reliability: ReliabilityConfig{
			MaxRetries:                    3,
			BaseBackoffMS:                 200,
			MaxBackoffMS:                  5000,
			JitterFraction:                0.2,
			CircuitBreakerThreshold:       5,
			CircuitBreakerCooldownSeconds: 30,
		},
	}

	cfg.Workdir = strings.TrimSpace(os.Getenv("WORKDIR"))
	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	cfg.LLMClient.Provider = strings.TrimSpace(os.Getenv("LLM_PROVIDER"))

	// OpenAI provider
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.LLMClient.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); v != "" {
		cfg.LLMClient.OpenAI.Model = v
	}
	if v := firstNonEmpty(strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")), strings.TrimSpace(os.Getenv("OPENAI_API_BASE_URL"))); v != "" {
		cfg.LLMClient.OpenAI.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API")); v != "" {
		cfg.LLMClient.OpenAI.API = v
	} else {
		cfg.LLMClient.OpenAI.API = "responses"
	}
	cfg.LLMClient.OpenAI.LogPayloads = boolFromEnv("OPENAI_LOG_PAYLOADS", false)

	// Anthropic provider
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.LLMClient.Anthropic.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL")); v != "" {
		cfg.LLMClient.Anthropic.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); v != "" {
		cfg.LLMClient.Anthropic.BaseURL = v
	}
	cfg.LLMClient.Anthropic.PromptCache.Enabled = boolFromEnv("ANTHROPIC_PROMPT_CACHE", true)
	cfg.LLMClient.Anthropic.PromptCache.CacheSystem = boolFromEnv("ANTHROPIC_CACHE_SYSTEM", true)
	cfg.LLMClient.Anthropic.PromptCache.CacheTools = boolFromEnv("ANTHROPIC_CACHE_TOOLS", true)
	cfg.LLMClient.Anthropic.PromptCache.CacheMessages = boolFromEnv("ANTHROPIC_CACHE_MESSAGES", false)

	// Google (Gemini) provider
	if v := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); v != "" {
		cfg.LLMClient.Google.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_MODEL")); v != "" {
		cfg.LLMClient.Google.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_BASE_URL")); v != "" {
		cfg.LLMClient.Google.BaseURL = v
	}
	cfg.LLMClient.Google.Timeout = intFromEnv("GOOGLE_TIMEOUT_SECONDS", 30)

	if cfg.LLMClient.Provider == "" {
		switch {
		case cfg.LLMClient.Anthropic.APIKey != "":
			cfg.LLMClient.Provider = "anthropic"
		case cfg.LLMClient.OpenAI.APIKey != "":
			cfg.LLMClient.Provider = "openai"
		case cfg.LLMClient.Google.APIKey != "":
			cfg.LLMClient.Provider = "google"
		}
	}

	// Embedding endpoint (dense vectors, typically a BGE-M3 server)
	if v := firstNonEmpty(strings.TrimSpace(os.Getenv("BGE_M3_URL")), strings.TrimSpace(os.Getenv("EMBEDDING_BASE_URL"))); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_MODEL")); v != "" {
		cfg.Embedding.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_API_KEY")); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_API_HEADER")); v != "" {
		cfg.Embedding.APIHeader = v
	}
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_PATH")); v != "" {
		cfg.Embedding.Path = v
	}
	cfg.Embedding.Timeout = intFromEnv("EMBEDDING_TIMEOUT_SECONDS", cfg.Embedding.Timeout)
	cfg.Embedding.Headers = parseHeadersEnv(strings.TrimSpace(os.Getenv("EMBED_API_HEADERS")))

	// Persistence backends (component D)
	cfg.Databases.DefaultDSN = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if v := strings.TrimSpace(os.Getenv("SEARCH_BACKEND")); v != "" {
		cfg.Databases.Search.Backend = v
	}
	cfg.Databases.Search.DSN = strings.TrimSpace(os.Getenv("SEARCH_DSN"))
	cfg.Databases.Search.Index = strings.TrimSpace(os.Getenv("SEARCH_INDEX"))

	if v := strings.TrimSpace(os.Getenv("VECTOR_BACKEND")); v != "" {
		cfg.Databases.Vector.Backend = v
	}
	cfg.Databases.Vector.DSN = strings.TrimSpace(os.Getenv("VECTOR_DSN"))
	cfg.Databases.Vector.Index = strings.TrimSpace(os.Getenv("VECTOR_INDEX"))
	cfg.Databases.Vector.Dimensions = intFromEnv("VECTOR_SIZE", cfg.Databases.Vector.Dimensions)
	if v := strings.TrimSpace(os.Getenv("VECTOR_METRIC")); v != "" {
		cfg.Databases.Vector.Metric = v
	}

	if v := strings.TrimSpace(os.Getenv("GRAPH_BACKEND")); v != "" {
		cfg.Databases.Graph.Backend = v
	}
	cfg.Databases.Graph.DSN = strings.TrimSpace(os.Getenv("GRAPH_DSN"))

	// Observability
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Obs.OTLP = v
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); v != "" {
		cfg.Obs.ServiceName = v
	}
	cfg.Obs.ServiceVersion = strings.TrimSpace(os.Getenv("SERVICE_VERSION"))
	cfg.Obs.Environment = firstNonEmpty(strings.TrimSpace(os.Getenv("ENVIRONMENT")), "development")

	// Project defaults (spec.md §6)
	if v := strings.TrimSpace(os.Getenv("PROJECT_NAME")); v != "" {
		cfg.Project.Name = v
	}
	if v := strings.TrimSpace(os.Getenv("COLLECTION_PREFIX")); v != "" {
		cfg.Project.CollectionPrefix = v
	}
	cfg.Project.VectorSize = intFromEnv("VECTOR_SIZE", cfg.Project.VectorSize)
	cfg.Project.BGEM3URL = cfg.Embedding.BaseURL

	// Cache service (component H)
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.Cache.RedisAddr = v
	}
	cfg.Cache.RedisPassword = strings.TrimSpace(os.Getenv("REDIS_PASSWORD"))
	cfg.Cache.RedisDB = intFromEnv("REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.L1MaxEntries = intFromEnv("CACHE_L1_MAX_ENTRIES", cfg.Cache.L1MaxEntries)
	cfg.Cache.L2TTLSeconds = intFromEnv("CACHE_L2_TTL_SECONDS", cfg.Cache.L2TTLSeconds)
	cfg.Cache.L3TTLSeconds = intFromEnv("CACHE_L3_TTL_SECONDS", cfg.Cache.L3TTLSeconds)

	// Reliability fabric (component I)
	cfg.Reliability.MaxRetries = intFromEnv("RELIABILITY_MAX_RETRIES", cfg.Reliability.MaxRetries)
	cfg.Reliability.BaseBackoffMS = intFromEnv("RELIABILITY_BASE_BACKOFF_MS", cfg.Reliability.BaseBackoffMS)
	cfg.Reliability.MaxBackoffMS = intFromEnv("RELIABILITY_MAX_BACKOFF_MS", cfg.Reliability.MaxBackoffMS)
	cfg.Reliability.CircuitBreakerThreshold = intFromEnv("CIRCUIT_BREAKER_THRESHOLD", cfg.Reliability.CircuitBreakerThreshold)
	cfg.Reliability.CircuitBreakerCooldownSeconds = intFromEnv("CIRCUIT_BREAKER_COOLDOWN_SECONDS", cfg.Reliability.CircuitBreakerCooldownSeconds)

	if err := loadYAMLOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadYAMLOverrides overlays a config file on top of the env-derived
// defaults. The file path comes from CONFIG_FILE, falling back to
// config.yaml/config.yml in the working directory; a missing file is not an
// error since every setting it could carry already has an env var path.
func loadYAMLOverrides(cfg *Config) error {
	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		for _, candidate := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}
	mergeConfig(cfg, &overlay)
	return nil
}

// mergeConfig copies non-zero scalar fields from overlay into cfg. Only
// project defaults, the cache's Redis address/L1 size/TTLs and the
// reliability MaxRetries are merged field by field. The overlay's whole
// databases block replaces cfg.Databases when it names a search backend and
// the env left the search backend at its "memory" default. Everything else
// stays env-var authoritative.
func mergeConfig(cfg, overlay *Config) {
	if overlay.Project.Name != "" {
		cfg.Project.Name = overlay.Project.Name
	}
	if overlay.Project.CollectionPrefix != "" {
		cfg.Project.CollectionPrefix = overlay.Project.CollectionPrefix
	}
	if overlay.Project.VectorSize != 0 {
		cfg.Project.VectorSize = overlay.Project.VectorSize
	}
	if overlay.Project.BGEM3URL != "" {
		cfg.Project.BGEM3URL = overlay.Project.BGEM3URL
	}
	if overlay.Cache.RedisAddr != "" {
		cfg.Cache.RedisAddr = overlay.Cache.RedisAddr
	}
	if overlay.Cache.L1MaxEntries != 0 {
		cfg.Cache.L1MaxEntries = overlay.Cache.L1MaxEntries
	}
	if overlay.Cache.L2TTLSeconds != 0 {
		cfg.Cache.L2TTLSeconds = overlay.Cache.L2TTLSeconds
	}
	if overlay.Cache.L3TTLSeconds != 0 {
		cfg.Cache.L3TTLSeconds = overlay.Cache.L3TTLSeconds
	}
	if overlay.Reliability.MaxRetries != 0 {
		cfg.Reliability.MaxRetries = overlay.Reliability.MaxRetries
	}
	if overlay.Databases.Search.Backend != "" && cfg.Databases.Search.Backend == "memory" {
		cfg.Databases = overlay.Databases
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func intFromEnv(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// parseHeadersEnv accepts either a JSON object or a comma-separated list of
// key:value/key=value pairs, matching whichever shape is easiest to set in
// the deployment environment at hand.
func parseHeadersEnv(s string) map[string]string {
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "{") {
		var out map[string]string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out
		}
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sep := ":"
		if !strings.Contains(pair, sep) {
			sep = "="
		}
		kv := strings.SplitN(pair, sep, 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func boolFromEnv(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

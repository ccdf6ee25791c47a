package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials marks a configuration that cannot build a model client.
// It is fatal at component construction and is never converted into a fallback.
var ErrMissingCredentials = errors.New("missing credentials")

// ErrUnknownKey is returned by Manager.Set for a key that is not a config field.
var ErrUnknownKey = errors.New("unknown config key")

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

type Config struct {
	ProjectDir string `json:"project_dir"`
	ResultsDir string `json:"results_dir"`
	DataDir    string `json:"data_dir"`
	IndexPath  string `json:"index_path"`

	LLMProvider    string   `json:"llm_provider"`
	AnalystLLM     string   `json:"analyst_llm"`
	SummarizerLLM  string   `json:"summarizer_llm"`
	LightLLM       string   `json:"light_llm"`
	BackendURL     string   `json:"backend_url"`
	MaxTokens      int      `json:"max_tokens"`
	LLMTimeout     Duration `json:"llm_timeout"`
	EmbeddingModel string   `json:"embedding_model"`
	EmbeddingDims  int      `json:"embedding_dims"`
	EmbeddingURL   string   `json:"embedding_url"`
	EmbedBatchSize int      `json:"embed_batch_size"`
	EmbedWorkers   int      `json:"embed_workers"`

	// Retrieval and summarization
	DefaultTopK  int `json:"default_top_k"`
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
	MaxSubChunks int `json:"max_sub_chunks"`

	// Collectors
	MarketPeriodDays int      `json:"market_period_days"`
	MarketCacheTTL   Duration `json:"market_cache_ttl"`
	NewsLookbackDays int      `json:"news_lookback_days"`
	NewsMaxResults   int      `json:"news_max_results"`
	NewsUserAgent    string   `json:"news_user_agent"`

	HTTPAddr      string `json:"http_addr"`
	LogEnv        string `json:"log_env"`
	LogLevel      string `json:"log_level"`
	HistoryDBPath string `json:"history_db_path"`
	Debug         bool   `json:"debug"`

	// Eino visual debugging
	EinoDebugEnabled bool `json:"eino_debug_enabled"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	// Finnhub company news, used when Google News has nothing
	FinnhubAPIKey string `json:"finnhub_api_key"`

	// AI Model API Keys
	OpenAIAPIKey   string `json:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot returns the built-in defaults rooted at dir without
// consulting the environment.
func DefaultConfigWithRoot(dir string) *Config {
	return &Config{
		ProjectDir: dir,
		ResultsDir: filepath.Join(dir, "results"),
		DataDir:    filepath.Join(dir, "data"),
		IndexPath:  filepath.Join(dir, "data", "vectorstore"),

		LLMProvider:    ProviderOpenAI,
		AnalystLLM:     "gpt-4o",
		SummarizerLLM:  "gpt-3.5-turbo",
		LightLLM:       "gpt-4o-mini",
		BackendURL:     DefaultOpenAIBaseURL,
		MaxTokens:      4096,
		LLMTimeout:     Duration(90 * time.Second),
		EmbeddingModel: "text-embedding-3-small",
		EmbeddingDims:  0,
		EmbedBatchSize: 64,
		EmbedWorkers:   4,

		DefaultTopK:  4,
		ChunkSize:    2000,
		ChunkOverlap: 100,
		MaxSubChunks: 3,

		MarketPeriodDays: 60,
		MarketCacheTTL:   Duration(5 * time.Minute),
		NewsLookbackDays: 7,
		NewsMaxResults:   15,
		NewsUserAgent:    "FinCortex/1.0",

		HTTPAddr: "127.0.0.1:8000",
		LogEnv:   "dev",
		LogLevel: "info",

		EinoDebugEnabled: false,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("INDEX_PATH"); val != "" {
		c.IndexPath = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(val)
	}
	if val := os.Getenv("ANALYST_LLM"); val != "" {
		c.AnalystLLM = val
	}
	if val := os.Getenv("SUMMARIZER_LLM"); val != "" {
		c.SummarizerLLM = val
	}
	if val := os.Getenv("LIGHT_LLM"); val != "" {
		c.LightLLM = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("LLM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.LLMTimeout = Duration(d)
		}
	}
	if val := os.Getenv("MARKET_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.MarketCacheTTL = Duration(d)
		}
	}
	if val := os.Getenv("EMBEDDING_MODEL"); val != "" {
		c.EmbeddingModel = val
	}
	if val := os.Getenv("EMBEDDING_URL"); val != "" {
		c.EmbeddingURL = val
	}

	if val := os.Getenv("DEFAULT_TOP_K"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.DefaultTopK = v
		}
	}
	if val := os.Getenv("MAX_SUB_CHUNKS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxSubChunks = v
		}
	}

	if val := os.Getenv("HTTP_ADDR"); val != "" {
		c.HTTPAddr = val
	}
	if val := os.Getenv("LOG_ENV"); val != "" {
		c.LogEnv = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("HISTORY_DB_PATH"); val != "" {
		c.HistoryDBPath = val
	}

	if val := os.Getenv("FINCORTEX_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}

	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
}

// Validate checks structural settings. Credentials are checked separately by
// RequireCredentials so a config file can be written before keys exist.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderDeepSeek:
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLMProvider)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("config: chunk_overlap %d must be in [0, chunk_size)", c.ChunkOverlap)
	}
	if c.MaxSubChunks <= 0 {
		return fmt.Errorf("config: max_sub_chunks must be positive, got %d", c.MaxSubChunks)
	}
	if c.DefaultTopK < 0 {
		return fmt.Errorf("config: default_top_k cannot be negative, got %d", c.DefaultTopK)
	}
	if c.LLMTimeout < 0 {
		return fmt.Errorf("config: llm_timeout cannot be negative")
	}
	return nil
}

// RequireCredentials fails with ErrMissingCredentials when the selected
// provider has no API key.
func (c *Config) RequireCredentials() error {
	switch c.LLMProvider {
	case ProviderDeepSeek:
		if strings.TrimSpace(c.DeepSeekAPIKey) == "" {
			return fmt.Errorf("DEEPSEEK_API_KEY is not set: %w", ErrMissingCredentials)
		}
	default:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return fmt.Errorf("OPENAI_API_KEY is not set: %w", ErrMissingCredentials)
		}
	}
	return nil
}

// RequireEmbeddingCredentials checks the key used by the embedding client,
// which always speaks the OpenAI embeddings API.
func (c *Config) RequireEmbeddingCredentials() error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set: %w", ErrMissingCredentials)
	}
	return nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

// Duration is a time.Duration that round-trips through JSON as "90s".
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

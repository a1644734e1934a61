package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Port          string
	Environment   string
	APIKey        string
	AdminUsername string
	AdminPassword string

	// Text generation / embeddings (Azure OpenAI compatible REST API)
	AzureOpenAIEndpoint                string
	AzureOpenAIAPIKey                  string
	AzureOpenAIAPIVersion              string
	AzureOpenAIChatDeploymentName      string
	AzureOpenAIEmbeddingDeploymentName string
	OpenAIProxyURL                     string
	GenerationTimeout                  time.Duration
	GenerationConcurrency              int
	GenerationTemperature              float64

	// Product scoring
	ScoringMode  string // "keyword" or "semantic"
	KeywordsFile string
	PromptFile   string
	TopK         int

	// Trend / keyword-demand lookups
	TrendAPIURL   string
	TrendAPIKey   string
	TrendTimeout  time.Duration
	RedisURL      string
	TrendCacheTTL time.Duration

	// Embedding cache for semantic scoring (Qdrant gRPC)
	QdrantURL           string
	QdrantAPIKey        string
	QdrantCollection    string
	EmbeddingDimensions int

	// Audience and simulation
	AudienceStrategy   string // "roster" or "random"
	AudienceSize       int
	AudienceSeed       int64
	SimulatorSeed      int64
	VariantsPerChannel int
	Niche              string

	// Upper bounds for per-request overrides
	MaxTopK               int
	MaxVariantsPerChannel int
	MaxAudienceSize       int
}

// Scoring modes
const (
	ScoringModeKeyword  = "keyword"
	ScoringModeSemantic = "semantic"
)

// Audience strategies
const (
	AudienceRoster = "roster"
	AudienceRandom = "random"
)

// Request size limits applied when the corresponding setting is not positive.
const (
	DefaultMaxTopK               = 50
	DefaultMaxVariantsPerChannel = 10
	DefaultMaxAudienceSize       = 500
)

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		APIKey:        getEnv("API_KEY", ""),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		AzureOpenAIEndpoint:                getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIAPIKey:                  getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureOpenAIAPIVersion:              getEnv("AZURE_OPENAI_API_VERSION", "2024-06-01"),
		AzureOpenAIChatDeploymentName:      getEnv("AZURE_OPENAI_CHAT_DEPLOYMENT_NAME", "gpt-4o-mini"),
		AzureOpenAIEmbeddingDeploymentName: getEnv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT_NAME", ""),
		OpenAIProxyURL:                     getEnv("OPENAI_PROXY_URL", ""),
		GenerationTimeout:                  getEnvDuration("GENERATION_TIMEOUT", 30*time.Second),
		GenerationConcurrency:              getEnvInt("GENERATION_CONCURRENCY", 4),
		GenerationTemperature:              getEnvFloat("GENERATION_TEMPERATURE", 0.9),

		ScoringMode:  getEnv("SCORING_MODE", ScoringModeKeyword),
		KeywordsFile: getEnv("SCORING_KEYWORDS_FILE", "configs/scoring_keywords.yaml"),
		PromptFile:   getEnv("CREATIVE_PROMPT_FILE", "configs/creative_prompt.yaml"),
		TopK:         getEnvInt("TOP_K", 3),

		TrendAPIURL:   getEnv("TREND_API_URL", ""),
		TrendAPIKey:   getEnv("TREND_API_KEY", ""),
		TrendTimeout:  getEnvDuration("TREND_TIMEOUT", 5*time.Second),
		RedisURL:      getEnv("REDIS_URL", ""),
		TrendCacheTTL: getEnvDuration("TREND_CACHE_TTL", 6*time.Hour),

		QdrantURL:           getEnv("QDRANT_URL", ""),
		QdrantAPIKey:        getEnv("QDRANT_API_KEY", ""),
		QdrantCollection:    getEnv("QDRANT_COLLECTION", "genai_product_embeddings"),
		EmbeddingDimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),

		AudienceStrategy:   getEnv("AUDIENCE_STRATEGY", AudienceRoster),
		AudienceSize:       getEnvInt("AUDIENCE_SIZE", 12),
		AudienceSeed:       int64(getEnvInt("AUDIENCE_SEED", 42)),
		SimulatorSeed:      int64(getEnvInt("SIMULATOR_SEED", 7)),
		VariantsPerChannel: getEnvInt("VARIANTS_PER_CHANNEL", 3),
		Niche:              getEnv("NICHE", "электроника"),

		MaxTopK:               getEnvInt("MAX_TOP_K", DefaultMaxTopK),
		MaxVariantsPerChannel: getEnvInt("MAX_VARIANTS_PER_CHANNEL", DefaultMaxVariantsPerChannel),
		MaxAudienceSize:       getEnvInt("MAX_AUDIENCE_SIZE", DefaultMaxAudienceSize),
	}
}

// HasRemoteCredentials reports whether the remote text-generation client can be used.
func (c *Config) HasRemoteCredentials() bool {
	return c.AzureOpenAIEndpoint != "" && c.AzureOpenAIAPIKey != ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

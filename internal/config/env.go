package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	DatabaseURL  string
	SslCertPath  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	// answer generation
	AIAPIKey string
	GenModel string

	// embeddings
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	EmbedModel       string
	EmbedDim         int
	EmbedBatchSize   int
	EmbedParallelism int
	EmbedTimeout     time.Duration

	AzureOpenAIKey        string
	AzureOpenAIEndpoint   string
	AzureEmbedDeployment  string
	AzureOpenAIAPIVersion string

	// document understanding service
	DocServiceKey     string
	DocServiceURL     string
	DocServiceTimeout time.Duration

	ChunkSize     int
	ChunkOverlap  int
	IngestWorkers int

	JWTSecret      string
	Port           string
	LogLevel       string
	RequestTimeout time.Duration
	CorsOrigins    []string

	// MemoryStore swaps Postgres and S3 for in-process stores.
	MemoryStore bool
}

// LoadConfig loads and validates the configuration.
func LoadConfig() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the environment variables (and .env, when present) without validating them.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SslCertPath:  getEnv("SSL_CERT_PATH", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "ragdesk-files"),

		AIAPIKey: getEnv("GEMINI_API_KEY", ""),
		GenModel: getEnv("GEN_MODEL", "gemini-1.5-flash"),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		EmbedModel:       getEnv("EMBED_MODEL", "text-embedding-3-small"),
		EmbedDim:         getEnvInt("EMBED_DIM", 1536),
		EmbedBatchSize:   getEnvInt("EMBED_BATCH_SIZE", 256),
		EmbedParallelism: getEnvInt("EMBED_PARALLELISM", 4),
		EmbedTimeout:     getEnvDuration("EMBED_TIMEOUT", 2*time.Minute),

		AzureOpenAIKey:        getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureOpenAIEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureEmbedDeployment:  getEnv("AZURE_OPENAI_EMBEDDINGS_DEPLOYMENT", ""),
		AzureOpenAIAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-02-01"),

		DocServiceKey:     getEnv("UNSTRUCTURED_API_KEY", ""),
		DocServiceURL:     getEnv("UNSTRUCTURED_API_URL", "https://api.unstructured.io/general/v0/general"),
		DocServiceTimeout: getEnvDuration("DOCSERVICE_TIMEOUT", 90*time.Second),

		ChunkSize:     getEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap:  getEnvInt("CHUNK_OVERLAP", 50),
		IngestWorkers: getEnvInt("INGEST_WORKERS", 4),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 5*time.Minute),
		CorsOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8888"}),
		MemoryStore:    getEnvBool("MEMORY_STORE", false),
	}
	return cfg
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" && !c.MemoryStore {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET not set"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap))
	}
	if c.DocServiceTimeout <= 0 || c.EmbedTimeout <= 0 {
		errs = append(errs, errors.New("DOCSERVICE_TIMEOUT and EMBED_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		zap.L().Warn("env value is not an int, using default", zap.String("key", key), zap.String("value", v), zap.Int("default", def))
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		zap.L().Warn("env value is not a bool, using default", zap.String("key", key), zap.String("value", v), zap.Bool("default", def))
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		zap.L().Warn("env value is not a duration, using default", zap.String("key", key), zap.String("value", v), zap.Duration("default", def))
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

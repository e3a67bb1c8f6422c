package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	OpenAI    OpenAIConfig
	Retrieval RetrievalConfig
	Ingestion IngestionConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// OpenAIConfig holds configuration for the generation client
type OpenAIConfig struct {
	APIKey         string
	Model          string
	VisionModel    string
	RateLimitRPM   int
	RateLimitBurst int
}

// RetrievalConfig holds tunables for the retrieval-augmented pipeline.
// The thresholds are defaults with no derivation beyond observed behavior;
// they are configuration, not contract.
type RetrievalConfig struct {
	TokenBudget        int
	RelevanceThreshold float64
	MissedThreshold    float64
	SearchLimit        int
	MaxAttempts        int
}

// IngestionConfig holds ingestion worker configuration
type IngestionConfig struct {
	Stream        string
	ConsumerGroup string
	Consumer      string
	BatchSize     int
	ChunkSize     int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "crop_advisory"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			VisionModel:    getEnv("OPENAI_VISION_MODEL", "gpt-4o"),
			RateLimitRPM:   getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
		},
		Retrieval: RetrievalConfig{
			TokenBudget:        getEnvAsInt("RETRIEVAL_TOKEN_BUDGET", 4000),
			RelevanceThreshold: getEnvAsFloat("RETRIEVAL_RELEVANCE_THRESHOLD", 0.5),
			MissedThreshold:    getEnvAsFloat("RETRIEVAL_MISSED_THRESHOLD", 0.4),
			SearchLimit:        getEnvAsInt("RETRIEVAL_SEARCH_LIMIT", 10),
			MaxAttempts:        getEnvAsInt("GENERATION_MAX_ATTEMPTS", 2),
		},
		Ingestion: IngestionConfig{
			Stream:        getEnv("INGESTION_STREAM", "ingestion:batches"),
			ConsumerGroup: getEnv("INGESTION_CONSUMER_GROUP", "ingestion-workers"),
			Consumer:      getEnv("INGESTION_CONSUMER", "worker-1"),
			BatchSize:     getEnvAsInt("INGESTION_BATCH_SIZE", 10),
			ChunkSize:     getEnvAsInt("INGESTION_CHUNK_SIZE", 300),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "crop-advisory"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

package types

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries everything both binaries read from the environment.
type Config struct {
	ServerAddr string

	PostgresDSN string

	LLMProvider  string // "openai" or "ollama"
	LLMModel     string
	OpenAIAPIKey string
	OpenAIBase   string
	OllamaURL    string

	EmbeddingURL   string
	EmbeddingModel string

	MonitoringTime time.Duration
	SourceDir      string
	ArchiveDir     string
	BadDir         string
	ChunkSize      int
	ChunkOverlap   int
}

func LoadConfig() Config {
	return Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		PostgresDSN: postgresDSN(),

		LLMProvider:  getEnv("LLM_PROVIDER", "openai"),
		LLMModel:     getEnv("LLM_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIBase:   getEnv("OPENAI_BASE_URL", ""),
		OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434/api/generate"),

		EmbeddingURL:   getEnv("OLLAMA_EMBEDDING_URL", "http://localhost:11434/api/embeddings"),
		EmbeddingModel: getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),

		MonitoringTime: getEnvDuration("LOADER_MONITORING_TIME", 5*time.Second),
		SourceDir:      getEnv("LOADER_SOURCE_DIR", "data/incoming"),
		ArchiveDir:     getEnv("LOADER_ARCHIVE_DIR", "data/archive"),
		BadDir:         getEnv("LOADER_BAD_DIR", "data/bad"),
		ChunkSize:      getEnvInt("CHUNK_SIZE", 400),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 40),
	}
}

func postgresDSN() string {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	port, _ := strconv.Atoi(getEnv("PG_PORT", "5432"))
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		getEnv("PG_HOST", "localhost"), port, getEnv("PG_USER", "postgres"),
		getEnv("PG_PASS", "postgres"), getEnv("PG_DB_NAME", "qaforge"))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

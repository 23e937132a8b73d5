package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Ollama    OllamaConfig
	Index     IndexConfig
	Retrieval RetrievalConfig
	Cache     CacheConfig
	Session   SessionConfig
	Upload    UploadConfig
	Logger    LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type OllamaConfig struct {
	BaseURL           string
	Model             string
	EmbeddingModel    string
	GenerationTimeout time.Duration
}

type IndexConfig struct {
	Backend    string // "chromem" or "qdrant"
	Path       string // chromem persistence directory
	QdrantHost string
	QdrantPort int
	Dimension  int
}

type RetrievalConfig struct {
	TopK         int
	MinRelevance float64 // 0-100 scale
	Timeout      time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

type SessionConfig struct {
	ContextTurns int
	TTL          time.Duration
}

type UploadConfig struct {
	Dir         string
	MaxSizeMB   int
	AllowedExts []string
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// No .env file is fine, environment variables still apply (Docker/K8s)

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	genTimeout, _ := strconv.Atoi(getEnv("OLLAMA_GENERATION_TIMEOUT", "120"))
	qdrantPort, _ := strconv.Atoi(getEnv("QDRANT_PORT", "6334"))
	dimension, _ := strconv.Atoi(getEnv("INDEX_DIMENSION", "768"))
	topK, _ := strconv.Atoi(getEnv("RETRIEVAL_TOP_K", "5"))
	minRelevance, _ := strconv.ParseFloat(getEnv("RETRIEVAL_MIN_RELEVANCE", "60"), 64)
	retrievalTimeout, _ := strconv.Atoi(getEnv("RETRIEVAL_TIMEOUT", "10"))
	cacheTTL, _ := strconv.Atoi(getEnv("CACHE_TTL_SECONDS", "3600"))
	contextTurns, _ := strconv.Atoi(getEnv("SESSION_CONTEXT_TURNS", "5"))
	sessionTTL, _ := strconv.Atoi(getEnv("SESSION_TTL_HOURS", "24"))
	maxUploadMB, _ := strconv.Atoi(getEnv("UPLOAD_MAX_SIZE_MB", "20"))
	dbMaxConns, _ := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "campuschat"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Ollama: OllamaConfig{
			BaseURL:           getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model:             getEnv("OLLAMA_MODEL", "qwen2.5:3b"),
			EmbeddingModel:    getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			GenerationTimeout: time.Duration(genTimeout) * time.Second,
		},
		Index: IndexConfig{
			Backend:    getEnv("INDEX_BACKEND", "chromem"),
			Path:       getEnv("INDEX_PATH", "chroma_db"),
			QdrantHost: getEnv("QDRANT_HOST", "localhost"),
			QdrantPort: qdrantPort,
			Dimension:  dimension,
		},
		Retrieval: RetrievalConfig{
			TopK:         topK,
			MinRelevance: minRelevance,
			Timeout:      time.Duration(retrievalTimeout) * time.Second,
		},
		Cache: CacheConfig{
			TTL: time.Duration(cacheTTL) * time.Second,
		},
		Session: SessionConfig{
			ContextTurns: contextTurns,
			TTL:          time.Duration(sessionTTL) * time.Hour,
		},
		Upload: UploadConfig{
			Dir:         getEnv("UPLOAD_DIR", "uploads"),
			MaxSizeMB:   maxUploadMB,
			AllowedExts: splitList(getEnv("UPLOAD_ALLOWED_EXTS", ".pdf,.docx,.doc,.txt,.md")),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

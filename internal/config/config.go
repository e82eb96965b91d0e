package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string
	DatabaseURL  string
	HTTPPort     string
	LogLevel     string
	JWTSecret    string
	JWTTTLHours  int

	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// ProcessorURL points at the optional external processing service.
	// Empty means local-only ingestion.
	ProcessorURL string

	MaxUploadBytes     int64
	MaxChunkSize       int
	EmbeddingDimension int
	MaxContextLength   int
	AnalysisDelaySecs  int
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:  getEnv("DATABASE_URL", "estudai.db"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTTTLHours:  getEnvAsInt("JWT_TTL_HOURS", 24),

		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "study_chunks"),

		ProcessorURL: getEnv("PROCESSOR_URL", ""),

		MaxUploadBytes:     int64(getEnvAsInt("MAX_UPLOAD_BYTES", 25*1024*1024)),
		MaxChunkSize:       getEnvAsInt("MAX_CHUNK_SIZE", 1000),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
		MaxContextLength:   getEnvAsInt("MAX_CONTEXT_LENGTH", 12000),
		AnalysisDelaySecs:  getEnvAsInt("ANALYSIS_DELAY_SECONDS", 5),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

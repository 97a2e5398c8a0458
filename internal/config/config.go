/**
 * Configuration for the Annotex evaluation worker
 *
 * Loads configuration from environment variables matching .env
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL string

	// PostgreSQL configuration
	DatabaseURL string

	// Qdrant vector database configuration (optional; empty disables indexing)
	QdrantURL        string
	QdrantCollection string

	// OCR configuration
	OCRProvider       string // google_vision | tesseract | mock
	GoogleVisionURL   string
	GoogleAPIKey      string
	TesseractPath     string
	TesseractLanguage string

	// Embedding configuration
	EmbeddingProvider   string // ollama | voyage
	EmbeddingDimensions int
	OllamaURL           string
	OllamaModel         string
	VoyageAPIKey        string
	VoyageModel         string

	// Evaluation thresholds
	CorrectThreshold float64
	PartialThreshold float64

	// Annotation rendering
	AnnotationDPI     int
	AnnotationOpacity float64

	// File storage
	StorageRoot string

	// Worker configuration
	WorkerConcurrency int
	MaxRetries        int
	RetryBaseDelay    int // seconds
	RetryMaxDelay     int // seconds
	ProcessingTimeout int // seconds
	MaxFileSize       int64

	// Node environment
	NodeEnv string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:       getEnvOrThrow("DATABASE_URL"),
		QdrantURL:         getEnvOrDefault("QDRANT_URL", ""),
		QdrantCollection:  getEnvOrDefault("QDRANT_COLLECTION", "answer_segments"),
		OCRProvider:       getEnvOrDefault("OCR_PROVIDER", "tesseract"),
		GoogleVisionURL:   getEnvOrDefault("GOOGLE_VISION_URL", "https://vision.googleapis.com"),
		GoogleAPIKey:      getEnvOrDefault("GOOGLE_API_KEY", ""),
		TesseractPath:     getEnvOrDefault("TESSERACT_PATH", "/usr/bin/tesseract"),
		TesseractLanguage: getEnvOrDefault("TESSERACT_LANGUAGE", "eng"),
		EmbeddingProvider: getEnvOrDefault("EMBEDDING_PROVIDER", "ollama"),
		OllamaURL:         getEnvOrDefault("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:       getEnvOrDefault("OLLAMA_MODEL", "nomic-embed-text"),
		VoyageAPIKey:      getEnvOrDefault("VOYAGE_API_KEY", ""),
		VoyageModel:       getEnvOrDefault("VOYAGE_MODEL", "voyage-2"),
		CorrectThreshold:  getEnvAsFloatOrDefault("CORRECT_THRESHOLD", 0.75),
		PartialThreshold:  getEnvAsFloatOrDefault("PARTIAL_THRESHOLD", 0.50),
		AnnotationDPI:     getEnvAsIntOrDefault("ANNOTATION_DPI", 150),
		AnnotationOpacity: getEnvAsFloatOrDefault("ANNOTATION_OPACITY", 0.3),
		StorageRoot:       getEnvOrDefault("STORAGE_ROOT", "/var/lib/annotex/files"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 2),
		MaxRetries:        getEnvAsIntOrDefault("MAX_RETRIES", 3),
		RetryBaseDelay:    getEnvAsIntOrDefault("RETRY_BASE_DELAY", 30),
		RetryMaxDelay:     getEnvAsIntOrDefault("RETRY_MAX_DELAY", 600),
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 600),
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 52428800), // 50MB
		NodeEnv:           getEnvOrDefault("NODE_ENV", "development"),
	}

	// Dimension default follows each provider's default model
	// (nomic-embed-text is 768, voyage-2 is 1024)
	cfg.EmbeddingDimensions = getEnvAsIntOrDefault("EMBEDDING_DIMENSIONS", 0)
	if cfg.EmbeddingDimensions <= 0 {
		if cfg.EmbeddingProvider == "voyage" {
			cfg.EmbeddingDimensions = 1024
		} else {
			cfg.EmbeddingDimensions = 768
		}
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.OCRProvider {
	case "google_vision":
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required when OCR_PROVIDER is google_vision")
		}
	case "tesseract", "mock":
	default:
		return fmt.Errorf("OCR_PROVIDER must be google_vision, tesseract or mock, got %q", c.OCRProvider)
	}

	switch c.EmbeddingProvider {
	case "voyage":
		if c.VoyageAPIKey == "" {
			return fmt.Errorf("VOYAGE_API_KEY is required when EMBEDDING_PROVIDER is voyage")
		}
	case "ollama":
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be ollama or voyage, got %q", c.EmbeddingProvider)
	}

	if c.CorrectThreshold <= 0 || c.CorrectThreshold > 1 {
		return fmt.Errorf("CORRECT_THRESHOLD must be in (0, 1], got %g", c.CorrectThreshold)
	}

	if c.PartialThreshold <= 0 || c.PartialThreshold >= c.CorrectThreshold {
		return fmt.Errorf("PARTIAL_THRESHOLD must be in (0, CORRECT_THRESHOLD), got %g", c.PartialThreshold)
	}

	if c.AnnotationDPI < 36 || c.AnnotationDPI > 600 {
		return fmt.Errorf("ANNOTATION_DPI must be between 36 and 600, got %d", c.AnnotationDPI)
	}

	if c.AnnotationOpacity <= 0 || c.AnnotationOpacity > 1 {
		return fmt.Errorf("ANNOTATION_OPACITY must be in (0, 1], got %g", c.AnnotationOpacity)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("MAX_RETRIES must be between 0 and 10, got %d", c.MaxRetries)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 1GB, got %d", c.MaxFileSize)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or panics
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

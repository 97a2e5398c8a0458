/**
 * Configuration tests
 */

package config

import (
	"testing"
)

func validConfig() *Config {
	return &Config{
		RedisURL:            "redis://localhost:6379",
		DatabaseURL:         "postgres://localhost/annotex",
		OCRProvider:         "tesseract",
		EmbeddingProvider:   "ollama",
		EmbeddingDimensions: 768,
		CorrectThreshold:    0.75,
		PartialThreshold:    0.50,
		AnnotationDPI:       150,
		AnnotationOpacity:   0.3,
		WorkerConcurrency:   2,
		MaxRetries:          3,
		MaxFileSize:         52428800,
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/annotex")
	t.Setenv("REDIS_URL", "")
	t.Setenv("OCR_PROVIDER", "")
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	t.Setenv("CORRECT_THRESHOLD", "")
	t.Setenv("PARTIAL_THRESHOLD", "")
	t.Setenv("ANNOTATION_DPI", "")
	t.Setenv("MAX_RETRIES", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.RedisURL != "redis://localhost:6379" {
		t.Errorf("RedisURL = %s", cfg.RedisURL)
	}
	if cfg.OCRProvider != "tesseract" {
		t.Errorf("OCRProvider = %s", cfg.OCRProvider)
	}
	if cfg.EmbeddingProvider != "ollama" {
		t.Errorf("EmbeddingProvider = %s", cfg.EmbeddingProvider)
	}
	if cfg.EmbeddingDimensions != 768 {
		t.Errorf("EmbeddingDimensions = %d, want 768 for ollama", cfg.EmbeddingDimensions)
	}
	if cfg.CorrectThreshold != 0.75 || cfg.PartialThreshold != 0.50 {
		t.Errorf("thresholds = %g/%g", cfg.CorrectThreshold, cfg.PartialThreshold)
	}
	if cfg.AnnotationDPI != 150 {
		t.Errorf("AnnotationDPI = %d", cfg.AnnotationDPI)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
}

func TestLoadConfigVoyageDimensionDefault(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/annotex")
	t.Setenv("EMBEDDING_PROVIDER", "voyage")
	t.Setenv("VOYAGE_API_KEY", "test-key")
	t.Setenv("EMBEDDING_DIMENSIONS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EmbeddingDimensions != 1024 {
		t.Errorf("EmbeddingDimensions = %d, want 1024 for voyage", cfg.EmbeddingDimensions)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing redis URL", mutate: func(c *Config) { c.RedisURL = "" }},
		{name: "missing database URL", mutate: func(c *Config) { c.DatabaseURL = "" }},
		{name: "unknown OCR provider", mutate: func(c *Config) { c.OCRProvider = "azure" }},
		{name: "google vision without key", mutate: func(c *Config) { c.OCRProvider = "google_vision" }},
		{name: "unknown embedding provider", mutate: func(c *Config) { c.EmbeddingProvider = "openai" }},
		{name: "voyage without key", mutate: func(c *Config) { c.EmbeddingProvider = "voyage" }},
		{name: "correct threshold above one", mutate: func(c *Config) { c.CorrectThreshold = 1.5 }},
		{name: "partial above correct", mutate: func(c *Config) { c.PartialThreshold = 0.9 }},
		{name: "partial equals correct", mutate: func(c *Config) { c.PartialThreshold = c.CorrectThreshold }},
		{name: "DPI too low", mutate: func(c *Config) { c.AnnotationDPI = 10 }},
		{name: "DPI too high", mutate: func(c *Config) { c.AnnotationDPI = 1200 }},
		{name: "opacity above one", mutate: func(c *Config) { c.AnnotationOpacity = 1.5 }},
		{name: "zero concurrency", mutate: func(c *Config) { c.WorkerConcurrency = 0 }},
		{name: "too many retries", mutate: func(c *Config) { c.MaxRetries = 20 }},
		{name: "file size too small", mutate: func(c *Config) { c.MaxFileSize = 100 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := validConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidateMockProvider(t *testing.T) {
	cfg := validConfig()
	cfg.OCRProvider = "mock"
	if err := cfg.Validate(); err != nil {
		t.Errorf("mock provider rejected: %v", err)
	}
}

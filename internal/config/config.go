package config

import (
	"fmt"
	"os"

	"docverify/internal/logger"
)

// OCR backend selectors.
const (
	OCRBackendVision     = "vision"
	OCRBackendDocumentAI = "documentai"
)

type Config struct {
	// HTTP server
	ListenAddr string
	SecretKey  string

	// OpenAI Configuration (empty key disables comparison enrichment)
	OpenAIAPIKey string
	OpenAIModel  string

	// OCR Configuration
	OCRBackend string
	OCRLang    string
	OCRLang2   string

	// Google Cloud Configuration (Document AI backend)
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Embedding model files, loaded once at startup
	GeneralModelPath string
	FaceModelPath    string
	FaceCascadePath  string

	// Optional audit trail (Postgres)
	DatabaseURL string

	// Optional upload archival (S3-compatible object storage)
	ArchiveEndpoint  string
	ArchiveRegion    string
	ArchiveBucket    string
	ArchiveAccessKey string
	ArchiveSecretKey string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		ListenAddr:            getEnv("LISTEN_ADDR", ":8000"),
		SecretKey:             getEnv("SECRET_KEY", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4"),
		OCRBackend:            getEnv("OCR_BACKEND", OCRBackendVision),
		OCRLang:               getEnv("OCR_LANG", "en"),
		OCRLang2:              getEnv("OCR_LANG_2", "ar"),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		GeneralModelPath:      getEnv("GENERAL_MODEL_PATH", ""),
		FaceModelPath:         getEnv("FACE_MODEL_PATH", ""),
		FaceCascadePath:       getEnv("FACE_CASCADE_PATH", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		ArchiveEndpoint:       getEnv("ARCHIVE_ENDPOINT", ""),
		ArchiveRegion:         getEnv("ARCHIVE_REGION", "us-east-1"),
		ArchiveBucket:         getEnv("ARCHIVE_BUCKET", ""),
		ArchiveAccessKey:      getEnv("ARCHIVE_ACCESS_KEY", ""),
		ArchiveSecretKey:      getEnv("ARCHIVE_SECRET_KEY", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.OCRBackend != OCRBackendVision && c.OCRBackend != OCRBackendDocumentAI {
		return fmt.Errorf("OCR_BACKEND must be %q or %q", OCRBackendVision, OCRBackendDocumentAI)
	}
	if c.OCRBackend == OCRBackendDocumentAI {
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the %s backend", OCRBackendDocumentAI)
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the %s backend", OCRBackendDocumentAI)
		}
	}
	if c.GeneralModelPath == "" {
		return fmt.Errorf("GENERAL_MODEL_PATH is required")
	}
	if c.FaceModelPath == "" {
		return fmt.Errorf("FACE_MODEL_PATH is required")
	}
	if c.FaceCascadePath == "" {
		return fmt.Errorf("FACE_CASCADE_PATH is required")
	}
	if c.ArchiveBucket != "" && c.ArchiveEndpoint == "" {
		return fmt.Errorf("ARCHIVE_ENDPOINT is required when ARCHIVE_BUCKET is set")
	}
	return nil
}

// EnrichmentEnabled reports whether comparison results should carry an LLM analysis.
func (c *Config) EnrichmentEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// AuditEnabled reports whether validations are recorded to Postgres.
func (c *Config) AuditEnabled() bool {
	return c.DatabaseURL != ""
}

// ArchiveEnabled reports whether uploads are copied to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

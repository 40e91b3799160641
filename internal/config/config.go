// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when neither GEMINI_API_KEY nor API_KEY is set.
var ErrMissingAPIKey = errors.New("config: GEMINI_API_KEY (or API_KEY) is required")

// Config holds all runtime settings.
type Config struct {
	Gemini GeminiConfig
	Server ServerConfig
	Export ExportConfig
	Log    LogConfig
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type ServerConfig struct {
	Port string
	// MaxUploadBytes caps the size of an uploaded PDF.
	MaxUploadBytes int64
	// UploadsPerMinute limits statement uploads across all clients.
	UploadsPerMinute int
}

type ExportConfig struct {
	// Bucket receives exported files when set.
	Bucket string
}

type LogConfig struct {
	Level string
}

// Load reads .env (when present) and then the environment.
func Load() (*Config, error) {
	// .env is optional; plain environment variables work without it.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	timeout, err := getDuration("CONVERT_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	maxMB, err := getInt("MAX_UPLOAD_MB", 20)
	if err != nil {
		return nil, err
	}
	perMinute, err := getInt("UPLOAD_RATE_PER_MINUTE", 30)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout: timeout,
		},
		Server: ServerConfig{
			Port:             getEnv("SERVER_PORT", "8080"),
			MaxUploadBytes:   int64(maxMB) << 20,
			UploadsPerMinute: perMinute,
		},
		Export: ExportConfig{
			Bucket: getEnv("EXPORT_BUCKET", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}

// Package config provides environment-driven configuration for the worker.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/msnidal/stitch-connect/pkg/stitch"
)

// WorkerConfig holds Temporal worker configuration.
type WorkerConfig struct {
	// Temporal settings
	TemporalAddress   string
	TemporalNamespace string
	TaskQueue         string

	// Stitch settings; credentials stay process-scoped and never enter
	// workflow payloads.
	Stitch stitch.Config
}

// LoadWorkerConfig loads configuration from environment.
func LoadWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		TemporalAddress:   getEnv("TEMPORAL_ADDRESS", "127.0.0.1:7233"),
		TemporalNamespace: getEnv("TEMPORAL_NAMESPACE", "default"),
		TaskQueue:         getEnv("STITCH_TASK_QUEUE", "stitch-connect"),
		Stitch: stitch.Config{
			AccountID:         os.Getenv("STITCH_ACCOUNT_ID"),
			APIToken:          os.Getenv("STITCH_API_TOKEN"),
			BaseURL:           getEnv("STITCH_BASE_URL", stitch.DefaultBaseURL),
			MaxRetries:        getEnvInt("STITCH_MAX_RETRIES", 3),
			PollInterval:      getEnvDuration("STITCH_POLL_INTERVAL_SECS", stitch.DefaultPollInterval),
			ExtractionTimeout: getEnvDuration("STITCH_EXTRACTION_TIMEOUT_SECS", stitch.DefaultExtractionTimeout),
			LoadTimeout:       getEnvDuration("STITCH_LOAD_TIMEOUT_SECS", stitch.DefaultLoadTimeout),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

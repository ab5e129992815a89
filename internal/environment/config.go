package environment

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// EnvConfig holds the deployment-specific settings read from the
// environment (optionally seeded from a .env file).
type EnvConfig struct {
	// SourceBaseURL is the submission source API root.
	SourceBaseURL string
	// SourceToken is the bearer token for the submission source.
	SourceToken string
	// NatsURL enables the NATS progress stream when non-empty.
	NatsURL string
	// NatsSubject is the subject progress messages are published to.
	NatsSubject string
	// DownloadsRoot is where submission trees are materialized.
	DownloadsRoot string
	// StoreDir is where per-assignment grade store files live.
	StoreDir string
}

// ReadEnvConfig loads the environment. A missing .env file is fine; the
// variables may come from the process environment directly.
func ReadEnvConfig() (*EnvConfig, error) {
	_ = godotenv.Load()

	result := &EnvConfig{
		SourceBaseURL: os.Getenv("SOURCE_BASE_URL"),
		SourceToken:   os.Getenv("SOURCE_TOKEN"),
		NatsURL:       os.Getenv("NATS_URL"),
		NatsSubject:   os.Getenv("NATS_SUBJECT"),
		DownloadsRoot: os.Getenv("DOWNLOADS_ROOT"),
		StoreDir:      os.Getenv("STORE_DIR"),
	}

	if result.SourceBaseURL == "" {
		return nil, fmt.Errorf("SOURCE_BASE_URL is not set")
	}
	if result.DownloadsRoot == "" {
		result.DownloadsRoot = "Downloads"
	}
	if result.StoreDir == "" {
		result.StoreDir = "grades"
	}
	if result.NatsSubject == "" {
		result.NatsSubject = "collector.progress"
	}
	return result, nil
}

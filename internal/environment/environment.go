package environment

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

const defaultProgressSubject = "toolbench.progress"

type EnvConfig struct {
	NatsURL         string
	ProgressSubject string
	S3Region        string
	S3Bucket        string
}

// ReadEnvConfig loads configuration from the environment, with a .env file
// taken into account when one exists next to the working directory.
func ReadEnvConfig() *EnvConfig {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			slog.Warn("failed to load .env file", "error", err)
		}
	}

	result := &EnvConfig{
		NatsURL:         os.Getenv("NATS_URL"),
		ProgressSubject: os.Getenv("NATS_PROGRESS_SUBJECT"),
		S3Region:        os.Getenv("S3_REGION"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
	}

	if result.NatsURL == "" {
		result.NatsURL = nats.DefaultURL
	}
	if result.ProgressSubject == "" {
		result.ProgressSubject = defaultProgressSubject
	}
	if result.S3Region == "" {
		result.S3Region = "eu-central-1"
	}

	return result
}

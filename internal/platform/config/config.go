// Package config loads runtime settings from the environment, optionally seeded
// from a .env file. The listen port is deliberately not part of it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is the dotenv file read by Load when present.
const DefaultEnvFile = ".env"

// Config holds process settings.
type Config struct {
	// LogLevel is a zap level name; empty means info.
	LogLevel string
	// ProjectID is the Google Cloud project used for trace correlation in logs.
	ProjectID string
}

// Load reads files (DefaultEnvFile when none are given) into the process
// environment without overriding variables that are already set, then builds a
// Config. Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment.
func FromEnv() Config {
	return Config{
		LogLevel: os.Getenv("LOG_LEVEL"),
		ProjectID: firstNonEmpty(
			os.Getenv("FIREBASE_PROJECT_ID"),
			os.Getenv("GOOGLE_CLOUD_PROJECT"),
			os.Getenv("GCP_PROJECT"),
			os.Getenv("GCLOUD_PROJECT"),
			os.Getenv("PROJECT_ID"),
		),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

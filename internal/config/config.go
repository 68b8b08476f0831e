// Package config provides configuration management for the application.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// DefaultProjectNamePattern is the conventional owner-repo-branch naming
// scheme for CodeBuild projects linked to Bitbucket repositories.
const DefaultProjectNamePattern = "$username-$reponame-$branch"

// Config holds all configuration values for the application.
// It is loaded once at process start and read-only afterwards.
type Config struct {
	// AWS
	AWSRegion string

	// Webhook
	ProjectNamePattern string
	WebhookToken       string

	// Application
	Stage    string
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// AWS
		AWSRegion: getEnv("AWS_REGION", "us-east-1"),

		// Webhook
		ProjectNamePattern: getEnv("PROJECT_NAME_PATTERN", DefaultProjectNamePattern),
		WebhookToken:       getEnv("WEBHOOK_TOKEN", ""),

		// Application
		Stage:    getEnv("STAGE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

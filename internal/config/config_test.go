package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bitbucket-codebuild-trigger/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("PROJECT_NAME_PATTERN", "")
	t.Setenv("WEBHOOK_TOKEN", "")
	t.Setenv("STAGE", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, config.DefaultProjectNamePattern, cfg.ProjectNamePattern)
	assert.Empty(t, cfg.WebhookToken)
	assert.Equal(t, "dev", cfg.Stage)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("PROJECT_NAME_PATTERN", "ci-$username-$reponame-$branch")
	t.Setenv("WEBHOOK_TOKEN", "s3cret")
	t.Setenv("STAGE", "prod")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
	assert.Equal(t, "ci-$username-$reponame-$branch", cfg.ProjectNamePattern)
	assert.Equal(t, "s3cret", cfg.WebhookToken)
	assert.Equal(t, "prod", cfg.Stage)
	assert.Equal(t, "warn", cfg.LogLevel)
}

// Bitbucket webhook Lambda entry point
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"bitbucket-codebuild-trigger/internal/config"
	"bitbucket-codebuild-trigger/internal/handlers"
	codebuildservice "bitbucket-codebuild-trigger/internal/services/codebuild"
	"bitbucket-codebuild-trigger/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	_ = utils.InitLogger(cfg.LogLevel)
	defer utils.Sync()

	dispatcher, err := codebuildservice.NewService(context.Background())
	if err != nil {
		log.Fatalf("Failed to create CodeBuild client: %v", err)
	}

	// Create handler
	handler, err := handlers.NewWebhookHandler(cfg, dispatcher)
	if err != nil {
		log.Fatalf("Failed to create webhook handler: %v", err)
	}

	// Start Lambda
	lambda.Start(handler.Handle)
}

// Health check Lambda entry point
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"bitbucket-codebuild-trigger/internal/handlers"
	"bitbucket-codebuild-trigger/internal/utils"
)

func main() {
	// Initialize logger
	_ = utils.InitLogger("info")
	defer utils.Sync()

	// Create handler
	handler := handlers.NewHealthHandler(context.Background())

	// Start Lambda
	lambda.Start(handler.Handle)
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"

	codebuildservice "bitbucket-codebuild-trigger/internal/services/codebuild"
)

// Pinger checks reachability of the build service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	codebuild Pinger
}

// NewHealthHandler creates a new health handler. A CodeBuild client that
// cannot be constructed leaves the handler degraded rather than failing.
func NewHealthHandler(ctx context.Context) *HealthHandler {
	svc, err := codebuildservice.NewService(ctx)
	if err != nil {
		return &HealthHandler{}
	}
	return &HealthHandler{codebuild: svc}
}

// HealthResponse is the response structure for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Stage     string `json:"stage"`
	CodeBuild string `json:"codebuild,omitempty"`
}

// Handle processes health check requests.
func (h *HealthHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "bitbucket-codebuild-trigger",
		Version:   getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
		Stage:     getEnvOrDefault("STAGE", "unknown"),
	}

	// Check CodeBuild connectivity
	if h.codebuild != nil {
		if err := h.codebuild.Ping(ctx); err != nil {
			response.CodeBuild = "unreachable"
			response.Status = "degraded"
		} else {
			response.CodeBuild = "reachable"
		}
	} else {
		response.CodeBuild = "not configured"
	}

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	body, _ := json.Marshal(response)

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// getEnvOrDefault returns environment variable or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

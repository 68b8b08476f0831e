// Package main provides a local HTTP server for development and testing.
// It emulates the API Gateway proxy integration so the webhook handler can
// be exercised with curl or a Bitbucket test delivery without deploying.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"bitbucket-codebuild-trigger/internal/config"
	"bitbucket-codebuild-trigger/internal/handlers"
	codebuildservice "bitbucket-codebuild-trigger/internal/services/codebuild"
	"bitbucket-codebuild-trigger/internal/utils"
)

// Server holds all dependencies
type Server struct {
	webhook *handlers.WebhookHandler
	health  *handlers.HealthHandler
}

func main() {
	// Initialize logger first
	if err := utils.InitLogger("info"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dispatcher, err := codebuildservice.NewService(context.Background())
	if err != nil {
		log.Fatalf("Failed to create CodeBuild client: %v", err)
	}

	webhook, err := handlers.NewWebhookHandler(cfg, dispatcher)
	if err != nil {
		log.Fatalf("Failed to create webhook handler: %v", err)
	}

	server := &Server{
		webhook: webhook,
		health:  handlers.NewHealthHandler(context.Background()),
	}

	// Setup routes
	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.healthHandler)
	mux.HandleFunc("/webhook", server.webhookHandler)

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	handler := c.Handler(mux)

	port := getEnvOrDefault("PORT", "8080")
	addr := fmt.Sprintf("0.0.0.0:%s", port)

	log.Printf("Bitbucket CodeBuild trigger dev server")
	log.Printf("Webhook: http://localhost:%s/webhook", port)
	log.Printf("Health:  http://localhost:%s/health", port)

	// Start server (this blocks until error)
	log.Printf("Starting HTTP server on %s...", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	response, err := s.webhook.Handle(requestContext(r), proxyRequest(r, string(body)))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeProxyResponse(w, response)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response, err := s.health.Handle(requestContext(r), proxyRequest(r, ""))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeProxyResponse(w, response)
}

// requestContext attaches a synthetic Lambda context so responses carry a
// request ID locally too.
func requestContext(r *http.Request) context.Context {
	return lambdacontext.NewContext(r.Context(), &lambdacontext.LambdaContext{
		AwsRequestID: uuid.NewString(),
	})
}

// proxyRequest converts a plain HTTP request into the API Gateway proxy
// shape the handlers consume.
func proxyRequest(r *http.Request, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Body:                  body,
		Headers:               flattenHeaders(r.Header),
		QueryStringParameters: flattenQuery(r.URL.Query()),
	}
}

func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for name := range header {
		flat[name] = header.Get(name)
	}
	return flat
}

func flattenQuery(query url.Values) map[string]string {
	flat := make(map[string]string, len(query))
	for name := range query {
		flat[name] = query.Get(name)
	}
	return flat
}

func writeProxyResponse(w http.ResponseWriter, response events.APIGatewayProxyResponse) {
	for name, value := range response.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(response.StatusCode)
	_, _ = io.WriteString(w, response.Body)
}

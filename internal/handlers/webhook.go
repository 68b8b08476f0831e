// Package handlers provides Lambda handlers for the build trigger service.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"

	appConfig "bitbucket-codebuild-trigger/internal/config"
	"bitbucket-codebuild-trigger/internal/models"
	"bitbucket-codebuild-trigger/internal/services/resolver"
	"bitbucket-codebuild-trigger/internal/utils"
)

// BuildDispatcher starts a build on the first candidate with a matching
// CodeBuild project.
type BuildDispatcher interface {
	Dispatch(ctx context.Context, candidates []string, event *models.WebhookEvent) models.InvocationResult
}

// WebhookHandler processes Bitbucket push notifications.
type WebhookHandler struct {
	token      string
	template   resolver.Template
	dispatcher BuildDispatcher
}

// NewWebhookHandler creates a webhook handler. It fails when the configured
// project name pattern is missing a placeholder, so a misconfigured
// deployment dies at init instead of rejecting every push.
func NewWebhookHandler(cfg *appConfig.Config, dispatcher BuildDispatcher) (*WebhookHandler, error) {
	template, err := resolver.New(cfg.ProjectNamePattern)
	if err != nil {
		return nil, err
	}

	return &WebhookHandler{
		token:      cfg.WebhookToken,
		template:   template,
		dispatcher: dispatcher,
	}, nil
}

// Handle runs the invocation pipeline: authenticate, parse, resolve,
// dispatch, format. Strictly linear; the first failing stage wins.
func (h *WebhookHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return formatResponse(ctx, h.process(ctx, request)), nil
}

func (h *WebhookHandler) process(ctx context.Context, request events.APIGatewayProxyRequest) models.InvocationResult {
	logger := utils.GetLogger()

	// Authorization strictly precedes parsing.
	if h.token != "" && request.QueryStringParameters["token"] != h.token {
		logger.Error("Token in request does not match configured value")
		return models.Unauthorized()
	}

	if err := validateHeaders(request.Headers); err != nil {
		logger.Warn("Rejected notification", zap.Error(err))
		return models.MalformedPayload(err.Error())
	}

	event, err := models.ParsePushEvent(request.Body)
	if err != nil {
		logger.Warn("Rejected push payload", zap.Error(err))
		return models.MalformedPayload(err.Error())
	}

	logger.Info("Received push notification",
		zap.String("owner", utils.SanitizeForLog(event.Owner)),
		zap.String("repo", utils.SanitizeForLog(event.Repo)),
		zap.String("ref", utils.SanitizeForLog(event.RefName)),
		zap.String("refKind", string(event.RefKind)),
		zap.String("commit", utils.SanitizeForLog(event.CommitID)),
	)

	return h.dispatcher.Dispatch(ctx, h.template.Candidates(event), event)
}

// validateHeaders rejects deliveries that are not Bitbucket repo:push
// events. Both headers are optional so local testing stays easy.
func validateHeaders(headers map[string]string) error {
	if agent, ok := headerValue(headers, "User-Agent"); ok && !strings.HasPrefix(agent, "Bitbucket-Webhooks/") {
		return models.ErrBadUserAgent
	}
	if key, ok := headerValue(headers, "X-Event-Key"); ok && key != "repo:push" {
		return models.ErrBadEventKey
	}
	return nil
}

// headerValue looks a header up by its canonical name, accepting the
// lowercase form API Gateway HTTP APIs forward.
func headerValue(headers map[string]string, name string) (string, bool) {
	if value, ok := headers[name]; ok {
		return value, true
	}
	value, ok := headers[strings.ToLower(name)]
	return value, ok
}

// triggerResponse is the JSON body returned to Bitbucket.
type triggerResponse struct {
	Action    string `json:"action"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Project   string `json:"project,omitempty"`
	BuildID   string `json:"buildId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// formatResponse maps an InvocationResult onto the API Gateway response.
func formatResponse(ctx context.Context, result models.InvocationResult) events.APIGatewayProxyResponse {
	var requestID string
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		requestID = lc.AwsRequestID
	}

	switch result.Outcome {
	case models.OutcomeStarted:
		return jsonResponse(http.StatusOK, triggerResponse{
			Action:    "build",
			Message:   "started build " + result.BuildID + " for project " + result.ProjectName,
			RequestID: requestID,
			Project:   result.ProjectName,
			BuildID:   result.BuildID,
		})
	case models.OutcomeNoMatchingProject:
		return jsonResponse(http.StatusOK, triggerResponse{
			Action:    "no-build",
			Message:   "no CodeBuild project matches this push",
			RequestID: requestID,
		})
	case models.OutcomeUnauthorized:
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusForbidden,
			Headers:    map[string]string{"Content-Type": "text/plain"},
			Body:       "403 Forbidden",
		}
	case models.OutcomeMalformedPayload:
		return jsonResponse(http.StatusBadRequest, triggerResponse{
			Action:    "error",
			RequestID: requestID,
			Error:     utils.SanitizeForLog(result.Detail),
		})
	default:
		return jsonResponse(http.StatusBadGateway, triggerResponse{
			Action:    "error",
			RequestID: requestID,
			Error:     result.Detail,
		})
	}
}

func jsonResponse(status int, payload triggerResponse) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(payload)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

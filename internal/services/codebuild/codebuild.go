// Package codebuildservice dispatches builds to AWS CodeBuild.
package codebuildservice

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"go.uber.org/zap"

	"bitbucket-codebuild-trigger/internal/models"
	"bitbucket-codebuild-trigger/internal/utils"
)

// api is the subset of the CodeBuild client the service uses.
type api interface {
	BatchGetProjects(ctx context.Context, params *codebuild.BatchGetProjectsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetProjectsOutput, error)
	StartBuild(ctx context.Context, params *codebuild.StartBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error)
	ListProjects(ctx context.Context, params *codebuild.ListProjectsInput, optFns ...func(*codebuild.Options)) (*codebuild.ListProjectsOutput, error)
}

// Service queries the CodeBuild project registry and starts builds.
type Service struct {
	client api
}

// NewService creates a CodeBuild service using the default AWS config chain.
func NewService(ctx context.Context) (*Service, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Service{client: codebuild.NewFromConfig(cfg)}, nil
}

// Dispatch tries each candidate project name in order and starts a build on
// the first one that exists. At most one build is started per invocation and
// nothing is retried; a missing project for every candidate is a normal
// no-op outcome.
func (s *Service) Dispatch(ctx context.Context, candidates []string, event *models.WebhookEvent) models.InvocationResult {
	logger := utils.GetLogger()

	for _, name := range candidates {
		project, err := s.findProject(ctx, name)
		if err != nil {
			logger.Error("CodeBuild project lookup failed",
				zap.String("project", name),
				zap.Error(err),
			)
			return models.UpstreamError(fmt.Sprintf("project lookup failed: %v", err))
		}
		if project == nil {
			continue
		}

		if !bitbucketBacked(project) {
			logger.Error("CodeBuild project is not Bitbucket-backed",
				zap.String("project", name),
				zap.String("source", sourceLocation(project)),
			)
			return models.UpstreamError(fmt.Sprintf("project %s is not Bitbucket-backed", name))
		}

		buildID, err := s.startBuild(ctx, project, event)
		if err != nil {
			logger.Error("Failed to start build",
				zap.String("project", name),
				zap.Error(err),
			)
			return models.UpstreamError(fmt.Sprintf("start build failed: %v", err))
		}

		logger.Info("Started build",
			zap.String("project", name),
			zap.String("buildId", buildID),
			zap.String("commit", event.CommitID),
		)
		return models.Started(name, buildID)
	}

	logger.Info("No CodeBuild project exists for this push",
		zap.Strings("candidates", candidates),
	)
	return models.NoMatchingProject()
}

// Ping verifies the CodeBuild API is reachable with the current credentials.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.client.ListProjects(ctx, &codebuild.ListProjectsInput{})
	return err
}

// findProject looks up a project by exact name. A missing project is not an
// error; it returns nil so the caller can fall through to the next candidate.
func (s *Service) findProject(ctx context.Context, name string) (*types.Project, error) {
	out, err := s.client.BatchGetProjects(ctx, &codebuild.BatchGetProjectsInput{
		Names: []string{name},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Projects) == 0 {
		return nil, nil
	}
	return &out.Projects[0], nil
}

// startBuild issues the StartBuild call for the matched project, pinning the
// source revision to the pushed commit and exposing it to the build env.
func (s *Service) startBuild(ctx context.Context, project *types.Project, event *models.WebhookEvent) (string, error) {
	trigger := models.NewBuildTrigger(aws.ToString(project.Name), event)

	input := &codebuild.StartBuildInput{
		ProjectName:   aws.String(trigger.ProjectName),
		SourceVersion: aws.String(trigger.CommitID),
		EnvironmentVariablesOverride: []types.EnvironmentVariable{
			{Name: aws.String("GIT_COMMIT"), Value: aws.String(trigger.Env["GIT_COMMIT"])},
			{Name: aws.String("GIT_BRANCH"), Value: aws.String(trigger.Env["GIT_BRANCH"])},
		},
	}

	if override := artifactsOverride(project, event.RefName); override != nil {
		input.ArtifactsOverride = override
	}

	out, err := s.client.StartBuild(ctx, input)
	if err != nil {
		return "", err
	}
	if out.Build == nil || out.Build.Id == nil {
		return "", fmt.Errorf("StartBuild response for %s has no build id", trigger.ProjectName)
	}

	return aws.ToString(out.Build.Id), nil
}

// bitbucketBacked reports whether the project's source is an HTTPS
// bitbucket.org location.
func bitbucketBacked(project *types.Project) bool {
	location := sourceLocation(project)
	if !strings.HasPrefix(location, "https://") {
		return false
	}

	parsed, err := url.Parse(location)
	return err == nil && parsed.Hostname() == "bitbucket.org"
}

func sourceLocation(project *types.Project) string {
	if project.Source == nil {
		return ""
	}
	return aws.ToString(project.Source.Location)
}

// artifactsOverride rewrites S3 artifact names containing the literal
// "(tag)" so each ref gets its own artifact.
func artifactsOverride(project *types.Project, refName string) *types.ProjectArtifacts {
	artifacts := project.Artifacts
	if artifacts == nil || artifacts.Type != types.ArtifactsTypeS3 {
		return nil
	}

	name := aws.ToString(artifacts.Name)
	if !strings.Contains(name, "(tag)") {
		return nil
	}

	override := &types.ProjectArtifacts{
		Type:          types.ArtifactsTypeS3,
		Location:      artifacts.Location,
		Name:          aws.String(strings.ReplaceAll(name, "(tag)", refName)),
		NamespaceType: artifacts.NamespaceType,
		Packaging:     artifacts.Packaging,
	}

	// Path is normally omitted; carry it through only when defined.
	if artifacts.Path != nil {
		override.Path = artifacts.Path
	}

	return override
}

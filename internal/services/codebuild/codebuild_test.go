package codebuildservice

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/stretchr/testify/assert"

	"bitbucket-codebuild-trigger/internal/models"
)

// fakeAPI is an in-memory CodeBuild project registry.
type fakeAPI struct {
	projects  map[string]types.Project
	lookups   [][]string
	starts    []*codebuild.StartBuildInput
	lookupErr error
	startErr  error
}

func (f *fakeAPI) BatchGetProjects(_ context.Context, params *codebuild.BatchGetProjectsInput, _ ...func(*codebuild.Options)) (*codebuild.BatchGetProjectsOutput, error) {
	f.lookups = append(f.lookups, params.Names)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}

	out := &codebuild.BatchGetProjectsOutput{}
	for _, name := range params.Names {
		if project, ok := f.projects[name]; ok {
			out.Projects = append(out.Projects, project)
		} else {
			out.ProjectsNotFound = append(out.ProjectsNotFound, name)
		}
	}
	return out, nil
}

func (f *fakeAPI) StartBuild(_ context.Context, params *codebuild.StartBuildInput, _ ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error) {
	f.starts = append(f.starts, params)
	if f.startErr != nil {
		return nil, f.startErr
	}

	return &codebuild.StartBuildOutput{
		Build: &types.Build{Id: aws.String(aws.ToString(params.ProjectName) + ":42")},
	}, nil
}

func (f *fakeAPI) ListProjects(_ context.Context, _ *codebuild.ListProjectsInput, _ ...func(*codebuild.Options)) (*codebuild.ListProjectsOutput, error) {
	return &codebuild.ListProjectsOutput{}, nil
}

func bitbucketProject(name string) types.Project {
	return types.Project{
		Name: aws.String(name),
		Source: &types.ProjectSource{
			Type:     types.SourceTypeBitbucket,
			Location: aws.String("https://bitbucket.org/pheb/example.git"),
		},
	}
}

func branchEvent() *models.WebhookEvent {
	return &models.WebhookEvent{
		Owner:    "pheb",
		Repo:     "example",
		RefName:  "master",
		RefKind:  models.RefKindBranch,
		CommitID: "12345678fc512a7a9b9e7c1160a5cabc2b0a73d9",
	}
}

func tagEvent() *models.WebhookEvent {
	return &models.WebhookEvent{
		Owner:    "pheb",
		Repo:     "example",
		RefName:  "v1.0",
		RefKind:  models.RefKindTag,
		CommitID: "12345678fc512a7a9b9e7c1160a5cabc2b0a73d9",
	}
}

func envValue(input *codebuild.StartBuildInput, name string) string {
	for _, env := range input.EnvironmentVariablesOverride {
		if aws.ToString(env.Name) == name {
			return aws.ToString(env.Value)
		}
	}
	return ""
}

func TestDispatch_PrimaryMatch(t *testing.T) {
	fake := &fakeAPI{projects: map[string]types.Project{
		"pheb-example-master": bitbucketProject("pheb-example-master"),
	}}
	svc := &Service{client: fake}
	event := branchEvent()

	result := svc.Dispatch(context.Background(), []string{"pheb-example-master"}, event)

	assert.Equal(t, models.OutcomeStarted, result.Outcome)
	assert.Equal(t, "pheb-example-master", result.ProjectName)
	assert.Equal(t, "pheb-example-master:42", result.BuildID)

	assert.Len(t, fake.starts, 1)
	start := fake.starts[0]
	assert.Equal(t, event.CommitID, aws.ToString(start.SourceVersion))
	assert.Equal(t, event.CommitID, envValue(start, "GIT_COMMIT"))
	assert.Equal(t, "master", envValue(start, "GIT_BRANCH"))
}

func TestDispatch_TagFallback(t *testing.T) {
	fake := &fakeAPI{projects: map[string]types.Project{
		"pheb-example-all_tags": bitbucketProject("pheb-example-all_tags"),
	}}
	svc := &Service{client: fake}

	result := svc.Dispatch(context.Background(),
		[]string{"pheb-example-v1_0", "pheb-example-all_tags"}, tagEvent())

	assert.Equal(t, models.OutcomeStarted, result.Outcome)
	assert.Equal(t, "pheb-example-all_tags", result.ProjectName)
	assert.Equal(t, [][]string{{"pheb-example-v1_0"}, {"pheb-example-all_tags"}}, fake.lookups)

	// The tag name, not "all_tags", rides along as GIT_BRANCH.
	assert.Len(t, fake.starts, 1)
	assert.Equal(t, "v1.0", envValue(fake.starts[0], "GIT_BRANCH"))
}

func TestDispatch_StopsAtFirstMatch(t *testing.T) {
	fake := &fakeAPI{projects: map[string]types.Project{
		"pheb-example-v1_0":     bitbucketProject("pheb-example-v1_0"),
		"pheb-example-all_tags": bitbucketProject("pheb-example-all_tags"),
	}}
	svc := &Service{client: fake}

	result := svc.Dispatch(context.Background(),
		[]string{"pheb-example-v1_0", "pheb-example-all_tags"}, tagEvent())

	assert.Equal(t, models.OutcomeStarted, result.Outcome)
	assert.Equal(t, "pheb-example-v1_0", result.ProjectName)
	assert.Len(t, fake.lookups, 1)
	assert.Len(t, fake.starts, 1)
}

func TestDispatch_NoMatchingProject(t *testing.T) {
	fake := &fakeAPI{}
	svc := &Service{client: fake}

	result := svc.Dispatch(context.Background(),
		[]string{"pheb-example-master"}, branchEvent())

	assert.Equal(t, models.OutcomeNoMatchingProject, result.Outcome)
	assert.Empty(t, fake.starts)
}

func TestDispatch_LookupError(t *testing.T) {
	fake := &fakeAPI{lookupErr: errors.New("AccessDeniedException")}
	svc := &Service{client: fake}

	result := svc.Dispatch(context.Background(),
		[]string{"pheb-example-master"}, branchEvent())

	assert.Equal(t, models.OutcomeUpstreamError, result.Outcome)
	assert.Contains(t, result.Detail, "AccessDeniedException")
	assert.Empty(t, fake.starts)
}

func TestDispatch_StartBuildError(t *testing.T) {
	fake := &fakeAPI{
		projects: map[string]types.Project{
			"pheb-example-master": bitbucketProject("pheb-example-master"),
		},
		startErr: errors.New("service unavailable"),
	}
	svc := &Service{client: fake}

	result := svc.Dispatch(context.Background(),
		[]string{"pheb-example-master"}, branchEvent())

	assert.Equal(t, models.OutcomeUpstreamError, result.Outcome)
	// No retry: a single attempt was made.
	assert.Len(t, fake.starts, 1)
}

func TestDispatch_NonBitbucketSource(t *testing.T) {
	project := bitbucketProject("pheb-example-master")
	project.Source.Location = aws.String("https://github.com/pheb/example.git")

	fake := &fakeAPI{projects: map[string]types.Project{
		"pheb-example-master": project,
	}}
	svc := &Service{client: fake}

	result := svc.Dispatch(context.Background(),
		[]string{"pheb-example-master"}, branchEvent())

	assert.Equal(t, models.OutcomeUpstreamError, result.Outcome)
	assert.Empty(t, fake.starts)
}

func TestDispatch_S3ArtifactsOverride(t *testing.T) {
	project := bitbucketProject("pheb-example-all_tags")
	project.Artifacts = &types.ProjectArtifacts{
		Type:          types.ArtifactsTypeS3,
		Location:      aws.String("my-artifacts-bucket"),
		Name:          aws.String("example-(tag).zip"),
		NamespaceType: types.ArtifactNamespaceNone,
		Packaging:     types.ArtifactPackagingZip,
	}

	fake := &fakeAPI{projects: map[string]types.Project{
		"pheb-example-all_tags": project,
	}}
	svc := &Service{client: fake}

	result := svc.Dispatch(context.Background(),
		[]string{"pheb-example-all_tags"}, tagEvent())

	assert.Equal(t, models.OutcomeStarted, result.Outcome)
	assert.Len(t, fake.starts, 1)

	override := fake.starts[0].ArtifactsOverride
	assert.NotNil(t, override)
	assert.Equal(t, "example-v1.0.zip", aws.ToString(override.Name))
	assert.Equal(t, types.ArtifactsTypeS3, override.Type)
	assert.Equal(t, "my-artifacts-bucket", aws.ToString(override.Location))
}

func TestDispatch_NoArtifactsOverrideWithoutTagToken(t *testing.T) {
	project := bitbucketProject("pheb-example-master")
	project.Artifacts = &types.ProjectArtifacts{
		Type:     types.ArtifactsTypeS3,
		Location: aws.String("my-artifacts-bucket"),
		Name:     aws.String("example.zip"),
	}

	fake := &fakeAPI{projects: map[string]types.Project{
		"pheb-example-master": project,
	}}
	svc := &Service{client: fake}

	result := svc.Dispatch(context.Background(),
		[]string{"pheb-example-master"}, branchEvent())

	assert.Equal(t, models.OutcomeStarted, result.Outcome)
	assert.Nil(t, fake.starts[0].ArtifactsOverride)
}

package models

// Outcome identifies the terminal result of one webhook invocation.
type Outcome string

const (
	OutcomeStarted           Outcome = "started"
	OutcomeNoMatchingProject Outcome = "no_matching_project"
	OutcomeUnauthorized      Outcome = "unauthorized"
	OutcomeMalformedPayload  Outcome = "malformed_payload"
	OutcomeUpstreamError     Outcome = "upstream_error"
)

// InvocationResult is the tagged terminal value of the pipeline. Exactly one
// result is produced per invocation and it is never retried internally.
type InvocationResult struct {
	Outcome     Outcome
	ProjectName string
	BuildID     string
	Detail      string
}

// Started reports a build successfully triggered for a matched project.
func Started(projectName, buildID string) InvocationResult {
	return InvocationResult{Outcome: OutcomeStarted, ProjectName: projectName, BuildID: buildID}
}

// NoMatchingProject reports that no candidate name had a CodeBuild project.
// This is a normal no-op, not an error.
func NoMatchingProject() InvocationResult {
	return InvocationResult{Outcome: OutcomeNoMatchingProject}
}

// Unauthorized reports a missing or mismatched shared-secret token.
func Unauthorized() InvocationResult {
	return InvocationResult{Outcome: OutcomeUnauthorized}
}

// MalformedPayload reports a notification body or headers of the wrong shape.
func MalformedPayload(detail string) InvocationResult {
	return InvocationResult{Outcome: OutcomeMalformedPayload, Detail: detail}
}

// UpstreamError reports a CodeBuild API failure.
func UpstreamError(detail string) InvocationResult {
	return InvocationResult{Outcome: OutcomeUpstreamError, Detail: detail}
}

// BuildTrigger describes the single build started for a matched project.
type BuildTrigger struct {
	ProjectName string
	CommitID    string
	Env         map[string]string
}

// NewBuildTrigger derives the start-build parameters for a matched project,
// exposing the commit and ref to the build as GIT_COMMIT and GIT_BRANCH.
func NewBuildTrigger(projectName string, event *WebhookEvent) BuildTrigger {
	return BuildTrigger{
		ProjectName: projectName,
		CommitID:    event.CommitID,
		Env: map[string]string{
			"GIT_COMMIT": event.CommitID,
			"GIT_BRANCH": event.RefName,
		},
	}
}

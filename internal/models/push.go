package models

import (
	"encoding/json"
	"strings"
)

// RefKind classifies the pushed ref.
type RefKind string

const (
	RefKindBranch RefKind = "branch"
	RefKindTag    RefKind = "tag"
)

// PushPayload mirrors the Bitbucket Cloud repo:push notification body.
// Only the fields the pipeline reads are declared; unknown fields in the
// payload are ignored for forward compatibility.
type PushPayload struct {
	Push struct {
		Changes []Change `json:"changes"`
	} `json:"push"`
	Repository Repository `json:"repository"`
}

// Repository identifies the pushed-to repository. Newer Bitbucket payloads
// omit owner.username, so workspace.slug is carried as a fallback.
type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    struct {
		Username string `json:"username"`
	} `json:"owner"`
	Workspace struct {
		Slug string `json:"slug"`
	} `json:"workspace"`
}

// Change is one ref update within a push. New is nil for deletions.
type Change struct {
	New     *RefState `json:"new"`
	Old     *RefState `json:"old"`
	Created bool      `json:"created"`
	Closed  bool      `json:"closed"`
}

// RefState is the before/after state of a ref within a change.
type RefState struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Target struct {
		Hash string `json:"hash"`
	} `json:"target"`
}

// WebhookEvent is the parsed, validated form of a push notification.
// It is constructed once per invocation and never mutated.
type WebhookEvent struct {
	Owner    string
	Repo     string
	RefName  string
	RefKind  RefKind
	CommitID string
}

// ParsePushEvent decodes a Bitbucket push body into a WebhookEvent.
//
// A push may carry several changes (git push --all); the last change with a
// new ref wins and its head hash is the commit that gets built. A push whose
// changes all lack a new ref (branch or tag deletion) is rejected.
func ParsePushEvent(body string) (*WebhookEvent, error) {
	var payload PushPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, ErrInvalidJSON
	}

	owner := payload.Repository.Owner.Username
	if owner == "" {
		owner = payload.Repository.Workspace.Slug
	}
	if owner == "" || payload.Repository.Name == "" {
		return nil, ErrMissingRepository
	}

	var latest *RefState
	for _, change := range payload.Push.Changes {
		if change.New != nil {
			latest = change.New
		}
	}
	if latest == nil {
		return nil, ErrNoNewCommits
	}

	kind := RefKindBranch
	if latest.Type == "tag" {
		kind = RefKindTag
	}

	// Bitbucket sends bare ref names, but strip a full ref prefix if one
	// shows up so the prefix never leaks into project names.
	name := latest.Name
	switch {
	case strings.HasPrefix(name, "refs/heads/"):
		name = strings.TrimPrefix(name, "refs/heads/")
	case strings.HasPrefix(name, "refs/tags/"):
		name = strings.TrimPrefix(name, "refs/tags/")
		kind = RefKindTag
	}

	if name == "" {
		return nil, ErrMissingRef
	}
	if latest.Target.Hash == "" {
		return nil, ErrMissingCommit
	}

	return &WebhookEvent{
		Owner:    owner,
		Repo:     payload.Repository.Name,
		RefName:  name,
		RefKind:  kind,
		CommitID: latest.Target.Hash,
	}, nil
}

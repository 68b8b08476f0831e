// Package models defines the data structures for the webhook trigger service.
package models

import "errors"

// Parse and validation errors. Each maps to a MalformedPayload outcome.
var (
	ErrInvalidJSON       = errors.New("request body is not valid JSON")
	ErrMissingRepository = errors.New("payload is missing repository owner or name")
	ErrNoNewCommits      = errors.New("push contains no changes with a new ref")
	ErrMissingRef        = errors.New("pushed ref has no name")
	ErrMissingCommit     = errors.New("pushed ref has no target commit")
	ErrBadEventKey       = errors.New(`X-Event-Key is not "repo:push"`)
	ErrBadUserAgent      = errors.New("User-Agent is not a Bitbucket webhook agent")
)

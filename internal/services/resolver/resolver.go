// Package resolver derives CodeBuild project name candidates from push events.
package resolver

import (
	"fmt"
	"strings"

	"bitbucket-codebuild-trigger/internal/models"
)

const (
	placeholderOwner  = "$username"
	placeholderRepo   = "$reponame"
	placeholderBranch = "$branch"

	// AllTagsName replaces the branch placeholder in the fallback candidate
	// tried for tag pushes when no project matches the tag itself.
	AllTagsName = "all_tags"
)

// Template is a validated project-name pattern over the closed field set
// {$username, $reponame, $branch}. Substitution is literal, so no template
// syntax can be injected through repository or ref names.
type Template struct {
	pattern string
}

// New validates that the pattern contains all three placeholders.
func New(pattern string) (Template, error) {
	for _, placeholder := range []string{placeholderOwner, placeholderRepo, placeholderBranch} {
		if !strings.Contains(pattern, placeholder) {
			return Template{}, fmt.Errorf("project name pattern must contain %s", placeholder)
		}
	}
	return Template{pattern: pattern}, nil
}

// Candidates returns the ordered project names to match against the
// registry. Branch pushes yield a single candidate; tag pushes also yield
// the all_tags fallback, checked only when the primary name has no project.
func (t Template) Candidates(event *models.WebhookEvent) []string {
	names := []string{t.resolve(event.Owner, event.Repo, event.RefName)}
	if event.RefKind == models.RefKindTag {
		names = append(names, t.resolve(event.Owner, event.Repo, AllTagsName))
	}
	return names
}

// resolve substitutes the sanitized segments into the pattern. Literal
// characters in the pattern itself are left untouched.
func (t Template) resolve(owner, repo, branch string) string {
	return strings.NewReplacer(
		placeholderOwner, SanitizeSegment(owner),
		placeholderRepo, SanitizeSegment(repo),
		placeholderBranch, SanitizeSegment(branch),
	).Replace(t.pattern)
}

// SanitizeSegment replaces every character that is not valid in a CodeBuild
// project name with an underscore. Idempotent.
func SanitizeSegment(segment string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, segment)
}

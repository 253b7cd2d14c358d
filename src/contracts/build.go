// Package contracts defines the data structures shared between the sync engine,
// its collaborators, and the messages it publishes.
package contracts

import "time"

// SelectorType identifies which attribute of a run a selector pattern is matched against.
type SelectorType string

const (
	SelectorBranch   SelectorType = "branch"
	SelectorTag      SelectorType = "tag"
	SelectorWorkflow SelectorType = "workflow"
)

// Selector decides which remote runs belong to a Build.
// Pattern uses '*' and '?' glob syntax.
type Selector struct {
	Type    SelectorType `json:"type" mapstructure:"type" validate:"required,oneof=branch tag workflow"`
	Pattern string       `json:"pattern" mapstructure:"pattern" validate:"required"`
}

// Build is a tracked repository plus the selector configuration whose CI history is synchronized.
type Build struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	// Provider is the registered provider name ("github" or "buildkite").
	Provider  string     `json:"provider"`
	Owner     string     `json:"owner"`
	Repo      string     `json:"repo"`
	Selectors []Selector `json:"selectors"`
	// CacheExpirationMinutes is how stale a cached provider response may be for this build.
	CacheExpirationMinutes int `json:"cache_expiration_minutes"`
	// LastAnalyzedCommitSHA is nil when the build has never been analyzed.
	LastAnalyzedCommitSHA *string `json:"last_analyzed_commit_sha,omitempty"`
}

// CacheExpiration returns the build's cache tolerance as a duration.
func (b Build) CacheExpiration() time.Duration {
	return time.Duration(b.CacheExpirationMinutes) * time.Minute
}

// Slug returns "owner/repo".
func (b Build) Slug() string {
	return b.Owner + "/" + b.Repo
}

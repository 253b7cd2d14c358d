package cache

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"cisync/src/provider"
)

// KeyBuilder helps build consistent cache keys
type KeyBuilder struct{}

// RunsKey is the key of a run listing.
func (KeyBuilder) RunsKey(owner, repo string, opts provider.ListRunsOptions) string {
	filters := map[string]string{
		"branch":   opts.Branch,
		"workflow": opts.WorkflowName,
	}
	if !opts.Since.IsZero() {
		filters["since"] = opts.Since.UTC().Format(time.RFC3339)
	}
	if opts.Limit > 0 {
		filters["limit"] = strconv.Itoa(opts.Limit)
	}
	return buildKey(owner, repo, "runs", filters)
}

// TagsKey is the key of a tag listing.
func (KeyBuilder) TagsKey(owner, repo string, limit int) string {
	return buildKey(owner, repo, "tags", map[string]string{"limit": strconv.Itoa(limit)})
}

// LatestTagKey is the key of the single newest tag.
func (KeyBuilder) LatestTagKey(owner, repo string) string {
	return buildKey(owner, repo, "latest_tag", nil)
}

// RepositoryPrefix is shared by every key of one repository.
func (KeyBuilder) RepositoryPrefix(owner, repo string) string {
	return owner + "/" + repo + "/"
}

// buildKey renders "<owner>/<repo>/<resource>:<k=v;...>" with keys sorted and empty values dropped.
func buildKey(owner, repo, resource string, filters map[string]string) string {
	names := make([]string, 0, len(filters))
	for name, value := range filters {
		if value != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(owner)
	b.WriteByte('/')
	b.WriteString(repo)
	b.WriteByte('/')
	b.WriteString(resource)
	b.WriteByte(':')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(filters[name])
	}
	return b.String()
}

// Package selector decides which workflow runs belong to a tracked build.
//
// A run belongs to a build when it matches at least one of the build's
// selectors. A build without selectors matches nothing.
package selector

import (
	"regexp"
	"strings"
	"sync"

	"cisync/src/contracts"
	"cisync/src/provider"
)

const tagRefPrefix = "refs/tags/"

var compiled sync.Map // pattern -> *regexp.Regexp

// compile turns a glob into an anchored, case-insensitive regexp.
func compile(pattern string) *regexp.Regexp {
	if re, ok := compiled.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}

	expr := regexp.QuoteMeta(pattern)
	expr = strings.ReplaceAll(expr, `\*`, `.*`)
	expr = strings.ReplaceAll(expr, `\?`, `.`)
	re := regexp.MustCompile(`(?i)^` + expr + `$`)

	actual, _ := compiled.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp)
}

// MatchesPattern reports whether value matches the glob pattern.
// '*' matches any run of characters, '?' exactly one; everything else is literal.
func MatchesPattern(value, pattern string) bool {
	return compile(pattern).MatchString(value)
}

// MatchingTags returns the tags matching pattern, preserving order.
func MatchingTags(tags []string, pattern string) []string {
	var out []string
	for _, tag := range tags {
		if MatchesPattern(tag, pattern) {
			out = append(out, tag)
		}
	}
	return out
}

// NeedsTags reports whether any selector requires a tag listing.
func NeedsTags(selectors []contracts.Selector) bool {
	for _, s := range selectors {
		if s.Type == contracts.SelectorTag {
			return true
		}
	}
	return false
}

// Set is a build's selectors resolved against a tag listing.
type Set struct {
	selectors []contracts.Selector
	tagSets   map[int]map[string]struct{}
}

// NewSet resolves tag selectors against tags. tags may be nil when no selector is a tag selector.
func NewSet(selectors []contracts.Selector, tags []string) *Set {
	s := &Set{
		selectors: selectors,
		tagSets:   make(map[int]map[string]struct{}),
	}
	for i, sel := range selectors {
		if sel.Type != contracts.SelectorTag {
			continue
		}
		matched := make(map[string]struct{})
		for _, tag := range MatchingTags(tags, sel.Pattern) {
			matched[tag] = struct{}{}
		}
		s.tagSets[i] = matched
	}
	return s
}

// Matches reports whether run satisfies at least one selector.
func (s *Set) Matches(run provider.WorkflowRun) bool {
	for i, sel := range s.selectors {
		switch sel.Type {
		case contracts.SelectorBranch:
			if run.HeadBranch != "" && MatchesPattern(run.HeadBranch, sel.Pattern) {
				return true
			}
		case contracts.SelectorWorkflow:
			if MatchesPattern(run.Name, sel.Pattern) {
				return true
			}
		case contracts.SelectorTag:
			if run.HeadBranch == "" {
				continue
			}
			tags := s.tagSets[i]
			if _, ok := tags[run.HeadBranch]; ok {
				return true
			}
			if name, ok := strings.CutPrefix(run.HeadBranch, tagRefPrefix); ok {
				if _, ok := tags[name]; ok {
					return true
				}
			}
		}
	}
	return false
}

// Filter returns the runs matching the set, preserving order.
func (s *Set) Filter(runs []provider.WorkflowRun) []provider.WorkflowRun {
	var out []provider.WorkflowRun
	for _, run := range runs {
		if s.Matches(run) {
			out = append(out, run)
		}
	}
	return out
}

// Matches reports whether run belongs to a build with the given selectors.
func Matches(run provider.WorkflowRun, selectors []contracts.Selector, tags []string) bool {
	return NewSet(selectors, tags).Matches(run)
}

// Filter returns the runs belonging to a build with the given selectors.
func Filter(runs []provider.WorkflowRun, selectors []contracts.Selector, tags []string) []provider.WorkflowRun {
	return NewSet(selectors, tags).Filter(runs)
}

package selector

import (
	"testing"

	"cisync/src/contracts"
	"cisync/src/provider"
)

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		value   string
		pattern string
		want    bool
	}{
		{"v1.2.3", "v*", true},
		{"main", "deploy", false},
		{"Main", "main", true},
		{"release-1.0", "release-*", true},
		{"release-1.0", "release-?.0", true},
		{"release-10.0", "release-?.0", false},
		{"v1x2", "v1.2", false},
		{"feature/a+b", "feature/a+b", true},
		{"feature/aab", "feature/a+b", false},
		{"(x)", "(x)", true},
		{"prefix-main", "main", false},
		{"main-suffix", "main", false},
		{"", "*", true},
		{"anything", "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.value+"~"+tt.pattern, func(t *testing.T) {
			if got := MatchesPattern(tt.value, tt.pattern); got != tt.want {
				t.Errorf("MatchesPattern(%q, %q) = %v, want %v", tt.value, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestMatchingTags(t *testing.T) {
	tags := []string{"v2.0.0", "release-1", "v1.0.0"}
	got := MatchingTags(tags, "v*")
	if len(got) != 2 || got[0] != "v2.0.0" || got[1] != "v1.0.0" {
		t.Errorf("MatchingTags() = %v", got)
	}
}

func TestNeedsTags(t *testing.T) {
	if NeedsTags([]contracts.Selector{{Type: contracts.SelectorBranch, Pattern: "*"}}) {
		t.Error("branch-only selectors should not need tags")
	}
	if !NeedsTags([]contracts.Selector{{Type: contracts.SelectorBranch, Pattern: "*"}, {Type: contracts.SelectorTag, Pattern: "v*"}}) {
		t.Error("tag selector should need tags")
	}
}

func TestMatches(t *testing.T) {
	tags := []string{"v1.0.0", "v0.9.0", "nightly"}

	tests := []struct {
		name      string
		run       provider.WorkflowRun
		selectors []contracts.Selector
		want      bool
	}{
		{
			name:      "branch selector",
			run:       provider.WorkflowRun{HeadBranch: "release-2.0"},
			selectors: []contracts.Selector{{Type: contracts.SelectorBranch, Pattern: "release-*"}},
			want:      true,
		},
		{
			name:      "branch selector miss",
			run:       provider.WorkflowRun{HeadBranch: "main"},
			selectors: []contracts.Selector{{Type: contracts.SelectorBranch, Pattern: "release-*"}},
			want:      false,
		},
		{
			name:      "workflow selector",
			run:       provider.WorkflowRun{Name: "Nightly E2E"},
			selectors: []contracts.Selector{{Type: contracts.SelectorWorkflow, Pattern: "nightly*"}},
			want:      true,
		},
		{
			name:      "tag selector on bare tag",
			run:       provider.WorkflowRun{HeadBranch: "v1.0.0"},
			selectors: []contracts.Selector{{Type: contracts.SelectorTag, Pattern: "v*"}},
			want:      true,
		},
		{
			name:      "tag selector on tag ref",
			run:       provider.WorkflowRun{HeadBranch: "refs/tags/v0.9.0"},
			selectors: []contracts.Selector{{Type: contracts.SelectorTag, Pattern: "v*"}},
			want:      true,
		},
		{
			name:      "tag selector ignores tags outside pattern",
			run:       provider.WorkflowRun{HeadBranch: "nightly"},
			selectors: []contracts.Selector{{Type: contracts.SelectorTag, Pattern: "v*"}},
			want:      false,
		},
		{
			name:      "tag selector ignores unknown tag",
			run:       provider.WorkflowRun{HeadBranch: "v9.9.9"},
			selectors: []contracts.Selector{{Type: contracts.SelectorTag, Pattern: "v*"}},
			want:      false,
		},
		{
			name: "OR across branch and tag",
			run:  provider.WorkflowRun{HeadBranch: "main"},
			selectors: []contracts.Selector{
				{Type: contracts.SelectorBranch, Pattern: "main"},
				{Type: contracts.SelectorTag, Pattern: "v*"},
			},
			want: true,
		},
		{
			name:      "no selectors",
			run:       provider.WorkflowRun{HeadBranch: "main", Name: "CI"},
			selectors: nil,
			want:      false,
		},
		{
			name:      "missing head branch",
			run:       provider.WorkflowRun{Name: "CI"},
			selectors: []contracts.Selector{{Type: contracts.SelectorBranch, Pattern: "*"}},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.run, tt.selectors, tags); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	runs := []provider.WorkflowRun{
		{ID: 1, HeadBranch: "release-1.0"},
		{ID: 2, HeadBranch: "main"},
		{ID: 3, HeadBranch: "release-2.0"},
	}
	got := Filter(runs, []contracts.Selector{{Type: contracts.SelectorBranch, Pattern: "release-*"}}, nil)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("Filter() = %+v", got)
	}
}

//go:build integration

package githubactions

import (
	"context"
	"os"
	"testing"
	"time"

	"cisync/src/provider"
)

func TestGitHubActionsIntegration(t *testing.T) {
	token := os.Getenv("CISYNC_GITHUB_TOKEN")
	if token == "" {
		t.Skip("CISYNC_GITHUB_TOKEN not set, skipping integration test")
	}

	repoRef := os.Getenv("TEST_GITHUB_REPOSITORY")
	if repoRef == "" {
		t.Skip("TEST_GITHUB_REPOSITORY not set, skipping integration test")
	}

	owner, repo, err := provider.ParseRepository(repoRef)
	if err != nil {
		t.Fatalf("ParseRepository failed: %v", err)
	}

	client := NewClient(token)
	ctx := context.Background()

	if err := client.ValidateToken(ctx); err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	runs, err := client.ListRuns(ctx, owner, repo, provider.ListRunsOptions{
		Since:          time.Now().AddDate(0, 0, -7),
		Limit:          20,
		InterPageDelay: 500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}

	t.Logf("Fetched %d runs for %s/%s", len(runs), owner, repo)

	commit, err := client.GetLatestCommit(ctx, owner, repo)
	if err != nil {
		t.Fatalf("GetLatestCommit failed: %v", err)
	}
	if commit != nil {
		t.Logf("Latest commit %s", commit.SHA)
	}
}

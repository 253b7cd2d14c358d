package provider

import (
	"context"
	"errors"
	"testing"
)

type stubClient struct{ token string }

func (s *stubClient) Name() string { return "stub" }
func (s *stubClient) ListRuns(context.Context, string, string, ListRunsOptions) ([]WorkflowRun, error) {
	return nil, nil
}
func (s *stubClient) ListTags(context.Context, string, string, int) ([]string, error) {
	return nil, nil
}
func (s *stubClient) GetLatestCommit(context.Context, string, string) (*Commit, error) {
	return nil, nil
}
func (s *stubClient) ListArtifacts(context.Context, string, string, int64) ([]Artifact, error) {
	return nil, nil
}
func (s *stubClient) DownloadArtifact(context.Context, string, string, int64) ([]byte, error) {
	return nil, nil
}
func (s *stubClient) ListWorkflows(context.Context, string, string) ([]Workflow, error) {
	return nil, nil
}
func (s *stubClient) ValidateToken(context.Context) error { return nil }

func TestRegistry(t *testing.T) {
	RegisterProvider("stub", func(token string) Client { return &stubClient{token: token} })

	client, err := New("stub", "secret")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.(*stubClient).token != "secret" {
		t.Error("factory did not receive token")
	}

	found := false
	for _, name := range Registered() {
		if name == "stub" {
			found = true
		}
	}
	if !found {
		t.Errorf("Registered() = %v, missing stub", Registered())
	}

	if _, err := New("nope", ""); !errors.Is(err, ErrProviderUnknown) {
		t.Errorf("New(nope) error = %v, want ErrProviderUnknown", err)
	}
}

func TestParseRepository(t *testing.T) {
	tests := []struct {
		name      string
		ref       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{name: "slug", ref: "acme/widgets", wantOwner: "acme", wantRepo: "widgets"},
		{name: "slug with dots", ref: "acme/widgets.go", wantOwner: "acme", wantRepo: "widgets.go"},
		{name: "url", ref: "https://github.com/acme/widgets", wantOwner: "acme", wantRepo: "widgets"},
		{name: "url with .git", ref: "https://github.com/acme/widgets.git", wantOwner: "acme", wantRepo: "widgets"},
		{name: "url trailing slash", ref: "https://github.com/acme/widgets/", wantOwner: "acme", wantRepo: "widgets"},
		{name: "whitespace", ref: "  acme/widgets \n", wantOwner: "acme", wantRepo: "widgets"},
		{name: "empty", ref: "", wantErr: true},
		{name: "no slash", ref: "acme", wantErr: true},
		{name: "too deep", ref: "acme/widgets/extra", wantErr: true},
		{name: "other host", ref: "https://gitlab.com/acme/widgets", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRepository(tt.ref)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRepository) {
					t.Errorf("ParseRepository(%q) error = %v, want ErrInvalidRepository", tt.ref, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRepository(%q) error = %v", tt.ref, err)
			}
			if owner != tt.wantOwner || repo != tt.wantRepo {
				t.Errorf("ParseRepository(%q) = %s/%s, want %s/%s", tt.ref, owner, repo, tt.wantOwner, tt.wantRepo)
			}
		})
	}
}

func TestRunStatusCompleted(t *testing.T) {
	for status, want := range map[RunStatus]bool{
		StatusSuccess:    true,
		StatusFailure:    true,
		StatusQueued:     false,
		StatusInProgress: false,
		StatusCancelled:  false,
	} {
		if status.Completed() != want {
			t.Errorf("%s.Completed() = %v, want %v", status, status.Completed(), want)
		}
	}
}

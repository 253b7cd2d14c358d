package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cisync/src/contracts"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cisync.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Sync.InterPageDelay != 500*time.Millisecond {
		t.Errorf("InterPageDelay = %v, want 500ms", cfg.Sync.InterPageDelay)
	}
	if cfg.Sync.Lookback != 7*24*time.Hour {
		t.Errorf("Lookback = %v, want 168h", cfg.Sync.Lookback)
	}
	if cfg.Sync.SteadyLimit != 100 || cfg.Sync.HydrationLimit != 50 {
		t.Errorf("Sync limits = %d/%d, want 100/50", cfg.Sync.SteadyLimit, cfg.Sync.HydrationLimit)
	}
	if cfg.Scheduler.Spec != "@every 5m" || cfg.Scheduler.Concurrency != 4 {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %s, want info", cfg.Log.Level)
	}
	if cfg.Database.DSN != "" || len(cfg.Redpanda.Brokers) != 0 {
		t.Errorf("expected in-memory defaults, got %+v / %+v", cfg.Database, cfg.Redpanda)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CISYNC_GITHUB_TOKEN", "ghp_test")
	t.Setenv("CISYNC_BUILDKITE_TOKEN", "bk_test")
	t.Setenv("CISYNC_SYNC_INTER_PAGE_DELAY", "2s")
	t.Setenv("CISYNC_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.TokenFor("github") != "ghp_test" {
		t.Errorf("github token = %q, want ghp_test", cfg.TokenFor("github"))
	}
	if cfg.TokenFor("buildkite") != "bk_test" {
		t.Errorf("buildkite token = %q, want bk_test", cfg.TokenFor("buildkite"))
	}
	if cfg.TokenFor("gitlab") != "" {
		t.Errorf("unknown provider token = %q, want empty", cfg.TokenFor("gitlab"))
	}
	if cfg.Sync.InterPageDelay != 2*time.Second {
		t.Errorf("InterPageDelay = %v, want 2s", cfg.Sync.InterPageDelay)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: postgres://localhost/cisync
redpanda:
  brokers: ["localhost:19092"]
sync:
  steady_limit: 25
builds:
  - id: web-release
    tenant_id: acme
    provider: github
    repository: https://github.com/acme/web
    cache_expiration_minutes: 15
    selectors:
      - type: branch
        pattern: release-*
      - type: tag
        pattern: v*
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Database.DSN != "postgres://localhost/cisync" {
		t.Errorf("DSN = %s", cfg.Database.DSN)
	}
	if len(cfg.Redpanda.Brokers) != 1 || cfg.Redpanda.Brokers[0] != "localhost:19092" {
		t.Errorf("Brokers = %v", cfg.Redpanda.Brokers)
	}
	if cfg.Sync.SteadyLimit != 25 {
		t.Errorf("SteadyLimit = %d, want 25", cfg.Sync.SteadyLimit)
	}
	if len(cfg.Builds) != 1 {
		t.Fatalf("Builds = %d, want 1", len(cfg.Builds))
	}

	build, err := cfg.Builds[0].Build()
	if err != nil {
		t.Fatalf("Build() unexpected error: %v", err)
	}
	if build.Owner != "acme" || build.Repo != "web" || build.Name != "acme/web" {
		t.Errorf("build = %+v", build)
	}
	if build.CacheExpiration() != 15*time.Minute {
		t.Errorf("CacheExpiration = %v, want 15m", build.CacheExpiration())
	}
	if len(build.Selectors) != 2 || build.Selectors[1].Type != contracts.SelectorTag {
		t.Errorf("Selectors = %+v", build.Selectors)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{
			name:    "bad log level",
			content: "log:\n  level: loud\n",
			errPart: "Level",
		},
		{
			name:    "zero concurrency",
			content: "scheduler:\n  concurrency: 0\n",
			errPart: "Concurrency",
		},
		{
			name: "build without selectors",
			content: `
builds:
  - id: b
    tenant_id: t
    provider: github
    repository: acme/web
`,
			errPart: "Selectors",
		},
		{
			name: "unknown selector type",
			content: `
builds:
  - id: b
    tenant_id: t
    provider: github
    repository: acme/web
    selectors:
      - type: label
        pattern: x
`,
			errPart: "Type",
		},
		{
			name: "unknown provider",
			content: `
builds:
  - id: b
    tenant_id: t
    provider: jenkins
    repository: acme/web
    selectors:
      - type: branch
        pattern: main
`,
			errPart: "Provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("error %q does not mention %s", err, tt.errPart)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() expected error for missing explicit file")
	}
}

func TestBuildConfig_InvalidRepository(t *testing.T) {
	bc := BuildConfig{ID: "b", Repository: "not-a-repo"}
	if _, err := bc.Build(); err == nil {
		t.Error("Build() expected error for malformed repository")
	}
}

func TestMustLoad_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustLoad() expected panic")
		}
	}()
	MustLoad(filepath.Join(t.TempDir(), "absent.yaml"))
}

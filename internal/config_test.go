package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/bhc/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestHTTPConfig_PortOnlyCheckedWhenEnabled(t *testing.T) {
	cfg := HTTPConfig{Enabled: false, Port: 0}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled listener should ignore port: %v", err)
	}
	cfg.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled listener without port should fail")
	}
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("out of range port should fail")
	}
}

func TestCacheConfig_PathRequiredWhenEnabled(t *testing.T) {
	cfg := CacheConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled cache without path should fail")
	}
	cfg.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled cache: %v", err)
	}
}

func TestWatchConfig_NegativeDebounce(t *testing.T) {
	cfg := WatchConfig{Enabled: true, Debounce: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative debounce should fail")
	}
}

func TestWorkspaceConfig_EmptyRoot(t *testing.T) {
	cfg := WorkspaceConfig{Roots: []string{"./site", ""}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty root entry should fail")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("BHC_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    enabled: true
    port: 9090
workspace:
  roots: ["/srv/site"]
cache:
  enabled: true
  path: /tmp/bhc.db
watch:
  enabled: false
  debounce: 750ms
events:
  throttle: 1s
auth:
  mode: token
  token: ${BHC_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.App.HTTP.Enabled || cfg.App.HTTP.Address() != ":9090" {
		t.Errorf("http = %+v", cfg.App.HTTP)
	}
	if cfg.Watch.Enabled || cfg.Watch.Debounce != 750*time.Millisecond {
		t.Errorf("watch = %+v", cfg.Watch)
	}
	if cfg.Events.Throttle != time.Second {
		t.Errorf("throttle = %v", cfg.Events.Throttle)
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if len(cfg.Workspace.Roots) != 1 || len(cfg.Workspace.IgnoreDirs) == 0 {
		t.Errorf("workspace = %+v", cfg.Workspace)
	}
}

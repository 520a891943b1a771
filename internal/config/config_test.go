package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies the documented defaults so changes to them are
// deliberate.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 20 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 20*time.Second {
			t.Errorf("expected Timeout to be 20s, got %v", cfg.Timeout)
		}
	})

	t.Run("default RequestInterval is 250ms", func(t *testing.T) {
		t.Parallel()
		if cfg.RequestInterval != 250*time.Millisecond {
			t.Errorf("expected RequestInterval to be 250ms, got %v", cfg.RequestInterval)
		}
	})

	t.Run("default UserAgent is a browser string", func(t *testing.T) {
		t.Parallel()
		if !strings.Contains(cfg.UserAgent, "Chrome/") {
			t.Errorf("expected Chrome user agent, got %q", cfg.UserAgent)
		}
	})

	t.Run("default MaxBodySize is 5MB", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxBodySize != 5*1024*1024 {
			t.Errorf("expected MaxBodySize to be 5MB, got %d", cfg.MaxBodySize)
		}
	})

	t.Run("default BatchSize is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 4 {
			t.Errorf("expected BatchSize to be 4, got %d", cfg.BatchSize)
		}
	})

	t.Run("default CaseLimit is 2", func(t *testing.T) {
		t.Parallel()
		if cfg.CaseLimit != 2 {
			t.Errorf("expected CaseLimit to be 2, got %d", cfg.CaseLimit)
		}
	})

	t.Run("history is saved to the XDG data dir by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to be true")
		}
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})

	t.Run("default output is text", func(t *testing.T) {
		t.Parallel()
		if cfg.JSONReport || cfg.MarkdownReport {
			t.Error("expected text output by default")
		}
	})
}

// TestConfigValidate tests one validation rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"shop.example"}
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty targets", func(c *Config) { c.Targets = []string{} }, ErrNoTarget},
		{"nil targets", func(c *Config) { c.Targets = nil }, ErrNoTarget},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, ErrInvalidTimeout},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"json and markdown", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"negative interval", func(c *Config) { c.RequestInterval = -time.Millisecond }, ErrInvalidRequestInterval},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"negative case limit", func(c *Config) { c.CaseLimit = -1 }, ErrInvalidCaseLimit},
		{"negative skip window", func(c *Config) { c.SkipRecent = -time.Hour }, ErrInvalidSkipRecent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("zero interval and case limit are valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.RequestInterval = 0
		cfg.CaseLimit = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestFileGetSiteConfig tests merging site settings over defaults.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	yes, no := true, false
	file := &File{
		Defaults: SiteConfig{
			Cookie:        "consent=accepted",
			Headers:       map[string]string{"Accept-Language": "en-US"},
			SkipAuxiliary: &yes,
		},
		Sites: map[string]SiteConfig{
			"shop.example": {
				Cookie:        "session=abc",
				Headers:       map[string]string{"X-Scan": "1"},
				PolicyURL:     "https://shop.example/legal/privacy",
				SkipAuxiliary: &no,
			},
		},
	}

	t.Run("unknown site gets defaults", func(t *testing.T) {
		t.Parallel()

		got := file.GetSiteConfig("other.example")
		if got.Cookie != "consent=accepted" || !got.SkipsAuxiliary() {
			t.Errorf("expected defaults, got %+v", got)
		}
	})

	t.Run("site overrides defaults and merges headers", func(t *testing.T) {
		t.Parallel()

		got := file.GetSiteConfig("shop.example")
		if got.Cookie != "session=abc" {
			t.Errorf("Cookie = %q", got.Cookie)
		}
		if got.Headers["Accept-Language"] != "en-US" || got.Headers["X-Scan"] != "1" {
			t.Errorf("Headers = %v", got.Headers)
		}
		if got.PolicyURL != "https://shop.example/legal/privacy" {
			t.Errorf("PolicyURL = %q", got.PolicyURL)
		}
		if got.SkipsAuxiliary() {
			t.Error("expected site to re-enable the auxiliary fetch")
		}
	})

	t.Run("site is found from any URL form", func(t *testing.T) {
		t.Parallel()

		for _, target := range []string{"https://www.shop.example/cart", "SHOP.example", "http://shop.example"} {
			if got := file.GetSiteConfig(target); got.Cookie != "session=abc" {
				t.Errorf("GetSiteConfig(%q) did not match the site", target)
			}
		}
	})

	t.Run("merging does not modify defaults", func(t *testing.T) {
		t.Parallel()

		_ = file.GetSiteConfig("shop.example")
		if _, ok := file.Defaults.Headers["X-Scan"]; ok {
			t.Error("site headers leaked into defaults")
		}
	})

	t.Run("nil SkipAuxiliary means fetch", func(t *testing.T) {
		t.Parallel()

		if (SiteConfig{}).SkipsAuxiliary() {
			t.Error("expected zero SiteConfig to fetch auxiliary pages")
		}
	})
}

// TestPolicyText tests reading manual policy files.
func TestPolicyText(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "policy.txt"), []byte("We collect email addresses."), 0600); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}
	configPath := filepath.Join(dir, DefaultConfigFile)
	content := `sites:
  shop.example:
    policyFile: policy.txt
  broken.example:
    policyFile: missing.txt
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	file, err := LoadConfigFile(configPath)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	t.Run("relative path resolves against config dir", func(t *testing.T) {
		t.Parallel()

		text, err := file.PolicyText(file.GetSiteConfig("shop.example"))
		if err != nil {
			t.Fatalf("PolicyText: %v", err)
		}
		if text != "We collect email addresses." {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("no policy file returns empty text", func(t *testing.T) {
		t.Parallel()

		text, err := file.PolicyText(file.GetSiteConfig("other.example"))
		if err != nil || text != "" {
			t.Errorf("expected empty text, got %q, %v", text, err)
		}
	})

	t.Run("missing policy file is an error", func(t *testing.T) {
		t.Parallel()

		if _, err := file.PolicyText(file.GetSiteConfig("broken.example")); err == nil {
			t.Error("expected error")
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.privacygap")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `defaults:
  cookie: "consent=accepted"
sites:
  shop.example:
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
    policyURL: https://shop.example/privacy
    skipAuxiliary: true
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Defaults.Cookie != "consent=accepted" {
			t.Errorf("expected default cookie, got %q", cfg.Defaults.Cookie)
		}
		site, ok := cfg.Sites["shop.example"]
		if !ok {
			t.Fatal("expected shop.example in sites")
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Error("expected Authorization header")
		}
		if site.PolicyURL != "https://shop.example/privacy" {
			t.Errorf("PolicyURL = %q", site.PolicyURL)
		}
		if !site.SkipsAuxiliary() {
			t.Error("expected skipAuxiliary")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte("defaults:\n  cookie: a=b\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if dir := XDGDataDir(); !strings.HasSuffix(dir, AppName) {
		t.Errorf("unexpected XDG data dir %q", dir)
	}
	if dir := XDGConfigDir(); !strings.HasSuffix(dir, AppName) {
		t.Errorf("unexpected XDG config dir %q", dir)
	}
}

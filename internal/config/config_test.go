package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
)

// TestNewConfig verifies the defaults returned by NewConfig.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default MaxPages is 50", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 50 {
			t.Errorf("expected MaxPages to be 50, got %d", cfg.MaxPages)
		}
	})

	t.Run("default BatchSize is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 4 {
			t.Errorf("expected BatchSize to be 4, got %d", cfg.BatchSize)
		}
	})

	t.Run("default CrawlDelay is zero", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDelay != 0 {
			t.Errorf("expected CrawlDelay to be 0, got %v", cfg.CrawlDelay)
		}
	})

	t.Run("default UserAgent identifies linkscan", func(t *testing.T) {
		t.Parallel()
		if cfg.UserAgent != DefaultUserAgent {
			t.Errorf("expected UserAgent %q, got %q", DefaultUserAgent, cfg.UserAgent)
		}
	})

	t.Run("history and notify defaults", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to be true")
		}
		if !cfg.NotifyOnlyBroken {
			t.Error("expected NotifyOnlyBroken to be true")
		}
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})
}

// TestConfigValidate tests each validation rule in isolation.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		return &Config{
			Targets:   []string{"https://example.com"},
			BatchSize: 4,
		}
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty targets returns ErrNoTarget", func(c *Config) { c.Targets = []string{} }, ErrNoTarget},
		{"nil targets returns ErrNoTarget", func(c *Config) { c.Targets = nil }, ErrNoTarget},
		{"zero batch size returns ErrInvalidBatchSize", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"negative batch size returns ErrInvalidBatchSize", func(c *Config) { c.BatchSize = -1 }, ErrInvalidBatchSize},
		{"json and markdown conflict", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"json and csv conflict", func(c *Config) { c.JSONReport, c.CSVReport = true, true }, ErrConflictingReportFormats},
		{"negative crawl delay", func(c *Config) { c.CrawlDelay = -time.Second }, ErrInvalidCrawlDelay},
		{"negative max body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"csv only is valid", func(c *Config) { c.CSVReport = true }, nil},
		{"markdown only is valid", func(c *Config) { c.MarkdownReport = true }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEffectiveMaxBodySize(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	if got := cfg.EffectiveMaxBodySize(); got != DefaultMaxBodySize {
		t.Errorf("expected default %d, got %d", DefaultMaxBodySize, got)
	}
	cfg.MaxBodySize = 1024
	if got := cfg.EffectiveMaxBodySize(); got != 1024 {
		t.Errorf("expected 1024, got %d", got)
	}
}

// TestFileGetSiteConfig tests merging of defaults and site entries.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: SiteConfig{Cookie: "default=1", MaxPages: 10},
			Sites:    map[string]SiteConfig{},
		}

		got := cf.GetSiteConfig("unknown.example")
		if got.Cookie != "default=1" || got.MaxPages != 10 {
			t.Errorf("expected defaults, got %+v", got)
		}
	})

	t.Run("site values override defaults", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: SiteConfig{Cookie: "default=1", MaxPages: 10, UserAgent: "default-ua"},
			Sites: map[string]SiteConfig{
				"example.com": {Cookie: "session=xyz", MaxPages: 20, UserAgent: "site-ua"},
			},
		}

		got := cf.GetSiteConfig("example.com")
		if got.Cookie != "session=xyz" {
			t.Errorf("expected site cookie, got %q", got.Cookie)
		}
		if got.MaxPages != 20 {
			t.Errorf("expected MaxPages 20, got %d", got.MaxPages)
		}
		if got.UserAgent != "site-ua" {
			t.Errorf("expected site user agent, got %q", got.UserAgent)
		}
	})

	t.Run("zero values fall back to defaults", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: SiteConfig{Cookie: "default=1", MaxPages: 10},
			Sites:    map[string]SiteConfig{"example.com": {}},
		}

		got := cf.GetSiteConfig("example.com")
		if got.Cookie != "default=1" || got.MaxPages != 10 {
			t.Errorf("expected defaults, got %+v", got)
		}
	})

	t.Run("merges headers without mutating defaults", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: SiteConfig{Headers: map[string]string{"X-Default": "1", "X-Shared": "default"}},
			Sites: map[string]SiteConfig{
				"example.com": {Headers: map[string]string{"X-Site": "2", "X-Shared": "site"}},
			},
		}

		got := cf.GetSiteConfig("example.com")
		if got.Headers["X-Default"] != "1" || got.Headers["X-Site"] != "2" || got.Headers["X-Shared"] != "site" {
			t.Errorf("unexpected merged headers: %v", got.Headers)
		}
		if _, leaked := cf.Defaults.Headers["X-Site"]; leaked {
			t.Error("expected defaults to be left untouched")
		}
	})

	t.Run("host lookup is case insensitive", func(t *testing.T) {
		t.Parallel()

		cf := &File{Sites: map[string]SiteConfig{"example.com": {MaxPages: 5}}}
		if got := cf.GetSiteConfig("EXAMPLE.com"); got.MaxPages != 5 {
			t.Errorf("expected MaxPages 5, got %d", got.MaxPages)
		}
	})

	t.Run("site config for url", func(t *testing.T) {
		t.Parallel()

		cf := &File{Sites: map[string]SiteConfig{
			"example.com":      {MaxPages: 5},
			"example.com:8080": {MaxPages: 7},
		}}
		if got := cf.SiteConfigFor("https://example.com/docs"); got.MaxPages != 5 {
			t.Errorf("expected MaxPages 5, got %d", got.MaxPages)
		}
		if got := cf.SiteConfigFor("example.com:8080/a"); got.MaxPages != 7 {
			t.Errorf("expected MaxPages 7, got %d", got.MaxPages)
		}
	})

	t.Run("nil sites map", func(t *testing.T) {
		t.Parallel()

		cf := &File{Defaults: SiteConfig{MaxPages: 3}}
		if got := cf.GetSiteConfig("example.com"); got.MaxPages != 3 {
			t.Errorf("expected MaxPages 3, got %d", got.MaxPages)
		}
	})
}

func TestSiteConfigHTTPHeaders(t *testing.T) {
	t.Parallel()

	sc := SiteConfig{
		Cookie:  "session=abc",
		Headers: map[string]string{"authorization": "Bearer token"},
	}

	h := sc.HTTPHeaders()
	if h.Get("Cookie") != "session=abc" {
		t.Errorf("expected cookie header, got %q", h.Get("Cookie"))
	}
	if h.Get("Authorization") != "Bearer token" {
		t.Errorf("expected canonical Authorization header, got %v", h)
	}

	if got := (SiteConfig{}).HTTPHeaders(); len(got) != 0 {
		t.Errorf("expected empty header, got %v", got)
	}
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://Example.com/path": "example.com",
		"example.com":              "example.com",
		"http://example.com:8080":  "example.com:8080",
		"  example.com/a  ":        "example.com",
	}
	for input, want := range tests {
		if got := HostOf(input); got != want {
			t.Errorf("HostOf(%q): expected %q, got %q", input, want, got)
		}
	}
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.linkscan")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".linkscan")
		content := `defaults:
  maxPages: 20
  cookie: "default=abc"
sites:
  example.com:
    maxPages: 40
    cookie: "session=xyz"
    userAgent: "custom/1.0"
    headers:
      Authorization: "Bearer token"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Defaults.MaxPages != 20 {
			t.Errorf("expected default maxPages 20, got %d", cfg.Defaults.MaxPages)
		}
		site, ok := cfg.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com in sites")
		}
		if site.MaxPages != 40 || site.UserAgent != "custom/1.0" {
			t.Errorf("unexpected site config: %+v", site)
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".linkscan")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".linkscan")
		if err := os.WriteFile(configPath, []byte("defaults:\n  maxPages: 5\n"), 0600); err != nil {
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

func TestLoadConfigFileValidation(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		return path
	}

	t.Run("normalizes site keys", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile(write(t, "sites:\n  https://Example.com:8443/docs:\n    maxPages: 3\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := cfg.SiteConfigFor("https://example.com:8443/").MaxPages; got != 3 {
			t.Errorf("expected maxPages 3 for example.com:8443, got %d", got)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile(write(t, ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})

	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "defaults:\n  maxpages: 5\n"},
		{"site budget above limit", "sites:\n  example.com:\n    maxPages: 51\n"},
		{"negative default budget", "defaults:\n  maxPages: -1\n"},
		{"multi-line cookie", "sites:\n  example.com:\n    cookie: \"a=1\\r\\nX-Injected: 1\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := LoadConfigFile(write(t, tt.content)); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}

	t.Run("invalid values wrap ErrInvalidSiteConfig", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(write(t, "sites:\n  example.com:\n    maxPages: 99\n"))
		if !errors.Is(err, ErrInvalidSiteConfig) {
			t.Errorf("expected ErrInvalidSiteConfig, got %v", err)
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("finds file in current directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		t.Chdir(dir)

		if result := FindConfigFile(""); filepath.Base(result) != DefaultConfigFile {
			t.Errorf("expected %s to be found, got %q", DefaultConfigFile, result)
		}
	})

	t.Run("finds file in XDG config directory", func(t *testing.T) {
		t.Cleanup(xdg.Reload)
		configHome := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", configHome)
		t.Setenv("HOME", t.TempDir())
		xdg.Reload()
		t.Chdir(t.TempDir())

		want := filepath.Join(configHome, AppName, XDGConfigFile)
		if err := os.MkdirAll(filepath.Dir(want), 0750); err != nil {
			t.Fatalf("failed to create config dir: %v", err)
		}
		if err := os.WriteFile(want, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(""); result != want {
			t.Errorf("expected %q, got %q", want, result)
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("ignores missing files", func(t *testing.T) {
		if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("loads variables without overriding", func(t *testing.T) {
		t.Setenv(EnvWebhookURL, "")
		os.Unsetenv(EnvWebhookURL) //nolint:errcheck
		t.Setenv(EnvDefaultURL, "https://already.example")

		path := filepath.Join(t.TempDir(), ".env")
		content := EnvWebhookURL + "=https://hooks.slack.com/services/T/B/X\n" + EnvDefaultURL + "=https://from-file.example\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}

		if err := LoadDotEnv(path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		cfg.ApplyEnv()
		if cfg.WebhookURL != "https://hooks.slack.com/services/T/B/X" {
			t.Errorf("expected webhook URL from file, got %q", cfg.WebhookURL)
		}
		if cfg.DefaultURL != "https://already.example" {
			t.Errorf("expected existing env to win, got %q", cfg.DefaultURL)
		}
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		t.Setenv(EnvWebhookURL, "https://env.example/hook")

		cfg := NewConfig()
		cfg.WebhookURL = "https://flag.example/hook"
		cfg.ApplyEnv()
		if cfg.WebhookURL != "https://flag.example/hook" {
			t.Errorf("expected flag value to be kept, got %q", cfg.WebhookURL)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if XDGDataDir() == "" {
		t.Error("expected non-empty data dir")
	}
	if filepath.Base(XDGConfigDir()) != AppName {
		t.Errorf("expected config dir to end with %s, got %q", AppName, XDGConfigDir())
	}
}

package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TokenCookieName != "token" || cfg.ProfileCookieName != "portal_profile" {
		t.Fatalf("unexpected cookie names: %q %q", cfg.TokenCookieName, cfg.ProfileCookieName)
	}
	if cfg.SessionMaxAgeDays != 7 {
		t.Fatalf("expected 7 days, got %d", cfg.SessionMaxAgeDays)
	}
	wantBypass := []string{"/api/auth", "/_next/static", "/_next/image", "/favicon.ico"}
	if !reflect.DeepEqual(cfg.BypassPrefixes, wantBypass) {
		t.Fatalf("unexpected bypass prefixes: %v", cfg.BypassPrefixes)
	}
	if cfg.LoginPath != "/login" || cfg.HomePath != "/" {
		t.Fatalf("unexpected paths: %q %q", cfg.LoginPath, cfg.HomePath)
	}
}

func TestLoadListAndIntOverrides(t *testing.T) {
	t.Setenv("GIN_MODE", "test")
	t.Setenv("PUBLIC_PATHS", " /login , ,/docs/* ")
	t.Setenv("SESSION_MAX_AGE_DAYS", "3")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !reflect.DeepEqual(cfg.PublicPaths, []string{"/login", "/docs/*"}) {
		t.Fatalf("unexpected public paths: %v", cfg.PublicPaths)
	}
	if cfg.SessionMaxAgeDays != 3 {
		t.Fatalf("expected 3 days, got %d", cfg.SessionMaxAgeDays)
	}
	if cfg.LoginMaxAttempts != 5 {
		t.Fatalf("expected fallback to 5 attempts, got %d", cfg.LoginMaxAttempts)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			GinMode:           "debug",
			TokenCookieName:   "token",
			ProfileCookieName: "portal_profile",
			SessionMaxAgeDays: 7,
			LoginPath:         "/login",
			HomePath:          "/",
			AuthAPIURL:        "http://auth",
			RedisURL:          "redis://localhost:6379/0",
		}
	}

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid debug", func(c *Config) {}, false},
		{"empty token cookie", func(c *Config) { c.TokenCookieName = "" }, true},
		{"same cookie names", func(c *Config) { c.ProfileCookieName = "token" }, true},
		{"zero max age", func(c *Config) { c.SessionMaxAgeDays = 0 }, true},
		{"relative login path", func(c *Config) { c.LoginPath = "login" }, true},
		{"release without secret", func(c *Config) { c.GinMode = "release" }, true},
		{"release with secret", func(c *Config) {
			c.GinMode = "release"
			c.SessionSecret = "s"
		}, false},
		{"release without redis", func(c *Config) {
			c.GinMode = "release"
			c.SessionSecret = "s"
			c.RedisURL = ""
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

package feedback

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "redis backend valid",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendRedis
			},
			wantValid: true,
		},
		{
			name: "unknown backend invalid",
			mutate: func(c *Config) {
				c.Storage.Backend = "postgres"
			},
			wantValid: false,
		},
		{
			name: "file backend without path invalid",
			mutate: func(c *Config) {
				c.Storage.FilePath = "  "
			},
			wantValid: false,
		},
		{
			name: "redis prefix with spaces invalid",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendRedis
				c.Storage.RedisPrefix = "my sessions"
			},
			wantValid: false,
		},
		{
			name: "short secret invalid",
			mutate: func(c *Config) {
				c.Keys.Secret = "short"
			},
			wantValid: false,
		},
		{
			name: "short admin key invalid",
			mutate: func(c *Config) {
				c.Keys.AdminKey = "admin"
			},
			wantValid: false,
		},
		{
			name: "update attempts zero invalid",
			mutate: func(c *Config) {
				c.Update.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "update attempts too many invalid",
			mutate: func(c *Config) {
				c.Update.MaxAttempts = 51
			},
			wantValid: false,
		},
		{
			name: "max backoff below initial invalid",
			mutate: func(c *Config) {
				c.Update.InitialBackoff = time.Second
				c.Update.MaxBackoff = time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "rate limit zero creates invalid",
			mutate: func(c *Config) {
				c.RateLimit.MaxCreates = 0
			},
			wantValid: false,
		},
		{
			name: "rate limit disabled ignores limits",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.MaxCreates = 0
				c.RateLimit.Window = 0
			},
			wantValid: true,
		},
		{
			name: "audit buffer zero invalid",
			mutate: func(c *Config) {
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "latency histograms without metrics invalid",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
			},
			wantValid: false,
		},
		{
			name: "relative base url invalid",
			mutate: func(c *Config) {
				c.Links.BaseURL = "/app"
			},
			wantValid: false,
		},
		{
			name: "base url with query invalid",
			mutate: func(c *Config) {
				c.Links.BaseURL = "https://feedback.example.com/?x=1"
			},
			wantValid: false,
		},
		{
			name: "https base url valid",
			mutate: func(c *Config) {
				c.Links.BaseURL = "https://feedback.example.com/app/"
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatalf("expected invalid config")
			}
		})
	}
}

func TestCloneConfigNormalizesBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Links.BaseURL = "  https://feedback.example.com/app/ "
	got := cloneConfig(cfg)
	if got.Links.BaseURL != "https://feedback.example.com/app" {
		t.Fatalf("unexpected base url %q", got.Links.BaseURL)
	}
}

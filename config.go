package feedback

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config holds every tunable of the session service.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Storage   StorageConfig
	Keys      KeysConfig
	Update    UpdateConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Links     LinksConfig
	Read      ReadConfig
}

/*
====================================
STORAGE CONFIG
====================================
*/

// Storage backend names.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// StorageConfig selects the session backend. It is consulted once at build
// time.
type StorageConfig struct {
	Backend     string // "file" (default) or "redis"
	FilePath    string
	RedisPrefix string
}

/*
====================================
KEYS CONFIG
====================================
*/

// KeysConfig holds the server secrets. Secret keys the HMAC over capability
// secrets; the built-in development default is used when it is empty.
// AdminKey enables the admin override; empty disables it.
type KeysConfig struct {
	Secret   string
	AdminKey string
}

/*
====================================
UPDATE CONFIG
====================================
*/

// UpdateConfig bounds the optimistic update retry loop.
type UpdateConfig struct {
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig limits session creation per client IP.
type RateLimitConfig struct {
	Enabled    bool
	MaxCreates int
	Window     time.Duration
	RedisKey   string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles in-process counters and the latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
LINKS CONFIG
====================================
*/

// LinksConfig shapes the capability links returned on creation. An empty
// BaseURL yields relative links.
type LinksConfig struct {
	BaseURL string
}

/*
====================================
READ CONFIG
====================================
*/

// ReadConfig controls side effects of reads.
type ReadConfig struct {
	// TouchOnRead refreshes lastAccess on every authorized read.
	TouchOnRead bool
}

// DefaultConfig returns the configuration used by feedbackd when nothing is
// overridden.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Backend:     BackendFile,
			FilePath:    "data/sessions.json",
			RedisPrefix: "session",
		},
		Update: UpdateConfig{
			MaxAttempts:    5,
			InitialBackoff: 5 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			MaxCreates: 20,
			Window:     10 * time.Minute,
			RedisKey:   "ratelimit:create",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Read: ReadConfig{
			TouchOnRead: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Links.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Links.BaseURL), "/")
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Storage
	switch c.Storage.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Storage.FilePath) == "" {
			return errors.New("Storage FilePath must be set for the file backend")
		}
	case BackendRedis:
		if strings.TrimSpace(c.Storage.RedisPrefix) == "" {
			return errors.New("Storage RedisPrefix must be set for the redis backend")
		}
		if strings.Contains(c.Storage.RedisPrefix, " ") {
			return errors.New("Storage RedisPrefix must not contain spaces")
		}
	default:
		return errors.New("Storage Backend must be 'file' or 'redis'")
	}

	// Keys
	if c.Keys.Secret != "" && len(c.Keys.Secret) < 16 {
		return errors.New("Keys Secret must be at least 16 bytes")
	}
	if c.Keys.AdminKey != "" && len(c.Keys.AdminKey) < 16 {
		return errors.New("Keys AdminKey must be at least 16 bytes")
	}

	// Update
	if c.Update.MaxAttempts < 1 || c.Update.MaxAttempts > 50 {
		return errors.New("Update MaxAttempts must be in [1,50]")
	}
	if c.Update.InitialBackoff <= 0 {
		return errors.New("Update InitialBackoff must be > 0")
	}
	if c.Update.MaxBackoff < c.Update.InitialBackoff {
		return errors.New("Update MaxBackoff must be >= InitialBackoff")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxCreates <= 0 {
			return errors.New("RateLimit MaxCreates must be > 0 when enabled")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0 when enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Links
	if base := strings.TrimSpace(c.Links.BaseURL); base != "" {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("Links BaseURL must be an absolute http(s) URL")
		}
		if u.RawQuery != "" || u.Fragment != "" {
			return errors.New("Links BaseURL must not carry a query or fragment")
		}
	}

	return nil
}

package feedback

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Quisharoo/manager-feedback-questions-sub000/capability"
	"github.com/Quisharoo/manager-feedback-questions-sub000/internal/audit"
	"github.com/Quisharoo/manager-feedback-questions-sub000/internal/rate"
	"github.com/Quisharoo/manager-feedback-questions-sub000/keys"
	"github.com/Quisharoo/manager-feedback-questions-sub000/session"
	"github.com/Quisharoo/manager-feedback-questions-sub000/storage/kv"
	"github.com/Quisharoo/manager-feedback-questions-sub000/storage/localfile"
)

// Builder assembles a [Service]. It is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	backend   session.Backend
	auditSink AuditSink
	logger    zerolog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client used by the redis backend and the
// shared create rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithBackend injects a backend directly, bypassing Config.Storage.
func (b *Builder) WithBackend(backend session.Backend) *Builder {
	b.backend = backend
	return b
}

// WithAuditSink sets where audit events go when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the service logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the clock used for timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, selects the backend once and wires every
// component.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- BACKEND --------
	backend := b.backend
	backendName := "custom"
	if backend == nil {
		switch cfg.Storage.Backend {
		case BackendRedis:
			if b.redis == nil {
				return nil, errors.New("redis backend requires a redis client")
			}
			backend = kv.New(b.redis, cfg.Storage.RedisPrefix)
		default:
			backend = localfile.New(cfg.Storage.FilePath)
		}
		backendName = cfg.Storage.Backend
	}

	svc := &Service{
		config:      cloneConfig(cfg),
		backendName: backendName,
		gate:        capability.NewGate(keys.NewHasher(cfg.Keys.Secret), keys.NewAdminKey(cfg.Keys.AdminKey)),
		audit:       audit.NewDispatcher(audit.Config(cfg.Audit), b.auditSink),
		metrics:     NewMetrics(cfg.Metrics),
		logger:      b.logger.With().Str("component", "sessions").Logger(),
		now:         now,
	}

	// -------- SESSION STORE --------
	svc.store = session.NewStore(backend, session.Options{
		MaxAttempts:     cfg.Update.MaxAttempts,
		InitialInterval: cfg.Update.InitialBackoff,
		MaxInterval:     cfg.Update.MaxBackoff,
		Now:             now,
		OnConflict: func(id string, attempt uint) {
			svc.metricInc(MetricUpdateConflictRetry)
			svc.logger.Debug().Str("session_id", id).Uint("attempt", attempt).Msg("session update conflict, retrying")
		},
	})

	// -------- RATE LIMITER --------
	if cfg.RateLimit.Enabled {
		limits := rate.Config{
			MaxAttempts: cfg.RateLimit.MaxCreates,
			Window:      cfg.RateLimit.Window,
			Prefix:      cfg.RateLimit.RedisKey,
		}
		if b.redis != nil {
			svc.limiter = rate.NewRedis(b.redis, limits)
		} else {
			svc.limiter = rate.NewMemory(limits)
		}
	}

	if svc.gate.Hasher().Default() {
		svc.logger.Warn().Msg("no key secret configured, using the development default")
	}

	b.built = true

	return svc, nil
}

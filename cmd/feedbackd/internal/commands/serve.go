package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
	"github.com/Quisharoo/manager-feedback-questions-sub000/internal/api"
	"github.com/Quisharoo/manager-feedback-questions-sub000/internal/logger"
	"github.com/Quisharoo/manager-feedback-questions-sub000/internal/telemetry"
	otelexport "github.com/Quisharoo/manager-feedback-questions-sub000/metrics/export/otel"
	"github.com/Quisharoo/manager-feedback-questions-sub000/metrics/export/prometheus"
)

type ServeCmd struct {
	Listen  string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"FEEDBACK_LISTEN"`
	BaseURL string `help:"public base URL used to build capability links" default:"" env:"FEEDBACK_BASE_URL"`

	CORSOrigins []string `help:"allowed CORS origins for the browser front-end" env:"FEEDBACK_CORS_ORIGINS"`
	TrustProxy  bool     `help:"take client addresses from X-Forwarded-For/X-Real-IP; only behind a proxy that sets them" default:"false" env:"FEEDBACK_TRUST_PROXY"`

	Store StoreFlags `embed:"" prefix:"store-"`
	Keys  KeyFlags   `embed:"" prefix:"keys-"`

	UpdateAttempts uint          `help:"attempts per session update before reporting a conflict" default:"5" env:"FEEDBACK_UPDATE_ATTEMPTS"`
	RateLimit      int           `help:"session creations allowed per client IP per window; 0 disables" default:"20" env:"FEEDBACK_RATE_LIMIT"`
	RateWindow     time.Duration `help:"rate limit window" default:"10m" env:"FEEDBACK_RATE_WINDOW"`

	Metrics     bool `help:"expose /metrics" default:"true" negatable:"" env:"FEEDBACK_METRICS"`
	Audit       bool `help:"write audit events to the log" default:"true" negatable:"" env:"FEEDBACK_AUDIT"`
	TouchOnRead bool `help:"refresh lastAccess on every authorized read" default:"true" negatable:"" env:"FEEDBACK_TOUCH_ON_READ"`

	OTLP         bool          `help:"push metrics over OTLP/gRPC, configured by the OTEL_EXPORTER_OTLP_* variables" default:"false" env:"FEEDBACK_OTLP"`
	OTLPInterval time.Duration `help:"OTLP push interval" default:"10s" env:"FEEDBACK_OTLP_INTERVAL"`
}

func (c *ServeCmd) config() feedback.Config {
	cfg := feedback.DefaultConfig()
	c.Store.apply(&cfg)
	cfg.Keys.Secret = c.Keys.Secret
	cfg.Keys.AdminKey = c.Keys.AdminKey
	cfg.Links.BaseURL = c.BaseURL
	cfg.Update.MaxAttempts = c.UpdateAttempts
	cfg.RateLimit.Enabled = c.RateLimit > 0
	cfg.RateLimit.MaxCreates = c.RateLimit
	cfg.RateLimit.Window = c.RateWindow
	cfg.Metrics.Enabled = c.Metrics
	cfg.Metrics.EnableLatencyHistograms = c.Metrics
	cfg.Audit.Enabled = c.Audit
	cfg.Read.TouchOnRead = c.TouchOnRead
	return cfg
}

func (c *ServeCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Str("store", c.Store.Type).Msg("Starting server")

	rdb, err := c.Store.redisClient(ctx, log)
	if err != nil {
		return err
	}

	builder := feedback.New().
		WithConfig(c.config()).
		WithLogger(log).
		WithAuditSink(feedback.NewLogSink(log))
	if rdb != nil {
		defer rdb.Close()
		builder = builder.WithRedis(rdb)
	}

	svc, err := builder.Build()
	if err != nil {
		return err
	}
	defer svc.Close()

	if c.OTLP {
		shutdown, err := c.startOTLP(ctx, log, globals.Version, svc)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	if !svc.AdminConfigured() {
		log.Warn().Msg("no admin key configured, admin operations are disabled")
	}

	opts := api.Options{
		Service:        svc,
		Logger:         log,
		AllowedOrigins: c.CORSOrigins,
		TrustProxy:     c.TrustProxy,
	}
	if c.Metrics {
		opts.Metrics = prometheus.NewPrometheusExporter(svc).Handler()
	}

	srv := configureHTTPServer(c.Listen, api.NewRouter(opts))

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (c *ServeCmd) startOTLP(ctx context.Context, log zerolog.Logger, version string, svc *feedback.Service) (func(), error) {
	mp, err := telemetry.InitMetrics(ctx, log, "feedbackd", version, c.OTLPInterval)
	if err != nil {
		return nil, err
	}
	exporter, err := otelexport.NewOTelExporter(mp.Meter("feedback"), svc)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}

	return func() {
		_ = exporter.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metric provider shutdown")
		}
	}, nil
}

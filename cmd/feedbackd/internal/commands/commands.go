package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
	"github.com/Quisharoo/manager-feedback-questions-sub000/storage/kv"
)

type Globals struct {
	Debug   bool
	Version string
}

// StoreFlags selects and locates the session backend.
type StoreFlags struct {
	Type        string `help:"session store type (file or redis)" default:"file" env:"FEEDBACK_STORE" enum:"file,redis"`
	File        string `help:"path of the session document for the file store" default:"data/sessions.json" env:"FEEDBACK_STORE_FILE"`
	RedisURL    string `help:"redis connection URL" default:"redis://localhost:6379/0" env:"FEEDBACK_REDIS_URL"`
	RedisPrefix string `help:"redis key prefix for session records" default:"session" env:"FEEDBACK_REDIS_PREFIX"`
}

// KeyFlags carries the server secrets.
type KeyFlags struct {
	Secret   string `help:"HMAC secret for capability digests; a development default is used when empty" env:"FEEDBACK_KEY_SECRET"`
	AdminKey string `help:"admin bearer credential; empty disables admin operations" env:"FEEDBACK_ADMIN_KEY"`
}

func (s StoreFlags) apply(cfg *feedback.Config) {
	cfg.Storage.Backend = s.Type
	cfg.Storage.FilePath = s.File
	cfg.Storage.RedisPrefix = s.RedisPrefix
}

// redisClient connects to Redis when the redis store is selected. It returns
// nil for the file store.
func (s StoreFlags) redisClient(ctx context.Context, log zerolog.Logger) (*redis.Client, error) {
	if s.Type != feedback.BackendRedis {
		return nil, nil
	}
	client, err := kv.NewClient(s.RedisURL)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info().Str("prefix", s.RedisPrefix).Msg("connected to redis")
	return client, nil
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

//go:build integration
// +build integration

package test

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
	"github.com/Quisharoo/manager-feedback-questions-sub000/validation"
)

const (
	integrationSecret   = "integration-secret-0123456789"
	integrationAdminKey = "integration-admin-0123456789"
)

// redisMode describes which Redis backend the compatibility suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the set of Redis backends to test.
// miniredis is always available.
// Real Redis standalone is used when REDIS_ADDR is set (e.g. "127.0.0.1:6379").
// Sentinel is used when REDIS_SENTINEL_ADDRS is set. Cluster is not covered:
// the session backend updates the record and its index in one script, so
// both keys must live in the same slot.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				// Flush the test DB to avoid state leaking between runs.
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	if addrs := os.Getenv("REDIS_SENTINEL_ADDRS"); addrs != "" {
		master := os.Getenv("REDIS_SENTINEL_MASTER")
		if master == "" {
			master = "mymaster"
		}
		modes = append(modes, redisMode{
			name: "sentinel",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewFailoverClient(&redis.FailoverOptions{
					MasterName:    master,
					SentinelAddrs: splitAddrs(addrs),
				})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis sentinel: %v", err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

func baseConfig() feedback.Config {
	cfg := feedback.DefaultConfig()
	cfg.Keys.Secret = integrationSecret
	cfg.Keys.AdminKey = integrationAdminKey
	cfg.Links.BaseURL = "https://feedback.example.com"
	cfg.Audit.Enabled = false
	cfg.RateLimit.Enabled = false
	cfg.Update.MaxAttempts = 50
	return cfg
}

func newRedisService(t *testing.T, rdb redis.UniversalClient) *feedback.Service {
	t.Helper()
	cfg := baseConfig()
	cfg.Storage.Backend = feedback.BackendRedis
	cfg.Storage.RedisPrefix = "it"

	svc, err := feedback.New().WithConfig(cfg).WithRedis(rdb).Build()
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func newFileService(t *testing.T) *feedback.Service {
	t.Helper()
	cfg := baseConfig()
	cfg.Storage.Backend = feedback.BackendFile
	cfg.Storage.FilePath = t.TempDir() + "/sessions.json"

	svc, err := feedback.New().WithConfig(cfg).Build()
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

type capLinks struct {
	id   string
	edit string
	view string
}

func createCap(t *testing.T, svc *feedback.Service, name string) capLinks {
	t.Helper()
	view, err := svc.Create(context.Background(), feedback.RouteCapSessions, feedback.Caller{IP: "198.51.100.7"}, validation.CreateRequest{Name: name})
	require.NoError(t, err)
	require.NotNil(t, view.Links)

	edit, err := url.Parse(view.Links.Edit)
	require.NoError(t, err)
	viewURL, err := url.Parse(view.Links.View)
	require.NoError(t, err)
	return capLinks{
		id:   edit.Query().Get("capsession"),
		edit: edit.Query().Get("key"),
		view: viewURL.Query().Get("key"),
	}
}

func answer(question, value string) validation.PatchRequest {
	return validation.PatchRequest{
		Action:   "setAnswer",
		Question: &validation.QuestionInput{Text: question},
		Value:    &value,
	}
}

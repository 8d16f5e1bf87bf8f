package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alecthomas/kong"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
	"github.com/Quisharoo/manager-feedback-questions-sub000/validation"
)

var cli struct {
	Sessions    int    `help:"number of sessions to seed" default:"200"`
	Concurrency int    `help:"number of concurrent workers" default:"64"`
	Ops         int    `help:"operations per phase (read + patch)" default:"20000"`
	RedisAddr   string `help:"redis address; miniredis is used when empty" env:"REDIS_ADDR"`
	Prefix      string `help:"session key prefix" default:"loadtest"`
	Attempts    uint   `help:"update attempts before a conflict is reported" default:"50"`
}

type sessionState struct {
	id   string
	edit string
	view string
	// written counts successful setAnswer patches.
	written atomic.Int64
}

func main() {
	kong.Parse(&cli, kong.Name("feedback-loadtest"), kong.Description("Concurrent read/patch load against the session store."))

	if cli.Sessions <= 0 || cli.Concurrency <= 0 || cli.Ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := cli.RedisAddr
	var cleanup func()
	var client redis.UniversalClient
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := feedback.DefaultConfig()
	cfg.Storage.Backend = feedback.BackendRedis
	cfg.Storage.RedisPrefix = cli.Prefix
	cfg.RateLimit.Enabled = false
	cfg.Audit.Enabled = false
	cfg.Read.TouchOnRead = false
	cfg.Update.MaxAttempts = cli.Attempts

	svc, err := feedback.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	states := make([]*sessionState, cli.Sessions)
	fmt.Printf("seeding %d sessions...\n", cli.Sessions)
	startSeed := time.Now()
	for i := range states {
		view, err := svc.Create(ctx, feedback.RouteCapSessions, feedback.Caller{}, validation.CreateRequest{Name: fmt.Sprintf("load %d", i)})
		if err != nil {
			fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = &sessionState{id: view.ID, edit: keyOf(view.Links.Edit), view: keyOf(view.Links.View)}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	readStats := runPhase(cli.Ops, cli.Concurrency, func(r *rand.Rand, _ int) error {
		s := states[r.Intn(len(states))]
		_, err := svc.Get(ctx, feedback.RouteCapSessions, feedback.Caller{Key: s.view}, s.id)
		return err
	})

	patchStats := runPhase(cli.Ops, cli.Concurrency, func(r *rand.Rand, op int) error {
		s := states[r.Intn(len(states))]
		value := "answer"
		_, err := svc.Patch(ctx, feedback.RouteCapSessions, feedback.Caller{Key: s.edit}, s.id, validation.PatchRequest{
			Action:   "setAnswer",
			Question: &validation.QuestionInput{Text: fmt.Sprintf("q-%d", op)},
			Value:    &value,
		})
		if err == nil {
			s.written.Add(1)
		}
		return err
	})

	lost := verify(ctx, svc, states)

	fmt.Println("---- results ----")
	printStats("read", readStats)
	printStats("patch", patchStats)
	snapshot := svc.MetricsSnapshot()
	fmt.Printf("conflict retries=%d exhausted=%d lost answers=%d\n",
		snapshot.Counters[feedback.MetricUpdateConflictRetry],
		snapshot.Counters[feedback.MetricUpdateConflictExhausted],
		lost)
	if lost > 0 {
		os.Exit(1)
	}
}

func keyOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Query().Get("key")
}

// verify compares every session's stored answers with the patches that
// reported success.
func verify(ctx context.Context, svc *feedback.Service, states []*sessionState) int64 {
	var lost int64
	for _, s := range states {
		view, err := svc.Get(ctx, feedback.RouteCapSessions, feedback.Caller{Key: s.view}, s.id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "verify %s: %v\n", s.id, err)
			lost += s.written.Load()
			continue
		}
		if missing := s.written.Load() - int64(len(view.Answers)); missing > 0 {
			lost += missing
		}
	}
	return lost
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

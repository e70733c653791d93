// Command credkit-loadtest hammers the reset-code store and the rate limiter
// from many goroutines and reports throughput, latency percentiles and any
// single-use or ceiling violations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/credkit/internal/rate"
	"github.com/MrEthical07/credkit/internal/stores"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		codes       = flag.Int("codes", 20000, "number of reset codes to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		clients     = flag.Int("clients", 64, "distinct client keys for the limiter phase")
		limit       = flag.Int("limit", 100, "requests allowed per client per window")
		backend     = flag.String("backend", "redis", "store backend: redis or memory")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "credkit-load", "redis key prefix")
	)
	flag.Parse()

	if *codes <= 0 || *concurrency <= 0 || *ops <= 0 || *clients <= 0 || *limit <= 0 {
		fmt.Fprintln(os.Stderr, "codes, concurrency, ops, clients, and limit must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()
	limiterCfg := rate.Config{Requests: *limit, Window: time.Hour}

	var (
		codeBackend stores.Backend
		limiter     rate.Limiter
		cleanup     = func() {}
	)
	switch *backend {
	case "memory":
		mem := stores.NewMemoryBackend()
		ml, err := rate.NewMemoryLimiter(limiterCfg, nil)
		if err != nil {
			fail("limiter", err)
		}
		codeBackend, limiter = mem, ml
		cleanup = func() {
			mem.Close()
			ml.Close()
		}
		fmt.Println("using in-memory backend")
	case "redis":
		client, closeFn := openRedis(*redisAddr)
		rl, err := rate.NewRedisLimiter(client, *prefix+":rl", limiterCfg, nil)
		if err != nil {
			fail("limiter", err)
		}
		codeBackend, limiter = stores.NewRedisBackend(client, *prefix+":rc"), rl
		cleanup = closeFn
	default:
		fmt.Fprintf(os.Stderr, "unknown backend %q\n", *backend)
		os.Exit(2)
	}
	defer cleanup()

	store := stores.NewResetCodeStore(codeBackend, nil)

	fmt.Printf("seeding %d reset codes...\n", *codes)
	startSeed := time.Now()
	seeded := make([]string, *codes)
	for i := range seeded {
		code, err := store.Generate(ctx, fmt.Sprintf("user-%d", i), fmt.Sprintf("user-%d@example.com", i), time.Hour)
		if err != nil {
			fail("generate", err)
		}
		seeded[i] = code
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	consumeStats, violations := runConsumePhase(ctx, store, seeded, *ops, *concurrency)
	limitStats, overLimit := runLimiterPhase(ctx, limiter, *clients, *limit, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("consume", consumeStats)
	printStats("ratelimit", limitStats)
	fmt.Printf("single-use violations=%d clients-over-limit=%d\n", violations, overLimit)
	if violations > 0 || overLimit > 0 {
		os.Exit(1)
	}
}

func openRedis(addr string) (redis.UniversalClient, func()) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fail("miniredis", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }
}

// runConsumePhase redeems random seeded codes concurrently. Every code may be
// accepted at most once; each extra acceptance counts as a violation.
func runConsumePhase(ctx context.Context, store *stores.ResetCodeStore, codes []string, ops, concurrency int) (phaseStats, int64) {
	var (
		wg         sync.WaitGroup
		cursor     int64
		failures   int64
		violations int64
		accepted   = make([]int32, len(codes))
		latencies  = make([]time.Duration, 0, ops)
		mu         sync.Mutex
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
				idx := r.Intn(len(codes))
				t0 := time.Now()
				_, err := store.ValidateAndConsume(ctx, codes[idx])
				d := time.Since(t0)
				switch {
				case err == nil:
					if atomic.AddInt32(&accepted[idx], 1) > 1 {
						atomic.AddInt64(&violations, 1)
					}
				case !errors.Is(err, stores.ErrInvalidOrExpired):
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures), violations
}

// runLimiterPhase spreads calls over a fixed set of client keys and counts
// how many clients were allowed more than the ceiling within one window.
func runLimiterPhase(ctx context.Context, limiter rate.Limiter, clients, limit, ops, concurrency int) (phaseStats, int) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		allowed   = make([]int64, clients)
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(clients)
				t0 := time.Now()
				ok, err := limiter.CheckAndRecord(ctx, fmt.Sprintf("client-%d", idx))
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else if ok {
					atomic.AddInt64(&allowed[idx], 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	over := 0
	for _, n := range allowed {
		if n > int64(limit) {
			over++
		}
	}
	return computeStats(time.Since(start), latencies, failures), over
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
	return samples[(len(samples)-1)*p/100]
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

func fail(stage string, err error) {
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", stage, err)
	os.Exit(1)
}

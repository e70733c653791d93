// Command credkit-server exposes the credential engine over JSON HTTP.
//
// Process settings come from the environment (LISTEN_ADDR, REDIS_ADDR,
// DATABASE_URL, LOG_LEVEL, LOG_JSON, SHUTDOWN_TIMEOUT, DEV_LOG_RESET_CODES).
// Engine settings are read from CREDKIT_* variables, see credkit.ApplyEnv.
//
// Without REDIS_ADDR an embedded miniredis instance backs the code, state,
// revocation and limiter stores. Without DATABASE_URL users are kept in
// memory. No mail transport is wired: reset codes are dropped unless
// DEV_LOG_RESET_CODES=true writes them to the log for local development.
//
// Run:
//
//	CREDKIT_TOKEN_SECRET=$(openssl rand -hex 32) DEV_LOG_RESET_CODES=true go run ./cmd/credkit-server
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/credkit"
	"github.com/MrEthical07/credkit/userstore/memstore"
	"github.com/MrEthical07/credkit/userstore/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type settings struct {
	ListenAddr       string        `envconfig:"LISTEN_ADDR" default:":8080"`
	RedisAddr        string        `envconfig:"REDIS_ADDR"`
	DatabaseURL      string        `envconfig:"DATABASE_URL"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON          bool          `envconfig:"LOG_JSON"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	DevLogResetCodes bool          `envconfig:"DEV_LOG_RESET_CODES"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := envconfig.Process("", &s); err != nil {
		return settings{}, err
	}
	return s, nil
}

func main() {
	s, err := loadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		os.Exit(2)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "credkit",
		Level:      hclog.LevelFromString(s.LogLevel),
		JSONFormat: s.LogJSON,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, s, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, s settings, logger hclog.Logger) error {
	cfg := credkit.DefaultConfig()
	if err := credkit.ApplyEnv(&cfg, "CREDKIT"); err != nil {
		return err
	}

	rdb, closeRedis, err := openRedis(s.RedisAddr, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	users, closeUsers, err := openUsers(ctx, s.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer closeUsers()

	engine, err := credkit.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithResetCodeSender(newResetSender(s.DevLogResetCodes, logger.Named("delivery"))).
		WithAuditSink(credkit.NewLoggerSink(logger.Named("audit"))).
		WithLogger(logger.Named("engine")).
		Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           newRouter(engine, logger.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", s.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openRedis(addr string, logger hclog.Logger) (redis.UniversalClient, func(), error) {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("miniredis: %w", err)
		}
		logger.Warn("REDIS_ADDR not set, using embedded miniredis", "addr", mr.Addr())
		addr = mr.Addr()
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	return client, func() { _ = client.Close() }, nil
}

func openUsers(ctx context.Context, dsn string, logger hclog.Logger) (credkit.UserProvider, func(), error) {
	if dsn == "" {
		logger.Warn("DATABASE_URL not set, users are kept in memory")
		return memstore.New(), func() {}, nil
	}

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return postgres.New(db), func() { _ = db.Close() }, nil
}

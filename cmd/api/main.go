package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/luxwatch/storefront/internal/config"
	"github.com/luxwatch/storefront/internal/identity"
	"github.com/luxwatch/storefront/internal/infra"
	"github.com/luxwatch/storefront/internal/logging"
	"github.com/luxwatch/storefront/internal/server"
)

func main() {
	seed := flag.Bool("seed", false, "create the identities table, load the fixture accounts and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.Env)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		store := identity.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("ensure identity schema", "error", err)
			os.Exit(1)
		}
		if *seed {
			n, err := store.Seed(ctx, identity.DefaultFixtures()...)
			if err != nil {
				logger.Error("seed identities", "error", err)
				os.Exit(1)
			}
			logger.Info("identities seeded", "inserted", n)
			return
		}
	} else {
		if *seed {
			logger.Error("seed requires DATABASE_URL")
			os.Exit(1)
		}
		logger.Warn("DATABASE_URL not set, using fixture accounts")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("REDIS_URL not set, session will not survive restarts")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := server.New(cfg, db, cache, reg, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}
	logger.Info("session ready", "state", string(srv.Manager().Session().State()))

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

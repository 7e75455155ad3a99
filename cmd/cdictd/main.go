// SPDX-License-Identifier: MIT

// cdictd serves a cache backend over HTTP so several machines can share
// one store through the http cache backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/davips/cdict/cache"
	"github.com/davips/cdict/internal/api"
	"github.com/davips/cdict/internal/config"
	"github.com/davips/cdict/internal/daemon"
	"github.com/davips/cdict/internal/log"
	"github.com/davips/cdict/internal/telemetry"
	"github.com/davips/cdict/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cdictd %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cdictd: %v\n", err)
		os.Exit(1)
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: "cdictd"})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("addr", cfg.Listen).
		Str(log.FieldBackend, cfg.Backend).
		Msg("starting cdictd")

	if cfg.APIToken == "" {
		logger.Warn().Msg("API token not configured, mutating endpoints are open. Set CDICT_API_TOKEN to require auth.")
	}

	store, err := openStore(cfg, log.WithComponent("cache"))
	if err != nil {
		logger.Fatal().Err(err).Str("event", "store.open_failed").Msg("failed to open store")
	}

	srv := api.New(cfg, store)

	mgr, err := daemon.NewManager(cfg, srv.Handler())
	if err != nil {
		logger.Fatal().Err(err).Str("event", "manager.creation.failed").Msg("failed to create daemon manager")
	}
	mgr.RegisterShutdownHook("store", func(context.Context) error {
		return store.Close()
	})

	if cfg.OTLPEndpoint != "" {
		provider, err := telemetry.NewProvider(ctx, telemetry.Config{
			Enabled:        true,
			ServiceName:    "cdictd",
			ServiceVersion: version.Version,
			ExporterType:   cfg.OTLPProtocol,
			Endpoint:       cfg.OTLPEndpoint,
			SamplingRate:   1.0,
		})
		if err != nil {
			logger.Fatal().Err(err).Str("event", "telemetry.init_failed").Msg("failed to initialize tracing")
		}
		mgr.RegisterShutdownHook("telemetry", provider.Shutdown)
		logger.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("tracing enabled")
	}

	// Hot reload currently adjusts the log level; backend changes need a
	// restart since open handles cannot be swapped under live requests.
	holder := config.NewHolder(cfg, *configPath)
	reloads := make(chan config.Config, 1)
	holder.RegisterListener(reloads)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-reloads:
				if lvl, err := zerolog.ParseLevel(next.LogLevel); err == nil {
					zerolog.SetGlobalLevel(lvl)
					logger.Info().Str("level", next.LogLevel).Msg("log level updated")
				}
			}
		}
	}()
	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Msg("config watcher unavailable, reload on change disabled")
	}
	mgr.RegisterShutdownHook("config-watcher", func(context.Context) error {
		holder.Stop()
		return nil
	})

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().Err(err).Str("event", "manager.failed").Msg("daemon failed")
	}

	logger.Info().Msg("server exiting")
}

// openStore opens the configured backend and applies the decorators.
// TTL only reaches backends with native expiry; the others keep entries
// until deleted.
func openStore(cfg config.Config, logger zerolog.Logger) (cache.Cache, error) {
	var (
		store cache.Cache
		err   error
	)
	switch {
	case cfg.TTL > 0 && (cfg.Backend == "" || cfg.Backend == "memory"):
		store = cache.NewMemoryTTL(cfg.TTL, cfg.TTL/2)
	case cfg.TTL > 0 && cfg.Backend == "badger":
		store, err = cache.OpenBadgerTTL(cfg.Target, cfg.TTL)
	case cfg.TTL > 0 && cfg.Backend == "redis":
		store, err = cache.NewRedis(cache.RedisConfig{Addr: cfg.Target, TTL: cfg.TTL}, logger)
	default:
		if cfg.TTL > 0 {
			logger.Warn().Str(log.FieldBackend, cfg.Backend).Msg("backend has no native expiry, ttl ignored")
		}
		store, err = cache.Open(cfg.Backend, cfg.Target, logger)
	}
	if err != nil {
		return nil, err
	}

	if cfg.WriteRPS > 0 {
		store = cache.Throttled(store, cfg.WriteRPS, cfg.WriteBurst)
	}
	if cfg.Verify {
		store = cache.Verified(store)
	}
	return store, nil
}

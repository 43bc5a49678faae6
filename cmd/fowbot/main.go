/*
 * file: main.go
 * package: main
 * description:
 *     Entry point. Wires configuration, logging, the database, the VK
 *     messaging client, the ingestion pipeline, the GameEngine/Router,
 *     the leaderboard cache, and the public HTTP surface, then runs
 *     them under a single supervised errgroup until shutdown.
 */

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kts-backend/fow-bot/internal/adapters/db"
	"github.com/kts-backend/fow-bot/internal/adapters/httpapi"
	"github.com/kts-backend/fow-bot/internal/adapters/vkapi"
	"github.com/kts-backend/fow-bot/internal/cache"
	"github.com/kts-backend/fow-bot/internal/config"
	"github.com/kts-backend/fow-bot/internal/ingest"
	"github.com/kts-backend/fow-bot/internal/infra/repository"
	"github.com/kts-backend/fow-bot/internal/logging"
	"github.com/kts-backend/fow-bot/internal/core/services"
)

func main() {
	cfg := &config.Config{}
	cmd := config.NewCommand(cfg, run)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	log := logging.Configure(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	gdb, err := db.Connect(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		return err
	}
	store := repository.New(gdb)

	leaderboard := cache.New(store, cfg.RedisAddr, cfg.LeaderboardTTL)
	defer leaderboard.Close()
	cachedStore := cache.WrapStore(store, leaderboard)

	messaging := vkapi.NewClient(cfg.BotGroupID, cfg.BotToken, cfg.LongPollWait, cfg.SendTimeout, log)

	engine := services.NewGameEngine(cachedStore, messaging, leaderboard, log)
	router := services.NewRouter(cachedStore, messaging, engine, log)
	limiter := services.NewRateLimiterRegistry(cfg.RateCapacity, cfg.RateRefillPerSecond)

	queue := ingest.NewUpdateQueue(cfg.QueueCapacity)
	poller := ingest.NewPoller(messaging, queue, cfg.SendTimeout, log)
	workers := ingest.NewWorkerPool(queue, router, limiter, cfg.Workers, log)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(leaderboard),
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := poller.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return workers.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		return httpServer.Shutdown(context.Background())
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("public http surface listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("fatal error, shutting down")
		return err
	}
	return nil
}

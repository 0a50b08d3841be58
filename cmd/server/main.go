package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/partyroom/internal/config"
	"github.com/playperu/partyroom/internal/database"
	"github.com/playperu/partyroom/internal/game"
	"github.com/playperu/partyroom/internal/handler/health"
	"github.com/playperu/partyroom/internal/migrations"
	"github.com/playperu/partyroom/internal/play"
	"github.com/playperu/partyroom/internal/roomstore"
	"github.com/playperu/partyroom/internal/server"
	"github.com/playperu/partyroom/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.OTelServiceName)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Game ---
	rng, err := game.NewRand()
	if err != nil {
		return fmt.Errorf("seeding random source: %w", err)
	}
	bank, err := game.LoadBank(rng)
	if err != nil {
		return fmt.Errorf("loading question bank: %w", err)
	}
	sqlite := roomstore.NewSQLite(db)
	store := roomstore.New(sqlite, logger)
	svc := play.NewService(store, bank, rng, logger)
	sched := play.NewScheduler(svc, logger, cfg.SchedulerTick)
	svc.OnStarted(sched.Attach)

	host, err := server.NewHostAuth(db, cfg.HostUsername, cfg.HostPassword, bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Service: svc,
		Store:   store,
		Host:    host,
		Checks: map[string]health.Checker{
			"sqlite": health.CheckerFunc(sqlite.Ping),
			"schema": health.CheckerFunc(func(ctx context.Context) error { return migrations.Check(ctx, db) }),
		},
		SPADir: cfg.SPADir,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		if err := sched.Resume(gctx); err != nil {
			return fmt.Errorf("resuming rooms: %w", err)
		}
		return sched.Run(gctx)
	})

	g.Go(func() error {
		return svc.RunReaper(gctx, cfg.RoomIdleTimeout/4, cfg.RoomIdleTimeout)
	})

	return g.Wait()
}

// Package main is the entry point for the craps server.
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

	"github.com/alecthomas/kong"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"craps-server/internal/bot"
	"craps-server/internal/config"
	"craps-server/internal/game"
	"craps-server/internal/game/table"
	"craps-server/internal/pkg/db"
	"craps-server/internal/pkg/lock"
	"craps-server/internal/realtime"
	"craps-server/internal/repository"
	"craps-server/internal/service"
	httptransport "craps-server/internal/transport/http"
)

var cli struct {
	Config string `help:"directory holding config.yaml" default:"config" type:"path"`
	Debug  bool   `help:"enable debug logging"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"run the HTTP API, realtime hub and Telegram bot"`
	Migrate MigrateCmd `cmd:"" help:"apply database migrations and exit"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("crapsd"),
		kong.Description("Multiplayer craps server"),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Server.LogLevel, cli.Debug)
	log.Info().Msg("Configuration loaded successfully")

	if err := ctx.Run(cfg); err != nil {
		log.Fatal().Err(err).Str("command", ctx.Command()).Msg("Command failed")
	}
}

func setupLogger(level string, debug bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(lvl)
}

// MigrateCmd applies the schema.
type MigrateCmd struct{}

func (cmd *MigrateCmd) Run(cfg *config.Config) error {
	ctx := context.Background()
	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	return repository.Migrate(ctx, pool.Pool)
}

// ServeCmd runs the server until SIGINT or SIGTERM.
type ServeCmd struct {
	SkipMigrate bool `help:"do not apply migrations on start"`
}

func (cmd *ServeCmd) Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if !cmd.SkipMigrate {
		if err := repository.Migrate(ctx, pool.Pool); err != nil {
			return err
		}
	}

	trManager, err := manager.New(trmpgx.NewDefaultFactory(pool.Pool))
	if err != nil {
		return fmt.Errorf("failed to create tx manager: %w", err)
	}

	// Repositories
	userRepo := repository.NewUserRepository(pool.Pool)
	txRepo := repository.NewTransactionRepository(pool.Pool)
	statsRepo := repository.NewStatsRepository(pool.Pool)
	boostRepo := repository.NewBoostRepository(pool.Pool)
	claimRepo := repository.NewClaimRepository(pool.Pool)
	membershipRepo := repository.NewMembershipRepository(pool.Pool)

	// Services
	accountService := service.NewAccountService(
		userRepo,
		txRepo,
		trManager,
		lock.New[int64](),
		cfg.Craps.StartingBalance,
		cfg.Balance.ReconcilePolicy,
	)
	boostService := service.NewBoostService(boostRepo, accountService, trManager)
	statsService := service.NewStatsService(statsRepo, boostService, accountService, cfg.Craps.JackpotSeed, cfg.Craps.JackpotRate)
	rankingService := service.NewRankingService(userRepo, txRepo, statsRepo, time.Local)
	claimService := service.NewClaimService(claimRepo, accountService, trManager, cfg.Daily.Reward, cfg.Daily.Cooldown())
	membershipService := service.NewMembershipService(membershipRepo)

	syncer := service.NewBalanceSyncer(accountService, service.SyncPolicy{
		Attempts: cfg.Balance.SyncAttempts,
		Initial:  cfg.Balance.SyncInitial,
		Max:      cfg.Balance.SyncMax,
	})

	// Tables
	hub := realtime.NewHub(cfg.Realtime.BufferSize)
	hooks := table.NewServiceHooks(syncer, statsService)
	rooms := table.NewManager(table.Config{
		BettingDuration: cfg.Craps.BettingDuration(),
		BroadcastEvery:  cfg.Craps.BroadcastEverySeconds,
		HistoryLimit:    cfg.Craps.HistoryDisplayLimit,
		MaxSeats:        cfg.Craps.MaxSeats,
	}, quartz.NewReal(), game.NewRandomRoller(), hub, hooks)
	accountService.SetSeatWallet(rooms)

	router := httptransport.NewRouter(httptransport.Deps{
		Server:       cfg.Server,
		Realtime:     cfg.Realtime.Enabled,
		HistoryLimit: cfg.Craps.HistoryDisplayLimit,
		AccessLog:    os.Stdout,
		Accounts:     accountService,
		Stats:        statsService,
		Rankings:     rankingService,
		Boosts:       boostService,
		Memberships:  membershipService,
		Claims:       claimService,
		DB:           pool,
		Rooms:        rooms,
		Hub:          hub,
	})
	httptransport.LogRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var telegramBot *bot.Bot
	if cfg.Bot.Token != "" {
		telegramBot, err = bot.New(&bot.Dependencies{
			Config:         cfg,
			AccountService: accountService,
			RankingService: rankingService,
			StatsService:   statsService,
			ClaimService:   claimService,
			BoostService:   boostService,
			Rooms:          rooms,
			Hub:            hub,
		})
		if err != nil {
			return err
		}
	} else {
		log.Info().Msg("Bot token not set, Telegram bot disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.Server.BasePath).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if telegramBot != nil {
			telegramBot.Stop()
		}
		return srv.Shutdown(shutdownCtx)
	})

	if telegramBot != nil {
		g.Go(func() error {
			telegramBot.Start()
			return nil
		})
	}

	g.Go(func() error {
		return syncer.Run(gctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := boostService.CleanExpired(gctx)
				if err != nil {
					log.Warn().Err(err).Msg("Failed to clean expired boosts")
					continue
				}
				if n > 0 {
					log.Debug().Int64("removed", n).Msg("Expired boosts cleaned")
				}
			}
		}
	})

	err = g.Wait()
	log.Info().Msg("Shutting down tables")

	// Unseating every player queues their final balances.
	rooms.Close()
	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := hooks.Wait(flushCtx); err != nil {
		log.Warn().Err(err).Msg("Timed out waiting for stats writes")
	}
	syncer.Flush(flushCtx)

	log.Info().Msg("Server stopped gracefully")
	return err
}

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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/agreement"
	"github.com/shinyyama/agri-market-backend/internal/ai"
	"github.com/shinyyama/agri-market-backend/internal/config"
	"github.com/shinyyama/agri-market-backend/internal/db"
	"github.com/shinyyama/agri-market-backend/internal/logging"
	appmw "github.com/shinyyama/agri-market-backend/internal/middleware"
	"github.com/shinyyama/agri-market-backend/internal/realtime"
	"github.com/shinyyama/agri-market-backend/internal/repository"
	"github.com/shinyyama/agri-market-backend/internal/server"
	"github.com/shinyyama/agri-market-backend/internal/service"
	"github.com/shinyyama/agri-market-backend/internal/worker"
)

// set with -ldflags at build time
var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(conn); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	hub := realtime.NewHub(log)
	var broadcaster realtime.Broadcaster = hub
	if cfg.RedisURL != "" {
		rb, err := realtime.NewRedisBroadcaster(ctx, cfg.RedisURL, hub, log)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rb.Close()
		go func() {
			if err := rb.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("redis subscriber stopped")
			}
		}()
		broadcaster = rb
	}

	repos := repository.NewRepositories(conn)
	uow := repository.NewUnitOfWork(conn)
	relay := service.NewEventRelay(repos.Events, broadcaster, log)
	notify := service.NewNotificationService(repos.Notifications, log)

	var archiver service.AgreementArchiver
	if cfg.StorageBucket != "" {
		a, err := agreement.NewArchiver(ctx, cfg.StorageBucket, cfg.GoogleCredentialsFile)
		if err != nil {
			return fmt.Errorf("agreement archiver: %w", err)
		}
		defer a.Close()
		archiver = a
	} else {
		log.Warn().Msg("STORAGE_BUCKET not set, orders are created without agreement documents")
	}

	var advisor service.PriceAdvisor
	pa, err := ai.NewPriceAdvisor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		return fmt.Errorf("price advisor: %w", err)
	}
	if pa != nil {
		advisor = pa
	}

	authMw, err := appmw.NewAuthMiddleware(ctx, cfg.FirebaseProjectID, cfg.GoogleCredentialsFile)
	if err != nil {
		return fmt.Errorf("firebase auth: %w", err)
	}

	negotiations := service.NewNegotiationService(repos, uow, relay, notify, service.NegotiationOptions{
		TTL:         cfg.NegotiationTTL,
		StrictTurns: cfg.StrictTurnTaking,
	}, log)
	crops := service.NewCropService(repos.Crops)
	svcs := server.Services{
		Negotiations:  negotiations,
		Chats:         service.NewChatService(repos, uow, relay, notify, log),
		Orders:        service.NewOrderService(repos, uow, relay, notify, archiver, log),
		Samples:       service.NewSampleService(repos, uow, notify, log),
		Crops:         crops,
		Notifications: notify,
		Advisor:       service.NewAdvisorService(negotiations, crops, advisor),
	}

	reaper := worker.NewPeriodic("negotiation_reaper", cfg.ReaperInterval, func(ctx context.Context) error {
		n, err := negotiations.ExpireOverdue(ctx)
		if n > 0 {
			log.Info().Int("expired", n).Msg("expired overdue negotiations")
		}
		return err
	}, log)
	relayWorker := worker.NewPeriodic("event_relay", cfg.RelayInterval, func(ctx context.Context) error {
		_, err := relay.Flush(ctx)
		return err
	}, log)
	reaper.Start(ctx)
	relayWorker.Start(ctx)
	defer reaper.Stop()
	defer relayWorker.Stop()

	srv := server.New(server.Options{
		DB:                  conn,
		Auth:                authMw.RequireAuth,
		AuthClient:          authMw.Client(),
		Rooms:               hub,
		AllowedOriginSuffix: cfg.AllowedOriginSuffix,
		ChatRatePerMinute:   cfg.ChatRatePerMinute,
		GitSHA:              gitSHA,
		BuildTime:           buildTime,
	}, svcs, log)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("git_sha", gitSHA).Msg("starting server")
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

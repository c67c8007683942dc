package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/config"
	"github.com/stemsi/exam-engine/internal/database"
	"github.com/stemsi/exam-engine/internal/handler"
	"github.com/stemsi/exam-engine/internal/logger"
	"github.com/stemsi/exam-engine/internal/metrics"
	"github.com/stemsi/exam-engine/internal/middleware"
	"github.com/stemsi/exam-engine/internal/proctor"
	"github.com/stemsi/exam-engine/internal/repository"
	"github.com/stemsi/exam-engine/internal/router"
	"github.com/stemsi/exam-engine/internal/service"
	"github.com/stemsi/exam-engine/internal/validator"
	"github.com/stemsi/exam-engine/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Bool("proctor_relay", cfg.ProctorRelay).
		Msg("Starting exam engine")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	store := repository.NewPgStore(pool)
	papers := repository.NewCachedPaperRepository(repository.NewPaperRepository(pool), rdb, cfg.PaperCacheTTL, log)

	// ─── Proctoring Channel ────────────────────────────────────────────
	hubOpts := []proctor.Option{
		proctor.WithHeartbeat(cfg.ProctorHeartbeat),
	}
	var relay *proctor.RedisRelay
	if cfg.ProctorRelay {
		relay = proctor.NewRedisRelay(rdb, log)
		hubOpts = append(hubOpts, proctor.WithPublisher(relay))
	}
	hub := proctor.NewHub(log, hubOpts...)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	finalizer := service.NewFinalizeService(store, papers, hub, log)
	lifecycleService := service.NewLifecycleService(store, papers, finalizer, log)
	gradingService := service.NewGradingService(store, papers, log)
	registrationService := service.NewRegistrationService(store, log)
	leaderboardService := service.NewLeaderboardService(store)
	monitorService := service.NewMonitorService(store, hub)
	paperService := service.NewPaperService(store, papers, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Registration: handler.NewRegistrationHandler(registrationService, log),
		Attempt:      handler.NewAttemptHandler(lifecycleService, gradingService, log),
		Leaderboard:  handler.NewLeaderboardHandler(leaderboardService, log),
		Proctor:      handler.NewProctorHandler(hub, lifecycleService, paperService, log),
		Monitor:      handler.NewMonitorHandler(monitorService, log),
		WS:           handler.NewWSHandler(lifecycleService, hub, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(map[string]handler.Pinger{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, log),
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load live exams' papers into Redis BEFORE accepting traffic.
	if err := paperService.PrewarmLive(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	answerLimiter := middleware.NewRateLimiter(cfg.AnswerRatePerSecond, cfg.AnswerRateBurst)
	r := router.SetupRouter(authService, handlers, answerLimiter, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Run Everything ────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(gctx) })
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx, hub) })
	}
	g.Go(func() error {
		worker.NewSweepWorker(store.Attempts(), lifecycleService, cfg.SweepInterval, log).Start(gctx)
		return nil
	})
	g.Go(func() error {
		answerLimiter.RunCleanup(gctx.Done())
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")

		// Stop accepting new HTTP requests (10s timeout). Hijacked websocket
		// connections are closed by the hub as it stops.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Exam engine stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httprate"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/keystone-id/keystone/internal/app"
	"github.com/keystone-id/keystone/internal/auth"
	"github.com/keystone-id/keystone/internal/health"
	"github.com/keystone-id/keystone/internal/platform/cache"
	"github.com/keystone-id/keystone/internal/platform/db"
	"github.com/keystone-id/keystone/internal/platform/httpx"
	"github.com/keystone-id/keystone/internal/token"
	"github.com/keystone-id/keystone/internal/users"
	"github.com/keystone-id/keystone/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, db.Config{
		DSN:            cfg.PGDSN,
		MaxConns:       cfg.PGMaxConns,
		ConnectTimeout: cfg.PGConnectTimeout,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Redis is optional: without it rate limiting stays process-local and
	// the welcome-email job is skipped.
	var limitCounter httprate.LimitCounter
	var enqueuer users.Enqueuer
	if cfg.RedisAddr != "" {
		redisClient, err := cache.New(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Warn("redis unavailable, falling back to local rate limiting", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			limitCounter = cache.NewRateLimitCounter(redisClient)

			jobsClient := jobs.NewClient(asynq.RedisClientOpt{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			defer func() {
				if err := jobsClient.Close(); err != nil {
					logger.Warn("jobs client close", slog.Any("error", err))
				}
			}()
			enqueuer = jobsClient
		}
	}

	respond := httpx.NewResponder(logger, cfg.IsProduction())
	tokens := token.NewService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	guard := auth.NewGuard(tokens, respond, logger)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, tokens)
	authHandler := auth.NewHandler(logger, authService, guard, respond, cfg.RefreshTokenTTL, cfg.IsProduction())

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(logger, usersRepo, enqueuer, cfg.BcryptCost)
	usersHandler := users.NewHandler(logger, usersService, respond, guard)

	healthHandler := health.NewHandler(pool, respond)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Responder:     respond,
		AuthHandler:   authHandler,
		UsersHandler:  usersHandler,
		HealthHandler: healthHandler,
		LimitCounter:  limitCounter,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/harvestlink/harvestlink/internal/app"
	"github.com/harvestlink/harvestlink/internal/authn"
	"github.com/harvestlink/harvestlink/internal/authz"
	"github.com/harvestlink/harvestlink/internal/identity"
	"github.com/harvestlink/harvestlink/internal/observability"
	"github.com/harvestlink/harvestlink/internal/platform/cache"
	"github.com/harvestlink/harvestlink/internal/platform/db"
	"github.com/harvestlink/harvestlink/internal/token"
	"github.com/harvestlink/harvestlink/internal/twofactor"
	"github.com/harvestlink/harvestlink/jobs"
	"github.com/harvestlink/harvestlink/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := applyMigrations(ctx, pool); err != nil {
		logger.Error("apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens, err := token.NewIssuer(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewNotifier(asynqClient, logger)

	identityRepo := identity.NewRepository(pool)
	identityService := identity.NewService(identityRepo)

	metrics := observability.NewMetrics()

	twoFactorRepo := twofactor.NewRepository(pool)
	twoFactorService := twofactor.NewService(twoFactorRepo, identityService, redisClient, notifier, twofactor.ServiceConfig{
		Issuer:      cfg.TwoFactorIssuer,
		MaxAttempts: cfg.TwoFactorMaxAttempts,
		Cooldown:    cfg.TwoFactorCooldown,
		Observer:    metrics,
	})
	verifier := authn.NewVerifier(tokens, identityService, logger, metrics)
	resolver := authz.NewResolver()
	authzMiddleware := authz.Middleware{Resolver: resolver, Logger: logger}

	authHandler := authn.NewHandler(logger, identityService, tokens, twoFactorService, notifier)
	twoFactorHandler := twofactor.NewHandler(logger, twoFactorService)
	identityHandler := identity.NewHandler(logger, identityService)
	permsHandler := authz.NewPermissionsHandler(logger, resolver, authzMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Verifier:         verifier,
		Authz:            authzMiddleware,
		AuthHandler:      authHandler,
		TwoFactorHandler: twoFactorHandler,
		IdentityHandler:  identityHandler,
		PermsHandler:     permsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

// applyMigrations runs the embedded SQL files in lexical order. Statements
// are idempotent, so re-running at every start is safe.
func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := fs.ReadDir(migrations.FS, migrations.Dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := fs.ReadFile(migrations.FS, migrations.Dir+"/"+name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

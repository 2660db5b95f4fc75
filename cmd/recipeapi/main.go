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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/recipe-app/recipe-api/internal/app"
	"github.com/recipe-app/recipe-api/internal/auth"
	jobmetrics "github.com/recipe-app/recipe-api/internal/jobs"
	"github.com/recipe-app/recipe-api/internal/observability"
	"github.com/recipe-app/recipe-api/internal/platform/cache"
	"github.com/recipe-app/recipe-api/internal/platform/db"
	"github.com/recipe-app/recipe-api/internal/platform/storage"
	"github.com/recipe-app/recipe-api/internal/platform/validation"
	"github.com/recipe-app/recipe-api/internal/recipe"
	"github.com/recipe-app/recipe-api/internal/users"
	"github.com/recipe-app/recipe-api/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, token cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts, jobMetrics)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	validator := validation.New()

	var tokenCache *auth.TokenCache
	if redisClient != nil {
		tokenCache = auth.NewTokenCache(redisClient, cfg.TokenCacheTTL)
	}
	authService := auth.NewService(auth.NewRepository(pool), tokenCache, logger)
	requireAuth := auth.RequireToken(authService, logger)

	userService := users.NewService(users.NewRepository(pool),
		users.WithNotifier(jobClient),
		users.WithLogger(logger),
	)

	recipeOpts := []recipe.Option{recipe.WithLogger(logger), recipe.WithImageJanitor(jobClient)}
	if cfg.StorageEnabled() {
		store, err := storage.NewS3Store(ctx, storage.Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return err
		}
		recipeOpts = append(recipeOpts, recipe.WithImageStore(store))
	} else {
		logger.Info("object storage not configured, image uploads disabled")
	}
	recipeService := recipe.NewService(recipe.NewRepository(pool), recipeOpts...)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		AuthHandler:   auth.NewHandler(logger, authService, validator),
		UsersHandler:  users.NewHandler(logger, userService, validator, requireAuth),
		RecipeHandler: recipe.NewHandler(logger, recipeService, validator, requireAuth),
		JobHandler:    jobs.NewHandler(inspector, logger),
		Metrics:       metrics,
		Database:      pool,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

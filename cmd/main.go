package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/client"
	"github.com/rryowa/storefront/internal/migrations"
	"github.com/rryowa/storefront/internal/service"
	"github.com/rryowa/storefront/internal/storage"
	"github.com/rryowa/storefront/internal/storage/file"
	"github.com/rryowa/storefront/internal/storage/memory"
	"github.com/rryowa/storefront/internal/storage/postgres"
	"github.com/rryowa/storefront/internal/storage/redis"
	"github.com/rryowa/storefront/internal/util"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	os.Exit(run(os.Args[1], os.Args[2:]))
}

func run(name string, args []string) int {
	ctx := context.Background()

	cfg, err := util.NewClientConfig()
	if err != nil {
		color.Red("config: %v", err)
		return 1
	}
	logger := util.NewZapLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals

	backend, cleanup, err := newCredentialBackend(ctx, logger, cfg.Credentials)
	if err != nil {
		logger.Errorw("Credential store unavailable", "backend", cfg.Credentials.Backend, "error", err)
		return 1
	}
	defer cleanup()

	store := storage.NewCredentialStore(backend, cfg.Credentials.Profile, logger)
	if err := store.Restore(ctx); err != nil {
		logger.Warnw("Stored credentials not loaded", "error", err)
	}

	apiClient, err := client.New(client.Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		SignInURL: cfg.SignInURL,
	}, store, logger)
	if err != nil {
		logger.Errorw("Client not created", "error", err)
		return 1
	}

	unsubscribe := apiClient.Invalidations().Subscribe(func(inv client.Invalidation) {
		color.Yellow("Session expired (%v). Sign in again: %s", inv.Reason, inv.SignInURL)
	})
	defer unsubscribe()

	webhook := service.NewWebhookService(logger, cfg.WebhookURL)
	defer webhook.Attach(apiClient.Invalidations())()

	authService := service.NewAuthService(apiClient, store, apiClient.Invalidations(), logger)
	defer authService.Close()

	app := &cli{
		auth:   authService,
		client: apiClient,
		store:  store,
		log:    logger,
	}

	if err := app.run(ctx, name, args); err != nil {
		printError(err)
		return 1
	}
	return 0
}

func newCredentialBackend(ctx context.Context, logger *zap.SugaredLogger, cfg util.CredentialStoreConfig) (storage.Backend, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case util.StoreMemory:
		return memory.NewCredentialRepository(logger), noop, nil
	case util.StoreFile:
		return file.NewCredentialStorage(cfg.File), noop, nil
	case util.StoreRedis:
		redisClient, cleanup, err := util.NewRedisClient(ctx, logger, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return redis.NewCredentialStorage(redisClient), cleanup, nil
	case util.StorePostgres:
		db, cleanup, err := util.NewDBConnection(ctx, logger, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := migrations.RunMigrations(ctx, db, logger); err != nil {
			cleanup()
			return nil, noop, err
		}
		return postgres.NewStorage(db), cleanup, nil
	default:
		return nil, noop, fmt.Errorf("unknown credential store %q", cfg.Backend)
	}
}

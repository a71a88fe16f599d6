// Package modules wires the application graph for the mediaflow server.
package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/lumenpress/mediaflow/internal/config"
	"github.com/lumenpress/mediaflow/internal/db"
	"github.com/lumenpress/mediaflow/internal/logger"
	"github.com/lumenpress/mediaflow/internal/media/extract"
	"github.com/lumenpress/mediaflow/internal/media/preview"
	"github.com/lumenpress/mediaflow/internal/quota"
	"github.com/lumenpress/mediaflow/internal/storage"
)

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		provideDBConn,
		provideStorageProvider,
		provideQuotaStore,
		provideQuotaGuard,
		extract.New,
		preview.NewGenerator,
	),
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideStorageProvider(cfg config.Config) (storage.Provider, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3Provider(context.Background(), cfg.Storage.S3)
	case "fs", "":
		return storage.NewFSProvider(cfg.Storage.FS.Root, cfg.Storage.FS.BaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

func provideQuotaStore(conn *pgxpool.Pool, cfg config.Config) quota.Store {
	return quota.NewPGStore(conn, cfg.Pipeline.QuotaLimitBytes)
}

func provideQuotaGuard(log *slog.Logger, store quota.Store, cfg config.Config) *quota.Guard {
	return quota.NewGuard(log, store, cfg.Pipeline.QuotaWarnPercent)
}

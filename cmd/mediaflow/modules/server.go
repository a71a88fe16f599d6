package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"

	"github.com/lumenpress/mediaflow/internal/config"
	"github.com/lumenpress/mediaflow/internal/handlers"
	"github.com/lumenpress/mediaflow/internal/pipeline"
	"github.com/lumenpress/mediaflow/internal/quota"
	"github.com/lumenpress/mediaflow/internal/server"
	"github.com/lumenpress/mediaflow/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideMediaHandler,
		provideServer,
	),
	fx.Invoke(startServer),
)

func provideMediaHandler(log *slog.Logger, pipe *pipeline.Pipeline, store quota.Store, cfg config.Config) *handlers.MediaHandler {
	return handlers.NewMediaHandler(log, pipe, store, cfg.Pipeline)
}

func provideServer(log *slog.Logger, cfg config.Config, mediaHandler *handlers.MediaHandler) *server.Server {
	// The request body ceiling tracks the largest single file the
	// pipeline can accept, with headroom for the rest of the batch.
	bodyLimit := fmt.Sprintf("%dM", (cfg.Pipeline.MaxVideoBytes*int64(cfg.Pipeline.MaxFiles))>>20)
	return server.NewServer(log, cfg.Server.Addr, cfg.Auth.JWTSecret, bodyLimit,
		handlers.NewPingHandler(log),
		mediaHandler,
	)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting mediaflow %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

// Command mediaflow runs the media ingestion service and its maintenance
// subcommands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/lumenpress/mediaflow/cmd/mediaflow/modules"
	migrationdb "github.com/lumenpress/mediaflow/db"
	"github.com/lumenpress/mediaflow/internal/auth"
	"github.com/lumenpress/mediaflow/internal/config"
	"github.com/lumenpress/mediaflow/internal/db"
	"github.com/lumenpress/mediaflow/internal/logger"
	"github.com/lumenpress/mediaflow/internal/media"
	"github.com/lumenpress/mediaflow/internal/media/extract"
	"github.com/lumenpress/mediaflow/internal/media/preview"
	"github.com/lumenpress/mediaflow/internal/pipeline"
	"github.com/lumenpress/mediaflow/internal/storage"
	"github.com/lumenpress/mediaflow/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:          "mediaflow",
		Short:        "Media ingestion and validation service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), ingestCmd(), migrateCmd(), tokenCmd(), versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				modules.InfraModule,
				modules.PipelineModule,
				modules.ServerModule,
				fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
					return &fxevent.SlogLogger{Logger: log}
				}),
			)
			app.Run()
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	var prefix string
	var compress bool
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Run the pipeline locally against the configured storage backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			log := logger.L

			provider, err := openProvider(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			// Local ingestion skips quota accounting; there is no
			// organization to charge.
			pipe := pipeline.New(log, provider, nil, nil, extract.New(log), preview.NewGenerator(log))

			files := make([]media.File, 0, len(args))
			for _, arg := range args {
				f, err := localFile(arg)
				if err != nil {
					return err
				}
				files = append(files, f)
			}

			records, err := pipe.Run(cmd.Context(), files, pipeline.Options{
				PathPrefix: prefix,
				MaxFiles:   len(files),
				Compress:   compress,
			}, pipeline.Callbacks{
				OnError: func(msg string) {
					log.Error("ingest failed", slog.String("reason", msg))
				},
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "media", "Object key prefix")
	cmd.Flags().BoolVar(&compress, "compress", true, "Compress images before upload")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <up|down|version|force> [args]",
		Short: "Apply or roll back database migrations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)

			migrations, err := fs.Sub(migrationdb.MigrationsFS, "migrations")
			if err != nil {
				return fmt.Errorf("migrations fs: %w", err)
			}
			return db.RunMigrate(logger.L, cfg.Postgres, migrations, args[0], args[1:])
		},
	}
}

func tokenCmd() *cobra.Command {
	var expiresIn time.Duration
	cmd := &cobra.Command{
		Use:   "token <org-id>",
		Short: "Issue an API token for an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("jwt secret not configured")
			}
			token, expiresAt, err := auth.GenerateToken(args[0], cfg.Auth.JWTSecret, expiresIn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires: %s\n", token, expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 24*time.Hour, "Token lifetime")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mediaflow %s\n", version.GetInfo())
		},
	}
}

func openProvider(ctx context.Context, cfg config.Config) (storage.Provider, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3Provider(ctx, cfg.Storage.S3)
	case "fs", "":
		return storage.NewFSProvider(cfg.Storage.FS.Root, cfg.Storage.FS.BaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

func localFile(path string) (media.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return media.File{}, err
	}
	return media.File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

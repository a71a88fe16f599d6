// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath = "config.toml"
	DefaultHTTPAddr   = ":8080"
	DefaultPGHost     = "127.0.0.1"
	DefaultPGPort     = 5432
	DefaultPGUser     = "postgres"
	DefaultPGDatabase = "mediaflow"
	DefaultPGSSLMode  = "disable"

	DefaultStorageBackend = "fs"
	DefaultFSRoot         = "data"
	DefaultPathPrefix     = "media"

	// Per-category upload ceilings.
	DefaultMaxImageBytes    = 10 << 20
	DefaultMaxVideoBytes    = 100 << 20
	DefaultMaxAudioBytes    = 50 << 20
	DefaultMaxDocumentBytes = 25 << 20

	// Image compression targets.
	DefaultCompressTargetBytes  = 1 << 20
	DefaultCompressMaxDimension = 1920
	DefaultCompressQuality      = 80

	// Quota accounting.
	DefaultQuotaWarnPercent = 90
	DefaultQuotaLimitBytes  = 10 << 30

	DefaultMaxFiles = 10
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Storage  StorageConfig  `toml:"storage"`
	Postgres PostgresConfig `toml:"postgres"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AuthConfig holds the JWT secret used by the API middleware.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// StorageConfig selects and configures the object storage backend ("fs" or "s3").
type StorageConfig struct {
	Backend string   `toml:"backend"`
	FS      FSConfig `toml:"fs"`
	S3      S3Config `toml:"s3"`
}

// FSConfig holds the filesystem backend's root directory and the base URL
// objects are served under.
type FSConfig struct {
	Root    string `toml:"root"`
	BaseURL string `toml:"base_url"`
}

// S3Config holds S3 connection parameters. Endpoint and PublicBaseURL are
// optional and support S3-compatible stores.
type S3Config struct {
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Endpoint        string `toml:"endpoint"`
	PublicBaseURL   string `toml:"public_base_url"`
}

// PostgresConfig holds PostgreSQL connection parameters for quota accounting.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// PipelineConfig holds ingestion thresholds. Every numeric threshold of the
// pipeline lives here rather than in code.
type PipelineConfig struct {
	PathPrefix string `toml:"path_prefix"`
	MaxFiles   int    `toml:"max_files"`

	MaxImageBytes    int64 `toml:"max_image_bytes"`
	MaxVideoBytes    int64 `toml:"max_video_bytes"`
	MaxAudioBytes    int64 `toml:"max_audio_bytes"`
	MaxDocumentBytes int64 `toml:"max_document_bytes"`

	Compress             bool  `toml:"compress"`
	CompressTargetBytes  int64 `toml:"compress_target_bytes"`
	CompressMaxDimension int   `toml:"compress_max_dimension"`
	CompressQuality      int   `toml:"compress_quality"`

	QuotaWarnPercent int   `toml:"quota_warn_percent"`
	QuotaLimitBytes  int64 `toml:"quota_limit_bytes"`
}

// Load reads and parses the TOML config file at path and applies default
// values for missing fields. An empty path falls back to DefaultConfigPath;
// a missing file yields the pure-default config.
func Load(path string) (Config, error) {
	cfg := Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: DefaultHTTPAddr},
		Storage: StorageConfig{
			Backend: DefaultStorageBackend,
			FS:      FSConfig{Root: DefaultFSRoot},
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Pipeline: PipelineConfig{
			PathPrefix:           DefaultPathPrefix,
			MaxFiles:             DefaultMaxFiles,
			MaxImageBytes:        DefaultMaxImageBytes,
			MaxVideoBytes:        DefaultMaxVideoBytes,
			MaxAudioBytes:        DefaultMaxAudioBytes,
			MaxDocumentBytes:     DefaultMaxDocumentBytes,
			Compress:             true,
			CompressTargetBytes:  DefaultCompressTargetBytes,
			CompressMaxDimension: DefaultCompressMaxDimension,
			CompressQuality:      DefaultCompressQuality,
			QuotaWarnPercent:     DefaultQuotaWarnPercent,
			QuotaLimitBytes:      DefaultQuotaLimitBytes,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := decode(string(raw), &cfg); err != nil {
		return Config{}, err
	}

	if value := os.Getenv("HTTP_ADDR"); value != "" {
		cfg.Server.Addr = value
	}
	return cfg, nil
}

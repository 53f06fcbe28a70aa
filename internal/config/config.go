// Package config loads service settings from environment variables, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sewaa/forecast-sync/internal/domain"
)

// Minimum artifact sizes in bytes. A download below its threshold is treated
// as truncated and deleted before migration.
const (
	// MinEnsembleBytes gates whole-domain cGAN IFS ensemble inputs (42 MiB).
	MinEnsembleBytes = 42 << 20
	// MinGribBytes gates raw ECMWF grib2 steps (5.9 MiB).
	MinGribBytes = int64(59 * (1 << 20) / 10)
	// MinRegionalBytes gates regional NetCDF slices (360 KiB).
	MinRegionalBytes = 360 << 10
	// MinGenerationInputBytes is the plausibility floor for a model input
	// (260 MiB); a smaller input after a failed run is deleted to force a
	// clean re-fetch.
	MinGenerationInputBytes = 260 << 20
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Data roots.
	ForecastsDir string
	JobsDir      string
	LogsDir      string
	// WorkHome is the directory containing the ensemble-cgan checkout.
	WorkHome string

	// GBMC SFTP access. When host or user is empty the HTTP mirror is used.
	IFSServerHost string
	IFSServerUser string
	IFSPrivateKey string
	IFSServerPort int
	// IFSRemoteDir overrides the per-model remote directory on the GBMC
	// server; empty means the operational defaults.
	IFSRemoteDir string

	// UseHTTPMirror forces mirror sync even when SFTP is configured.
	UseHTTPMirror bool
	MirrorURL     string
	OpenDataURL   string

	// Kafka migration events; empty brokers disable publishing.
	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Sync window and forecast step bounds.
	DaysBack  int
	StepStart int
	StepFinal int

	// Retry and pool sizing.
	SFTPRetries     int
	SFTPWorkers     int
	OpenDataRetries int
	OpenDataWorkers int
	DeleteRetries   int
	DeleteRetryWait time.Duration
	PollInterval    time.Duration

	// Retention.
	MaxFileAge time.Duration
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is merged in first; a missing
// file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("PROCESSING_POLL_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}
	deleteRetryWait, err := parseDuration("DELETE_RETRY_WAIT", "5s")
	if err != nil {
		return nil, err
	}

	maxAgeDays, err := parseInt("MAX_FILE_AGE_DAYS", 10)
	if err != nil {
		return nil, err
	}
	daysBack, err := parseInt("SYNC_DAYS_BACK", 4)
	if err != nil {
		return nil, err
	}
	stepStart, err := parseInt("FORECAST_STEP_START", 30)
	if err != nil {
		return nil, err
	}
	stepFinal, err := parseInt("FORECAST_STEP_FINAL", 54)
	if err != nil {
		return nil, err
	}
	sftpRetries, err := parseInt("SFTP_CONNECT_RETRIES", 50)
	if err != nil {
		return nil, err
	}
	sftpWorkers, err := parseInt("SFTP_WORKERS", 4*runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	openDataRetries, err := parseInt("OPEN_DATA_RETRIES", 10)
	if err != nil {
		return nil, err
	}
	openDataWorkers, err := parseInt("OPEN_DATA_WORKERS", max(runtime.NumCPU()/2, 1))
	if err != nil {
		return nil, err
	}
	deleteRetries, err := parseInt("DELETE_RETRIES", 10)
	if err != nil {
		return nil, err
	}
	port, err := parseInt("IFS_SERVER_PORT", 22)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ForecastsDir: os.Getenv("FORECASTS_DATA_DIR"),
		JobsDir:      os.Getenv("JOBS_DATA_DIR"),
		LogsDir:      envOrDefault("LOGS_DIR", os.Getenv("JOBS_DATA_DIR")),
		WorkHome:     os.Getenv("WORK_HOME"),

		IFSServerHost: os.Getenv("IFS_SERVER_HOST"),
		IFSServerUser: os.Getenv("IFS_SERVER_USER"),
		IFSPrivateKey: os.Getenv("IFS_PRIVATE_KEY"),
		IFSServerPort: port,
		IFSRemoteDir:  os.Getenv("IFS_DATA_DIR"),

		UseHTTPMirror: os.Getenv("USE_HTTP_MIRROR") == "true",
		MirrorURL:     envOrDefault("MIRROR_URL", "https://cgan.icpac.net/ftp"),
		OpenDataURL:   envOrDefault("OPEN_DATA_URL", "https://data.ecmwf.int/forecasts"),

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "forecast-migrations"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DaysBack:  daysBack,
		StepStart: stepStart,
		StepFinal: stepFinal,

		SFTPRetries:     sftpRetries,
		SFTPWorkers:     sftpWorkers,
		OpenDataRetries: openDataRetries,
		OpenDataWorkers: openDataWorkers,
		DeleteRetries:   deleteRetries,
		DeleteRetryWait: deleteRetryWait,
		PollInterval:    pollInterval,

		MaxFileAge: time.Duration(maxAgeDays) * 24 * time.Hour,
	}

	if cfg.ForecastsDir == "" {
		return nil, errors.New("FORECASTS_DATA_DIR is required")
	}
	if cfg.JobsDir == "" {
		return nil, errors.New("JOBS_DATA_DIR is required")
	}
	if cfg.SFTPConfigured() && cfg.IFSPrivateKey == "" {
		return nil, errors.New("IFS_PRIVATE_KEY is required when IFS_SERVER_HOST is set")
	}
	if !cfg.SFTPConfigured() && !cfg.UseHTTPMirror && cfg.MirrorURL == "" {
		return nil, errors.New("either IFS server credentials or MIRROR_URL must be configured")
	}

	return cfg, nil
}

// SFTPConfigured reports whether GBMC server credentials are present.
func (c *Config) SFTPConfigured() bool {
	return c.IFSServerHost != "" && c.IFSServerUser != ""
}

// RemoteDirs maps each ensemble input source to its directory on the GBMC
// server. IFS_DATA_DIR, when set, overrides both.
func (c *Config) RemoteDirs() map[domain.Source]string {
	if c.IFSRemoteDir != "" {
		return map[domain.Source]string{
			domain.SourceCganIFS6h: c.IFSRemoteDir,
			domain.SourceCganIFS7d: c.IFSRemoteDir,
		}
	}
	return map[domain.Source]string{
		domain.SourceCganIFS6h: "/data/Operational",
		domain.SourceCganIFS7d: "/data/Operational_7d",
	}
}

// NotifyEnabled reports whether Kafka migration events are configured.
func (c *Config) NotifyEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

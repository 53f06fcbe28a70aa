package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sewaa/forecast-sync/internal/domain"
)

// setRequired supplies the data roots every Load call needs.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("FORECASTS_DATA_DIR", "/data/forecasts")
	t.Setenv("JOBS_DATA_DIR", "/data/jobs")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/forecasts", cfg.ForecastsDir)
	assert.Equal(t, "/data/jobs", cfg.JobsDir)
	assert.Equal(t, "/data/jobs", cfg.LogsDir)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 4, cfg.DaysBack)
	assert.Equal(t, 30, cfg.StepStart)
	assert.Equal(t, 54, cfg.StepFinal)
	assert.Equal(t, 50, cfg.SFTPRetries)
	assert.Equal(t, 10, cfg.OpenDataRetries)
	assert.Equal(t, 10, cfg.DeleteRetries)
	assert.Equal(t, 5*time.Second, cfg.DeleteRetryWait)
	assert.Equal(t, 10*time.Minute, cfg.PollInterval)
	assert.Equal(t, 10*24*time.Hour, cfg.MaxFileAge)
	assert.False(t, cfg.SFTPConfigured())
	assert.False(t, cfg.NotifyEnabled())
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_CustomEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("LOGS_DIR", "/var/log/forecast-sync")
	t.Setenv("WORK_HOME", "/opt/cgan")
	t.Setenv("IFS_SERVER_HOST", "gbmc.example")
	t.Setenv("IFS_SERVER_USER", "cgan")
	t.Setenv("IFS_PRIVATE_KEY", "/etc/keys/id_ed25519")
	t.Setenv("IFS_SERVER_PORT", "2222")
	t.Setenv("USE_HTTP_MIRROR", "true")
	t.Setenv("MIRROR_URL", "https://mirror.example/ftp")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "migrated-datasets")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "10s")
	t.Setenv("SYNC_DAYS_BACK", "2")
	t.Setenv("MAX_FILE_AGE_DAYS", "30")
	t.Setenv("PROCESSING_POLL_INTERVAL", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/log/forecast-sync", cfg.LogsDir)
	assert.Equal(t, "/opt/cgan", cfg.WorkHome)
	assert.Equal(t, "gbmc.example", cfg.IFSServerHost)
	assert.Equal(t, "cgan", cfg.IFSServerUser)
	assert.Equal(t, "/etc/keys/id_ed25519", cfg.IFSPrivateKey)
	assert.Equal(t, 2222, cfg.IFSServerPort)
	assert.True(t, cfg.UseHTTPMirror)
	assert.Equal(t, "https://mirror.example/ftp", cfg.MirrorURL)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "migrated-datasets", cfg.KafkaTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 2, cfg.DaysBack)
	assert.Equal(t, 30*24*time.Hour, cfg.MaxFileAge)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.True(t, cfg.SFTPConfigured())
	assert.True(t, cfg.NotifyEnabled())
}

func TestLoad_MissingDataRoots(t *testing.T) {
	t.Setenv("FORECASTS_DATA_DIR", "")
	t.Setenv("JOBS_DATA_DIR", "/data/jobs")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORECASTS_DATA_DIR")

	t.Setenv("FORECASTS_DATA_DIR", "/data/forecasts")
	t.Setenv("JOBS_DATA_DIR", "")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JOBS_DATA_DIR")
}

func TestLoad_SFTPWithoutKey(t *testing.T) {
	setRequired(t)
	t.Setenv("IFS_SERVER_HOST", "gbmc.example")
	t.Setenv("IFS_SERVER_USER", "cgan")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IFS_PRIVATE_KEY")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidCounts(t *testing.T) {
	setRequired(t)
	t.Setenv("SFTP_CONNECT_RETRIES", "-3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SFTP_CONNECT_RETRIES")
}

func TestRemoteDirs(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	require.NoError(t, err)

	dirs := cfg.RemoteDirs()
	assert.Equal(t, "/data/Operational", dirs[domain.SourceCganIFS6h])
	assert.Equal(t, "/data/Operational_7d", dirs[domain.SourceCganIFS7d])
}

func TestRemoteDirs_Override(t *testing.T) {
	setRequired(t)
	t.Setenv("IFS_DATA_DIR", "/srv/ifs")
	cfg, err := Load()
	require.NoError(t, err)

	dirs := cfg.RemoteDirs()
	assert.Equal(t, "/srv/ifs", dirs[domain.SourceCganIFS6h])
	assert.Equal(t, "/srv/ifs", dirs[domain.SourceCganIFS7d])
}

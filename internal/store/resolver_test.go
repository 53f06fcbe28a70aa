package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sewaa/forecast-sync/internal/domain"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	base := t.TempDir()
	return &Resolver{
		ForecastsDir: filepath.Join(base, "forecasts"),
		JobsDir:      filepath.Join(base, "jobs"),
	}
}

func TestRoot(t *testing.T) {
	r := newTestResolver(t)

	assert.Equal(t, r.JobsDir, r.Root(domain.SourceJobs, "East Africa"))
	assert.Equal(t,
		filepath.Join(r.ForecastsDir, "open-ifs", "Kenya"),
		r.Root(domain.SourceOpenIFS, "Kenya"))
	assert.Equal(t,
		filepath.Join(r.ForecastsDir, "open-ifs"),
		r.Root(domain.SourceOpenIFS, ""))

	// Ensemble inputs ignore the region subdivision.
	assert.Equal(t,
		filepath.Join(r.ForecastsDir, "cgan-ifs-6h-ens"),
		r.Root(domain.SourceCganIFS6h, "East Africa"))
}

func TestDatasetPath(t *testing.T) {
	r := newTestResolver(t)
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	path, err := r.DatasetPath(domain.SourceOpenIFS, "East Africa", d, "20240115000000-30h-enfo-ef.nc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(
		r.ForecastsDir, "open-ifs", "East Africa", "2024", "01",
		"east_africa-open_ifs-20240115000000-30h-enfo-ef.nc"), path)

	// Intermediate directories exist afterwards.
	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Creating them again is a no-op.
	again, err := r.DatasetPath(domain.SourceOpenIFS, "East Africa", d, "20240115000000-30h-enfo-ef.nc")
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestDatasetPath_EnsembleInputDropsRegionCode(t *testing.T) {
	r := newTestResolver(t)
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	path, err := r.DatasetPath(domain.SourceCganIFS6h, "East Africa", d, "20240115_00Z.nc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(
		r.ForecastsDir, "cgan-ifs-6h-ens", "2024", "01",
		"-cgan_ifs_6h_ens-20240115_00Z.nc"), path)
}

func TestStagingDir(t *testing.T) {
	r := newTestResolver(t)

	dir, err := r.StagingDir(domain.SourceOpenIFS)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.JobsDir, "open-ifs"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

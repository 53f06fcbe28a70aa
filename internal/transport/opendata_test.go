package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenData(srv *httptest.Server, now time.Time) *OpenData {
	c := NewOpenData(testLogger())
	c.BaseURL = srv.URL
	c.Client = srv.Client()
	c.Clock = clockwork.NewFakeClockAt(now)
	return c
}

func TestOpenDataLatest(t *testing.T) {
	// Only the run from two days ago is published.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/20240113/") {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestOpenData(srv, time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC))
	date, err := c.Latest(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC), date)
}

func TestOpenDataLatest_NothingPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	c := newTestOpenData(srv, time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC))
	_, err := c.Latest(context.Background(), 30)
	assert.ErrorContains(t, err, "no published forecast")
}

func TestOpenDataDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/20240115/00z/ifs/0p25/enfo/20240115000000-30h-enfo-ef.grib2", r.URL.Path)
		w.Write([]byte("grib2-payload"))
	}))
	defer srv.Close()

	c := newTestOpenData(srv, time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC))
	dest := filepath.Join(t.TempDir(), "20240115000000-30h-enfo-ef.grib2")

	err := c.Download(context.Background(), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 30, dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "grib2-payload", string(data))
}

func TestOpenDataDownload_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("grib2-payload"))
	}))
	defer srv.Close()

	c := newTestOpenData(srv, time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC))
	dest := filepath.Join(t.TempDir(), "step.grib2")

	err := c.Download(context.Background(), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 30, dest)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	assert.FileExists(t, dest)
}

func TestOpenDataDownload_ZeroRetriesStillAttemptsOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("grib2-payload"))
	}))
	defer srv.Close()

	c := newTestOpenData(srv, time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC))
	c.Retries = 0
	dest := filepath.Join(t.TempDir(), "step.grib2")

	err := c.Download(context.Background(), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 30, dest)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.FileExists(t, dest)
}

func TestOpenDataDownload_BudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "try later", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestOpenData(srv, time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC))
	c.Retries = 4
	dest := filepath.Join(t.TempDir(), "step.grib2")

	err := c.Download(context.Background(), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 30, dest)
	assert.ErrorContains(t, err, "after 4 attempts")
	assert.EqualValues(t, 4, calls.Load())
	assert.NoFileExists(t, dest)
}

package transport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory RemoteFS.
type fakeRemote struct {
	files     map[string]string // filename -> content
	failFetch map[string]bool
	listErr   error
}

func (f *fakeRemote) List(dir string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var names []string
	for name := range f.files {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeRemote) Fetch(remotePath, localPath string) error {
	name := filepath.Base(remotePath)
	if f.failFetch[name] {
		return errors.New("connection reset")
	}
	content, ok := f.files[name]
	if !ok {
		return os.ErrNotExist
	}
	return os.WriteFile(localPath, []byte(content), 0o644)
}

func (f *fakeRemote) Close() error { return nil }

func newTestSFTP(remote *fakeRemote) *SFTP {
	return &SFTP{
		Host:       "gbmc.example",
		User:       "cgan",
		MaxRetries: 3,
		Workers:    2,
		Logger:     testLogger(),
		Dial:       func() (RemoteFS, error) { return remote, nil },
	}
}

func TestSFTPConfigured(t *testing.T) {
	assert.False(t, (&SFTP{}).Configured())
	assert.False(t, (&SFTP{Host: "gbmc.example"}).Configured())
	assert.True(t, (&SFTP{Host: "gbmc.example", User: "cgan"}).Configured())
}

func TestSyncMissing(t *testing.T) {
	remote := &fakeRemote{files: map[string]string{
		"IFS_20240115_00Z.nc": "already-synced",
		"IFS_20240116_00Z.nc": "fresh-run",
		"README":              "not a dataset",
	}}
	s := newTestSFTP(remote)
	staging := t.TempDir()

	staged, err := s.SyncMissing(context.Background(), "/data/cgan", staging, []string{"20240115_00"})
	require.NoError(t, err)
	assert.Equal(t, []string{"IFS_20240116_00Z.nc"}, staged)

	data, err := os.ReadFile(filepath.Join(staging, "IFS_20240116_00Z.nc"))
	require.NoError(t, err)
	assert.Equal(t, "fresh-run", string(data))
	assert.NoFileExists(t, filepath.Join(staging, "IFS_20240115_00Z.nc"))
}

func TestSyncMissing_FetchFailureSkipsFile(t *testing.T) {
	remote := &fakeRemote{
		files: map[string]string{
			"IFS_20240115_00Z.nc": "ok",
			"IFS_20240116_00Z.nc": "bad",
		},
		failFetch: map[string]bool{"IFS_20240116_00Z.nc": true},
	}
	s := newTestSFTP(remote)
	staging := t.TempDir()

	staged, err := s.SyncMissing(context.Background(), "/data/cgan", staging, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"IFS_20240115_00Z.nc"}, staged)
}

func TestSyncMissing_ListErrorIsFatal(t *testing.T) {
	remote := &fakeRemote{listErr: errors.New("permission denied")}
	s := newTestSFTP(remote)

	_, err := s.SyncMissing(context.Background(), "/data/cgan", t.TempDir(), nil)
	assert.ErrorContains(t, err, "permission denied")
}

func TestSyncMissing_DialErrorIsFatal(t *testing.T) {
	s := newTestSFTP(nil)
	s.Dial = func() (RemoteFS, error) { return nil, errors.New("no route to host") }

	_, err := s.SyncMissing(context.Background(), "/data/cgan", t.TempDir(), nil)
	assert.ErrorContains(t, err, "no route to host")
}

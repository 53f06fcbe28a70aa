package store

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cleaner deletes dataset files past a maximum age and prunes the empty
// directories they leave behind. Age is measured from modification time,
// which for migrated files is the moment they reached the canonical store.
type Cleaner struct {
	Root   string
	MaxAge time.Duration
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Run performs one cleanup sweep. Individual deletion failures are logged
// and skipped; the sweep itself only fails if the tree cannot be walked.
func (c *Cleaner) Run() error {
	if _, err := os.Stat(c.Root); os.IsNotExist(err) {
		return nil
	}
	now := c.Clock.Now()

	var dirs []string
	err := filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != c.Root {
				dirs = append(dirs, path)
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), DataExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		age := now.Sub(info.ModTime())
		if age <= c.MaxAge {
			return nil
		}
		c.Logger.Info("deleting expired data file", "path", path, "age_days", int(age.Hours()/24))
		if err := os.Remove(path); err != nil {
			c.Logger.Error("failed to delete expired data file", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Deepest first so newly emptied parents are caught in the same sweep.
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dirs[i]); err == nil {
			c.Logger.Info("removed empty store directory", "path", dirs[i])
		}
	}
	return nil
}

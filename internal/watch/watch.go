// Package watch migrates staged files as they land, complementing the
// hourly sweep: a generated forecast becomes queryable seconds after the
// model writes it instead of waiting for the next scheduler tick.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"github.com/sewaa/forecast-sync/internal/domain"
	"github.com/sewaa/forecast-sync/internal/store"
)

// Migrator is the slice of the sync package the watcher needs.
type Migrator interface {
	Migrate(ctx context.Context, path string, source domain.Source, strip string) error
}

// settleDelay is how long a staged file must go without write events before
// it is considered complete. Downloads and model outputs are written in many
// chunks; migrating early would read a truncated file.
const settleDelay = 30 * time.Second

// Watcher migrates files out of per-source staging directories as they
// settle.
type Watcher struct {
	Resolver *store.Resolver
	Migrator Migrator
	// Sources lists the staging directories to watch.
	Sources []domain.Source
	// SettleDelay overrides the default settle window.
	SettleDelay time.Duration
	Logger      *slog.Logger
	Clock       clockwork.Clock
}

func (w *Watcher) settle() time.Duration {
	if w.SettleDelay > 0 {
		return w.SettleDelay
	}
	return settleDelay
}

// Run watches until the context is cancelled. Each watched source's staging
// directory is created if absent.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create staging watcher: %w", err)
	}
	defer watcher.Close()

	dirSource := make(map[string]domain.Source, len(w.Sources))
	for _, source := range w.Sources {
		dir, err := w.Resolver.StagingDir(source)
		if err != nil {
			return err
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch staging directory %s: %w", dir, err)
		}
		dirSource[dir] = source
	}
	w.Logger.Info("staging watcher started", "dirs", len(dirSource))

	// One settle timer per in-flight path; firing means the file stopped
	// growing and can be migrated.
	pending := map[string]clockwork.Timer{}
	settled := make(chan string)

	for {
		select {
		case <-ctx.Done():
			for _, timer := range pending {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if filepath.Ext(event.Name) != store.DataExt {
				continue
			}
			path := event.Name
			if timer, exists := pending[path]; exists {
				timer.Stop()
			}
			pending[path] = w.Clock.AfterFunc(w.settle(), func() {
				select {
				case settled <- path:
				case <-ctx.Done():
				}
			})

		case path := <-settled:
			delete(pending, path)
			source, ok := dirSource[filepath.Dir(path)]
			if !ok {
				continue
			}
			if err := w.Migrator.Migrate(ctx, path, source, source.StripPrefix()); err != nil {
				w.Logger.Error("watcher migration failed", "file", path, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Error("staging watcher error", "error", err)
		}
	}
}

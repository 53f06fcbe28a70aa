// Package sync contains the orchestration core: the per-source sync state
// machine, the staging-to-canonical migrator, grib2 post-processing, and the
// forecast-generation trigger.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sewaa/forecast-sync/internal/domain"
	"github.com/sewaa/forecast-sync/internal/ledger"
	"github.com/sewaa/forecast-sync/internal/observability"
	"github.com/sewaa/forecast-sync/internal/store"
	"github.com/sewaa/forecast-sync/internal/transport"
)

// State is the orchestrator's per-source phase.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StatePostProcessing
)

func (s State) String() string {
	switch s {
	case StateSyncing:
		return "syncing"
	case StatePostProcessing:
		return "post-processing"
	default:
		return "idle"
	}
}

// Orchestrator drives one sync pass per source: ledger-gated entry, diff of
// remote candidates against the local catalog, bounded fan-out of fetches,
// and hand-off of staged files to the migrator.
type Orchestrator struct {
	Ledger   ledger.Store
	Resolver *store.Resolver
	Migrator *Migrator
	Post     *PostProcessor

	SFTP     *transport.SFTP
	Mirror   *transport.Mirror
	OpenData *transport.OpenData
	// UseHTTPMirror prefers the mirror even when SFTP is configured.
	UseHTTPMirror bool
	// RemoteDirs maps each ensemble input source to its directory on the
	// GBMC server.
	RemoteDirs map[domain.Source]string

	// Workers bounds the open-data download pool.
	Workers int
	// Steps are the forecast lead times fetched per init date.
	Steps []int
	// DaysBack is the candidate date window when no explicit date is given.
	DaysBack int
	// PollInterval is the wait between ledger re-checks while deferring to
	// active processing.
	PollInterval time.Duration

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Clock   clockwork.Clock

	mu     gosync.Mutex
	states map[domain.Source]State
}

// State reports the current phase for a source.
func (o *Orchestrator) State(source domain.Source) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[source]
}

func (o *Orchestrator) setState(source domain.Source, s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.states == nil {
		o.states = map[domain.Source]State{}
	}
	o.states[source] = s
}

// SyncEnsemble fetches missing cGAN IFS ensemble inputs for one source and
// migrates them into the canonical store. Entry is skipped when the ledger
// already shows a download active for the source.
func (o *Orchestrator) SyncEnsemble(ctx context.Context, source domain.Source) error {
	if !source.IsEnsembleInput() {
		return fmt.Errorf("source %s is not an ensemble input", source)
	}
	if o.Ledger.Get(ledger.KindDownload, source) {
		o.Logger.Info("download already active, skipping", "source", source)
		return nil
	}
	if err := o.Ledger.Set(ledger.KindDownload, source, true); err != nil {
		return err
	}
	defer o.clearFlag(ledger.KindDownload, source)

	o.setState(source, StateSyncing)
	defer o.setState(source, StateIdle)
	o.Metrics.SyncRunning.Set(1)
	defer o.Metrics.SyncRunning.Set(0)
	start := o.Clock.Now()

	stagingDir, err := o.Resolver.StagingDir(source)
	if err != nil {
		return err
	}

	var staged []string
	if o.SFTP != nil && o.SFTP.Configured() && !o.UseHTTPMirror {
		existing, err := o.Resolver.GANDateKeys(source, "")
		if err != nil {
			return err
		}
		staged, err = o.SFTP.SyncMissing(ctx, o.RemoteDirs[source], stagingDir, existing)
		if err != nil {
			o.Metrics.FetchErrors.WithLabelValues("sftp").Inc()
			return err
		}
	} else {
		staged, err = o.Mirror.SyncEnsemble(ctx, source)
		if err != nil {
			o.Metrics.FetchErrors.WithLabelValues("mirror").Inc()
			return err
		}
	}
	o.Metrics.FilesFetched.Add(float64(len(staged)))

	if len(staged) == 0 {
		o.Logger.Info("ensemble source up to date", "source", source)
		return nil
	}

	o.setState(source, StatePostProcessing)
	if err := o.waitProcessingClear(ctx); err != nil {
		return err
	}
	for _, name := range staged {
		if err := o.Migrator.Migrate(ctx, filepath.Join(stagingDir, name), source, "IFS_"); err != nil {
			o.Logger.Error("migration failed, staged file retained", "file", name, "error", err)
		}
	}

	o.Metrics.SyncDuration.Observe(o.Clock.Since(start).Seconds())
	return nil
}

// SyncOpenIFS fetches missing ECMWF open-data forecast steps for the
// candidate date window and post-processes them into regional canonical
// files. explicitDate ("2006-01-02") narrows the window to a single date.
func (o *Orchestrator) SyncOpenIFS(ctx context.Context, explicitDate string) error {
	source := domain.SourceOpenIFS
	if o.Ledger.Get(ledger.KindDownload, source) {
		o.Logger.Info("download already active, skipping", "source", source)
		return nil
	}
	if err := o.Ledger.Set(ledger.KindDownload, source, true); err != nil {
		return err
	}
	defer o.clearFlag(ledger.KindDownload, source)

	o.setState(source, StateSyncing)
	defer o.setState(source, StateIdle)
	o.Metrics.SyncRunning.Set(1)
	defer o.Metrics.SyncRunning.Set(0)
	start := o.Clock.Now()

	if o.UseHTTPMirror && o.Mirror != nil {
		fetched, err := o.Mirror.SyncOpenIFS(ctx)
		if err != nil {
			o.Metrics.FetchErrors.WithLabelValues("mirror").Inc()
			return err
		}
		o.Metrics.FilesFetched.Add(float64(fetched))
		o.Metrics.SyncDuration.Observe(o.Clock.Since(start).Seconds())
		return nil
	}

	dates, err := domain.PossibleForecastDates(explicitDate, o.DaysBack)
	if err != nil {
		return err
	}

	// Publication lags the init time by several hours, so the newest
	// candidate dates are routinely absent upstream. Probe for the latest
	// published forecast and drop anything newer rather than spending a
	// full retry budget per step on it. An explicit date bypasses the
	// probe; a failed probe falls back to trying every candidate.
	if explicitDate == "" && len(o.Steps) > 0 {
		latest, err := o.OpenData.Latest(ctx, o.Steps[0])
		if err != nil {
			o.Logger.Warn("latest published forecast lookup failed", "error", err)
		} else {
			published := dates[:0]
			for _, date := range dates {
				if !date.After(latest) {
					published = append(published, date)
				}
			}
			dates = published
		}
	}

	for _, date := range dates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := o.syncOpenIFSDate(ctx, date); err != nil {
			o.Logger.Error("open-ifs date sync failed",
				"date", date.Format(domain.DisplayDateLayout), "error", err)
		}
	}

	o.Metrics.SyncDuration.Observe(o.Clock.Since(start).Seconds())
	return nil
}

// syncOpenIFSDate downloads and post-processes every missing forecast step
// for one init date. Steps already present as regional canonical files are
// skipped, making repeat passes no-ops.
func (o *Orchestrator) syncOpenIFSDate(ctx context.Context, date time.Time) error {
	missing, err := o.missingSteps(date)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	o.Logger.Info("open-ifs sync starting",
		"date", date.Format(domain.DisplayDateLayout), "missing_steps", len(missing))

	stagingDir, err := o.Resolver.StagingDir(domain.SourceOpenIFS)
	if err != nil {
		return err
	}

	workers := o.Workers
	if workers <= 0 {
		workers = 1
	}
	var (
		mu     gosync.Mutex
		staged []string
		wg     gosync.WaitGroup
		sem    = make(chan struct{}, workers)
	)
	for _, step := range missing {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(step int) {
			defer wg.Done()
			defer func() { <-sem }()
			dest := filepath.Join(stagingDir, domain.ECMWFGribName(date, step, o.OpenData.Stream))
			if err := o.OpenData.Download(ctx, date, step, dest); err != nil {
				o.Metrics.FetchErrors.WithLabelValues("opendata").Inc()
				o.Logger.Error("open-data step download failed", "step", step, "error", err)
				return
			}
			mu.Lock()
			staged = append(staged, dest)
			mu.Unlock()
		}(step)
	}
	wg.Wait()
	o.Metrics.FilesFetched.Add(float64(len(staged)))

	if len(staged) == 0 {
		return nil
	}

	o.setState(domain.SourceOpenIFS, StatePostProcessing)
	defer o.setState(domain.SourceOpenIFS, StateSyncing)
	if err := o.waitProcessingClear(ctx); err != nil {
		return err
	}
	for _, grib := range staged {
		if err := o.Post.ProcessGrib(ctx, grib); err != nil {
			o.Logger.Error("grib2 post-processing failed", "file", grib, "error", err)
		}
	}
	return nil
}

// missingSteps lists the forecast steps whose whole-domain canonical file is
// absent for the init date.
func (o *Orchestrator) missingSteps(date time.Time) ([]int, error) {
	mask := domain.DefaultMask().Name
	files, err := o.Resolver.ListExisting(domain.SourceOpenIFS, mask)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(files))
	for _, f := range files {
		existing[f] = true
	}

	var missing []int
	for _, step := range o.Steps {
		want := store.ECMWFFilesForDate(mask, date, []int{step})[0]
		if !existing[want] {
			missing = append(missing, step)
		}
	}
	return missing, nil
}

// MigrateStaged sweeps a source's staging directory through the migrator.
// Used by the one-shot migrate command and the staging watcher's catch-up
// pass.
func (o *Orchestrator) MigrateStaged(ctx context.Context, source domain.Source) error {
	stagingDir, err := o.Resolver.StagingDir(source)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return fmt.Errorf("read staging directory %s: %w", stagingDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != store.DataExt {
			continue
		}
		path := filepath.Join(stagingDir, entry.Name())
		if err := o.Migrator.Migrate(ctx, path, source, source.StripPrefix()); err != nil {
			o.Logger.Error("migration failed, staged file retained", "file", path, "error", err)
		}
	}
	return nil
}

// waitProcessingClear polls the ledger until no processing flag is active.
// This is the cooperative deferral that keeps migration from reorganizing
// files while a generation pass reads them.
func (o *Orchestrator) waitProcessingClear(ctx context.Context) error {
	for o.Ledger.AnyActive(ledger.KindProcessing) {
		o.Logger.Info("processing active elsewhere, deferring", "wait", o.PollInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.Clock.After(o.PollInterval):
		}
	}
	return nil
}

// clearFlag clears a ledger flag on exit; a flag left set wedges the source
// until it is reset manually.
func (o *Orchestrator) clearFlag(kind ledger.Kind, source domain.Source) {
	if err := o.Ledger.Set(kind, source, false); err != nil {
		o.Logger.Error("failed to clear ledger flag", "kind", kind, "source", source, "error", err)
	}
}

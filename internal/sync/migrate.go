package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sewaa/forecast-sync/internal/dataset"
	"github.com/sewaa/forecast-sync/internal/domain"
	"github.com/sewaa/forecast-sync/internal/ledger"
	"github.com/sewaa/forecast-sync/internal/observability"
	"github.com/sewaa/forecast-sync/internal/store"
)

// Notifier announces a dataset that just reached the canonical store.
type Notifier interface {
	DatasetMigrated(ctx context.Context, source domain.Source, region, path string) error
}

// Migrator moves a freshly downloaded or freshly generated file from staging
// into the canonical store, standardizing axis names and cutting regional
// slices along the way.
type Migrator struct {
	Resolver *store.Resolver
	Codec    dataset.Codec
	// Regions to slice non-ensemble sources into; the first entry is the
	// whole-domain mask.
	Regions []domain.Region
	// MinEnsembleBytes gates ensemble inputs; zero disables the check.
	MinEnsembleBytes int64
	Logger           *slog.Logger
	Metrics          *observability.Metrics
	// Ledger records the processing flag around canonical writes; nil
	// skips flagging.
	Ledger ledger.Store
	// Notifier may be nil when event publishing is disabled.
	Notifier Notifier
}

// Migrate relocates one staged file into the canonical store. strip is the
// staging filename prefix to remove ("IFS_", "GAN_", or empty).
//
// An undersized ensemble input or an unreadable file is deleted and reported
// as success: both are bad captures that the next sync cycle re-fetches. A
// failed canonical write retains the staged file for a future retry; the
// staged original is deleted only when every destination write succeeded.
func (m *Migrator) Migrate(ctx context.Context, path string, source domain.Source, strip string) error {
	name := filepath.Base(path)

	if source.IsEnsembleInput() && m.MinEnsembleBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat staged file %s: %w", path, err)
		}
		if info.Size() < m.MinEnsembleBytes {
			m.Logger.Warn("deleting undersized ensemble input",
				"file", name, "size", info.Size(), "min", m.MinEnsembleBytes)
			m.Metrics.UndersizedDeleted.Inc()
			return os.Remove(path)
		}
	}

	trimmed := strings.TrimPrefix(name, strip)
	initDate, err := stagedDate(trimmed, source)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", name, err)
	}

	// Hold the processing flag for the duration of the canonical writes so
	// concurrent passes defer to this migration. An enclosing job may
	// already hold the flag; leave clearing it to that holder.
	if m.Ledger != nil && !m.Ledger.Get(ledger.KindProcessing, source) {
		if err := m.Ledger.Set(ledger.KindProcessing, source, true); err != nil {
			m.Logger.Error("failed to set processing flag", "source", source, "error", err)
		}
		defer func() {
			if err := m.Ledger.Set(ledger.KindProcessing, source, false); err != nil {
				m.Logger.Error("failed to clear processing flag", "source", source, "error", err)
			}
		}()
	}

	ds, err := m.Codec.Open(path)
	if err != nil {
		// Corrupt capture, unrecoverable: delete so the next cycle
		// re-fetches instead of retrying the same bad bytes forever.
		m.Logger.Error("deleting unreadable staged file", "file", path, "error", err)
		os.Remove(path)
		return nil
	}
	ds.Standardize()

	written, failed := m.write(ctx, ds, source, trimmed, initDate)
	m.Logger.Info("migrated staged file",
		"file", name, "source", source, "written", len(written), "failed", failed)

	if failed > 0 {
		// Keep the staged original so a later pass can fill in the
		// destinations that failed this time.
		m.Metrics.MigrationErrors.Inc()
		return fmt.Errorf("migrate %s: %d of %d destination writes failed", name, failed, failed+len(written))
	}
	m.Metrics.MigrationsCompleted.WithLabelValues(string(source)).Inc()
	return os.Remove(path)
}

// write produces every canonical destination for the dataset: a single
// whole-domain file for ensemble inputs, one regional slice per configured
// region otherwise. Write failures are accumulated, not short-circuited.
func (m *Migrator) write(ctx context.Context, ds *dataset.Dataset, source domain.Source, file string, initDate time.Time) (written []string, failed int) {
	if source.IsEnsembleInput() {
		dest, err := m.writeOne(ctx, ds, source, "", file, initDate)
		if err != nil {
			m.Logger.Error("canonical write failed", "source", source, "error", err)
			return nil, 1
		}
		return []string{dest}, 0
	}

	for _, region := range m.Regions {
		sliced, err := ds.SliceBBox(region.Extent)
		if err != nil {
			m.Logger.Error("regional slice failed", "region", region.Name, "error", err)
			failed++
			continue
		}
		dest, err := m.writeOne(ctx, sliced, source, region.Name, file, initDate)
		if err != nil {
			m.Logger.Error("canonical write failed",
				"source", source, "region", region.Name, "error", err)
			failed++
			continue
		}
		written = append(written, dest)
	}
	return written, failed
}

func (m *Migrator) writeOne(ctx context.Context, ds *dataset.Dataset, source domain.Source, region, file string, initDate time.Time) (string, error) {
	dest, err := m.Resolver.DatasetPath(source, region, initDate, file)
	if err != nil {
		return "", err
	}
	if err := m.Codec.Write(ds, dest); err != nil {
		return "", err
	}
	if m.Notifier != nil {
		if err := m.Notifier.DatasetMigrated(ctx, source, region, dest); err != nil {
			m.Logger.Warn("migration event publish failed", "path", dest, "error", err)
		}
	}
	return dest, nil
}

// stagedDate extracts the init date from a prefix-stripped staging filename.
// Count products encode it in underscore fields, ECMWF downloads in a
// timestamp prefix, and everything else as "<YYYYMMDD>_<HH>Z.nc".
func stagedDate(name string, source domain.Source) (time.Time, error) {
	if source.IsCount() {
		parts := strings.Split(strings.TrimSuffix(name, store.DataExt), "_")
		if len(parts) < 3 {
			return time.Time{}, fmt.Errorf("unrecognized count filename %q", name)
		}
		t, err := time.ParseInLocation("20060102_15", parts[1]+"_"+parts[2], time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse count filename %q: %w", name, err)
		}
		return t, nil
	}
	if t, err := domain.ParseStagedName(name, ""); err == nil {
		return t, nil
	}
	if t, err := domain.ParseECMWFDate(name); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("no init date in filename %q", name)
}

package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sewaa/forecast-sync/internal/domain"
	"github.com/sewaa/forecast-sync/internal/observability"
)

// Converter turns a grib2 download into a NetCDF file.
type Converter interface {
	Convert(ctx context.Context, gribPath, ncPath string) error
}

// GribConverter shells out to the eccodes grib_to_netcdf tool. The decode
// stays at a process boundary so the service does not link a grib library.
type GribConverter struct {
	// Command defaults to "grib_to_netcdf" on PATH.
	Command string
	Logger  *slog.Logger
}

func (c *GribConverter) Convert(ctx context.Context, gribPath, ncPath string) error {
	command := c.Command
	if command == "" {
		command = "grib_to_netcdf"
	}
	cmd := exec.CommandContext(ctx, command, "-o", ncPath, gribPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(ncPath)
		return fmt.Errorf("%s %s: %w: %s", command, gribPath, err, strings.TrimSpace(string(out)))
	}
	c.Logger.Info("converted grib2 to netcdf", "grib", gribPath, "netcdf", ncPath)
	return nil
}

// PostProcessor converts staged ECMWF grib2 steps to NetCDF, migrates the
// result into regional canonical files, and cleans up the grib2 and its
// index droppings.
type PostProcessor struct {
	Converter Converter
	Migrator  *Migrator
	// MinGribBytes gates the raw download; a smaller grib2 is truncated.
	MinGribBytes int64
	// DeleteRetries and DeleteRetryWait bound removal of grib2 and .idx
	// files, which can be briefly held open by a concurrent reader.
	DeleteRetries   int
	DeleteRetryWait time.Duration
	Logger          *slog.Logger
	Metrics         *observability.Metrics
	Clock           clockwork.Clock
}

// ProcessGrib handles one staged grib2 file end to end. An undersized file
// is deleted and reported as success so the next cycle re-fetches it.
func (p *PostProcessor) ProcessGrib(ctx context.Context, gribPath string) error {
	info, err := os.Stat(gribPath)
	if err != nil {
		return fmt.Errorf("stat grib2 %s: %w", gribPath, err)
	}
	if info.Size() < p.MinGribBytes {
		p.Logger.Warn("deleting undersized grib2 download",
			"file", gribPath, "size", info.Size(), "min", p.MinGribBytes)
		p.Metrics.UndersizedDeleted.Inc()
		return p.removeWithRetry(ctx, gribPath)
	}

	ncPath := strings.TrimSuffix(gribPath, filepath.Ext(gribPath)) + ".nc"
	if err := p.Converter.Convert(ctx, gribPath, ncPath); err != nil {
		return err
	}

	if err := p.Migrator.Migrate(ctx, ncPath, domain.SourceOpenIFS, ""); err != nil {
		return err
	}

	if err := p.removeWithRetry(ctx, gribPath); err != nil {
		return err
	}
	return p.cleanIndexFiles(ctx, filepath.Dir(gribPath))
}

// cleanIndexFiles removes the .idx files the grib tooling drops next to its
// inputs.
func (p *PostProcessor) cleanIndexFiles(ctx context.Context, dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.idx"))
	if err != nil {
		return fmt.Errorf("glob index files in %s: %w", dir, err)
	}
	for _, idx := range matches {
		if err := p.removeWithRetry(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

// removeWithRetry deletes a file with a bounded retry budget and a fixed
// wait between attempts. Files locked by another process usually free up
// within a few seconds.
func (p *PostProcessor) removeWithRetry(ctx context.Context, path string) error {
	var lastErr error
	for attempt := 0; attempt < p.DeleteRetries; attempt++ {
		err := os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return nil
		}
		lastErr = err
		p.Logger.Warn("delete failed, retrying", "file", path, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.Clock.After(p.DeleteRetryWait):
		}
	}
	return fmt.Errorf("delete %s after %d attempts: %w", path, p.DeleteRetries, lastErr)
}

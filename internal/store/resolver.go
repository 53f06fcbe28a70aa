// Package store maps dataset identities to canonical filesystem paths and
// reconstructs the forecast catalog by scanning that tree.
//
// The directory layout is the only persisted record of what has been synced;
// there is no manifest or database to drift out of step with the files. A
// dataset is present exactly when its canonical file exists, which makes the
// catalog crash-safe: partially written passes simply show up as missing
// files on the next scan.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sewaa/forecast-sync/internal/domain"
)

// DataExt is the dataset file extension recognized by catalog scans.
const DataExt = ".nc"

// Resolver builds canonical and staging paths under the configured data
// roots. Methods that return a concrete destination create the directory
// tree on demand; creation is idempotent.
type Resolver struct {
	// ForecastsDir is the canonical store root.
	ForecastsDir string
	// JobsDir is the staging root for inbound downloads and freshly
	// generated files.
	JobsDir string
}

// Root returns the storage root for a source and optional region, without
// creating it. The jobs category has no regional subdivision, and ensemble
// inputs are stored whole regardless of region.
func (r *Resolver) Root(source domain.Source, region string) string {
	if source == domain.SourceJobs {
		return r.JobsDir
	}
	base := filepath.Join(r.ForecastsDir, string(source))
	if region == "" || source.IsEnsembleInput() {
		return base
	}
	return filepath.Join(base, region)
}

// DatasetPath builds the canonical destination for a dataset file:
// <root>/<year>/<MM>/<region_code>-<source_code>-<file>, creating the
// intermediate directories.
func (r *Resolver) DatasetPath(source domain.Source, region string, initDate time.Time, file string) (string, error) {
	dir := filepath.Join(r.Root(source, region), fmt.Sprintf("%d", initDate.Year()), fmt.Sprintf("%02d", int(initDate.Month())))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create store directory %s: %w", dir, err)
	}
	if source.IsEnsembleInput() {
		region = ""
	}
	return filepath.Join(dir, domain.CanonicalName(region, source, file)), nil
}

// StagingDir returns (creating if absent) the staging directory for a
// source's inbound files.
func (r *Resolver) StagingDir(source domain.Source) (string, error) {
	dir := filepath.Join(r.JobsDir, string(source))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory %s: %w", dir, err)
	}
	return dir, nil
}

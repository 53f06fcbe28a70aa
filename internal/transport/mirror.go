package transport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sewaa/forecast-sync/internal/domain"
	"github.com/sewaa/forecast-sync/internal/store"
)

// Mirror syncs forecast files from an HTTP mirror exposing a plain
// directory listing. It is the fallback provider used when GBMC SFTP
// credentials are not configured, and the primary one for deployments that
// cannot run grib2 post-processing locally.
type Mirror struct {
	BaseURL  string
	Crawler  *Crawler
	Resolver *store.Resolver
	Logger   *slog.Logger
	// MinSize in bytes; smaller downloads are deleted as truncated.
	MinSize int64
}

// SyncOpenIFS crawls the mirror's open-ifs tree and downloads missing
// files straight into the canonical store. Mirror filenames are already in
// canonical form, so the destination is derived by parsing them back.
func (m *Mirror) SyncOpenIFS(ctx context.Context) (int, error) {
	links, err := m.Crawler.Crawl(ctx, m.BaseURL+"/open-ifs", store.DataExt)
	if err != nil {
		return 0, err
	}
	m.Logger.Info("crawled open-ifs mirror", "url", m.BaseURL, "files", len(links))

	fetched := 0
	for _, link := range links {
		name := path.Base(link)
		dest, err := m.openIFSDest(name)
		if err != nil {
			m.Logger.Warn("skipping unrecognized mirror file", "file", name, "error", err)
			continue
		}
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		if m.fetch(ctx, link, dest) {
			fetched++
		}
	}
	return fetched, nil
}

// SyncEnsemble crawls the mirror tree for a cGAN IFS ensemble input and
// downloads files missing from staging. Returns the staged filenames so the
// caller can queue them for migration.
func (m *Mirror) SyncEnsemble(ctx context.Context, source domain.Source) ([]string, error) {
	links, err := m.Crawler.Crawl(ctx, m.BaseURL+"/"+string(source), store.DataExt)
	if err != nil {
		return nil, err
	}
	staging, err := m.Resolver.StagingDir(source)
	if err != nil {
		return nil, err
	}
	existing, err := m.Resolver.GANDateKeys(source, "")
	if err != nil {
		return nil, err
	}
	existingSet := make(map[string]bool, len(existing))
	for _, k := range existing {
		existingSet[k] = true
	}

	var staged []string
	for _, link := range links {
		name := path.Base(link)
		if key, err := domain.GANDateKey(name); err == nil && existingSet[key] {
			continue
		}
		dest := filepath.Join(staging, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		if m.fetch(ctx, link, dest) {
			staged = append(staged, name)
		}
	}
	return staged, nil
}

// fetch downloads one file and applies the minimum-size gate. Failures are
// logged and reported as "not fetched"; they never abort the batch.
func (m *Mirror) fetch(ctx context.Context, link, dest string) bool {
	if err := m.Crawler.Download(ctx, link, dest); err != nil {
		m.Logger.Error("mirror download failed", "url", link, "error", err)
		return false
	}
	info, err := os.Stat(dest)
	if err != nil {
		return false
	}
	if info.Size() < m.MinSize {
		m.Logger.Warn("deleting undersized download", "dest", dest, "size", info.Size(), "min", m.MinSize)
		os.Remove(dest)
		return false
	}
	return true
}

// openIFSDest maps a canonical mirror filename like
// "east_africa-open_ifs-20240115000000-30h-enfo-ef.nc" to its store path.
func (m *Mirror) openIFSDest(name string) (string, error) {
	regionCode, _, ok := strings.Cut(name, "-")
	if !ok {
		return "", fmt.Errorf("no region code in %q", name)
	}
	region := ""
	for _, r := range domain.DefaultRegions {
		if r.Code() == regionCode {
			region = r.Name
			break
		}
	}
	if region == "" {
		return "", fmt.Errorf("unknown region code %q", regionCode)
	}

	parts := strings.SplitN(name, "-", 3)
	if len(parts) < 3 {
		return "", fmt.Errorf("unrecognized filename %q", name)
	}
	initDate, err := domain.ParseECMWFDate(parts[2])
	if err != nil {
		return "", err
	}

	dir := filepath.Join(m.Resolver.Root(domain.SourceOpenIFS, region),
		fmt.Sprintf("%d", initDate.Year()), fmt.Sprintf("%02d", int(initDate.Month())))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create store directory %s: %w", dir, err)
	}
	return filepath.Join(dir, name), nil
}

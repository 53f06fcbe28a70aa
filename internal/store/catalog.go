package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sewaa/forecast-sync/internal/domain"
)

// ListExisting recursively enumerates dataset filenames under the root for a
// source and optional region. An absent root yields an empty set, not an
// error: a store that has never been written simply has nothing synced.
func (r *Resolver) ListExisting(source domain.Source, region string) ([]string, error) {
	return r.ListExistingExt(source, region, DataExt)
}

// ListExistingExt is ListExisting with a caller-chosen file extension.
func (r *Resolver) ListExistingExt(source domain.Source, region, ext string) ([]string, error) {
	root := r.Root(source, region)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ext) {
			files = append(files, d.Name())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan store %s: %w", root, err)
	}
	return files, nil
}

// ECMWFFilesForDate lists the canonical filenames expected for a complete
// open-ifs forecast date under the given region mask.
func ECMWFFilesForDate(region string, initDate time.Time, steps []int) []string {
	files := make([]string, 0, len(steps))
	for _, step := range steps {
		nc := strings.TrimSuffix(domain.ECMWFGribName(initDate, step, "enfo"), ".grib2") + ".nc"
		files = append(files, domain.CanonicalName(region, domain.SourceOpenIFS, nc))
	}
	return files
}

// ForecastDates reconstructs the distinct forecast init dates available for
// a source from the canonical filenames, formatted for display and ordered
// newest first. When strict is set and the source is open-ifs, a date only
// counts once every forecast step file for the region exists.
func (r *Resolver) ForecastDates(source domain.Source, region string, strict bool) ([]string, error) {
	files, err := r.ListExisting(source, region)
	if err != nil {
		return nil, err
	}
	fileSet := make(map[string]bool, len(files))
	keys := map[string]bool{}
	for _, f := range files {
		fileSet[f] = true
		key, err := domain.CanonicalDateKey(f, source)
		if err != nil {
			continue
		}
		// Reduce to the bare date: open-ifs keys carry a 000000 time
		// suffix, GAN keys an _HH init time.
		key = strings.SplitN(key, "-", 2)[0]
		key = strings.SplitN(key, "_", 2)[0]
		key = strings.TrimSuffix(key, "000000")
		keys[key] = true
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))

	var dates []string
	for _, k := range sorted {
		d, err := time.ParseInLocation("20060102", k, time.UTC)
		if err != nil {
			continue
		}
		if strict && source == domain.SourceOpenIFS {
			complete := true
			for _, want := range ECMWFFilesForDate(region, d, domain.ForecastSteps(30, 54, 3)) {
				if !fileSet[want] {
					complete = false
					break
				}
			}
			if !complete {
				continue
			}
		}
		dates = append(dates, d.Format(domain.DisplayDateLayout))
	}
	return dates, nil
}

// GANDateKeys lists the distinct "<YYYYMMDD>_<HH>" keys present for an IFS
// ensemble input or GAN model source. The keys drive the remote-vs-local
// diff for SFTP sync and forecast generation.
func (r *Resolver) GANDateKeys(source domain.Source, region string) ([]string, error) {
	files, err := r.ListExisting(source, region)
	if err != nil {
		return nil, err
	}
	set := map[string]bool{}
	for _, f := range files {
		key, err := domain.GANDateKey(f)
		if err != nil {
			continue
		}
		set[key] = true
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// InitTimes lists the initialization hours stored for a model source on the
// given init date ("20060102" key), sorted ascending.
func (r *Resolver) InitTimes(source domain.Source, region, dateKey string) ([]string, error) {
	files, err := r.ListExisting(source, region)
	if err != nil {
		return nil, err
	}
	set := map[string]bool{}
	for _, f := range files {
		if !strings.Contains(f, dateKey) {
			continue
		}
		if source.IsCount() {
			parts := strings.Split(strings.TrimSuffix(f, DataExt), "_")
			if len(parts) >= 3 {
				set[parts[2]] = true
			}
			continue
		}
		key, err := domain.GANDateKey(f)
		if err != nil {
			continue
		}
		if _, hour, ok := strings.Cut(key, "_"); ok {
			set[hour] = true
		}
	}
	times := make([]string, 0, len(set))
	for tm := range set {
		times = append(times, tm)
	}
	sort.Strings(times)
	return times, nil
}

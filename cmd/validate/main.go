// Command validate performs integrity checks over the canonical forecast
// store and the staging area: every file must follow the filename grammar,
// sit in the year/month directory matching its init date, and meet its
// minimum plausible size. It prints a per-phase report and exits non-zero
// when any phase fails, so it can run from cron next to syncd.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -forecasts-dir /data/forecasts \
//	  -jobs-dir /data/jobs \
//	  -logs-dir /data/logs
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sewaa/forecast-sync/internal/config"
	"github.com/sewaa/forecast-sync/internal/domain"
	"github.com/sewaa/forecast-sync/internal/store"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

var storedSources = []domain.Source{
	domain.SourceOpenIFS,
	domain.SourceCganIFS6h,
	domain.SourceCganIFS7d,
	domain.SourceJurreBrishtiEns,
	domain.SourceJurreBrishtiCount,
	domain.SourceMvuaKubwaEns,
	domain.SourceMvuaKubwaCount,
}

func main() {
	forecastsDir := flag.String("forecasts-dir", "", "canonical store root")
	jobsDir := flag.String("jobs-dir", "", "staging root")
	logsDir := flag.String("logs-dir", "", "directory holding the status ledger; optional")
	flag.Parse()

	if *forecastsDir == "" || *jobsDir == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*forecastsDir, *jobsDir, *logsDir))
}

func run(forecastsDir, jobsDir, logsDir string) int {
	phases := []*phase{
		validateStore(forecastsDir),
		validateStaging(jobsDir),
	}
	if logsDir != "" {
		phases = append(phases, validateLedger(logsDir))
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  %s\n", e)
		}
	}
	if failed > 0 {
		fmt.Printf("%d of %d phases failed\n", failed, len(phases))
		return 1
	}
	fmt.Printf("all %d phases passed\n", len(phases))
	return 0
}

// validateStore walks the canonical tree checking the filename grammar, the
// year/month placement, and minimum file sizes.
func validateStore(root string) *phase {
	p := &phase{name: "canonical store"}
	for _, source := range storedSources {
		sourceRoot := filepath.Join(root, string(source))
		if _, err := os.Stat(sourceRoot); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(sourceRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), store.DataExt) {
				return nil
			}
			checkStoredFile(p, source, path, d)
			return nil
		})
		if err != nil {
			p.errorf("walk %s: %v", sourceRoot, err)
		}
	}
	return p
}

func checkStoredFile(p *phase, source domain.Source, path string, d fs.DirEntry) {
	name := d.Name()
	key, err := domain.CanonicalDateKey(name, source)
	if err != nil {
		p.errorf("%s: unparseable canonical name: %v", path, err)
		return
	}

	// The file must sit under <year>/<MM> matching its own date key. Count
	// filenames carry a valid-hour key instead of an init date, so they
	// only get the grammar check.
	if !source.IsCount() {
		dir := filepath.Dir(path)
		month := filepath.Base(dir)
		year := filepath.Base(filepath.Dir(dir))
		if !strings.HasPrefix(key, year+month) {
			p.errorf("%s: dated %s but stored under %s/%s", path, key, year, month)
		}
	}

	info, err := d.Info()
	if err != nil {
		p.errorf("%s: stat: %v", path, err)
		return
	}
	floor := int64(config.MinRegionalBytes)
	if source.IsEnsembleInput() {
		floor = config.MinEnsembleBytes
	}
	if info.Size() < floor {
		p.errorf("%s: %d bytes, below the %d minimum for %s", path, info.Size(), floor, source)
	}
}

// validateStaging checks that every file waiting in staging follows the
// staging naming convention for its source directory.
func validateStaging(root string) *phase {
	p := &phase{name: "staging area"}
	for _, source := range storedSources {
		dir := filepath.Join(root, string(source))
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			p.errorf("read %s: %v", dir, err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			switch {
			case strings.HasSuffix(name, store.DataExt):
				// open-ifs staging holds converted ECMWF step files,
				// the other sources IFS_/GAN_ staged names.
				if source == domain.SourceOpenIFS {
					if _, err := domain.ParseECMWFDate(name); err != nil {
						p.errorf("%s/%s: unparseable converted step name: %v", dir, name, err)
					}
				} else if _, err := domain.ParseStagedName(name, source.StripPrefix()); err != nil {
					p.errorf("%s/%s: unparseable staged name: %v", dir, name, err)
				}
			case strings.HasSuffix(name, ".grib2"):
				if _, err := domain.ParseECMWFDate(name); err != nil {
					p.errorf("%s/%s: unparseable grib2 name: %v", dir, name, err)
				}
			case strings.HasSuffix(name, ".idx"):
				// Index droppings are cleaned by the post-processor.
			default:
				p.errorf("%s/%s: unexpected file in staging", dir, name)
			}
		}
	}
	return p
}

// validateLedger checks the status ledger parses and carries only known
// source tags.
func validateLedger(dir string) *phase {
	p := &phase{name: "status ledger"}
	path := filepath.Join(dir, "data-sync-tasks-status.json")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p
	}
	if err != nil {
		p.errorf("read %s: %v", path, err)
		return p
	}
	var flags map[string]map[string]bool
	if err := json.Unmarshal(raw, &flags); err != nil {
		p.errorf("%s: invalid JSON: %v", path, err)
		return p
	}
	for kind, sources := range flags {
		if kind != "download" && kind != "processing" {
			p.errorf("%s: unknown ledger key %q", path, kind)
		}
		for tag := range sources {
			if _, err := domain.ParseSource(tag); err != nil {
				p.errorf("%s: unknown source %q under %s", path, tag, kind)
			}
		}
	}
	return p
}

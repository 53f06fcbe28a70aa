package domain

import (
	"fmt"
	"strings"
)

// Source identifies a forecast data source or model product. The string
// values appear in store paths, canonical filenames, and the status ledger,
// so they must stay stable across releases.
type Source string

const (
	// SourceOpenIFS is the ECMWF open-data IFS ensemble, stored with one
	// regional slice per configured region.
	SourceOpenIFS Source = "open-ifs"

	// SourceCganIFS6h and SourceCganIFS7d are the IFS ensemble inputs
	// consumed by the cGAN models. They are stored whole, without regional
	// subdivision.
	SourceCganIFS6h Source = "cgan-ifs-6h-ens"
	SourceCganIFS7d Source = "cgan-ifs-7d-ens"

	// cGAN model outputs.
	SourceJurreBrishtiEns   Source = "jurre-brishti-ens"
	SourceJurreBrishtiCount Source = "jurre-brishti-count"
	SourceMvuaKubwaEns      Source = "mvua-kubwa-ens"
	SourceMvuaKubwaCount    Source = "mvua-kubwa-count"

	// SourceJobs is the staging category: inbound downloads and freshly
	// generated files land here before migration. No regional subdivision
	// and no year/month tree.
	SourceJobs Source = "jobs"
)

// knownSources lists every source tag accepted by ParseSource.
var knownSources = []Source{
	SourceOpenIFS,
	SourceCganIFS6h,
	SourceCganIFS7d,
	SourceJurreBrishtiEns,
	SourceJurreBrishtiCount,
	SourceMvuaKubwaEns,
	SourceMvuaKubwaCount,
	SourceJobs,
}

// ParseSource validates a source tag from CLI flags or API paths.
func ParseSource(s string) (Source, error) {
	for _, src := range knownSources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown data source %q", s)
}

func (s Source) String() string { return string(s) }

// Code returns the source tag as it appears inside canonical filenames,
// with dashes replaced by underscores.
func (s Source) Code() string {
	return strings.ReplaceAll(string(s), "-", "_")
}

// IsEnsembleInput reports whether the source is a whole-domain cGAN IFS
// ensemble input. These skip regional subdivision and are subject to the
// ensemble minimum-size check during migration.
func (s Source) IsEnsembleInput() bool {
	return s == SourceCganIFS6h || s == SourceCganIFS7d
}

// IsCount reports whether the source is an exceedance-count product.
func (s Source) IsCount() bool {
	return strings.HasSuffix(string(s), "-count")
}

// IsModel reports whether the source is a cGAN model product (ensemble or
// count) generated locally rather than downloaded.
func (s Source) IsModel() bool {
	return strings.HasPrefix(string(s), "jurre-brishti") || strings.HasPrefix(string(s), "mvua-kubwa")
}

// EnsembleInput maps a cGAN model to the IFS ensemble source that feeds it:
// jurre-brishti models consume the 6-hour ensemble, mvua-kubwa the 7-day one.
func (s Source) EnsembleInput() Source {
	if strings.HasPrefix(string(s), "mvua-kubwa") {
		return SourceCganIFS7d
	}
	return SourceCganIFS6h
}

// StripPrefix is the staging filename prefix removed during migration of
// files belonging to this source.
func (s Source) StripPrefix() string {
	switch {
	case s.IsEnsembleInput():
		return "IFS_"
	case s.IsModel():
		return "GAN_"
	default:
		return ""
	}
}

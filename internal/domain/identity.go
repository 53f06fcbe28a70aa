package domain

import (
	"fmt"
	"strings"
	"time"
)

// DisplayDateLayout is the human-readable init date format returned by
// catalog queries, e.g. "Jan 15, 2024".
const DisplayDateLayout = "Jan 02, 2006"

// stagedDateLayout matches the date portion of IFS_/GAN_ staging filenames,
// e.g. "20240115_00".
const stagedDateLayout = "20060102_15"

// DatasetIdentity is the canonical join key between the remote catalogs and
// the local store: which source produced the data, for which init date and
// hour, and (where applicable) which regional crop.
type DatasetIdentity struct {
	Source   Source
	Region   string // region name, empty when the source has no subdivision
	InitDate time.Time
	InitHour int
	HasHour  bool
}

// StagedName returns the staging filename for the identity, e.g.
// "IFS_20240115_00Z.nc" for a cGAN ensemble input.
func (id DatasetIdentity) StagedName() string {
	return fmt.Sprintf("%s%s_%02dZ.nc", id.Source.StripPrefix(), id.InitDate.Format("20060102"), id.InitHour)
}

// DateKey returns the "<YYYYMMDD>_<HH>" key used to diff remote listings
// against the local catalog.
func (id DatasetIdentity) DateKey() string {
	return fmt.Sprintf("%s_%02d", id.InitDate.Format("20060102"), id.InitHour)
}

// ParseStagedName extracts a dataset identity from a staging filename after
// stripping the given prefix, e.g. ("IFS_20240115_00Z.nc", "IFS_").
func ParseStagedName(name, prefix string) (time.Time, error) {
	trimmed := strings.TrimPrefix(name, prefix)
	trimmed = strings.TrimSuffix(trimmed, "Z.nc")
	t, err := time.ParseInLocation(stagedDateLayout, trimmed, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse staged filename %q: %w", name, err)
	}
	return t, nil
}

// ECMWFGribName builds the open-data download filename for one forecast
// step, e.g. "20240115000000-30h-enfo-ef.grib2".
func ECMWFGribName(initDate time.Time, step int, stream string) string {
	return fmt.Sprintf("%s000000-%dh-%s-ef.grib2", initDate.Format("20060102"), step, stream)
}

// ParseECMWFDate extracts the init date from an open-data filename
// ("20240115000000-30h-enfo-ef.grib2" or its .nc counterpart).
func ParseECMWFDate(name string) (time.Time, error) {
	stamp, _, ok := strings.Cut(name, "-")
	if !ok {
		return time.Time{}, fmt.Errorf("parse ecmwf filename %q: missing step suffix", name)
	}
	t, err := time.ParseInLocation("20060102150405", stamp, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse ecmwf filename %q: %w", name, err)
	}
	return t, nil
}

// CanonicalName builds the canonical store filename for a source file:
// "<region_code>-<source_code>-<file>". The region code is empty (leaving a
// leading dash) for sources stored without regional subdivision, which keeps
// the on-disk layout identical to earlier deployments.
func CanonicalName(regionName string, source Source, file string) string {
	return fmt.Sprintf("%s-%s-%s", RegionCode(regionName), source.Code(), file)
}

// CanonicalDateKey extracts the "<YYYYMMDD>" or "<YYYYMMDD>_<HH>" portion of
// a canonical filename. Count products encode the date in the second
// underscore field; everything else carries it in the third dash field.
func CanonicalDateKey(name string, source Source) (string, error) {
	base := strings.TrimSuffix(name, ".nc")
	if source.IsCount() {
		parts := strings.Split(base, "_")
		if len(parts) < 2 {
			return "", fmt.Errorf("unrecognized count filename %q", name)
		}
		return parts[1], nil
	}
	parts := strings.SplitN(base, "-", 3)
	if len(parts) < 3 {
		return "", fmt.Errorf("unrecognized canonical filename %q", name)
	}
	return strings.TrimSuffix(parts[2], "Z"), nil
}

// GANDateKey extracts the "<YYYYMMDD>_<HH>" key from a canonical IFS or GAN
// filename, e.g. "kenya-jurre_brishti_ens-20240115_00Z.nc" -> "20240115_00".
func GANDateKey(name string) (string, error) {
	base := strings.TrimSuffix(name, "Z.nc")
	parts := strings.SplitN(base, "-", 3)
	if len(parts) < 3 {
		return "", fmt.Errorf("unrecognized canonical filename %q", name)
	}
	return parts[2], nil
}

// PossibleForecastDates computes the candidate init dates for a sync pass:
// either the single explicit date ("2006-01-02") or today and daysBack
// previous days, newest first.
func PossibleForecastDates(explicit string, daysBack int) ([]time.Time, error) {
	if explicit != "" {
		t, err := time.ParseInLocation("2006-01-02", explicit, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse forecast date %q: %w", explicit, err)
		}
		return []time.Time{t}, nil
	}
	now := clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 0, daysBack+1)
	for i := 0; i <= daysBack; i++ {
		dates = append(dates, today.AddDate(0, 0, -i))
	}
	return dates, nil
}

// ForecastSteps lists the relevant lead times in hours: start..final
// inclusive at the given stride.
func ForecastSteps(start, final, stride int) []int {
	if stride <= 0 {
		stride = 3
	}
	var steps []int
	for s := start; s <= final; s += stride {
		steps = append(steps, s)
	}
	return steps
}

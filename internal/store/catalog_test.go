package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sewaa/forecast-sync/internal/domain"
)

// seedFile drops an empty dataset file at the canonical location.
func seedFile(t *testing.T, r *Resolver, source domain.Source, region string, initDate time.Time, file string) {
	t.Helper()
	path, err := r.DatasetPath(source, region, initDate, file)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestListExisting_AbsentRoot(t *testing.T) {
	r := newTestResolver(t)

	files, err := r.ListExisting(domain.SourceOpenIFS, "Kenya")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestListExisting_Recursive(t *testing.T) {
	r := newTestResolver(t)
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	seedFile(t, r, domain.SourceCganIFS6h, "", jan, "20240115_00Z.nc")
	seedFile(t, r, domain.SourceCganIFS6h, "", feb, "20240202_06Z.nc")

	// A non-dataset file is ignored.
	idx := filepath.Join(r.Root(domain.SourceCganIFS6h, ""), "2024", "01", "stray.idx")
	require.NoError(t, os.WriteFile(idx, nil, 0o644))

	files, err := r.ListExisting(domain.SourceCganIFS6h, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"-cgan_ifs_6h_ens-20240115_00Z.nc",
		"-cgan_ifs_6h_ens-20240202_06Z.nc",
	}, files)
}

func TestForecastDates_NewestFirst(t *testing.T) {
	r := newTestResolver(t)
	for _, day := range []int{14, 15, 13} {
		d := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
		seedFile(t, r, domain.SourceJurreBrishtiEns, "Kenya", d, d.Format("20060102")+"_00Z.nc")
	}

	dates, err := r.ForecastDates(domain.SourceJurreBrishtiEns, "Kenya", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan 15, 2024", "Jan 14, 2024", "Jan 13, 2024"}, dates)
}

func TestForecastDates_StrictOpenIFS(t *testing.T) {
	r := newTestResolver(t)
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	steps := domain.ForecastSteps(30, 54, 3)

	// Complete date: every step file present.
	for _, step := range steps {
		nc := domain.ECMWFGribName(d, step, "enfo")
		nc = nc[:len(nc)-len(".grib2")] + ".nc"
		seedFile(t, r, domain.SourceOpenIFS, "East Africa", d, nc)
	}
	// Incomplete date: a single step only.
	prev := d.AddDate(0, 0, -1)
	nc := domain.ECMWFGribName(prev, 30, "enfo")
	nc = nc[:len(nc)-len(".grib2")] + ".nc"
	seedFile(t, r, domain.SourceOpenIFS, "East Africa", prev, nc)

	strict, err := r.ForecastDates(domain.SourceOpenIFS, "East Africa", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan 15, 2024"}, strict)

	loose, err := r.ForecastDates(domain.SourceOpenIFS, "East Africa", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan 15, 2024", "Jan 14, 2024"}, loose)
}

func TestGANDateKeys(t *testing.T) {
	r := newTestResolver(t)
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	seedFile(t, r, domain.SourceCganIFS6h, "", d, "20240115_00Z.nc")
	seedFile(t, r, domain.SourceCganIFS6h, "", d, "20240115_06Z.nc")

	keys, err := r.GANDateKeys(domain.SourceCganIFS6h, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"20240115_00", "20240115_06"}, keys)
}

func TestInitTimes(t *testing.T) {
	r := newTestResolver(t)
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	seedFile(t, r, domain.SourceJurreBrishtiEns, "Kenya", d, "20240115_00Z.nc")
	seedFile(t, r, domain.SourceJurreBrishtiEns, "Kenya", d, "20240115_12Z.nc")
	seedFile(t, r, domain.SourceJurreBrishtiEns, "Kenya", d.AddDate(0, 0, 1), "20240116_06Z.nc")

	times, err := r.InitTimes(domain.SourceJurreBrishtiEns, "Kenya", "20240115")
	require.NoError(t, err)
	assert.Equal(t, []string{"00", "12"}, times)
}

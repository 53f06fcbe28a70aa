package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagedName(t *testing.T) {
	id := DatasetIdentity{
		Source:   SourceCganIFS6h,
		InitDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		InitHour: 0,
		HasHour:  true,
	}
	assert.Equal(t, "IFS_20240115_00Z.nc", id.StagedName())
	assert.Equal(t, "20240115_00", id.DateKey())

	id.Source = SourceJurreBrishtiEns
	id.InitHour = 6
	assert.Equal(t, "GAN_20240115_06Z.nc", id.StagedName())
}

func TestParseStagedName(t *testing.T) {
	got, err := ParseStagedName("IFS_20240115_06Z.nc", "IFS_")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC), got)

	_, err = ParseStagedName("IFS_garbage.nc", "IFS_")
	assert.Error(t, err)
}

func TestECMWFGribName(t *testing.T) {
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "20240115000000-30h-enfo-ef.grib2", ECMWFGribName(d, 30, "enfo"))

	parsed, err := ParseECMWFDate("20240115000000-30h-enfo-ef.grib2")
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		name   string
		region string
		source Source
		file   string
		want   string
	}{
		{
			name:   "regional open-ifs",
			region: "East Africa",
			source: SourceOpenIFS,
			file:   "20240115000000-30h-enfo-ef.nc",
			want:   "east_africa-open_ifs-20240115000000-30h-enfo-ef.nc",
		},
		{
			name:   "ensemble input without region",
			region: "",
			source: SourceCganIFS6h,
			file:   "20240115_00Z.nc",
			want:   "-cgan_ifs_6h_ens-20240115_00Z.nc",
		},
		{
			name:   "gan output for kenya",
			region: "Kenya",
			source: SourceJurreBrishtiEns,
			file:   "20240115_00Z.nc",
			want:   "kenya-jurre_brishti_ens-20240115_00Z.nc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalName(tt.region, tt.source, tt.file))
		})
	}
}

func TestCanonicalDateKey(t *testing.T) {
	key, err := CanonicalDateKey("east_africa-open_ifs-20240115000000-30h-enfo-ef.nc", SourceOpenIFS)
	require.NoError(t, err)
	assert.Equal(t, "20240115000000-30h-enfo-ef", key)

	key, err = CanonicalDateKey("counts_20240115_00_54h.nc", SourceJurreBrishtiCount)
	require.NoError(t, err)
	assert.Equal(t, "20240115", key)

	_, err = CanonicalDateKey("noise.nc", SourceOpenIFS)
	assert.Error(t, err)
}

func TestGANDateKey(t *testing.T) {
	key, err := GANDateKey("kenya-jurre_brishti_ens-20240115_00Z.nc")
	require.NoError(t, err)
	assert.Equal(t, "20240115_00", key)

	key, err = GANDateKey("-cgan_ifs_6h_ens-20240116_12Z.nc")
	require.NoError(t, err)
	assert.Equal(t, "20240116_12", key)
}

func TestPossibleForecastDates(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC))
	SetClock(fake)
	t.Cleanup(func() { SetClock(nil) })

	dates, err := PossibleForecastDates("", 2)
	require.NoError(t, err)
	require.Len(t, dates, 3)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC), dates[2])

	dates, err = PossibleForecastDates("2023-12-31", 4)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), dates[0])

	_, err = PossibleForecastDates("31/12/2023", 4)
	assert.Error(t, err)
}

func TestForecastSteps(t *testing.T) {
	assert.Equal(t, []int{30, 33, 36, 39, 42, 45, 48, 51, 54}, ForecastSteps(30, 54, 3))
	assert.Equal(t, []int{6}, ForecastSteps(6, 8, 3))
}

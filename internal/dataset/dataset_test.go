package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grid builds a dataset with one precipitation variable over
// (latitude, longitude).
func grid(lats, lons []float64) *Dataset {
	values := make([]float64, 0, len(lats)*len(lons))
	for i := range lats {
		for j := range lons {
			values = append(values, float64(i*len(lons)+j))
		}
	}
	return &Dataset{
		Coords: map[string][]float64{
			"latitude":  lats,
			"longitude": lons,
		},
		Vars: map[string]*Variable{
			"tp": {Dims: []string{"latitude", "longitude"}, Values: values},
		},
	}
}

func seq(from, to float64) []float64 {
	var out []float64
	if from <= to {
		for v := from; v <= to; v++ {
			out = append(out, v)
		}
		return out
	}
	for v := from; v >= to; v-- {
		out = append(out, v)
	}
	return out
}

func TestStandardize(t *testing.T) {
	tests := []struct {
		name string
		dims map[string][]float64
	}{
		{"already canonical", map[string][]float64{"latitude": {0, 1}, "longitude": {0, 1}}},
		{"lon lat naming", map[string][]float64{"lat": {0, 1}, "lon": {0, 1}}},
		{"x y naming", map[string][]float64{"y": {0, 1}, "x": {0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dimNames []string
			for name := range tt.dims {
				dimNames = append(dimNames, name)
			}
			ds := &Dataset{
				Coords: tt.dims,
				Vars: map[string]*Variable{
					"tp": {Dims: dimNames, Values: make([]float64, 4)},
				},
			}
			ds.Standardize()

			assert.Contains(t, ds.Coords, "latitude")
			assert.Contains(t, ds.Coords, "longitude")
			assert.Len(t, ds.Coords, 2)
			assert.ElementsMatch(t, []string{"latitude", "longitude"}, ds.Vars["tp"].Dims)
		})
	}
}

func TestSliceBBox_AscendingLatitude(t *testing.T) {
	ds := grid(seq(0, 10), seq(0, 10))

	out, err := ds.SliceBBox([4]float64{0, 10, 2, 8})
	require.NoError(t, err)

	assert.Equal(t, seq(2, 8), out.Coords["latitude"])
	assert.Equal(t, seq(0, 10), out.Coords["longitude"])
	assert.Len(t, out.Vars["tp"].Values, 7*11)
}

func TestSliceBBox_DescendingLatitude(t *testing.T) {
	ds := grid(seq(10, 0), seq(0, 10))

	out, err := ds.SliceBBox([4]float64{0, 10, 2, 8})
	require.NoError(t, err)

	// Storage order preserved: 8 down to 2.
	assert.Equal(t, seq(8, 2), out.Coords["latitude"])
	assert.Len(t, out.Vars["tp"].Values, 7*11)

	// Same geographic coverage as the ascending slice.
	asc, err := grid(seq(0, 10), seq(0, 10)).SliceBBox([4]float64{0, 10, 2, 8})
	require.NoError(t, err)
	assert.ElementsMatch(t, asc.Coords["latitude"], out.Coords["latitude"])
}

func TestSliceBBox_ValuesFollowCrop(t *testing.T) {
	ds := grid(seq(0, 3), seq(0, 3))

	out, err := ds.SliceBBox([4]float64{1, 2, 1, 2})
	require.NoError(t, err)

	// Rows 1-2, columns 1-2 of a 4x4 grid numbered row-major.
	assert.Equal(t, []float64{5, 6, 9, 10}, out.Vars["tp"].Values)
}

func TestSliceBBox_NoLatitude(t *testing.T) {
	ds := &Dataset{
		Coords: map[string][]float64{"longitude": seq(0, 10)},
		Vars:   map[string]*Variable{},
	}
	_, err := ds.SliceBBox([4]float64{0, 10, 2, 8})
	assert.Error(t, err)
}

func TestSliceBBox_EmptySelection(t *testing.T) {
	ds := grid(seq(0, 10), seq(0, 10))
	_, err := ds.SliceBBox([4]float64{40, 50, 2, 8})
	assert.Error(t, err)
}

func TestSubset_HigherRankVariable(t *testing.T) {
	// (number, latitude, longitude) ensemble variable: slicing latitude
	// must respect the leading ensemble dimension's stride.
	lats, lons := seq(0, 2), seq(0, 1)
	values := make([]float64, 2*3*2)
	for i := range values {
		values[i] = float64(i)
	}
	ds := &Dataset{
		Coords: map[string][]float64{
			"number":    {0, 1},
			"latitude":  lats,
			"longitude": lons,
		},
		Vars: map[string]*Variable{
			"tp": {Dims: []string{"number", "latitude", "longitude"}, Values: values},
		},
	}

	out, err := ds.SliceBBox([4]float64{0, 1, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4, 5, 8, 9, 10, 11}, out.Vars["tp"].Values)
	assert.Equal(t, []float64{0, 1}, out.Coords["number"])
}

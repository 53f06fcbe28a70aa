// Package dataset holds the in-memory gridded dataset model used during
// filesystem migration: axis-name standardization, bounding-box slicing, and
// a codec boundary for the on-disk NetCDF representation.
//
// The model is deliberately small. Rendering and statistics live outside
// this service; migration only needs to read a file, normalize its
// coordinate naming, crop it, and write it back out.
package dataset

import (
	"fmt"
	"slices"
)

// Variable is one data variable: values in row-major order over Dims.
type Variable struct {
	Dims   []string
	Values []float64
}

// Dataset is a gridded dataset: named coordinate axes plus data variables
// defined over them.
type Dataset struct {
	// Coords maps a dimension name to its coordinate values, in storage
	// order (latitude may be ascending or descending depending on the
	// upstream provider).
	Coords map[string][]float64
	// Vars maps variable names to their data.
	Vars map[string]*Variable
}

// axisRenames maps provider-specific axis names to the canonical ones.
// Different upstream providers disagree on axis naming; everything after
// migration speaks latitude/longitude.
var axisRenames = map[string]string{
	"lon": "longitude",
	"lat": "latitude",
	"x":   "longitude",
	"y":   "latitude",
}

// Standardize renames coordinate axes to the canonical latitude/longitude
// naming. Datasets already using canonical names pass through unchanged.
func (d *Dataset) Standardize() {
	for from, to := range axisRenames {
		if vals, ok := d.Coords[from]; ok {
			if _, exists := d.Coords[to]; !exists {
				d.Coords[to] = vals
				delete(d.Coords, from)
			}
		}
	}
	for _, v := range d.Vars {
		for i, dim := range v.Dims {
			if to, ok := axisRenames[dim]; ok {
				v.Dims[i] = to
			}
		}
	}
}

// DimLen returns the length of a dimension.
func (d *Dataset) DimLen(name string) int {
	return len(d.Coords[name])
}

// subset returns a copy of the dataset keeping only index range [lo, hi]
// (inclusive) along the named dimension. Variables not defined over that
// dimension are copied unchanged.
func (d *Dataset) subset(dim string, lo, hi int) (*Dataset, error) {
	coords, ok := d.Coords[dim]
	if !ok {
		return nil, fmt.Errorf("dataset has no %s dimension", dim)
	}
	if lo < 0 || hi >= len(coords) || lo > hi {
		return nil, fmt.Errorf("empty %s selection [%d, %d]", dim, lo, hi)
	}

	out := &Dataset{
		Coords: make(map[string][]float64, len(d.Coords)),
		Vars:   make(map[string]*Variable, len(d.Vars)),
	}
	for name, vals := range d.Coords {
		if name == dim {
			out.Coords[name] = slices.Clone(vals[lo : hi+1])
		} else {
			out.Coords[name] = slices.Clone(vals)
		}
	}
	for name, v := range d.Vars {
		sub, err := subsetVariable(d, v, dim, lo, hi)
		if err != nil {
			return nil, fmt.Errorf("slice variable %s: %w", name, err)
		}
		out.Vars[name] = sub
	}
	return out, nil
}

// subsetVariable copies v keeping [lo, hi] along dim. Row-major layout: the
// stride of a dimension is the product of the lengths of the dimensions
// after it.
func subsetVariable(src *Dataset, v *Variable, dim string, lo, hi int) (*Variable, error) {
	axis := slices.Index(v.Dims, dim)
	if axis < 0 {
		return &Variable{Dims: slices.Clone(v.Dims), Values: slices.Clone(v.Values)}, nil
	}

	srcShape := make([]int, len(v.Dims))
	dstShape := make([]int, len(v.Dims))
	for i, d := range v.Dims {
		srcShape[i] = src.DimLen(d)
		dstShape[i] = src.DimLen(d)
	}
	dstShape[axis] = hi - lo + 1

	total := 1
	for _, n := range srcShape {
		total *= n
	}
	if total != len(v.Values) {
		return nil, fmt.Errorf("variable has %d values, dims imply %d", len(v.Values), total)
	}

	dstTotal := 1
	for _, n := range dstShape {
		dstTotal *= n
	}
	dst := make([]float64, 0, dstTotal)

	idx := make([]int, len(srcShape))
	for flat := 0; flat < total; flat++ {
		if idx[axis] >= lo && idx[axis] <= hi {
			dst = append(dst, v.Values[flat])
		}
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < srcShape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return &Variable{Dims: slices.Clone(v.Dims), Values: dst}, nil
}

package dataset

import "fmt"

// SliceBBox crops the dataset to a bounding box [lonMin, lonMax, latMin,
// latMax]. Longitude is assumed ascending. Latitude storage order differs by
// provider, and label slicing is order-dependent: an ascending axis is
// sliced [latMin, latMax], a descending one [latMax, latMin]. Both yield the
// same geographic coverage with storage order preserved.
func (d *Dataset) SliceBBox(bbox [4]float64) (*Dataset, error) {
	out, err := d.sliceAxis("longitude", bbox[0], bbox[1])
	if err != nil {
		return nil, fmt.Errorf("slice longitude: %w", err)
	}

	lats := out.Coords["latitude"]
	if len(lats) == 0 {
		return nil, fmt.Errorf("slice latitude: dataset has no latitude dimension")
	}
	if len(lats) > 1 && lats[0] > lats[len(lats)-1] {
		out, err = out.sliceAxis("latitude", bbox[3], bbox[2])
	} else {
		out, err = out.sliceAxis("latitude", bbox[2], bbox[3])
	}
	if err != nil {
		return nil, fmt.Errorf("slice latitude: %w", err)
	}
	return out, nil
}

// sliceAxis selects the contiguous index range between the labels from and
// to, given in the axis's storage order (from >= to on a descending axis).
func (d *Dataset) sliceAxis(dim string, from, to float64) (*Dataset, error) {
	coords, ok := d.Coords[dim]
	if !ok {
		return nil, fmt.Errorf("dataset has no %s dimension", dim)
	}
	ascending := len(coords) < 2 || coords[0] <= coords[len(coords)-1]

	first, last := -1, -1
	for i, v := range coords {
		inside := v >= from && v <= to
		if !ascending {
			inside = v <= from && v >= to
		}
		if inside {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil, fmt.Errorf("no %s values inside [%v, %v]", dim, from, to)
	}
	return d.subset(dim, first, last)
}

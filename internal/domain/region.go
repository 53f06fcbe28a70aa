package domain

import "strings"

// Region is a named bounding box used to crop whole-domain datasets into
// per-country slices.
type Region struct {
	Name string
	// Extent is [lonMin, lonMax, latMin, latMax] in degrees.
	Extent [4]float64
}

// Code returns the region name as it appears in canonical filenames:
// lower-cased with spaces replaced by underscores.
func (r Region) Code() string {
	return strings.ToLower(strings.ReplaceAll(r.Name, " ", "_"))
}

// RegionCode builds a filename region code from a bare region name. An empty
// name yields an empty code, matching sources stored without subdivision.
func RegionCode(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// DefaultRegions is the operational region set. The first entry is the
// whole-domain mask: downloads are cropped to it, and the remaining entries
// are sliced out of it during migration.
var DefaultRegions = []Region{
	{Name: "East Africa", Extent: [4]float64{19.5, 54.5, -14.0, 25.0}},
	{Name: "Burundi", Extent: [4]float64{28.9, 31.0, -4.6, -2.2}},
	{Name: "Ethiopia", Extent: [4]float64{32.9, 48.1, 3.3, 15.0}},
	{Name: "Kenya", Extent: [4]float64{33.8, 42.0, -4.8, 5.6}},
	{Name: "Rwanda", Extent: [4]float64{28.8, 31.0, -3.0, -1.0}},
	{Name: "South Sudan", Extent: [4]float64{24.0, 36.0, 3.4, 12.3}},
	{Name: "Tanzania", Extent: [4]float64{29.2, 40.6, -11.8, -0.9}},
	{Name: "Uganda", Extent: [4]float64{29.4, 35.1, -1.6, 4.3}},
}

// DefaultMask returns the whole-domain region.
func DefaultMask() Region { return DefaultRegions[0] }

// FindRegion looks a region up by name in the default set.
func FindRegion(name string) (Region, bool) {
	for _, r := range DefaultRegions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// Command genfixture writes a synthetic whole-domain ensemble NetCDF file
// into a staging directory, named by the staging convention. It exists so
// the migrator and the slicing path can be exercised locally without a
// multi-gigabyte download from the GBMC server.
//
// Usage:
//
//	go run ./cmd/genfixture \
//	  -jobs-dir /tmp/jobs \
//	  -source cgan-ifs-6h-ens \
//	  -date 20240115 -hour 0
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"time"

	"github.com/sewaa/forecast-sync/internal/dataset"
	"github.com/sewaa/forecast-sync/internal/domain"
	"github.com/sewaa/forecast-sync/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	jobsDir := flag.String("jobs-dir", "", "staging root the file is written under")
	sourceTag := flag.String("source", string(domain.SourceCganIFS6h), "data source the fixture belongs to")
	dateStr := flag.String("date", "", "forecast init date (YYYYMMDD)")
	hour := flag.Int("hour", 0, "forecast init hour")
	step := flag.Float64("step", 0.1, "grid spacing in degrees")
	flag.Parse()

	if *jobsDir == "" || *dateStr == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -jobs-dir, -date")
	}
	source, err := domain.ParseSource(*sourceTag)
	if err != nil {
		return err
	}
	initDate, err := time.ParseInLocation("20060102", *dateStr, time.UTC)
	if err != nil {
		return fmt.Errorf("parse -date: %w", err)
	}

	resolver := &store.Resolver{JobsDir: *jobsDir, ForecastsDir: *jobsDir}
	stagingDir, err := resolver.StagingDir(source)
	if err != nil {
		return err
	}

	id := domain.DatasetIdentity{Source: source, InitDate: initDate, InitHour: *hour, HasHour: true}
	path := filepath.Join(stagingDir, id.StagedName())

	ds := synthetic(domain.DefaultMask(), *step)
	if err := (dataset.NetCDFCodec{}).Write(ds, path); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// synthetic builds a dataset covering the given region with a smooth
// precipitation-like field, so regional slices are visually distinguishable
// when plotted.
func synthetic(region domain.Region, step float64) *dataset.Dataset {
	lons := axis(region.Extent[0], region.Extent[1], step)
	lats := axis(region.Extent[2], region.Extent[3], step)

	values := make([]float64, 0, len(lats)*len(lons))
	for _, lat := range lats {
		for _, lon := range lons {
			values = append(values, math.Abs(math.Sin(lat/4)*math.Cos(lon/4))*25)
		}
	}

	return &dataset.Dataset{
		Coords: map[string][]float64{
			"latitude":  lats,
			"longitude": lons,
		},
		Vars: map[string]*dataset.Variable{
			"tp": {Dims: []string{"latitude", "longitude"}, Values: values},
		},
	}
}

func axis(from, to, step float64) []float64 {
	var vals []float64
	for v := from; v <= to+1e-9; v += step {
		vals = append(vals, v)
	}
	return vals
}

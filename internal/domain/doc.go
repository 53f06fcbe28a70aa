// Package domain models the forecast data sources, regions, and filename
// conventions shared by the synchronization jobs and the API façade.
//
// # Data Sources
//
// Precipitation forecasts arrive from three providers:
//
//   - ECMWF open data: global IFS ensemble runs, fetched as grib2 via the
//     open-data REST API and post-processed into regional NetCDF files.
//   - GBMC SFTP: IFS ensemble inputs prepared for the cGAN models
//     ("cgan-ifs-6h-ens" and "cgan-ifs-7d-ens").
//   - HTTP mirror: a plain directory listing mirroring both of the above,
//     used when SFTP credentials are not configured.
//
// The cGAN models themselves ("jurre-brishti-*" and "mvua-kubwa-*") are not
// downloaded; their outputs are produced locally by an external inference
// process and routed through the same filesystem migration as downloads.
//
// # Filename Conventions
//
// Inbound staging files:
//
//	IFS_<YYYYMMDD>_<HH>Z.nc                     cGAN IFS ensemble input
//	GAN_<YYYYMMDD>_<HH>Z.nc                     cGAN model output
//	<YYYYMMDD>000000-<step>h-enfo-ef.grib2      ECMWF open-data download
//	counts_<YYYYMMDD>_<HH>_<validHour>h.nc      exceedance count product
//
// Canonical store files:
//
//	<root>/<source>/[<region>/]<year>/<MM>/<region_code>-<source_code>-<file>
//
// where region_code is the lower-cased, underscore-joined region name (empty
// for sources stored without regional subdivision) and source_code is the
// source tag with dashes replaced by underscores. The store layout is the
// catalog: a dataset is "synced" exactly when its canonical file exists, so
// the catalog can always be rebuilt by scanning the tree. See the store
// package.
//
// # Date Handling
//
// Forecast init dates are calendar dates plus an optional initialization hour
// (00/06/12/18). Candidate windows are "today and N days back" relative to
// the package clock, which tests freeze via [SetClock]. Dates shown to
// callers are formatted "Jan 02, 2006", newest first.
package domain

// Package ledger persists the advisory sync-status flags that keep at most
// one download or processing pass per source active at a time.
//
// The ledger is cooperative, not a lock: callers read a flag, decide whether
// to proceed, and set it for the duration of their work. The check-then-act
// window is a known race, tolerated because fetches are idempotent and the
// scheduling cadence is hourly. Every code path that sets a flag must clear
// it on exit, including error paths, or the source stays wedged until the
// flag is reset manually.
package ledger

import "github.com/sewaa/forecast-sync/internal/domain"

// Kind distinguishes the two operation families tracked by the ledger.
type Kind string

const (
	// KindDownload covers transport fetches from remote providers.
	KindDownload Kind = "download"
	// KindProcessing covers filesystem migration, grib2 post-processing,
	// and forecast generation.
	KindProcessing Kind = "processing"
)

// Store is the status ledger. Implementations must fail open: a missing or
// unreadable ledger reads as "nothing active".
type Store interface {
	// Get reports whether an operation of the given kind is active for the
	// source. Missing files, sections, or keys read as false.
	Get(kind Kind, source domain.Source) bool

	// Set upserts the flag. A corrupt or missing backing document is
	// recreated from this single write rather than surfaced as an error.
	Set(kind Kind, source domain.Source, active bool) error

	// AnyActive reports whether any source has an active operation of the
	// given kind. Downstream stages use it to defer work that would fight
	// over the store tree.
	AnyActive(kind Kind) bool
}

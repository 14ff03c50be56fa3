package ferry

import (
	"github.com/xraph/ferry/pool"
	"github.com/xraph/ferry/transfer"
)

// smallFileThreshold separates the small and large download
// size-classes: a download is small iff its total size is below this.
const smallFileThreshold int64 = 20 << 10

// Config holds configuration for the Coordinator. The pool capacity it
// describes is evaluated exactly once, when the Coordinator is built;
// changing a Config afterwards never resizes existing pools.
type Config struct {
	// DownloadBudget is the base byte budget of each download pool.
	DownloadBudget int64

	// UploadBudget is the byte budget of the single upload pool.
	UploadBudget int64

	// Privileged multiplies the download budget by 8. Read once at
	// construction.
	Privileged bool

	// PersistentCache reports whether a persistent resumable-download
	// cache is configured. Without one, partial transfers cannot
	// outlive the process and pools run unmetered.
	PersistentCache bool

	// WebEndpoint is the destination web downloads are accounted
	// against, since they carry no endpoint of their own.
	WebEndpoint transfer.Endpoint

	// AdmitRate is the sustained admissions-per-second pacing for
	// metered pools. Zero disables pacing.
	AdmitRate float64

	// AdmitBurst is the burst size for AdmitRate. Defaults to 1 when
	// AdmitRate is set.
	AdmitBurst int
}

// DefaultConfig returns a Config with the standard budgets: 2 MiB per
// download pool and 4 MiB for the upload pool.
func DefaultConfig() Config {
	return Config{
		DownloadBudget: 2 << 20,
		UploadBudget:   4 << 20,
	}
}

// poolParams freezes the pool capacity parameters from the config.
func (c Config) poolParams() pool.Params {
	budget := c.DownloadBudget
	if c.Privileged {
		budget *= 8
	}

	mode := pool.ModeMetered
	if !c.PersistentCache {
		mode = pool.ModeUnmetered
	}

	return pool.Params{
		DownloadBudget: budget,
		UploadBudget:   c.UploadBudget,
		DownloadMode:   mode,
		UploadMode:     mode,
		AdmitRate:      c.AdmitRate,
		AdmitBurst:     c.AdmitBurst,
	}
}

package pool

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/ferry/id"
	"github.com/xraph/ferry/transfer"
)

// Mode is a pool's capacity mode.
type Mode int

// Capacity modes.
const (
	// ModeMetered enforces the pool's byte budget across admitted
	// workers.
	ModeMetered Mode = iota

	// ModeUnmetered admits every worker immediately with the full
	// budget. Used when no persistent resumable cache is configured
	// and partial transfers cannot outlive the process anyway.
	ModeUnmetered
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeMetered:
		return "metered"
	case ModeUnmetered:
		return "unmetered"
	default:
		return "unknown"
	}
}

// Params are a directory's capacity parameters. They are evaluated
// exactly once, at coordinator start-up; later changes to the facts
// they were derived from do not resize existing pools.
type Params struct {
	// DownloadBudget is the byte budget shared by workers of one
	// download pool.
	DownloadBudget int64

	// UploadBudget is the byte budget of the single upload pool.
	UploadBudget int64

	// DownloadMode is the capacity mode of every download pool.
	DownloadMode Mode

	// UploadMode is the capacity mode of the upload pool.
	UploadMode Mode

	// AdmitRate is the sustained admissions-per-second pacing applied
	// by the default controller in metered mode. Zero disables pacing.
	AdmitRate float64

	// AdmitBurst is the token-bucket burst size for AdmitRate.
	// Defaults to 1 when AdmitRate is set.
	AdmitBurst int
}

// Admitter is one pool's admission control. Admit hands a worker to
// the pool with an advisory priority and must not block; the pool
// starts the worker when its policy allows. Done releases the slot a
// previously admitted worker held.
type Admitter interface {
	Admit(w transfer.Worker, priority transfer.Priority)
	Done(w transfer.Worker)
}

// Factory builds the admission controller for one pool.
type Factory func(name string, budget int64, mode Mode) Admitter

type downloadKey struct {
	small    bool
	endpoint transfer.Endpoint
}

// Directory lazily creates and caches resource pools. Pools are keyed
// by (direction, size-class, endpoint) and never evicted: the download
// map grows monotonically with the set of distinct endpoints.
type Directory struct {
	params Params
	build  Factory
	logger *slog.Logger

	mu        sync.Mutex
	downloads map[downloadKey]Admitter
	upload    Admitter
}

// NewDirectory creates a directory with the given fixed capacity
// parameters. The upload pool is created eagerly; download pools are
// created on first use. A nil build installs the default [Controller].
func NewDirectory(params Params, build Factory, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	if build == nil {
		build = func(name string, budget int64, mode Mode) Admitter {
			return NewController(name, budget, mode, params.AdmitRate, params.AdmitBurst, logger)
		}
	}

	d := &Directory{
		params:    params,
		build:     build,
		logger:    logger,
		downloads: make(map[downloadKey]Admitter),
	}
	d.upload = d.newPool("upload", params.UploadBudget, params.UploadMode)
	return d
}

// Params returns the directory's fixed capacity parameters.
func (d *Directory) Params() Params { return d.params }

// Download returns the pool for a download of the given size-class to
// the given endpoint, creating it on first use.
func (d *Directory) Download(small bool, endpoint transfer.Endpoint) Admitter {
	key := downloadKey{small: small, endpoint: endpoint}

	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.downloads[key]
	if !ok {
		class := "large"
		if small {
			class = "small"
		}
		name := fmt.Sprintf("download-%s-ep%d", class, endpoint)
		a = d.newPool(name, d.params.DownloadBudget, d.params.DownloadMode)
		d.downloads[key] = a
	}
	return a
}

// Upload returns the single process-wide pool shared by all
// upload-type jobs.
func (d *Directory) Upload() Admitter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.upload
}

// DownloadPoolCount returns the number of download pools created so
// far.
func (d *Directory) DownloadPoolCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.downloads)
}

func (d *Directory) newPool(name string, budget int64, mode Mode) Admitter {
	poolID := id.NewPoolID()
	d.logger.Info("resource pool created",
		slog.String("pool_id", poolID.String()),
		slog.String("pool", name),
		slog.Int64("budget", budget),
		slog.String("mode", mode.String()),
	)
	return d.build(name, budget, mode)
}

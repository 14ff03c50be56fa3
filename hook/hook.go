package hook

import (
	"context"

	"github.com/xraph/ferry/transfer"
)

// Hook is the base interface all observers must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// JobCreated is called after a job is registered and its worker
// spawned.
type JobCreated interface {
	OnJobCreated(ctx context.Context, info *transfer.Info) error
}

// JobStarted is called when a download worker reports it has begun.
type JobStarted interface {
	OnJobStarted(ctx context.Context, info *transfer.Info) error
}

// JobProgress is called on download and upload progress events. total
// is zero when the worker does not know the final size.
type JobProgress interface {
	OnJobProgress(ctx context.Context, info *transfer.Info, ready, total int64) error
}

// JobCompleted is called when a job reaches a terminal success event.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, info *transfer.Info, size int64) error
}

// JobFailed is called when a job reaches a terminal failure event.
// Cancellation surfaces here with transfer.ErrCanceled.
type JobFailed interface {
	OnJobFailed(ctx context.Context, info *transfer.Info, err error) error
}

// Shutdown is called once the coordinator has fully drained.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}

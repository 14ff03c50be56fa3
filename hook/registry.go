package hook

import (
	"context"
	"log/slog"

	"github.com/xraph/ferry/transfer"
)

// Named entry types pair a hook implementation with the hook name
// captured at registration time, so emit paths don't type-assert back
// to Hook.
type jobCreatedEntry struct {
	name string
	hook JobCreated
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobProgressEntry struct {
	name string
	hook JobProgress
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events to
// them. Hooks are type-cached at registration time so emit calls
// iterate only over hooks that implement the relevant interface.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	jobCreated   []jobCreatedEntry
	jobStarted   []jobStartedEntry
	jobProgress  []jobProgressEntry
	jobCompleted []jobCompletedEntry
	jobFailed    []jobFailedEntry
	shutdown     []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if hk, ok := h.(JobCreated); ok {
		r.jobCreated = append(r.jobCreated, jobCreatedEntry{name, hk})
	}
	if hk, ok := h.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, hk})
	}
	if hk, ok := h.(JobProgress); ok {
		r.jobProgress = append(r.jobProgress, jobProgressEntry{name, hk})
	}
	if hk, ok := h.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, hk})
	}
	if hk, ok := h.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, hk})
	}
	if hk, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, hk})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitJobCreated notifies all hooks that implement JobCreated.
func (r *Registry) EmitJobCreated(ctx context.Context, info *transfer.Info) {
	for _, e := range r.jobCreated {
		if err := e.hook.OnJobCreated(ctx, info); err != nil {
			r.logHookError("OnJobCreated", e.name, err)
		}
	}
}

// EmitJobStarted notifies all hooks that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, info *transfer.Info) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, info); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobProgress notifies all hooks that implement JobProgress.
func (r *Registry) EmitJobProgress(ctx context.Context, info *transfer.Info, ready, total int64) {
	for _, e := range r.jobProgress {
		if err := e.hook.OnJobProgress(ctx, info, ready, total); err != nil {
			r.logHookError("OnJobProgress", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all hooks that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, info *transfer.Info, size int64) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, info, size); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobFailed notifies all hooks that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, info *transfer.Info, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, info, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

func (r *Registry) logHookError(event, name string, err error) {
	r.logger.Error("hook error",
		slog.String("event", event),
		slog.String("hook", name),
		slog.String("error", err.Error()),
	)
}

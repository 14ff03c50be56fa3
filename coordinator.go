package ferry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/xraph/ferry/hook"
	"github.com/xraph/ferry/id"
	"github.com/xraph/ferry/pool"
	"github.com/xraph/ferry/registry"
	"github.com/xraph/ferry/transfer"
)

// State is the coordinator lifecycle state.
type State int

// Lifecycle states.
const (
	// StateRunning accepts new jobs and delivers caller events.
	StateRunning State = iota

	// StateDraining delivers no caller events and accepts no new
	// jobs; live jobs are being reclaimed.
	StateDraining

	// StateStopped means every job has been reclaimed.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// node is one live job: the caller token, the exclusively owned
// worker, and the pool the worker was admitted into (nil for raw-data
// imports, which bypass admission).
type node struct {
	info   *transfer.Info
	worker transfer.Worker
	pool   pool.Admitter
}

// Coordinator tracks concurrent transfer jobs from creation to their
// terminal event. Create one with [New]; it starts in StateRunning.
//
// All registry mutations and dispatch decisions are serialized on an
// internal mutex, so job creation, event dispatch, and reclamation
// never interleave their effects. None of the coordinator's methods
// block on I/O or on worker completion.
type Coordinator struct {
	cfg     Config
	logger  *slog.Logger
	cb      Callback
	factory transfer.Factory
	fsys    billy.Filesystem

	buildPool    pool.Factory
	pendingHooks []hook.Hook

	hooks *hook.Registry
	pools *pool.Directory

	mu      sync.Mutex
	state   State
	nodes   *registry.Table[*node]
	byQuery map[transfer.QueryID]registry.Handle
	done    chan struct{}
}

// New creates a Coordinator with the given options. WithCallback and
// WithFactory are required. Pool capacity parameters are evaluated
// here, once; later Config changes never resize existing pools.
func New(opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		cfg:     DefaultConfig(),
		logger:  slog.Default(),
		fsys:    osfs.New("/"),
		nodes:   registry.NewTable[*node](),
		byQuery: make(map[transfer.QueryID]registry.Handle),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.cb == nil {
		return nil, ErrNoCallback
	}
	if c.factory == nil {
		return nil, ErrNoFactory
	}

	c.hooks = hook.NewRegistry(c.logger)
	for _, h := range c.pendingHooks {
		c.hooks.Register(h)
	}
	c.pendingHooks = nil

	c.pools = pool.NewDirectory(c.cfg.poolParams(), c.buildPool, c.logger)

	c.logger.Info("coordinator started",
		slog.Int64("download_budget", c.pools.Params().DownloadBudget),
		slog.Int64("upload_budget", c.pools.Params().UploadBudget),
		slog.String("mode", c.pools.Params().DownloadMode.String()),
	)
	return c, nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveJobs returns the number of live jobs.
func (c *Coordinator) ActiveJobs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes.Len()
}

// Done returns a channel closed once the coordinator has stopped:
// shutdown was requested and every job has been reclaimed.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// StartDownload begins a download job for the given token. The result
// arrives through the Callback; the call itself returns immediately.
// Silently ignored once shutdown has been requested.
//
// Panics if token already identifies a live job.
func (c *Coordinator) StartDownload(token transfer.QueryID, remote transfer.FullRemoteLocation, local transfer.LocalLocation, size int64, name string, key transfer.EncryptionKey, searchFile bool, offset, limit int64, priority transfer.Priority) {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}

	h, n := c.createLocked(token, transfer.KindDownload)
	n.worker = c.factory.NewDownloader(h, c, transfer.DownloadSpec{
		Remote:     remote,
		Local:      local,
		Size:       size,
		Name:       name,
		Key:        key,
		SearchFile: searchFile,
		Offset:     offset,
		Limit:      limit,
	})

	endpoint := remote.Endpoint
	if remote.Web {
		endpoint = c.cfg.WebEndpoint
	}
	small := size < smallFileThreshold
	n.pool = c.pools.Download(small, endpoint)

	worker, admitter, info := n.worker, n.pool, n.info
	c.mu.Unlock()

	// Created is observed before admission so a worker that finishes
	// immediately cannot report completion first.
	c.jobCreated(info, slog.Int64("size", size), slog.Bool("small", small))
	admitter.Admit(worker, priority)
}

// StartUpload begins an upload job for the given token. badParts lists
// resumable parts that must be re-sent.
//
// Panics if token already identifies a live job.
func (c *Coordinator) StartUpload(token transfer.QueryID, local transfer.LocalLocation, remote transfer.RemoteLocation, expectedSize int64, key transfer.EncryptionKey, priority transfer.Priority, badParts []int32) {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}

	h, n := c.createLocked(token, transfer.KindUpload)
	n.worker = c.factory.NewUploader(h, c, transfer.UploadSpec{
		Local:        local,
		Remote:       remote,
		ExpectedSize: expectedSize,
		Key:          key,
		BadParts:     badParts,
	})
	n.pool = c.pools.Upload()

	worker, admitter, info := n.worker, n.pool, n.info
	c.mu.Unlock()

	c.jobCreated(info, slog.Int64("expected_size", expectedSize))
	admitter.Admit(worker, priority)
}

// StartUploadByHash begins an upload-by-hash job for the given token.
//
// Panics if token already identifies a live job.
func (c *Coordinator) StartUploadByHash(token transfer.QueryID, local transfer.FullLocalLocation, size int64, priority transfer.Priority) {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}

	h, n := c.createLocked(token, transfer.KindHashUpload)
	n.worker = c.factory.NewHashUploader(h, c, transfer.HashUploadSpec{
		Local: local,
		Size:  size,
	})
	n.pool = c.pools.Upload()

	worker, admitter, info := n.worker, n.pool, n.info
	c.mu.Unlock()

	c.jobCreated(info, slog.Int64("size", size))
	admitter.Admit(worker, priority)
}

// StartFromBytes begins a raw-data import job for the given token.
// From-bytes jobs write local data only and bypass pool admission.
//
// Panics if token already identifies a live job.
func (c *Coordinator) StartFromBytes(token transfer.QueryID, fileType transfer.FileType, data []byte, name string) {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}

	h, n := c.createLocked(token, transfer.KindFromBytes)
	n.worker = c.factory.NewFromBytes(h, c, transfer.FromBytesSpec{
		Type:  fileType,
		Bytes: data,
		Name:  name,
	})

	worker, info := n.worker, n.info
	c.mu.Unlock()

	c.jobCreated(info, slog.Int("bytes", len(data)))
	worker.Run(0)
}

// UpdatePriority forwards a new admission priority to the job's
// worker. Unknown tokens are a silent no-op.
func (c *Coordinator) UpdatePriority(token transfer.QueryID, priority transfer.Priority) {
	if w := c.lookupWorker(token); w != nil {
		w.UpdatePriority(priority)
	}
}

// UpdateLocalLocation forwards a changed local location to the job's
// worker. Unknown tokens are a silent no-op.
func (c *Coordinator) UpdateLocalLocation(token transfer.QueryID, local transfer.LocalLocation) {
	if w := c.lookupWorker(token); w != nil {
		w.UpdateLocalLocation(local)
	}
}

// UpdateDownloadedRange forwards the caller's wanted byte range to the
// job's worker, along with the fixed download budget. Unknown tokens
// are a silent no-op.
func (c *Coordinator) UpdateDownloadedRange(token transfer.QueryID, offset, limit int64) {
	if w := c.lookupWorker(token); w != nil {
		w.UpdateDownloadedRange(offset, limit, c.pools.Params().DownloadBudget)
	}
}

// Cancel cancels the job identified by token, delivering exactly one
// OnFailed(ErrCanceled) to the caller and reclaiming the job. Unknown
// tokens are a silent no-op. Cancellation does not wait for the worker
// to stop; any event the worker still emits is discarded.
func (c *Coordinator) Cancel(token transfer.QueryID) {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	h, ok := c.byQuery[token]
	c.mu.Unlock()
	if !ok {
		return
	}

	c.Emit(transfer.Failed{Handle: h, Err: transfer.ErrCanceled})
}

// RequestShutdown transitions the coordinator to StateDraining,
// silences all caller-visible events, and initiates teardown of every
// live job without waiting for the workers to stop. Each job is driven
// through the ordinary terminal dispatch path, so the registry drains
// through the same reclamation logic as normal completion; once it is
// empty the coordinator is StateStopped and Done() is closed.
func (c *Coordinator) RequestShutdown() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StateDraining

	handles := make([]registry.Handle, 0, c.nodes.Len())
	c.nodes.ForEach(func(h registry.Handle, _ *node) {
		handles = append(handles, h)
	})
	c.mu.Unlock()

	c.logger.Info("shutdown requested", slog.Int("live_jobs", len(handles)))

	for _, h := range handles {
		c.Emit(transfer.Failed{Handle: h, Err: transfer.ErrCanceled})
	}

	// No live jobs: drain completes right away.
	c.mu.Lock()
	stopped := c.checkDrainLocked()
	c.mu.Unlock()
	if stopped {
		c.finishShutdown()
	}
}

// Shutdown requests shutdown and waits for the drain to complete or
// the context to expire.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.RequestShutdown()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// createLocked allocates the registry slot and token mapping for a new
// job. The worker is attached by the caller once built.
func (c *Coordinator) createLocked(token transfer.QueryID, kind transfer.Kind) (registry.Handle, *node) {
	if _, live := c.byQuery[token]; live {
		panic(fmt.Sprintf("ferry: token %d already identifies a live job", token))
	}

	n := &node{
		info: &transfer.Info{
			ID:    id.NewTransferID(),
			Query: token,
			Kind:  kind,
		},
	}
	h := c.nodes.Create(n)
	c.byQuery[token] = h
	return h, n
}

func (c *Coordinator) lookupWorker(token transfer.QueryID) transfer.Worker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return nil
	}
	h, ok := c.byQuery[token]
	if !ok {
		return nil
	}
	n, ok := c.nodes.Get(h)
	if !ok {
		return nil
	}
	return n.worker
}

func (c *Coordinator) jobCreated(info *transfer.Info, attrs ...any) {
	c.hooks.EmitJobCreated(context.Background(), info)
	c.logger.Debug("job created",
		append([]any{
			slog.String("job_id", info.ID.String()),
			slog.Uint64("token", uint64(info.Query)),
			slog.String("kind", info.Kind.String()),
		}, attrs...)...,
	)
}

func (c *Coordinator) finishShutdown() {
	c.logger.Info("coordinator stopped, all jobs drained")
	c.hooks.EmitShutdown(context.Background())
}

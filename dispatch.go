package ferry

import (
	"context"
	"log/slog"

	"github.com/xraph/ferry/registry"
	"github.com/xraph/ferry/transfer"
)

// Compile-time check: the coordinator is the emitter handed to workers.
var _ transfer.Emitter = (*Coordinator)(nil)

// Emit implements transfer.Emitter. Workers push every event they
// produce through here.
//
// Dispatch rule: the event's delivery token is re-resolved against the
// registry; if it no longer resolves the job was already reclaimed and
// the event is dropped. A resolved event is forwarded to the caller
// unless shutdown is in progress. Terminal events then reclaim the job
// — remove it from the registry, release the worker, free its pool
// slot — after the forwarding attempt, which makes any later event
// carrying the same token unresolvable.
func (c *Coordinator) Emit(ev transfer.Event) {
	c.mu.Lock()

	n, ok := c.nodes.Get(ev.Token())
	if !ok {
		c.mu.Unlock()
		return
	}
	info := n.info

	if c.state == StateRunning {
		c.forward(info.Query, ev)
	}

	if !ev.Terminal() {
		c.mu.Unlock()
		c.observe(info, ev)
		return
	}

	c.reclaimLocked(ev.Token(), n)
	stopped := c.checkDrainLocked()
	c.mu.Unlock()

	// Ownership release is optimistic: the worker tears itself down
	// asynchronously, and its remaining events no longer resolve.
	n.worker.Release()
	if n.pool != nil {
		n.pool.Done(n.worker)
	}

	c.observe(info, ev)
	c.logger.Debug("job reclaimed",
		slog.String("job_id", info.ID.String()),
		slog.Uint64("token", uint64(info.Query)),
	)

	if stopped {
		c.finishShutdown()
	}
}

// forward translates a worker event into the caller-facing callback,
// tagged with the caller's token. Runs under the coordinator mutex.
func (c *Coordinator) forward(token transfer.QueryID, ev transfer.Event) {
	switch e := ev.(type) {
	case transfer.DownloadStarted:
		c.cb.OnDownloadStarted(token)
	case transfer.DownloadProgress:
		c.cb.OnDownloadProgress(token, e.Partial, e.ReadySize, e.Size)
	case transfer.HashReady:
		c.cb.OnHashReady(token, e.Hash)
	case transfer.UploadProgress:
		c.cb.OnUploadProgress(token, e.Partial, e.ReadySize)
	case transfer.DownloadCompleted:
		c.cb.OnDownloadCompleted(token, e.Local, e.Size, e.IsNew)
	case transfer.UploadCompleted:
		c.cb.OnUploadCompleted(token, e.Type, e.Remote, e.Size)
	case transfer.UploadCompletedFull:
		c.cb.OnUploadCompletedFull(token, e.Remote)
	case transfer.Failed:
		c.cb.OnFailed(token, e.Err)
	default:
		c.logger.Warn("unknown event type dropped",
			slog.Uint64("token", uint64(token)),
		)
	}
}

// reclaimLocked removes the job from the registry and token map. The
// handle was resolved under the same critical section, so failure here
// means the registry's handle-validity invariant is already broken.
func (c *Coordinator) reclaimLocked(h registry.Handle, n *node) {
	if !c.nodes.Erase(h) {
		panic("ferry: reclaim of unresolvable handle " + h.String())
	}
	delete(c.byQuery, n.info.Query)
}

// checkDrainLocked completes the drain if shutdown was requested and
// no jobs remain. Runs under the coordinator mutex; the caller invokes
// finishShutdown outside it when this returns true.
func (c *Coordinator) checkDrainLocked() bool {
	if c.state != StateDraining || !c.nodes.IsEmpty() {
		return false
	}
	c.state = StateStopped
	close(c.done)
	return true
}

// observe feeds lifecycle hooks. Hooks fire regardless of shutdown
// state; only caller-visible events are silenced by draining.
func (c *Coordinator) observe(info *transfer.Info, ev transfer.Event) {
	ctx := context.Background()
	switch e := ev.(type) {
	case transfer.DownloadStarted:
		c.hooks.EmitJobStarted(ctx, info)
	case transfer.DownloadProgress:
		c.hooks.EmitJobProgress(ctx, info, e.ReadySize, e.Size)
	case transfer.UploadProgress:
		c.hooks.EmitJobProgress(ctx, info, e.ReadySize, 0)
	case transfer.DownloadCompleted:
		c.hooks.EmitJobCompleted(ctx, info, e.Size)
	case transfer.UploadCompleted:
		c.hooks.EmitJobCompleted(ctx, info, e.Size)
	case transfer.UploadCompletedFull:
		c.hooks.EmitJobCompleted(ctx, info, 0)
	case transfer.Failed:
		c.hooks.EmitJobFailed(ctx, info, e.Err)
	}
}

package ferry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/ferry"
	"github.com/xraph/ferry/pool"
	"github.com/xraph/ferry/registry"
	"github.com/xraph/ferry/transfer"
)

// recordedEvent is one caller-visible callback invocation.
type recordedEvent struct {
	name  string
	token transfer.QueryID
	err   error
	size  int64
	isNew bool
}

// recordingCallback captures every caller-visible event.
type recordingCallback struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingCallback) record(ev recordedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingCallback) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingCallback) OnDownloadStarted(token transfer.QueryID) {
	r.record(recordedEvent{name: "download-started", token: token})
}

func (r *recordingCallback) OnDownloadProgress(token transfer.QueryID, _ transfer.PartialLocalLocation, ready, size int64) {
	r.record(recordedEvent{name: "download-progress", token: token, size: size})
}

func (r *recordingCallback) OnHashReady(token transfer.QueryID, _ []byte) {
	r.record(recordedEvent{name: "hash-ready", token: token})
}

func (r *recordingCallback) OnUploadProgress(token transfer.QueryID, _ transfer.PartialRemoteLocation, ready int64) {
	r.record(recordedEvent{name: "upload-progress", token: token, size: ready})
}

func (r *recordingCallback) OnDownloadCompleted(token transfer.QueryID, _ transfer.FullLocalLocation, size int64, isNew bool) {
	r.record(recordedEvent{name: "download-completed", token: token, size: size, isNew: isNew})
}

func (r *recordingCallback) OnUploadCompleted(token transfer.QueryID, _ transfer.FileType, _ transfer.PartialRemoteLocation, size int64) {
	r.record(recordedEvent{name: "upload-completed", token: token, size: size})
}

func (r *recordingCallback) OnUploadCompletedFull(token transfer.QueryID, _ transfer.FullRemoteLocation) {
	r.record(recordedEvent{name: "upload-completed-full", token: token})
}

func (r *recordingCallback) OnFailed(token transfer.QueryID, err error) {
	r.record(recordedEvent{name: "failed", token: token, err: err})
}

// testWorker is a passive worker driven by the test. An optional onRun
// callback runs on the admitting goroutine, outside the worker's lock.
type testWorker struct {
	handle registry.Handle
	emit   transfer.Emitter
	onRun  func()

	mu          sync.Mutex
	ran         bool
	budget      int64
	released    bool
	priorities  []transfer.Priority
	rangeBudget int64
}

func (w *testWorker) Run(budget int64) {
	w.mu.Lock()
	w.ran = true
	w.budget = budget
	onRun := w.onRun
	w.mu.Unlock()
	if onRun != nil {
		onRun()
	}
}

func (w *testWorker) UpdatePriority(p transfer.Priority) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.priorities = append(w.priorities, p)
}

func (w *testWorker) UpdateLocalLocation(transfer.LocalLocation) {}

func (w *testWorker) UpdateDownloadedRange(_, _, budget int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rangeBudget = budget
}

func (w *testWorker) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.released = true
}

func (w *testWorker) wasReleased() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.released
}

// waitRun blocks until the worker has been started, for pools that
// admit from their own goroutine.
func (w *testWorker) waitRun(t *testing.T) int64 {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		ran, budget := w.ran, w.budget
		w.mu.Unlock()
		if ran {
			return budget
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("worker was not started")
	return 0
}

func (w *testWorker) expectNotRun(t *testing.T) {
	t.Helper()
	time.Sleep(100 * time.Millisecond)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ran {
		t.Fatal("worker started without a free slot")
	}
}

// testFactory builds testWorkers and remembers them in spawn order.
type testFactory struct {
	mu      sync.Mutex
	onRun   func(w *testWorker)
	workers []*testWorker
}

func (f *testFactory) spawn(token registry.Handle, emit transfer.Emitter) transfer.Worker {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &testWorker{handle: token, emit: emit}
	if run := f.onRun; run != nil {
		w.onRun = func() { run(w) }
	}
	f.workers = append(f.workers, w)
	return w
}

func (f *testFactory) NewDownloader(token registry.Handle, emit transfer.Emitter, _ transfer.DownloadSpec) transfer.Worker {
	return f.spawn(token, emit)
}

func (f *testFactory) NewUploader(token registry.Handle, emit transfer.Emitter, _ transfer.UploadSpec) transfer.Worker {
	return f.spawn(token, emit)
}

func (f *testFactory) NewHashUploader(token registry.Handle, emit transfer.Emitter, _ transfer.HashUploadSpec) transfer.Worker {
	return f.spawn(token, emit)
}

func (f *testFactory) NewFromBytes(token registry.Handle, emit transfer.Emitter, _ transfer.FromBytesSpec) transfer.Worker {
	return f.spawn(token, emit)
}

func (f *testFactory) last(t *testing.T) *testWorker {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.workers) == 0 {
		t.Fatal("no worker was spawned")
	}
	return f.workers[len(f.workers)-1]
}

func newTestCoordinator(t *testing.T, opts ...ferry.Option) (*ferry.Coordinator, *recordingCallback, *testFactory) {
	t.Helper()
	cb := &recordingCallback{}
	factory := &testFactory{}
	opts = append([]ferry.Option{
		ferry.WithCallback(cb),
		ferry.WithFactory(factory),
	}, opts...)

	c, err := ferry.New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, cb, factory
}

func startDownload(c *ferry.Coordinator, token transfer.QueryID, size int64, endpoint transfer.Endpoint) {
	c.StartDownload(token,
		transfer.FullRemoteLocation{Endpoint: endpoint, Address: "obj"},
		transfer.LocalLocation{}, size, "file.bin",
		transfer.EncryptionKey{}, false, 0, 0, 1)
}

func TestNew_RequiresCallbackAndFactory(t *testing.T) {
	if _, err := ferry.New(); !errors.Is(err, ferry.ErrNoCallback) {
		t.Errorf("New() error = %v, want ErrNoCallback", err)
	}
	if _, err := ferry.New(ferry.WithCallback(&recordingCallback{})); !errors.Is(err, ferry.ErrNoFactory) {
		t.Errorf("New(callback) error = %v, want ErrNoFactory", err)
	}
}

func TestStartDownload_SpawnsAndAdmitsWorker(t *testing.T) {
	c, _, factory := newTestCoordinator(t)

	startDownload(c, 1, 10000, 1)

	w := factory.last(t)
	w.mu.Lock()
	ran, budget := w.ran, w.budget
	w.mu.Unlock()
	if !ran {
		t.Fatal("worker was not admitted and run")
	}
	if budget != 2<<20 {
		t.Errorf("budget = %d, want %d", budget, 2<<20)
	}
	if c.ActiveJobs() != 1 {
		t.Errorf("ActiveJobs = %d, want 1", c.ActiveJobs())
	}
}

func TestStartDownload_DuplicateLiveTokenPanics(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	startDownload(c, 2, 10000, 1)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for duplicate live token")
		}
	}()
	startDownload(c, 2, 10000, 1)
}

func TestTokenReuseAfterTerminalIsLegal(t *testing.T) {
	c, _, factory := newTestCoordinator(t)

	startDownload(c, 3, 10000, 1)
	w := factory.last(t)
	w.emit.Emit(transfer.DownloadCompleted{Handle: w.handle, Local: transfer.FullLocalLocation{Path: "/a"}, Size: 10000})

	// The token is free again; reusing it creates an unrelated job.
	startDownload(c, 3, 10000, 1)
	if c.ActiveJobs() != 1 {
		t.Errorf("ActiveJobs = %d, want 1", c.ActiveJobs())
	}
}

func TestCancel_UnknownTokenIsNoOp(t *testing.T) {
	c, cb, _ := newTestCoordinator(t)

	c.Cancel(99)

	if got := cb.all(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
	if c.State() != ferry.StateRunning {
		t.Errorf("State = %v, want running", c.State())
	}
}

func TestCancel_DeliversExactlyOneCanceledFailure(t *testing.T) {
	c, cb, factory := newTestCoordinator(t)

	startDownload(c, 1, 10000, 1)
	c.Cancel(1)

	got := cb.all()
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1: %v", len(got), got)
	}
	if got[0].name != "failed" || got[0].token != 1 {
		t.Errorf("event = %+v, want failed for token 1", got[0])
	}
	if !errors.Is(got[0].err, ferry.ErrCanceled) {
		t.Errorf("err = %v, want ErrCanceled", got[0].err)
	}
	if got[0].err.Error() != "Canceled" {
		t.Errorf("reason = %q, want %q", got[0].err.Error(), "Canceled")
	}
	if c.ActiveJobs() != 0 {
		t.Errorf("ActiveJobs = %d, want 0 immediately after cancel", c.ActiveJobs())
	}
	if !factory.last(t).wasReleased() {
		t.Error("worker ownership was not released")
	}
}

func TestNoEventsAfterTerminal(t *testing.T) {
	c, cb, factory := newTestCoordinator(t)

	startDownload(c, 1, 10000, 1)
	w := factory.last(t)

	w.emit.Emit(transfer.DownloadCompleted{Handle: w.handle, Local: transfer.FullLocalLocation{Path: "/a"}, Size: 10000, IsNew: true})

	// The worker keeps emitting after its terminal event; everything
	// must be dropped without a second caller event or a crash.
	w.emit.Emit(transfer.DownloadProgress{Handle: w.handle, ReadySize: 10000, Size: 10000})
	w.emit.Emit(transfer.DownloadCompleted{Handle: w.handle, Local: transfer.FullLocalLocation{Path: "/a"}, Size: 10000})
	w.emit.Emit(transfer.Failed{Handle: w.handle, Err: errors.New("late failure")})

	got := cb.all()
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1: %v", len(got), got)
	}
	if got[0].name != "download-completed" || !got[0].isNew {
		t.Errorf("event = %+v, want fresh download-completed", got[0])
	}
}

func TestCancelAfterCompletionIsNoOp(t *testing.T) {
	c, cb, factory := newTestCoordinator(t)

	startDownload(c, 1, 10000, 1)
	w := factory.last(t)
	w.emit.Emit(transfer.DownloadCompleted{Handle: w.handle, Size: 10000})

	c.Cancel(1)

	got := cb.all()
	if len(got) != 1 {
		t.Fatalf("got %d events, want only the completion: %v", len(got), got)
	}
}

func TestDownloadEventFlow(t *testing.T) {
	c, cb, factory := newTestCoordinator(t)

	startDownload(c, 5, 30000, 1)
	w := factory.last(t)

	w.emit.Emit(transfer.DownloadStarted{Handle: w.handle})
	w.emit.Emit(transfer.DownloadProgress{Handle: w.handle, ReadySize: 15000, Size: 30000})
	w.emit.Emit(transfer.DownloadCompleted{Handle: w.handle, Local: transfer.FullLocalLocation{Path: "/f"}, Size: 30000, IsNew: true})

	got := cb.all()
	want := []string{"download-started", "download-progress", "download-completed"}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(got), len(want), got)
	}
	for i, name := range want {
		if got[i].name != name || got[i].token != 5 {
			t.Errorf("event[%d] = %+v, want %s for token 5", i, got[i], name)
		}
	}
	if c.ActiveJobs() != 0 {
		t.Errorf("ActiveJobs = %d, want 0 after completion", c.ActiveJobs())
	}
}

func TestHashUploadEventFlow(t *testing.T) {
	c, cb, factory := newTestCoordinator(t)

	c.StartUploadByHash(8, transfer.FullLocalLocation{Path: "/f", Size: 100}, 100, 1)
	w := factory.last(t)

	w.emit.Emit(transfer.HashReady{Handle: w.handle, Hash: []byte{0xAB}})
	w.emit.Emit(transfer.UploadCompletedFull{Handle: w.handle, Remote: transfer.FullRemoteLocation{Endpoint: 2}})

	got := cb.all()
	if len(got) != 2 || got[0].name != "hash-ready" || got[1].name != "upload-completed-full" {
		t.Fatalf("events = %v, want hash-ready then upload-completed-full", got)
	}
}

func TestFromBytes_BypassesAdmission(t *testing.T) {
	var built []string
	buildPool := func(name string, _ int64, _ pool.Mode) pool.Admitter {
		built = append(built, name)
		return pool.NewController(name, 1<<20, pool.ModeUnmetered, 0, 0, nil)
	}
	c, cb, factory := newTestCoordinator(t, ferry.WithPoolFactory(buildPool))

	c.StartFromBytes(4, transfer.FileTypePhoto, []byte("jpeg bytes"), "pic.jpg")

	w := factory.last(t)
	w.mu.Lock()
	ran, budget := w.ran, w.budget
	w.mu.Unlock()
	if !ran || budget != 0 {
		t.Fatalf("from-bytes worker ran=%v budget=%d, want ran with zero budget", ran, budget)
	}
	if len(built) != 1 || built[0] != "upload" {
		t.Errorf("pools built = %v, want only the eager upload pool", built)
	}

	w.emit.Emit(transfer.UploadCompleted{Handle: w.handle, Type: transfer.FileTypePhoto, Size: 10})
	got := cb.all()
	if len(got) != 1 || got[0].name != "upload-completed" {
		t.Fatalf("events = %v, want upload-completed", got)
	}
}

func TestUpdateOps_ForwardToWorker(t *testing.T) {
	c, _, factory := newTestCoordinator(t)

	startDownload(c, 1, 10000, 1)
	w := factory.last(t)

	c.UpdatePriority(1, 9)
	c.UpdateDownloadedRange(1, 0, 4096)

	// Unknown tokens are silent no-ops.
	c.UpdatePriority(42, 3)
	c.UpdateDownloadedRange(42, 0, 1)
	c.UpdateLocalLocation(42, transfer.LocalLocation{})

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.priorities) != 1 || w.priorities[0] != 9 {
		t.Errorf("priorities = %v, want [9]", w.priorities)
	}
	if w.rangeBudget != 2<<20 {
		t.Errorf("range budget = %d, want the fixed download budget %d", w.rangeBudget, 2<<20)
	}
}

func TestRequestShutdown_SilencesAndDrains(t *testing.T) {
	c, cb, factory := newTestCoordinator(t)

	startDownload(c, 1, 10000, 1)
	c.StartUpload(2, transfer.LocalLocation{Full: &transfer.FullLocalLocation{Path: "/u"}},
		transfer.RemoteLocation{}, 500, transfer.EncryptionKey{}, 1, nil)

	c.RequestShutdown()

	if got := cb.all(); len(got) != 0 {
		t.Errorf("caller saw %v after shutdown, want nothing", got)
	}
	if c.ActiveJobs() != 0 {
		t.Errorf("ActiveJobs = %d, want 0 after drain", c.ActiveJobs())
	}
	if c.State() != ferry.StateStopped {
		t.Errorf("State = %v, want stopped", c.State())
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done() not closed after drain")
	}
	for i, w := range factory.workers {
		if !w.wasReleased() {
			t.Errorf("worker %d ownership was not released", i)
		}
	}

	// Late events from the released workers are dropped silently.
	w := factory.workers[0]
	w.emit.Emit(transfer.DownloadCompleted{Handle: w.handle, Size: 10000})
	if got := cb.all(); len(got) != 0 {
		t.Errorf("caller saw %v from a late worker event, want nothing", got)
	}
}

func TestRequestShutdown_RejectsNewJobs(t *testing.T) {
	c, _, factory := newTestCoordinator(t)
	c.RequestShutdown()

	startDownload(c, 1, 10000, 1)
	c.StartFromBytes(2, transfer.FileTypeDocument, []byte("x"), "x")

	if len(factory.workers) != 0 {
		t.Errorf("spawned %d workers after shutdown, want 0", len(factory.workers))
	}
	if c.State() != ferry.StateStopped {
		t.Errorf("State = %v, want stopped (no jobs to drain)", c.State())
	}
}

func TestShutdown_WaitsForDrain(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	startDownload(c, 1, 10000, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if c.State() != ferry.StateStopped {
		t.Errorf("State = %v, want stopped", c.State())
	}
}

func TestPoolSelection_BySizeClassAndEndpoint(t *testing.T) {
	var built []string
	buildPool := func(name string, _ int64, _ pool.Mode) pool.Admitter {
		built = append(built, name)
		return pool.NewController(name, 1<<20, pool.ModeUnmetered, 0, 0, nil)
	}
	c, _, _ := newTestCoordinator(t, ferry.WithPoolFactory(buildPool))

	startDownload(c, 1, 10<<10, 1) // small
	startDownload(c, 2, 50<<10, 1) // large
	startDownload(c, 3, 10<<10, 2) // small, other endpoint
	startDownload(c, 4, 10<<10, 1) // reuses the first pool

	want := []string{"upload", "download-small-ep1", "download-large-ep1", "download-small-ep2"}
	if len(built) != len(want) {
		t.Fatalf("pools built = %v, want %v", built, want)
	}
	for i := range want {
		if built[i] != want[i] {
			t.Errorf("pool[%d] = %q, want %q", i, built[i], want[i])
		}
	}
}

func TestPoolSelection_WebDownloadsUseWebEndpoint(t *testing.T) {
	var built []string
	buildPool := func(name string, _ int64, _ pool.Mode) pool.Admitter {
		built = append(built, name)
		return pool.NewController(name, 1<<20, pool.ModeUnmetered, 0, 0, nil)
	}
	cfg := ferry.DefaultConfig()
	cfg.WebEndpoint = 4
	c, _, _ := newTestCoordinator(t, ferry.WithConfig(cfg), ferry.WithPoolFactory(buildPool))

	c.StartDownload(1, transfer.FullRemoteLocation{Endpoint: 9, Web: true, Address: "http://x"},
		transfer.LocalLocation{}, 1<<20, "f", transfer.EncryptionKey{}, false, 0, 0, 1)

	if len(built) != 2 || built[1] != "download-large-ep4" {
		t.Errorf("pools built = %v, want web download accounted to ep4", built)
	}
}

func TestPrivilegedBudgetFixedAtStartup(t *testing.T) {
	var budgets []int64
	buildPool := func(name string, budget int64, _ pool.Mode) pool.Admitter {
		budgets = append(budgets, budget)
		return pool.NewController(name, budget, pool.ModeUnmetered, 0, 0, nil)
	}

	cfg := ferry.DefaultConfig()
	cfg.Privileged = true
	c, _, _ := newTestCoordinator(t, ferry.WithConfig(cfg), ferry.WithPoolFactory(buildPool))

	// Flipping the flag after start-up must not change pool budgets,
	// including for pools created later.
	cfg.Privileged = false

	startDownload(c, 1, 10<<10, 1)

	if len(budgets) != 2 {
		t.Fatalf("pools built = %d, want 2", len(budgets))
	}
	if budgets[0] != 4<<20 {
		t.Errorf("upload budget = %d, want %d", budgets[0], 4<<20)
	}
	if budgets[1] != 8*(2<<20) {
		t.Errorf("download budget = %d, want 8x base %d", budgets[1], 8*(2<<20))
	}
}

func TestCancelQueuedJobInMeteredPool(t *testing.T) {
	// One 512 KiB slot per download pool, so the second job queues
	// behind the first.
	cfg := ferry.DefaultConfig()
	cfg.PersistentCache = true
	cfg.DownloadBudget = 512 << 10
	c, cb, factory := newTestCoordinator(t, ferry.WithConfig(cfg))

	startDownload(c, 1, 50<<10, 1)
	holder := factory.last(t)
	holder.waitRun(t)

	startDownload(c, 2, 50<<10, 1)
	queued := factory.last(t)
	queued.expectNotRun(t)

	c.Cancel(2)

	got := cb.all()
	if len(got) != 1 || got[0].name != "failed" || got[0].token != 2 {
		t.Fatalf("events = %v, want one failure for token 2", got)
	}
	if !queued.wasReleased() {
		t.Error("canceled worker ownership was not released")
	}

	// The withdrawn worker must never be started, and the cancellation
	// must not free the slot the running worker still holds: a new job
	// keeps waiting until the holder finishes.
	queued.expectNotRun(t)

	startDownload(c, 3, 50<<10, 1)
	third := factory.last(t)
	third.expectNotRun(t)

	holder.emit.Emit(transfer.DownloadCompleted{Handle: holder.handle, Size: 50 << 10})
	third.waitRun(t)
	queued.expectNotRun(t)
}

// orderHook records the order lifecycle notifications arrive in.
type orderHook struct {
	mu    sync.Mutex
	order []string
}

func (h *orderHook) Name() string { return "order" }

func (h *orderHook) add(ev string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = append(h.order, ev)
}

func (h *orderHook) OnJobCreated(context.Context, *transfer.Info) error {
	h.add("created")
	return nil
}

func (h *orderHook) OnJobCompleted(_ context.Context, _ *transfer.Info, _ int64) error {
	h.add("completed")
	return nil
}

func TestHooks_CreatedObservedBeforeCompletion(t *testing.T) {
	h := &orderHook{}
	c, _, factory := newTestCoordinator(t, ferry.WithHook(h))

	// The worker finishes the moment it is started, before
	// StartDownload returns.
	factory.onRun = func(w *testWorker) {
		w.emit.Emit(transfer.DownloadCompleted{Handle: w.handle, Size: 1})
	}

	startDownload(c, 1, 10000, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.order) != 2 || h.order[0] != "created" || h.order[1] != "completed" {
		t.Errorf("hook order = %v, want [created completed]", h.order)
	}
	if c.ActiveJobs() != 0 {
		t.Errorf("ActiveJobs = %d, want 0", c.ActiveJobs())
	}
}

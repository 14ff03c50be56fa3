package pool

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/ferry/transfer"
)

// slotSize is the budget share granted to each admitted worker in
// metered mode; it also determines the slot count of a pool.
const slotSize int64 = 512 << 10

// Controller is the default admission control for one pool.
//
// In unmetered mode every worker is started immediately with the full
// budget. In metered mode the pool has budget/slotSize concurrency
// slots; workers beyond that wait in a priority-ordered queue and are
// started as slots free up, optionally paced by a token-bucket rate
// limiter.
type Controller struct {
	name    string
	budget  int64
	mode    Mode
	logger  *slog.Logger
	limiter *rate.Limiter

	mu        sync.Mutex
	active    int
	maxActive int
	pending   admitQueue
	seq       uint64
	admitted  map[transfer.Worker]struct{}

	wake chan struct{}
}

// NewController creates a controller. admitRate <= 0 disables pacing.
func NewController(name string, budget int64, mode Mode, admitRate float64, admitBurst int, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	maxActive := int(budget / slotSize)
	if maxActive < 1 {
		maxActive = 1
	}

	c := &Controller{
		name:      name,
		budget:    budget,
		mode:      mode,
		logger:    logger,
		maxActive: maxActive,
		admitted:  make(map[transfer.Worker]struct{}),
		wake:      make(chan struct{}, 1),
	}
	if admitRate > 0 {
		burst := admitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(admitRate), burst)
	}

	if mode == ModeMetered {
		go c.admitLoop()
	}
	return c
}

// Budget returns the pool's fixed byte budget.
func (c *Controller) Budget() int64 { return c.budget }

// Mode returns the pool's capacity mode.
func (c *Controller) Mode() Mode { return c.mode }

// Active returns the number of workers currently holding a slot.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Admit implements Admitter. It never blocks: in unmetered mode the
// worker is started inline with the full budget; in metered mode it is
// queued by priority and started by the admission loop.
func (c *Controller) Admit(w transfer.Worker, priority transfer.Priority) {
	if c.mode == ModeUnmetered {
		c.mu.Lock()
		c.admitted[w] = struct{}{}
		c.active++
		c.mu.Unlock()
		w.Run(c.budget)
		return
	}

	c.mu.Lock()
	c.seq++
	heap.Push(&c.pending, admitEntry{w: w, priority: priority, seq: c.seq})
	c.mu.Unlock()
	c.signal()
}

// Done implements Admitter. A worker that holds a slot gives it back; a
// worker still waiting in the queue is withdrawn without touching the
// slot count, and will never be started.
func (c *Controller) Done(w transfer.Worker) {
	c.mu.Lock()
	if _, ok := c.admitted[w]; ok {
		delete(c.admitted, w)
		c.active--
	} else {
		for i := range c.pending {
			if c.pending[i].w == w {
				heap.Remove(&c.pending, i)
				break
			}
		}
	}
	c.mu.Unlock()
	c.signal()
}

func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// admitLoop starts queued workers whenever slots are free, pacing
// admissions through the rate limiter when one is configured.
func (c *Controller) admitLoop() {
	for range c.wake {
		for {
			c.mu.Lock()
			if c.pending.Len() == 0 || c.active >= c.maxActive {
				c.mu.Unlock()
				break
			}
			entry := heap.Pop(&c.pending).(admitEntry)
			c.admitted[entry.w] = struct{}{}
			c.active++
			c.mu.Unlock()

			if c.limiter != nil {
				// Pools live for the whole process; pacing has no
				// cancellation point.
				_ = c.limiter.Wait(context.Background())
			}

			// The worker may have been withdrawn while we were not
			// holding the lock; a withdrawn worker must not be started.
			c.mu.Lock()
			_, live := c.admitted[entry.w]
			c.mu.Unlock()
			if !live {
				continue
			}

			entry.w.Run(c.budget / int64(c.maxActive))
		}
	}
}

type admitEntry struct {
	w        transfer.Worker
	priority transfer.Priority
	seq      uint64
}

// admitQueue is a max-heap by priority, FIFO among equals.
type admitQueue []admitEntry

func (q admitQueue) Len() int { return len(q) }

func (q admitQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q admitQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *admitQueue) Push(x any) { *q = append(*q, x.(admitEntry)) }

func (q *admitQueue) Pop() any {
	old := *q
	n := len(old)
	entry := old[n-1]
	*q = old[:n-1]
	return entry
}

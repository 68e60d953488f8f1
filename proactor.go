package helio

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/eapache/queue"
)

// Tasklet is a unit of work executed on the loop thread.
type Tasklet func()

// waitSectionState is the tqSeq value advertising that the loop has committed
// to a blocking wait. A producer that observes it must CAS it back to zero
// and fire the wake fd.
const waitSectionState = ^uint32(0)

// Socket is the minimal contract of socket types bound to a proactor.
// Concrete implementations live outside the core and register readiness
// through Arm/Disarm.
type Socket interface {
	Close() error
}

// SocketFactory constructs a Socket bound to the given proactor.
type SocketFactory func(*Proactor) Socket

// Proactor is a single-threaded I/O event loop. It owns one OS thread while
// MainLoop runs; all fiber execution, arm/disarm, and completion dispatch
// happen on that thread. Only Dispatch, TryDispatch, Wake, and Stop (which
// goes through Dispatch) may be called from other threads.
type Proactor struct {
	backend *pollBackend
	inbox   *taskInbox
	l2      *queue.Queue

	centries   []centry
	nextFreeCe int32

	idleTasks  []idleEntry
	nextIdleID uint32

	// tqSeq is the sleep/wake handshake word: 0 after each wait, a nonzero
	// epoch bumped by producers on every enqueue, waitSectionState once the
	// loop has committed to block.
	tqSeq     atomic.Uint32
	tqWakeups atomic.Uint64

	// loopGID is the goroutine id of the running MainLoop, 0 otherwise.
	loopGID atomic.Uint64

	// lastWaitMs records the most recent non-zero backend wait timeout.
	lastWaitMs atomic.Int64

	clock loopClock
	stats loopStats

	log           *Logger
	socketFactory SocketFactory

	poolIndex    uint32
	maxSpinLimit uint32

	initialized bool

	// stopped is loop-thread confined: Stop routes the write through the
	// inbox and the loop consults it only at the sleep gate.
	stopped bool
}

// NewProactor creates a proactor and its readiness backend. Call Init before
// MainLoop.
func NewProactor(opts ...Option) (*Proactor, error) {
	cfg := resolveOptions(opts)

	backend, err := newPollBackend()
	if err != nil {
		return nil, err
	}

	return &Proactor{
		backend:       backend,
		inbox:         newTaskInbox(cfg.inboxCapacity),
		l2:            queue.New(),
		log:           cfg.logger,
		socketFactory: cfg.socketFactory,
		maxSpinLimit:  cfg.maxSpinLimit,
	}, nil
}

// Init assigns the pool index, builds the callback table, and registers the
// wake fd. It must run before MainLoop and may only run once.
func (p *Proactor) Init(poolIndex uint32) error {
	if p.initialized {
		return ErrAlreadyInitialized
	}
	p.poolIndex = poolIndex
	p.initCentries()
	if err := p.armWake(); err != nil {
		return fmt.Errorf("helio: registering wake fd: %w", err)
	}
	p.initialized = true
	return nil
}

// PoolIndex identifies this proactor among its siblings.
func (p *Proactor) PoolIndex() uint32 {
	return p.poolIndex
}

// Arm registers fd for multishot readiness and returns the callback-table
// slot. The mask passes to the backend unchanged; add EvEdge for
// edge-triggered delivery on Linux. Loop thread only.
func (p *Proactor) Arm(fd int, cb CbType, mask uint32) (uint32, error) {
	slot := p.allocCentry(cb)
	if err := p.backend.add(fd, mask, p.tokenFor(slot)); err != nil {
		p.freeCentry(slot)
		return 0, fmt.Errorf("helio: arming fd %d: %w", fd, err)
	}
	return slot, nil
}

// Disarm removes the fd registration and returns the slot to the free list.
// Completions already in flight for the old registration are discarded by
// dispatch. Loop thread only.
func (p *Proactor) Disarm(fd int, slot uint32) error {
	p.assertLoopThread("Disarm")
	if slot >= uint32(len(p.centries)) {
		return fmt.Errorf("helio: disarm slot %d out of range", slot)
	}
	p.freeCentry(slot)
	return p.backend.del(fd)
}

// CreateSocket constructs a socket bound to this proactor via the factory
// registered with WithSocketFactory, or returns nil when no factory is set.
func (p *Proactor) CreateSocket() Socket {
	if p.socketFactory == nil {
		return nil
	}
	return p.socketFactory(p)
}

// Dispatch enqueues task for execution on the loop thread. It may be called
// from any thread and blocks only while the inbox is at capacity.
func (p *Proactor) Dispatch(task Tasklet) {
	p.inbox.push(task)
	p.wakeIfParked()
}

// TryDispatch is Dispatch without back-pressure blocking: it reports false
// when the inbox is full.
func (p *Proactor) TryDispatch(task Tasklet) bool {
	if !p.inbox.tryPush(task) {
		return false
	}
	p.wakeIfParked()
	return true
}

// wakeIfParked completes the producer half of the sleep handshake. The task
// is already enqueued; if the loop advertised the wait section we take
// responsibility for waking it by winning the CAS back to zero. Losing the
// CAS means the loop (or another producer) already left the wait section and
// will observe the enqueue. Otherwise the epoch is bumped, so a loop that
// loaded tqSeq before the enqueue fails its CAS into the wait section.
func (p *Proactor) wakeIfParked() {
	for {
		cur := p.tqSeq.Load()
		if cur == waitSectionState {
			if p.tqSeq.CompareAndSwap(waitSectionState, 0) {
				p.wakeRing()
			}
			return
		}
		next := cur + 1
		if next == waitSectionState {
			next = 1
		}
		if p.tqSeq.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Wake forces the loop out of a blocking wait. Any thread.
func (p *Proactor) Wake() {
	if p.tqSeq.Load() == waitSectionState {
		p.tqSeq.CompareAndSwap(waitSectionState, 0)
	}
	p.wakeRing()
}

func (p *Proactor) wakeRing() {
	p.tqWakeups.Add(1)
	if err := p.backend.wake(); err != nil {
		p.log.Err().Err(err).Log("helio: firing wake fd")
	}
}

// Stop requests loop termination. The flag is set on the loop thread and
// honored at the sleep gate, never mid-iteration, so in-flight events finish
// dispatching first.
func (p *Proactor) Stop() {
	p.Dispatch(func() { p.stopped = true })
}

// Close releases the backend. The loop must have exited first.
func (p *Proactor) Close() error {
	if p.loopGID.Load() != 0 {
		return ErrNotStopped
	}
	return p.backend.close()
}

// assertLoopThread panics when an on-thread-only entry point is called from
// outside a running loop's goroutine.
func (p *Proactor) assertLoopThread(op string) {
	if gid := p.loopGID.Load(); gid != 0 && gid != goroutineID() {
		panic(fmt.Sprintf("helio: %s called off the proactor thread", op))
	}
}

// goroutineID parses the current goroutine's id out of its stack header.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

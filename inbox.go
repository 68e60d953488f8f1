package helio

import "sync"

const (
	// inboxChunkSize is the number of tasks per node in the inbox linked list.
	inboxChunkSize = 128

	// defaultInboxCapacity bounds the inbox. Producers that hit the bound
	// park on the availability notifier until the loop unloads a batch.
	defaultInboxCapacity = 8192
)

// taskChunk is a fixed-size node in the inbox linked list. readPos/pos
// cursors give O(1) push and pop without shifting.
type taskChunk struct {
	tasks   [inboxChunkSize]Tasklet
	next    *taskChunk
	readPos int
	pos     int
}

var taskChunkPool = sync.Pool{
	New: func() any { return new(taskChunk) },
}

func newTaskChunk() *taskChunk {
	c := taskChunkPool.Get().(*taskChunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

func returnTaskChunk(c *taskChunk) {
	// Clear task slots so the pool does not retain closures.
	for i := 0; i < c.pos; i++ {
		c.tasks[i] = nil
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	taskChunkPool.Put(c)
}

// taskInbox is the multi-producer/single-consumer queue other threads submit
// work through. Storage is a chunked linked list of fixed arrays recycled via
// a sync.Pool, guarded by a mutex. avail is the availability notifier: the
// loop broadcasts it while unloading so parked producers resume pushing into
// the same sweep. Broadcasts are non-blocking and coalesce.
type taskInbox struct {
	mu       sync.Mutex
	avail    *sync.Cond
	head     *taskChunk
	tail     *taskChunk
	length   int
	capacity int
}

func newTaskInbox(capacity int) *taskInbox {
	b := &taskInbox{capacity: capacity}
	b.avail = sync.NewCond(&b.mu)
	return b
}

func (b *taskInbox) pushLocked(task Tasklet) {
	if b.tail == nil {
		b.tail = newTaskChunk()
		b.head = b.tail
	}
	if b.tail.pos == len(b.tail.tasks) {
		next := newTaskChunk()
		b.tail.next = next
		b.tail = next
	}
	b.tail.tasks[b.tail.pos] = task
	b.tail.pos++
	b.length++
}

// tryPush enqueues task, or reports false if the inbox is at capacity.
func (b *taskInbox) tryPush(task Tasklet) bool {
	b.mu.Lock()
	if b.length >= b.capacity {
		b.mu.Unlock()
		return false
	}
	b.pushLocked(task)
	b.mu.Unlock()
	return true
}

// push enqueues task, waiting on the availability notifier while the inbox
// is full.
func (b *taskInbox) push(task Tasklet) {
	b.mu.Lock()
	for b.length >= b.capacity {
		b.avail.Wait()
	}
	b.pushLocked(task)
	b.mu.Unlock()
}

// tryPop removes the oldest task. Loop thread only by contract, though the
// mutex makes it safe regardless.
func (b *taskInbox) tryPop() (Tasklet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == nil {
		return nil, false
	}
	if b.head.readPos >= b.head.pos {
		if b.head == b.tail {
			b.head.pos = 0
			b.head.readPos = 0
			return nil, false
		}
		exhausted := b.head
		b.head = b.head.next
		returnTaskChunk(exhausted)
	}

	task := b.head.tasks[b.head.readPos]
	b.head.tasks[b.head.readPos] = nil
	b.head.readPos++
	b.length--

	if b.head.readPos >= b.head.pos && b.head != b.tail {
		exhausted := b.head
		b.head = b.head.next
		returnTaskChunk(exhausted)
	}
	return task, true
}

func (b *taskInbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// notifyAvailable wakes every producer parked on the inbox.
func (b *taskInbox) notifyAvailable() {
	b.avail.Broadcast()
}

package helio

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// taskBudgetNs is the soft time budget for one inbox sweep. Exceeding it
	// yields to the rest of the loop so readiness dispatch is never starved
	// by a flood of submissions.
	taskBudgetNs = 500_000

	// notifyPulse is how many dequeued tasks trigger an availability
	// broadcast mid-sweep, letting parked producers refill the inbox while
	// the same sweep keeps unloading.
	notifyPulse = 32
)

// MainLoop pumps the proactor until Stop is observed at the sleep gate. It
// pins the calling goroutine to its OS thread for the duration; Arm, Disarm,
// and the periodic operations must be called from this goroutine.
func (p *Proactor) MainLoop(sched Scheduler) error {
	if !p.initialized {
		return ErrNotInitialized
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	p.loopGID.Store(goroutineID())
	defer p.loopGID.Store(0)

	p.clock.init()

	var batch [evBatchSize]completion
	var tqSeq uint32
	var spinLoops uint32

	for {
		p.stats.loopCycles++
		taskQueueExhausted := true

		tqSeq = p.tqSeq.Load()

		if task, ok := p.inbox.tryPop(); ok {
			var cnt uint64
			taskStart := p.clock.update()
			for {
				task()
				cnt++
				if taskStart+taskBudgetNs < p.clock.update() {
					p.stats.taskInterrupts++
					taskQueueExhausted = false
					break
				}
				if cnt == notifyPulse {
					p.inbox.notifyAvailable()
				}
				if task, ok = p.inbox.tryPop(); !ok {
					break
				}
			}
			p.stats.numTaskRuns += cnt
			// Producers parked on the full inbox get one more chance to
			// observe the space this sweep opened up.
			p.inbox.notifyAvailable()
		}

		// Remote-ready fibers move in before HasReady is consulted.
		sched.ProcessRemoteReady()

		timeout := 0

		// Blocking is allowed only when this iteration drained the inbox,
		// no fiber is ready, and we have already spun past the limit. The
		// CAS into the wait section is the point of no return: a producer
		// racing in flips it back and forces another non-blocking pass.
		if taskQueueExhausted && !sched.HasReady() && spinLoops >= p.maxSpinLimit {
			spinLoops = 0
			if p.tqSeq.CompareAndSwap(tqSeq, waitSectionState) {
				// Stop is honored only here, once all pending events have
				// been dispatched. Stopping the flow of incoming events
				// first is the caller's responsibility.
				if p.stopped {
					break
				}
				p.stats.numStalls++
				timeout = -1
			}
		}

		if timeout == -1 && sched.HasSleepingFibers() {
			timeout = ceilTimeoutMs(time.Until(sched.NextSleepPoint()))
		}

		if timeout != 0 {
			p.lastWaitMs.Store(int64(timeout))
		}

		n, err := p.backend.wait(batch[:], timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			p.log.Err().Err(err).Log("helio: backend wait failed")
			panic(fmt.Sprintf("helio: backend wait: %v", err))
		}

		// Publish the post-wait state: producers now skip the wake fd.
		p.tqSeq.Store(0)

		cqeCount := n
		if cqeCount > 0 {
			p.stats.completionFetches++
			p.clock.update()

			// A full batch means the backend likely has more pending; keep
			// re-fetching with a zero timeout so completions are not starved
			// by the fiber step below.
			for {
				p.dispatchCompletions(batch[:cqeCount])
				if cqeCount < evBatchSize {
					break
				}
				if n, err = p.backend.wait(batch[:], 0); err != nil {
					break
				}
				cqeCount = n
				p.stats.completionFetches++
			}
		}

		p.runL2Tasks()

		if !sched.RunWorkerFibersStep() {
			// The scheduler has more work; poison the idle path below.
			cqeCount = 1
		}

		if cqeCount != 0 {
			continue
		}

		sched.DestroyTerminated()
		if !p.runOnIdleTasks() {
			pause(spinLoops)
			spinLoops++
		}
	}

	p.log.Debug().
		Int("pool", int(p.poolIndex)).
		Uint64("cycles", p.stats.loopCycles).
		Uint64("stalls", p.stats.numStalls).
		Uint64("fetches", p.stats.completionFetches).
		Uint64("task_interrupts", p.stats.taskInterrupts).
		Uint64("wakeups", p.tqWakeups.Load()).
		Int("centries", len(p.centries)).
		Log("helio: loop exit")

	return nil
}

// ceilTimeoutMs converts a wait duration to epoll/kqueue millisecond
// precision, rounding up. Rounding down would wake before sub-millisecond
// deadlines and spin against them at full speed.
func ceilTimeoutMs(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((int64(d) + int64(time.Millisecond) - 1) / int64(time.Millisecond))
}

// dispatchCompletions routes one batch of readiness records. Registrations
// are multishot, so callbacks are invoked in place, never moved or reset. A
// record whose slot has been disarmed, or whose generation no longer matches,
// is a late completion and is dropped.
func (p *Proactor) dispatchCompletions(events []completion) {
	for i := range events {
		c := &events[i]

		// kqueue timer filters resolve directly to their item.
		if c.item != nil {
			p.periodicCb(c.item)
			continue
		}

		userData := uint32(c.token)
		if userData < reservedBase {
			if userData != ignoreIndex {
				p.log.Err().Uint64("user_data", uint64(userData)).Log("helio: unrecognized completion token")
			}
			continue
		}

		slot := userData - reservedBase
		if slot >= uint32(len(p.centries)) {
			p.log.Err().Uint64("slot", uint64(slot)).Log("helio: completion slot out of range")
			continue
		}

		e := &p.centries[slot]
		if e.index == -1 && e.cb != nil && e.gen == uint32(c.token>>32) {
			e.cb(c.mask, c.errno, p)
		}
	}
}

package helio

import "time"

// Scheduler is the fiber-scheduler contract the proactor drives. The
// scheduler itself lives outside the core; MainLoop only needs these hooks.
// All methods are called from the loop thread.
type Scheduler interface {
	// ProcessRemoteReady moves fibers that other threads flagged runnable
	// into the local ready queue.
	ProcessRemoteReady()

	// HasReady reports whether any fiber is locally ready to run.
	HasReady() bool

	// HasSleepingFibers reports whether any fiber is parked on a deadline.
	HasSleepingFibers() bool

	// NextSleepPoint returns the earliest sleeping-fiber deadline. Only
	// meaningful while HasSleepingFibers is true.
	NextSleepPoint() time.Time

	// RunWorkerFibersStep runs one scheduling step and reports whether the
	// scheduler is quiescent. A false return keeps the loop hot for another
	// iteration.
	RunWorkerFibersStep() bool

	// DestroyTerminated reclaims finished fibers. Called only on iterations
	// with no other work.
	DestroyTerminated()
}

// NopScheduler is a Scheduler with no fibers. It keeps a proactor useful as a
// pure task/timer loop and serves as an embeddable base for partial
// implementations.
type NopScheduler struct{}

func (NopScheduler) ProcessRemoteReady() {}

func (NopScheduler) HasReady() bool { return false }

func (NopScheduler) HasSleepingFibers() bool { return false }

func (NopScheduler) NextSleepPoint() time.Time { return time.Time{} }

func (NopScheduler) RunWorkerFibersStep() bool { return true }

func (NopScheduler) DestroyTerminated() {}

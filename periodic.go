package helio

import "time"

// PeriodicItem describes one recurring timer registration. val1 and val2
// stash backend handles: the timer fd and callback slot on Linux, the kqueue
// registration id on BSD. RefCnt guards against a callback firing on an item
// that was already cancelled and released.
type PeriodicItem struct {
	// Task runs on the loop thread every Period.
	Task Tasklet
	// Period is the fixed interval between invocations.
	Period time.Duration

	val1   int
	val2   uint32
	refCnt int32
}

// SchedulePeriodic starts a recurring timer. id must be unique among live
// periodic registrations of this proactor (it keys the kqueue registration).
// Loop thread only.
func (p *Proactor) SchedulePeriodic(id uint32, item *PeriodicItem) error {
	p.assertLoopThread("SchedulePeriodic")
	if item.refCnt == 0 {
		item.refCnt = 1
	}
	return p.schedulePeriodic(id, item)
}

// CancelPeriodic stops a recurring timer and releases its backend resources.
// epoll and kqueue do not deliver timer completions after the registration is
// deleted, so the item may be dropped once this returns; a backend that defers
// completions would need ref-counted free instead. Loop thread only.
func (p *Proactor) CancelPeriodic(item *PeriodicItem) error {
	p.assertLoopThread("CancelPeriodic")
	item.refCnt--
	return p.cancelPeriodicInternal(item)
}

// periodicCb runs one timer expiration on the loop thread.
func (p *Proactor) periodicCb(item *PeriodicItem) {
	if item.refCnt <= 0 {
		panic("helio: periodic timer fired after cancel")
	}
	item.Task()
	p.ackPeriodic(item)
}

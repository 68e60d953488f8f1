//go:build darwin || freebsd

package helio

// schedulePeriodic registers an EVFILT_TIMER keyed by id. Expirations bypass
// the callback table: the backend resolves them straight to the item.
func (p *Proactor) schedulePeriodic(id uint32, item *PeriodicItem) error {
	item.val1 = int(id)
	return p.backend.addTimer(uint64(id), item)
}

func (p *Proactor) cancelPeriodicInternal(item *PeriodicItem) error {
	return p.backend.delTimer(uint64(item.val1))
}

// ackPeriodic is a no-op on kqueue; timer filters do not need draining.
func (p *Proactor) ackPeriodic(*PeriodicItem) {}

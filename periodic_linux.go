//go:build linux

package helio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// schedulePeriodic backs the timer with a monotonic timerfd armed through the
// callback table. The registration id is unused here; the timerfd itself keys
// everything.
func (p *Proactor) schedulePeriodic(id uint32, item *PeriodicItem) error {
	_ = id

	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return fmt.Errorf("helio: timerfd_create: %w", err)
	}

	slot, err := p.Arm(tfd, func(uint32, int32, *Proactor) {
		p.periodicCb(item)
	}, EvIn)
	if err != nil {
		_ = unix.Close(tfd)
		return err
	}
	item.val1 = tfd
	item.val2 = slot

	ts := unix.NsecToTimespec(item.Period.Nanoseconds())
	its := unix.ItimerSpec{Value: ts, Interval: ts}
	if err := unix.TimerfdSettime(tfd, 0, &its, nil); err != nil {
		_ = p.Disarm(tfd, slot)
		_ = unix.Close(tfd)
		return fmt.Errorf("helio: timerfd_settime: %w", err)
	}
	return nil
}

func (p *Proactor) cancelPeriodicInternal(item *PeriodicItem) error {
	err := p.Disarm(item.val1, item.val2)
	if cerr := unix.Close(item.val1); cerr != nil {
		p.log.Err().Err(cerr).Int("fd", item.val1).Log("helio: closing timer fd")
	}
	return err
}

// ackPeriodic reads the expiration counter so the level-triggered timerfd
// stops reporting. Failures are logged and otherwise ignored.
func (p *Proactor) ackPeriodic(item *PeriodicItem) {
	var buf [8]byte
	if _, err := unix.Read(item.val1, buf[:]); err != nil {
		p.log.Err().Err(err).Int("fd", item.val1).Log("helio: reading timer fd")
	}
}

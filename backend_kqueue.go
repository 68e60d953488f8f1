//go:build darwin || freebsd

package helio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pollBackend is the kqueue flavor of the readiness backend.
//
// Unlike the epoll side, no token rides inside the kernel record: Go pointers
// and packed integers must not round-trip through kevent udata, so dispatch is
// keyed off Ident and Filter instead. tokens maps live fd registrations to
// their callback-table tokens; timers maps EVFILT_TIMER idents to their
// PeriodicItem. A record whose key is absent resolves to ignoreIndex, which is
// exactly the late-completion discard the loop performs anyway.
type pollBackend struct {
	kq     int
	tokens map[filterKey]uint64
	timers map[uint64]*PeriodicItem
	events [evBatchSize]unix.Kevent_t
}

type filterKey struct {
	ident  uint64
	filter int16
}

func newPollBackend() (*pollBackend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("helio: kqueue: %w", err)
	}
	unix.CloseOnExec(kq)

	// Pre-register the user event other threads trigger to break a wait.
	var kev unix.Kevent_t
	unix.SetKevent(&kev, 0, unix.EVFILT_USER, unix.EV_ADD|unix.EV_CLEAR)
	if _, err := unix.Kevent(kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		_ = unix.Close(kq)
		return nil, fmt.Errorf("helio: registering user event: %w", err)
	}

	return &pollBackend{
		kq:     kq,
		tokens: make(map[filterKey]uint64),
		timers: make(map[uint64]*PeriodicItem),
	}, nil
}

func (b *pollBackend) wait(batch []completion, timeoutMs int) (int, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1_000_000)
		ts = &t
	}
	n, err := unix.Kevent(b.kq, nil, b.events[:len(batch)], ts)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		kev := &b.events[i]
		switch kev.Filter {
		case unix.EVFILT_TIMER:
			batch[i] = completion{item: b.timers[uint64(kev.Ident)]}
		case unix.EVFILT_USER:
			batch[i] = completion{token: ignoreIndex}
		default:
			batch[i] = completion{
				token: b.tokens[filterKey{uint64(kev.Ident), kev.Filter}],
				mask:  keventMask(kev),
				errno: int32(kev.Fflags),
			}
		}
	}
	return n, nil
}

// keventMask translates a kevent record into the portable readiness mask.
func keventMask(kev *unix.Kevent_t) uint32 {
	var mask uint32
	switch kev.Filter {
	case unix.EVFILT_READ:
		mask = EvIn
	case unix.EVFILT_WRITE:
		mask = EvOut
	}
	if kev.Flags&unix.EV_EOF != 0 {
		mask |= EvHup
	}
	return mask
}

func (b *pollBackend) add(fd int, mask uint32, token uint64) error {
	var changes []unix.Kevent_t
	var filters []int16
	if mask&EvIn != 0 {
		var kev unix.Kevent_t
		unix.SetKevent(&kev, fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR)
		changes = append(changes, kev)
		filters = append(filters, unix.EVFILT_READ)
	}
	if mask&EvOut != 0 {
		var kev unix.Kevent_t
		unix.SetKevent(&kev, fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_CLEAR)
		changes = append(changes, kev)
		filters = append(filters, unix.EVFILT_WRITE)
	}
	if _, err := unix.Kevent(b.kq, changes, nil, nil); err != nil {
		return err
	}
	for _, filter := range filters {
		b.tokens[filterKey{uint64(fd), filter}] = token
	}
	return nil
}

// del removes both filters for fd. A filter that was never added reports
// ENOENT, which is not an error here.
func (b *pollBackend) del(fd int) error {
	for _, filter := range []int16{unix.EVFILT_READ, unix.EVFILT_WRITE} {
		var kev unix.Kevent_t
		unix.SetKevent(&kev, fd, int(filter), unix.EV_DELETE)
		if _, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil); err != nil && err != unix.ENOENT {
			return err
		}
		delete(b.tokens, filterKey{uint64(fd), filter})
	}
	return nil
}

// wake triggers the pre-registered user event. Called from arbitrary threads.
func (b *pollBackend) wake() error {
	var kev unix.Kevent_t
	unix.SetKevent(&kev, 0, unix.EVFILT_USER, 0)
	kev.Fflags = unix.NOTE_TRIGGER
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (b *pollBackend) addTimer(id uint64, item *PeriodicItem) error {
	var kev unix.Kevent_t
	unix.SetKevent(&kev, int(id), unix.EVFILT_TIMER, unix.EV_ADD|unix.EV_ENABLE)
	kev.Data = item.Period.Milliseconds()
	if _, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		return err
	}
	b.timers[id] = item
	return nil
}

func (b *pollBackend) delTimer(id uint64) error {
	var kev unix.Kevent_t
	unix.SetKevent(&kev, int(id), unix.EVFILT_TIMER, unix.EV_DELETE)
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil)
	delete(b.timers, id)
	return err
}

func (b *pollBackend) close() error {
	return unix.Close(b.kq)
}

// armWake is a no-op on kqueue: the user event was pre-registered at backend
// creation with the ignore token, so there is no fd to run through the
// callback table.
func (p *Proactor) armWake() error {
	return nil
}

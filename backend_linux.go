//go:build linux

package helio

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// pollBackend is the epoll flavor of the readiness backend. The wake fd is an
// eventfd; it is registered level-triggered through the callback table at Init
// so a pending wake survives until the loop drains it.
type pollBackend struct {
	epollFd int
	wakeFd  int
	events  [evBatchSize]unix.EpollEvent
}

func newPollBackend() (*pollBackend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("helio: epoll_create1: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("helio: eventfd: %w", err)
	}
	return &pollBackend{epollFd: epfd, wakeFd: wakeFd}, nil
}

// wait fills batch with ready completions. timeoutMs < 0 blocks indefinitely.
// Errors, including EINTR, are returned raw; the loop decides what is benign.
func (b *pollBackend) wait(batch []completion, timeoutMs int) (int, error) {
	n, err := unix.EpollWait(b.epollFd, b.events[:len(batch)], timeoutMs)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		ev := &b.events[i]
		batch[i] = completion{
			// The token is split across the epoll_data fields: low half in
			// Fd, high half (the generation) in Pad.
			token: uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32,
			mask:  ev.Events,
		}
	}
	return n, nil
}

func (b *pollBackend) add(fd int, mask uint32, token uint64) error {
	ev := unix.EpollEvent{
		Events: mask,
		Fd:     int32(uint32(token)),
		Pad:    int32(uint32(token >> 32)),
	}
	return unix.EpollCtl(b.epollFd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (b *pollBackend) del(fd int) error {
	return unix.EpollCtl(b.epollFd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wake fires the eventfd. Called from arbitrary threads.
func (b *pollBackend) wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(b.wakeFd, buf[:])
	return err
}

func (b *pollBackend) close() error {
	err := unix.Close(b.epollFd)
	if cerr := unix.Close(b.wakeFd); err == nil {
		err = cerr
	}
	return err
}

// armWake registers the eventfd with the callback table. The callback drains
// the 8-byte counter; the readiness event itself is the payload.
func (p *Proactor) armWake() error {
	wakeFd := p.backend.wakeFd
	_, err := p.Arm(wakeFd, func(uint32, int32, *Proactor) {
		var buf [8]byte
		if _, err := unix.Read(wakeFd, buf[:]); err != nil && err != unix.EAGAIN {
			p.log.Err().Err(err).Log("helio: draining wake fd")
		}
	}, EvIn)
	return err
}

//go:build linux

package cxmx

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller implements poller on Linux via golang.org/x/sys/unix,
// the same package jacobsa-fuse depends on and the one mdlayher's
// socket.Conn and go-ublk's queue runner reach for when they drive
// raw, non-blocking fds directly (see DESIGN.md).
type epollPoller struct {
	epfd int
	buf  []unix.EpollEvent
}

func openPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, wrapf(err, "cxmx: epoll_create1")
	}
	return &epollPoller{epfd: epfd, buf: make([]unix.EpollEvent, maxPollerEvents)}, nil
}

func (p *epollPoller) events(wantWrite bool) uint32 {
	ev := uint32(unix.EPOLLIN)
	if wantWrite {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epollPoller) watch(fd int, wantWrite bool) error {
	ev := &unix.EpollEvent{Events: p.events(wantWrite), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return wrapf(err, "cxmx: epoll_ctl add fd %d", fd)
	}
	return nil
}

func (p *epollPoller) setWriteInterest(fd int, wantWrite bool) error {
	ev := &unix.EpollEvent{Events: p.events(wantWrite), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return wrapf(err, "cxmx: epoll_ctl mod fd %d", fd)
	}
	return nil
}

func (p *epollPoller) unwatch(fd int) error {
	// Linux permits a nil event pointer for EPOLL_CTL_DEL since 2.6.9,
	// but older kernels required a non-nil (unused) event; pass one
	// for portability.
	ev := &unix.EpollEvent{}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, ev); err != nil {
		if err == unix.EBADF || err == unix.ENOENT {
			return nil
		}
		return wrapf(err, "cxmx: epoll_ctl del fd %d", fd)
	}
	return nil
}

func (p *epollPoller) wait(timeout time.Duration) ([]pollEvent, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if ms == 0 && timeout > 0 {
			ms = 1
		}
	}
	n, err := unix.EpollWait(p.epfd, p.buf, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, errInterrupted
		}
		return nil, wrapf(err, "cxmx: epoll_wait")
	}
	out := make([]pollEvent, 0, n)
	for i := 0; i < n; i++ {
		e := p.buf[i]
		out = append(out, pollEvent{
			fd:       int(e.Fd),
			readable: e.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			writable: e.Events&(unix.EPOLLOUT|unix.EPOLLERR) != 0,
		})
	}
	return out, nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}

//go:build darwin || netbsd || freebsd || openbsd || dragonfly

package cxmx

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller implements poller on the BSD family and Darwin via
// golang.org/x/sys/unix, mirroring epollPoller's shape (see
// poller_linux.go and DESIGN.md for the grounding).
type kqueuePoller struct {
	kq  int
	buf []unix.Kevent_t
	// write interest is tracked per fd because kqueue models read and
	// write readiness as two independently (de)registered filters,
	// unlike epoll's single event mask.
	writeArmed map[int]bool
}

func openPoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, wrapf(err, "cxmx: kqueue")
	}
	return &kqueuePoller{kq: kq, buf: make([]unix.Kevent_t, maxPollerEvents), writeArmed: make(map[int]bool)}, nil
}

func (p *kqueuePoller) watch(fd int, wantWrite bool) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD},
	}
	if wantWrite {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD})
		p.writeArmed[fd] = true
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return wrapf(err, "cxmx: kevent add fd %d", fd)
	}
	return nil
}

func (p *kqueuePoller) setWriteInterest(fd int, wantWrite bool) error {
	armed := p.writeArmed[fd]
	if wantWrite == armed {
		return nil
	}
	flag := uint16(unix.EV_ADD)
	if !wantWrite {
		flag = unix.EV_DELETE
	}
	change := unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flag}
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{change}, nil, nil); err != nil {
		if !wantWrite && err == unix.ENOENT {
			delete(p.writeArmed, fd)
			return nil
		}
		return wrapf(err, "cxmx: kevent toggle write fd %d", fd)
	}
	if wantWrite {
		p.writeArmed[fd] = true
	} else {
		delete(p.writeArmed, fd)
	}
	return nil
}

func (p *kqueuePoller) unwatch(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
	}
	if p.writeArmed[fd] {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	// Best-effort: the kernel already drops kqueue registrations when
	// the fd itself is closed, so ENOENT here is not an error.
	unix.Kevent(p.kq, changes, nil, nil)
	delete(p.writeArmed, fd)
	return nil
}

func (p *kqueuePoller) wait(timeout time.Duration) ([]pollEvent, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.buf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, errInterrupted
		}
		return nil, wrapf(err, "cxmx: kevent wait")
	}
	byFd := make(map[int]*pollEvent, n)
	out := make([]pollEvent, 0, n)
	get := func(fd int) *pollEvent {
		if e, ok := byFd[fd]; ok {
			return e
		}
		out = append(out, pollEvent{fd: fd})
		e := &out[len(out)-1]
		byFd[fd] = e
		return e
	}
	for i := 0; i < n; i++ {
		ev := p.buf[i]
		fd := int(ev.Ident)
		e := get(fd)
		switch ev.Filter {
		case unix.EVFILT_READ:
			e.readable = true
		case unix.EVFILT_WRITE:
			e.writable = true
		}
		if ev.Flags&unix.EV_EOF != 0 {
			e.readable = true
		}
	}
	return out, nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.kq)
}

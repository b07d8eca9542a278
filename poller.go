package cxmx

import "time"

// maxPollerEvents bounds how many ready fds a single readiness call
// returns per wakeup.
const maxPollerEvents = 1024

// pollEvent reports the readiness state observed for one fd.
type pollEvent struct {
	fd       int
	readable bool
	writable bool
}

// poller is the platform readiness primitive: epoll on Linux, kqueue
// on the BSD family and Darwin. It is the single blocking point in
// the whole reactor: control yields to the kernel only inside the
// readiness wait.
type poller interface {
	// watch arms read-interest (and, if wantWrite, write-interest) for fd.
	watch(fd int, wantWrite bool) error
	// setWriteInterest toggles write-interest for an already-watched fd.
	setWriteInterest(fd int, wantWrite bool) error
	// unwatch removes fd from the poller. Does not close fd.
	unwatch(fd int) error
	// wait blocks up to timeout (or indefinitely if timeout < 0) and
	// returns the ready events. An empty, non-nil-error-free result
	// means the wait reached its timeout budget.
	wait(timeout time.Duration) ([]pollEvent, error)
	// close releases the poller's own fd (e.g. the epoll/kqueue fd).
	close() error
}

// errInterrupted is returned internally by a poller implementation to
// tell the reactor loop that the wait call was interrupted by a
// signal and should simply be retried.
type interruptedError struct{}

func (interruptedError) Error() string { return "cxmx: readiness call interrupted" }

var errInterrupted error = interruptedError{}

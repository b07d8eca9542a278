package cxmx

import (
	"io"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ConnectHandler is invoked once per accepted connection.
type ConnectHandler func(r *Reactor, fd int)

// DisconnectHandler is invoked when a connection is retired, carrying
// the origin label of the operation that observed the close.
type DisconnectHandler func(r *Reactor, fd int, origin Origin)

// ReactorErrorHandler is invoked when an I/O error is observed on fd.
// A read or write error retires the connection; an accept error
// leaves the listening fd registered.
type ReactorErrorHandler func(r *Reactor, fd int, origin Origin, err error)

// SocketDataHandler is invoked with raw bytes read from a connection
// opened by the reactor's own listen_*/connect_* calls.
type SocketDataHandler func(r *Reactor, fd int, data []byte)

// Reactor is CX: the outer scheduler. It owns the FdTable, the
// TimerQueue, and the platform poller; it drives the readiness loop
// and delivers read/write/accept/timeout events to caller-installed
// handlers.
type Reactor struct {
	fds    *FdTable
	timers *TimerQueue
	poller poller

	onConnect    ConnectHandler
	onDisconnect DisconnectHandler
	onError      ReactorErrorHandler
	onSocket     SocketDataHandler

	// Log is the reactor's diagnostic sink. It defaults to a logrus
	// Logger writing to io.Discard; set Log.SetOutput/SetLevel (or
	// replace Log outright) to observe it. Kept as an explicit,
	// caller-constructed registry rather than a package global.
	Log *logrus.Logger

	closed bool
}

// NewReactor creates a Reactor with its own platform poller (epoll on
// Linux, kqueue on the BSD family and Darwin).
func NewReactor() (*Reactor, error) {
	p, err := openPoller()
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Reactor{
		fds:    newFdTable(),
		timers: newTimerQueue(),
		poller: p,
		Log:    log,
	}, nil
}

func (r *Reactor) SetOnConnect(cb ConnectHandler)       { r.onConnect = cb }
func (r *Reactor) SetOnDisconnect(cb DisconnectHandler) { r.onDisconnect = cb }
func (r *Reactor) SetOnError(cb ReactorErrorHandler)    { r.onError = cb }
func (r *Reactor) SetOnSocket(cb SocketDataHandler)     { r.onSocket = cb }

// WatchFd registers or replaces the data-ready handler for fd,
// implicitly adding it as role FileData if absent. Use this for
// arbitrary caller-owned fds the reactor did not open itself.
func (r *Reactor) WatchFd(fd int, handler DataHandler) error {
	if r.closed {
		return ErrClosed
	}
	if fd < 0 {
		return ErrInvalidFd
	}
	c, created, err := r.fds.ensure(fd, RoleFileData)
	if err != nil {
		return err
	}
	c.Handler = handler
	if created {
		if err := r.poller.watch(fd, false); err != nil {
			r.fds.drop(fd)
			return err
		}
	}
	return nil
}

// DropFd unregisters fd. It does not close the underlying descriptor:
// the caller owns raw fds it registered itself via WatchFd.
func (r *Reactor) DropFd(fd int) error {
	if !r.fds.contains(fd) {
		return ErrInvalidFd
	}
	r.poller.unwatch(fd)
	r.fds.drop(fd)
	return nil
}

// Schedule registers a UserTimer firing at the given absolute
// wall-clock deadline (seconds since epoch). It returns a handle for
// Cancel.
func (r *Reactor) Schedule(deadline float64, cb TimerCallback) TimerHandle {
	return r.timers.insert(deadline, CategoryUserTimer, cb)
}

// Cancel removes a previously scheduled UserTimer by handle.
func (r *Reactor) Cancel(h TimerHandle) bool {
	return r.timers.removeByHandle(h)
}

// ListenStream opens a TCP listening socket. An empty host binds all
// interfaces; port 0 binds an OS-assigned ephemeral port (query it
// with LocalAddr).
func (r *Reactor) ListenStream(host string, port uint16) (int, error) {
	if r.closed {
		return -1, ErrClosed
	}
	fd, err := tcpListen(host, port)
	if err != nil {
		return -1, err
	}
	c, _, err := r.fds.ensure(fd, RoleListenStream)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	c.Owned = true
	if err := r.poller.watch(fd, false); err != nil {
		r.fds.drop(fd)
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// ConnectStream opens an outbound TCP connection, tagged FileData:
// bytes arriving on it are delivered raw via the on-socket hook, with
// no message framing. Use MX.ConnectStream for framed messages.
func (r *Reactor) ConnectStream(host string, port uint16) (int, error) {
	if r.closed {
		return -1, ErrClosed
	}
	fd, err := tcpConnect(host, port)
	if err != nil {
		return -1, err
	}
	return fd, r.wireRawSocket(fd, RoleFileData)
}

// ListenDatagram opens a UDP socket bound for receiving, tagged
// Datagram: each readiness wakeup delivers exactly one datagram to
// the on-socket hook.
func (r *Reactor) ListenDatagram(host string, port uint16) (int, error) {
	if r.closed {
		return -1, ErrClosed
	}
	fd, err := udpSocket()
	if err != nil {
		return -1, err
	}
	if err := udpBind(fd, host, port); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, r.wireRawSocket(fd, RoleDatagram)
}

// ConnectDatagram opens a UDP socket connected to a remote peer,
// tagged Datagram.
func (r *Reactor) ConnectDatagram(host string, port uint16) (int, error) {
	if r.closed {
		return -1, ErrClosed
	}
	fd, err := udpSocket()
	if err != nil {
		return -1, err
	}
	if err := udpConnect(fd, host, port); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, r.wireRawSocket(fd, RoleDatagram)
}

// wireRawSocket registers a fd the reactor itself opened (via
// connect_*/listen_datagram/connect_datagram, or accept) and is
// therefore responsible for closing on drop/Shutdown.
func (r *Reactor) wireRawSocket(fd int, role Role) error {
	c, _, err := r.fds.ensure(fd, role)
	if err != nil {
		unix.Close(fd)
		return err
	}
	c.Owned = true
	c.Handler = func(rr *Reactor, fd int, data []byte) {
		if rr.onSocket != nil {
			rr.onSocket(rr, fd, data)
		}
	}
	if err := r.poller.watch(fd, false); err != nil {
		r.fds.drop(fd)
		unix.Close(fd)
		return err
	}
	return nil
}

// LocalAddr reports the address the kernel assigned to fd, resolving
// ephemeral listen ports bound with port=0.
func (r *Reactor) LocalAddr(fd int) (host string, port uint16, err error) {
	if !r.fds.contains(fd) {
		return "", 0, ErrInvalidFd
	}
	return localAddr(fd)
}

// Send appends b to fd's egress buffer. It never performs I/O
// synchronously; bytes are drained opportunistically by Run.
func (r *Reactor) Send(fd int, b []byte) error {
	if len(b) == 0 {
		return ErrEmptyBuffer
	}
	c := r.fds.get(fd)
	if c == nil {
		return ErrInvalidFd
	}
	wasEmpty := c.Egress.Len() == 0
	c.Egress.Write(b)
	if wasEmpty {
		if err := r.poller.setWriteInterest(fd, true); err != nil {
			return err
		}
		c.writeWatched = true
	}
	return nil
}

// Run drives the main loop until there is no more work (fds and
// timers both exhausted, returning nil) or the readiness primitive
// fails unrecoverably (returning a non-nil error).
func (r *Reactor) Run() error {
	for {
		events, done, err := r.step()
		if r.closed {
			return nil
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		for _, e := range events {
			r.dispatchRaw(e)
		}
	}
}

// Shutdown closes all reactor-owned sockets, clears buffers, drops
// all timers, and causes any in-progress Run to return on its next
// iteration. Fds registered via WatchFd remain open: the caller owns
// them and is responsible for closing them itself.
func (r *Reactor) Shutdown() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.fds.each(func(fd int, c *Connection) {
		r.poller.unwatch(fd)
		if c.Owned {
			unix.Close(fd)
		}
	})
	r.fds = newFdTable()
	r.timers = newTimerQueue()
	return r.poller.close()
}

// dispatchRaw turns one raw reactor-level event into a direct handler
// call. This is the plain-CX delivery path (no queueing): MX installs
// its own translation in front of the same step() primitive instead.
func (r *Reactor) dispatchRaw(e rawEvent) {
	switch e.kind {
	case rawAccepted:
		if err := r.wireRawSocket(e.fd, RoleFileData); err != nil {
			r.Log.WithError(err).Warn("cxmx: failed to register accepted connection")
			return
		}
		if r.onConnect != nil {
			r.onConnect(r, e.fd)
		}
	case rawDataReady:
		c := r.fds.get(e.fd)
		if c == nil || c.Handler == nil {
			return
		}
		data := append([]byte(nil), c.Ingress.Bytes()...)
		c.Ingress.Reset()
		c.Handler(r, e.fd, data)
	case rawTimerFired:
		if e.timer.Callback != nil {
			e.timer.Callback(r)
		}
	case rawDisconnect:
		if r.onDisconnect != nil {
			r.onDisconnect(r, e.fd, e.origin)
		}
	case rawError:
		if r.onError != nil {
			r.onError(r, e.fd, e.origin, e.err)
		}
	}
}

// --- low-level readiness mechanics, shared by Run() and MX ---

type rawKind int

const (
	rawDataReady rawKind = iota
	rawAccepted
	rawTimerFired
	rawDisconnect
	rawError
)

// rawEvent is the low-level signal produced by one step() call,
// before either direct dispatch (bare CX) or queueing (MX) happens.
type rawEvent struct {
	kind   rawKind
	fd     int
	origin Origin
	err    error
	timer  *Timer
}

// step performs one iteration of the reactor's main-loop algorithm —
// build the read/write sets, block on readiness with the timer-derived
// budget, then drain whichever fds or timers came due — collecting
// whatever events it produces instead of dispatching them itself.
// done reports the clean-shutdown condition: no fds and no timers
// remain.
func (r *Reactor) step() (events []rawEvent, done bool, err error) {
	if r.fds.empty() && r.timers.peek() == nil {
		return nil, true, nil
	}

	budget := time.Duration(-1)
	if t := r.timers.peek(); t != nil {
		d := t.Deadline - nowSeconds()
		if d < 0 {
			d = 0
		}
		budget = secondsToDuration(d)
	}

	pevents, werr := r.poller.wait(budget)
	if werr == errInterrupted {
		return nil, false, nil
	}
	if werr != nil {
		return nil, false, &ReadinessError{Err: werr}
	}
	if len(pevents) == 0 {
		return r.drainDueTimers(), false, nil
	}

	sort.Slice(pevents, func(i, j int) bool { return pevents[i].fd < pevents[j].fd })

	for _, pe := range pevents {
		c := r.fds.get(pe.fd)
		if c == nil {
			continue
		}
		if pe.readable {
			events = append(events, r.handleReadable(pe.fd, c)...)
		}
		if pe.writable {
			if c2 := r.fds.get(pe.fd); c2 != nil {
				events = append(events, r.handleWritable(pe.fd, c2)...)
			}
		}
	}
	return events, false, nil
}

func (r *Reactor) handleReadable(fd int, c *Connection) []rawEvent {
	if c.Role == RoleListenStream {
		nfd, err := tcpAccept(fd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return nil
			}
			return []rawEvent{{kind: rawError, fd: fd, origin: OriginAccept, err: err}}
		}
		return []rawEvent{{kind: rawAccepted, fd: nfd}}
	}

	var n int
	var err error
	if c.Role == RoleDatagram {
		n, err = r.drainReadDatagram(fd, c)
	} else {
		n, err = r.drainReadStream(fd, c)
	}
	switch {
	case err == io.EOF:
		r.closeFd(fd)
		return []rawEvent{{kind: rawDisconnect, fd: fd, origin: OriginRead}}
	case err != nil:
		r.closeFd(fd)
		return []rawEvent{{kind: rawError, fd: fd, origin: OriginRead, err: err}}
	case n > 0:
		return []rawEvent{{kind: rawDataReady, fd: fd}}
	default:
		return nil
	}
}

func (r *Reactor) handleWritable(fd int, c *Connection) []rawEvent {
	err := r.drainWrite(fd, c)
	switch {
	case err == io.EOF:
		r.closeFd(fd)
		return []rawEvent{{kind: rawDisconnect, fd: fd, origin: OriginWrite}}
	case err != nil:
		r.closeFd(fd)
		return []rawEvent{{kind: rawError, fd: fd, origin: OriginWrite, err: err}}
	default:
		if c.Egress.Len() == 0 && c.writeWatched {
			r.poller.setWriteInterest(fd, false)
			c.writeWatched = false
		}
		return nil
	}
}

// drainReadStream reads until EAGAIN, accumulating into c.Ingress.
func (r *Reactor) drainReadStream(fd int, c *Connection) (n int, err error) {
	var tmp [65536]byte
	for {
		nr, er := unix.Read(fd, tmp[:])
		if er == unix.EAGAIN || er == unix.EWOULDBLOCK {
			return n, nil
		}
		if er == unix.EINTR {
			continue
		}
		if er != nil {
			return n, er
		}
		if nr == 0 {
			return n, io.EOF
		}
		c.Ingress.Write(tmp[:nr])
		n += nr
		if nr < len(tmp) {
			return n, nil
		}
	}
}

// drainReadDatagram performs exactly one read, preserving the
// one-datagram-one-message boundary UDP sockets require.
func (r *Reactor) drainReadDatagram(fd int, c *Connection) (n int, err error) {
	var tmp [65536]byte
	for {
		nr, er := unix.Read(fd, tmp[:])
		if er == unix.EAGAIN || er == unix.EWOULDBLOCK {
			return 0, nil
		}
		if er == unix.EINTR {
			continue
		}
		if er != nil {
			return 0, er
		}
		if nr == 0 {
			return 0, io.EOF
		}
		c.Ingress.Write(tmp[:nr])
		return nr, nil
	}
}

func (r *Reactor) drainWrite(fd int, c *Connection) error {
	for c.Egress.Len() > 0 {
		nw, ew := unix.Write(fd, c.Egress.Bytes())
		if ew == unix.EAGAIN || ew == unix.EWOULDBLOCK {
			return nil
		}
		if ew == unix.EINTR {
			continue
		}
		if ew != nil {
			return ew
		}
		if nw == 0 {
			return io.EOF
		}
		c.Egress.Next(nw)
	}
	return nil
}

func (r *Reactor) drainDueTimers() []rawEvent {
	var out []rawEvent
	now := nowSeconds()
	for {
		t := r.timers.peek()
		if t == nil || t.Deadline > now {
			break
		}
		r.timers.pop()
		out = append(out, rawEvent{kind: rawTimerFired, timer: t})
	}
	return out
}

func (r *Reactor) closeFd(fd int) {
	r.poller.unwatch(fd)
	unix.Close(fd)
	r.fds.drop(fd)
}

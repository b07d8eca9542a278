package cxmx

import (
	"container/list"
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// MX is the message exchange: a Reactor plus a message framer, a
// per-type subscriber table, and the pending/waiting event queues
// that make Await correct without starving unrelated events. Built on
// the same FdTable/TimerQueue/poller machinery as bare CX.
type MX struct {
	cx     *Reactor
	subs   *SubscriberTable
	framer *Framer

	pending *list.List // *Event, FIFO of events to deliver next
	waiting *list.List // *Event, events produced during an in-flight Await
}

// NewMX layers MX onto an existing Reactor. maxFrameSize bounds a
// single message's declared payload size (0 disables the cap; see
// Framer).
func NewMX(cx *Reactor, maxFrameSize int) *MX {
	return &MX{
		cx:      cx,
		subs:    newSubscriberTable(),
		framer:  NewFramer(maxFrameSize),
		pending: list.New(),
		waiting: list.New(),
	}
}

// Reactor returns the underlying CX reactor MX is layered on.
func (mx *MX) Reactor() *Reactor { return mx.cx }

// --- pass-through reactor operations, shared verbatim between CX and MX ---

func (mx *MX) SetOnConnect(cb ConnectHandler)       { mx.cx.SetOnConnect(cb) }
func (mx *MX) SetOnDisconnect(cb DisconnectHandler) { mx.cx.SetOnDisconnect(cb) }
func (mx *MX) SetOnError(cb ReactorErrorHandler)    { mx.cx.SetOnError(cb) }
func (mx *MX) Schedule(deadline float64, cb TimerCallback) TimerHandle {
	return mx.cx.Schedule(deadline, cb)
}
func (mx *MX) Cancel(h TimerHandle) bool                { return mx.cx.Cancel(h) }
func (mx *MX) Send(fd int, b []byte) error              { return mx.cx.Send(fd, b) }
func (mx *MX) WatchFd(fd int, h DataHandler) error      { return mx.cx.WatchFd(fd, h) }
func (mx *MX) DropFd(fd int) error                      { return mx.cx.DropFd(fd) }
func (mx *MX) LocalAddr(fd int) (string, uint16, error) { return mx.cx.LocalAddr(fd) }
func (mx *MX) Shutdown() error                          { return mx.cx.Shutdown() }

// ListenStream and the datagram operations don't need MX-specific
// role tagging: the listener fd itself is always RoleListenStream,
// and translate() is what decides an accepted connection becomes
// MessageStream. A Datagram role is identical whether driven by bare
// CX or MX (one recv == one frame either way).
func (mx *MX) ListenStream(host string, port uint16) (int, error)    { return mx.cx.ListenStream(host, port) }
func (mx *MX) ListenDatagram(host string, port uint16) (int, error)  { return mx.cx.ListenDatagram(host, port) }
func (mx *MX) ConnectDatagram(host string, port uint16) (int, error) { return mx.cx.ConnectDatagram(host, port) }

// ConnectStream opens an outbound TCP connection tagged MessageStream
// (unlike Reactor.ConnectStream, which tags FileData for raw byte
// delivery).
func (mx *MX) ConnectStream(host string, port uint16) (int, error) {
	if mx.cx.closed {
		return -1, ErrClosed
	}
	fd, err := tcpConnect(host, port)
	if err != nil {
		return -1, err
	}
	c, _, err := mx.cx.fds.ensure(fd, RoleMessageStream)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	c.Owned = true
	if err := mx.cx.poller.watch(fd, false); err != nil {
		mx.cx.fds.drop(fd)
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// Subscribe installs handler for messages of the given type.
func (mx *MX) Subscribe(msgType uint32, handler MessageHandler) { mx.subs.Subscribe(msgType, handler) }

// DropSubscription removes the subscription for msgType, if any.
func (mx *MX) DropSubscription(msgType uint32) { mx.subs.Drop(msgType) }

// SendMessage frames (type, version, payload) per the wire header
// format and appends it to fd's egress buffer.
func (mx *MX) SendMessage(fd int, msgType, version uint32, payload []byte) error {
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], msgType)
	binary.BigEndian.PutUint32(buf[4:8], version)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[headerSize:], payload)
	return mx.cx.Send(fd, buf)
}

// collectOnce performs one reactor readiness cycle and translates its
// raw, low-level signals into zero or more MX Events. It never
// invokes a handler itself.
func (mx *MX) collectOnce() (evs []*Event, done bool, err error) {
	raw, done, err := mx.cx.step()
	if err != nil || done {
		return nil, done, err
	}
	for _, re := range raw {
		evs = append(evs, mx.translate(re)...)
	}
	return evs, false, nil
}

// translate turns one raw reactor-level signal into zero or more
// Events, performing only the bookkeeping needed to do so (role
// registration for freshly accepted fds, framer extraction) — never
// invoking a caller hook. Hook invocation happens exclusively in the
// dispatch pop loop (dispatch.go), which is what lets Await divert
// events without ever running a handler out of turn.
func (mx *MX) translate(re rawEvent) []*Event {
	switch re.kind {
	case rawAccepted:
		c, _, err := mx.cx.fds.ensure(re.fd, RoleMessageStream)
		if err != nil {
			unix.Close(re.fd)
			return nil
		}
		c.Owned = true
		if err := mx.cx.poller.watch(re.fd, false); err != nil {
			mx.cx.fds.drop(re.fd)
			unix.Close(re.fd)
			return nil
		}
		return []*Event{{kind: evAccepted, fd: re.fd}}

	case rawDataReady:
		c := mx.cx.fds.get(re.fd)
		if c == nil {
			return nil
		}
		switch c.Role {
		case RoleFileData:
			return []*Event{{kind: evDataReady, fd: re.fd}}
		case RoleDatagram:
			frame, ferr := mx.framer.ExtractDatagram(&c.Ingress)
			if ferr != nil {
				mx.cx.closeFd(re.fd)
				return []*Event{{kind: evError, fd: re.fd, origin: OriginRead, err: ferr}}
			}
			if frame == nil {
				return nil
			}
			return []*Event{{kind: evMessage, fd: re.fd, msgType: frame.Type, version: frame.Version, payload: frame.Payload}}
		default: // RoleMessageStream
			frames, ferr := mx.framer.Extract(&c.Ingress)
			if ferr != nil {
				mx.cx.closeFd(re.fd)
				return []*Event{{kind: evError, fd: re.fd, origin: OriginRead, err: ferr}}
			}
			out := make([]*Event, 0, len(frames))
			for _, f := range frames {
				out = append(out, &Event{kind: evMessage, fd: re.fd, msgType: f.Type, version: f.Version, payload: f.Payload})
			}
			return out
		}

	case rawTimerFired:
		return []*Event{{kind: evTimerFired, timer: re.timer}}
	case rawDisconnect:
		return []*Event{{kind: evDisconnect, fd: re.fd, origin: re.origin}}
	case rawError:
		return []*Event{{kind: evError, fd: re.fd, origin: re.origin, err: re.err}}
	}
	return nil
}

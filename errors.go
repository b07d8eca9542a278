// Package cxmx is a single-threaded, event-driven networking runtime.
//
// It multiplexes timers, arbitrary file descriptors, stream/datagram
// sockets, and a length-prefixed typed-message protocol over one
// reactor loop. CX is the lower scheduler (fds, timers, readiness);
// MX layers a message framer, a per-type subscriber table, and a
// synchronous await primitive on top of it.
package cxmx

import (
	"fmt"

	"github.com/pkg/errors"
)

// Origin identifies the syscall or control-flow site that observed a
// condition: "read", "write", "accept", or "select".
type Origin string

const (
	OriginRead   Origin = "read"
	OriginWrite  Origin = "write"
	OriginAccept Origin = "accept"
	OriginSelect Origin = "select"
)

// Sentinel errors. ErrFrameTooLarge and ErrShortBuffer are returned
// wrapped with context (match them with errors.Is or errors.Cause);
// the others are returned directly (not wrapped) by API calls.
var (
	// ErrInvalidFd is returned when an operation targets an fd the
	// reactor does not own. No event is emitted; this is a local,
	// synchronous rejection.
	ErrInvalidFd = errors.New("cxmx: invalid or unowned file descriptor")

	// ErrClosed is returned by WatchFd and the Listen*/Connect* calls
	// when attempted after Shutdown. Send, DropFd and LocalAddr on a
	// shut-down reactor find no registered fd and return ErrInvalidFd.
	ErrClosed = errors.New("cxmx: reactor is shut down")

	// ErrEmptyBuffer is returned by Send given a zero-length buffer.
	ErrEmptyBuffer = errors.New("cxmx: empty buffer")

	// ErrFrameTooLarge is returned by the Framer when a declared frame
	// size exceeds the configured maximum.
	ErrFrameTooLarge = errors.New("cxmx: frame exceeds configured maximum size")

	// ErrTruncatedDatagram is returned when a UDP message socket receives
	// a datagram that does not carry exactly one complete header+payload.
	ErrTruncatedDatagram = errors.New("cxmx: truncated datagram frame")

	// ErrShortBuffer is returned by Unpacker accessors when the
	// underlying buffer doesn't hold enough remaining bytes for the
	// requested field. Distinct from ErrTruncatedDatagram: a short pack
	// buffer is a caller/codec-usage error, not a UDP framing condition.
	ErrShortBuffer = errors.New("cxmx: short buffer")
)

// IoError reports a kernel-observed I/O failure on a specific fd.
// It corresponds to the IoError(origin, code) kind in the error design.
type IoError struct {
	Fd     int
	Origin Origin
	Err    error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("cxmx: fd %d: %s: %v", e.Fd, e.Origin, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// PeerClosed reports a stream or datagram peer closing its end (a
// zero-length read or write) during the given origin operation.
type PeerClosed struct {
	Fd     int
	Origin Origin
}

func (e *PeerClosed) Error() string {
	return fmt.Sprintf("cxmx: fd %d: peer closed during %s", e.Fd, e.Origin)
}

// ReadinessError reports that the kernel readiness primitive itself
// failed with a non-interrupt code. It is fatal to Run(), which
// returns it directly (Run returns -1-equivalent by returning a
// non-nil error).
type ReadinessError struct {
	Err error
}

func (e *ReadinessError) Error() string {
	return fmt.Sprintf("cxmx: readiness call failed: %v", e.Err)
}

func (e *ReadinessError) Unwrap() error { return e.Err }

func wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

func newf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

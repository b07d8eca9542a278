package cxmx

import (
	"bytes"
	"encoding/binary"
)

// headerSize is the fixed 12-byte wire header: type:u32, version:u32,
// size:u32, all big-endian, followed by size raw payload bytes with no
// trailing delimiter.
const headerSize = 12

// Frame is one decoded message: a type, a version, and an owned
// payload of exactly size bytes.
type Frame struct {
	Type    uint32
	Version uint32
	Payload []byte
}

// Framer turns a byte stream (or a single datagram) into whole
// messages. The streaming-accumulate-then-extract shape mirrors
// hayabusa-cloud-framer's length-prefixed framer, adapted to cxmx's
// fixed 12-byte header instead of its variable-width one.
type Framer struct {
	// maxFrameSize caps a declared payload size. 0 disables the cap,
	// which is unsafe against an adversarial peer that can otherwise
	// grow the ingress buffer without bound.
	maxFrameSize int
}

// NewFramer returns a Framer with the given maximum payload size (0
// to disable the cap).
func NewFramer(maxFrameSize int) *Framer {
	return &Framer{maxFrameSize: maxFrameSize}
}

// Extract pulls zero or more complete frames out of the front of buf,
// leaving any trailing partial frame in place for the next call. It
// is the stream-socket framing path.
func (f *Framer) Extract(buf *bytes.Buffer) ([]Frame, error) {
	var frames []Frame
	for buf.Len() >= headerSize {
		hdr := buf.Bytes()[:headerSize]
		typ := binary.BigEndian.Uint32(hdr[0:4])
		ver := binary.BigEndian.Uint32(hdr[4:8])
		size := binary.BigEndian.Uint32(hdr[8:12])

		if f.maxFrameSize > 0 && size > uint32(f.maxFrameSize) {
			return frames, wrapf(ErrFrameTooLarge, "declared size %d", size)
		}
		if buf.Len() < headerSize+int(size) {
			break // wait for more bytes
		}

		buf.Next(headerSize)
		payload := make([]byte, size)
		copy(payload, buf.Next(int(size)))
		frames = append(frames, Frame{Type: typ, Version: ver, Payload: payload})
	}
	return frames, nil
}

// ExtractDatagram decodes exactly one frame from a single datagram's
// worth of bytes (buf holds exactly one recv() worth of data). A
// datagram that is too short for a header, or whose declared size
// does not exactly match the remaining bytes, is a truncated frame and
// treated as an error. A nil, nil result means buf was empty (no
// datagram pending).
func (f *Framer) ExtractDatagram(buf *bytes.Buffer) (*Frame, error) {
	if buf.Len() == 0 {
		return nil, nil
	}
	if buf.Len() < headerSize {
		buf.Reset()
		return nil, ErrTruncatedDatagram
	}
	hdr := buf.Bytes()[:headerSize]
	typ := binary.BigEndian.Uint32(hdr[0:4])
	ver := binary.BigEndian.Uint32(hdr[4:8])
	size := binary.BigEndian.Uint32(hdr[8:12])

	if f.maxFrameSize > 0 && size > uint32(f.maxFrameSize) {
		buf.Reset()
		return nil, wrapf(ErrFrameTooLarge, "declared size %d", size)
	}
	if buf.Len() != headerSize+int(size) {
		buf.Reset()
		return nil, ErrTruncatedDatagram
	}

	buf.Next(headerSize)
	payload := make([]byte, size)
	copy(payload, buf.Next(int(size)))
	return &Frame{Type: typ, Version: ver, Payload: payload}, nil
}

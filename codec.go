package cxmx

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Packer builds a message payload field by field: fixed-width
// big-endian integers, IEEE-754 floats, length-prefixed strings and
// opaque data, and raw fixed-length bytes. Widths and endianness are
// fixed by the wire contract, not configurable.
type Packer struct {
	buf bytes.Buffer
}

// NewPacker returns an empty Packer.
func NewPacker() *Packer { return &Packer{} }

func (p *Packer) U8(v uint8) *Packer  { p.buf.WriteByte(v); return p }
func (p *Packer) U16(v uint16) *Packer {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	p.buf.Write(tmp[:])
	return p
}
func (p *Packer) U32(v uint32) *Packer {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	p.buf.Write(tmp[:])
	return p
}
func (p *Packer) U64(v uint64) *Packer {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	p.buf.Write(tmp[:])
	return p
}
func (p *Packer) F32(v float32) *Packer { return p.U32(math.Float32bits(v)) }
func (p *Packer) F64(v float64) *Packer { return p.U64(math.Float64bits(v)) }

// String writes a 4-byte length prefix followed by s's bytes. unpack
// adds an implicit terminator; String itself writes none.
func (p *Packer) String(s string) *Packer {
	p.U32(uint32(len(s)))
	p.buf.WriteString(s)
	return p
}

// Data writes a 4-byte length prefix followed by b, for opaque
// (non-string) byte payloads.
func (p *Packer) Data(b []byte) *Packer {
	p.U32(uint32(len(b)))
	p.buf.Write(b)
	return p
}

// Raw writes b verbatim with no length prefix, for fields whose
// length is fixed and known to both ends out of band.
func (p *Packer) Raw(b []byte) *Packer {
	p.buf.Write(b)
	return p
}

// Bytes returns the packed payload built so far.
func (p *Packer) Bytes() []byte { return p.buf.Bytes() }

// Unpacker reads fields out of a payload in the order Packer wrote
// them. Each accessor reports a truncation error instead of panicking
// on a short buffer.
type Unpacker struct {
	buf []byte
	off int
	err error
}

// NewUnpacker wraps b for sequential field reads.
func NewUnpacker(b []byte) *Unpacker { return &Unpacker{buf: b} }

// Err returns the first error encountered by any accessor, if any.
func (u *Unpacker) Err() error { return u.err }

func (u *Unpacker) need(n int) ([]byte, bool) {
	if u.err != nil {
		return nil, false
	}
	if len(u.buf)-u.off < n {
		u.err = wrapf(ErrShortBuffer, "unpack: need %d bytes, have %d", n, len(u.buf)-u.off)
		return nil, false
	}
	b := u.buf[u.off : u.off+n]
	u.off += n
	return b, true
}

func (u *Unpacker) U8() uint8 {
	b, ok := u.need(1)
	if !ok {
		return 0
	}
	return b[0]
}

func (u *Unpacker) U16() uint16 {
	b, ok := u.need(2)
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (u *Unpacker) U32() uint32 {
	b, ok := u.need(4)
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (u *Unpacker) U64() uint64 {
	b, ok := u.need(8)
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (u *Unpacker) F32() float32 { return math.Float32frombits(u.U32()) }
func (u *Unpacker) F64() float64 { return math.Float64frombits(u.U64()) }

// String reads a 4-byte length prefix and that many bytes, returning
// a freshly allocated string (the implicit terminator of the wire
// contract, as opposed to Data's returned slice which aliases buf).
func (u *Unpacker) String() string {
	n := u.U32()
	b, ok := u.need(int(n))
	if !ok {
		return ""
	}
	return string(b)
}

// Data reads a 4-byte length prefix and that many bytes of opaque
// payload. The returned slice aliases the Unpacker's backing buffer.
func (u *Unpacker) Data() []byte {
	n := u.U32()
	b, ok := u.need(int(n))
	if !ok {
		return nil
	}
	return b
}

// Raw reads exactly n bytes with no length prefix. The returned slice
// aliases the Unpacker's backing buffer.
func (u *Unpacker) Raw(n int) []byte {
	b, ok := u.need(n)
	if !ok {
		return nil
	}
	return b
}

package cxmx

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func encodeFrame(typ, ver uint32, payload []byte) []byte {
	out := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(out[0:4], typ)
	binary.BigEndian.PutUint32(out[4:8], ver)
	binary.BigEndian.PutUint32(out[8:12], uint32(len(payload)))
	copy(out[headerSize:], payload)
	return out
}

func TestFramerExtractsWholeFrameOnly(t *testing.T) {
	f := NewFramer(0)
	buf := new(bytes.Buffer)
	whole := encodeFrame(1, 1, []byte("hello"))
	buf.Write(whole[:headerSize+2]) // header plus partial payload

	frames, err := f.Extract(buf)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("expected no complete frames yet, got %d", len(frames))
	}
	if buf.Len() != headerSize+2 {
		t.Fatal("Extract must leave a partial frame untouched")
	}

	buf.Write(whole[headerSize+2:])
	frames, err = f.Extract(buf)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(frames) != 1 || string(frames[0].Payload) != "hello" {
		t.Fatalf("frames = %+v, want one frame payload 'hello'", frames)
	}
	if buf.Len() != 0 {
		t.Fatal("buffer should be fully drained")
	}
}

func TestFramerExtractsMultipleFramesFromOneChunk(t *testing.T) {
	f := NewFramer(0)
	buf := new(bytes.Buffer)
	buf.Write(encodeFrame(1, 0, []byte("a")))
	buf.Write(encodeFrame(2, 0, []byte("bb")))

	frames, err := f.Extract(buf)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Type != 1 || string(frames[0].Payload) != "a" {
		t.Fatalf("frame 0 = %+v", frames[0])
	}
	if frames[1].Type != 2 || string(frames[1].Payload) != "bb" {
		t.Fatalf("frame 1 = %+v", frames[1])
	}
}

func TestFramerRejectsOversizedFrame(t *testing.T) {
	f := NewFramer(4)
	buf := new(bytes.Buffer)
	buf.Write(encodeFrame(1, 0, []byte("too long")))

	if _, err := f.Extract(buf); err == nil {
		t.Fatal("expected ErrFrameTooLarge")
	}
}

func TestExtractDatagramExactMatch(t *testing.T) {
	f := NewFramer(0)
	buf := new(bytes.Buffer)
	buf.Write(encodeFrame(7, 1, []byte("hi")))

	frame, err := f.ExtractDatagram(buf)
	if err != nil {
		t.Fatalf("ExtractDatagram: %v", err)
	}
	if frame == nil || string(frame.Payload) != "hi" {
		t.Fatalf("frame = %+v", frame)
	}
}

func TestExtractDatagramTruncated(t *testing.T) {
	f := NewFramer(0)
	buf := new(bytes.Buffer)
	whole := encodeFrame(7, 1, []byte("hello"))
	buf.Write(whole[:len(whole)-2]) // short by two payload bytes

	_, err := f.ExtractDatagram(buf)
	if err != ErrTruncatedDatagram {
		t.Fatalf("err = %v, want ErrTruncatedDatagram", err)
	}
	if buf.Len() != 0 {
		t.Fatal("ExtractDatagram must discard a truncated datagram's bytes")
	}
}

func TestExtractDatagramEmptyIsNotAnError(t *testing.T) {
	f := NewFramer(0)
	buf := new(bytes.Buffer)

	frame, err := f.ExtractDatagram(buf)
	if err != nil || frame != nil {
		t.Fatalf("frame=%v err=%v, want nil,nil for empty buffer", frame, err)
	}
}

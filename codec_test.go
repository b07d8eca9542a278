package cxmx

import "testing"

// TestPackedRecordRoundTrip verifies that a record with one field of
// each supported type packs to exactly 47 bytes and unpacks bit-exact.
func TestPackedRecordRoundTrip(t *testing.T) {
	p := NewPacker().
		U8(0x01).
		U16(0x0123).
		U32(0x01234567).
		U64(0x0123456789ABCDEF).
		F32(0.0).
		F64(0.0).
		String("Hoi1").
		Data([]byte("Hoi2")).
		Raw([]byte("Hoi3"))

	buf := p.Bytes()
	if len(buf) != 47 {
		t.Fatalf("packed length = %d, want 47", len(buf))
	}

	u := NewUnpacker(buf)
	if got := u.U8(); got != 0x01 {
		t.Fatalf("U8 = %#x, want 0x01", got)
	}
	if got := u.U16(); got != 0x0123 {
		t.Fatalf("U16 = %#x, want 0x0123", got)
	}
	if got := u.U32(); got != 0x01234567 {
		t.Fatalf("U32 = %#x, want 0x01234567", got)
	}
	if got := u.U64(); got != 0x0123456789ABCDEF {
		t.Fatalf("U64 = %#x, want 0x0123456789ABCDEF", got)
	}
	if got := u.F32(); got != 0.0 {
		t.Fatalf("F32 = %v, want 0", got)
	}
	if got := u.F64(); got != 0.0 {
		t.Fatalf("F64 = %v, want 0", got)
	}
	if got := u.String(); got != "Hoi1" {
		t.Fatalf("String = %q, want Hoi1", got)
	}
	if got := string(u.Data()); got != "Hoi2" {
		t.Fatalf("Data = %q, want Hoi2", got)
	}
	if got := string(u.Raw(4)); got != "Hoi3" {
		t.Fatalf("Raw = %q, want Hoi3", got)
	}
	if u.Err() != nil {
		t.Fatalf("unexpected unpack error: %v", u.Err())
	}
}

func TestCodecRoundTripPreservesWidthsAndEndianness(t *testing.T) {
	p := NewPacker().U8(200).U16(40000).U32(4000000000).U64(1 << 63).F32(3.5).F64(-2.25)
	u := NewUnpacker(p.Bytes())

	if u.U8() != 200 {
		t.Fatal("u8 mismatch")
	}
	if u.U16() != 40000 {
		t.Fatal("u16 mismatch")
	}
	if u.U32() != 4000000000 {
		t.Fatal("u32 mismatch")
	}
	if u.U64() != 1<<63 {
		t.Fatal("u64 mismatch")
	}
	if u.F32() != 3.5 {
		t.Fatal("f32 mismatch")
	}
	if u.F64() != -2.25 {
		t.Fatal("f64 mismatch")
	}
}

func TestUnpackerReportsTruncation(t *testing.T) {
	u := NewUnpacker([]byte{0x01, 0x02})
	u.U32()
	if u.Err() == nil {
		t.Fatal("expected truncation error reading u32 from 2 bytes")
	}
}

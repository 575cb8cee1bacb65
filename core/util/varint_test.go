package util

import "testing"

func TestVIntRoundTrip(t *testing.T) {
	values := []int32{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, 1<<31 - 1, -1, -128, -1 << 31}
	for _, v := range values {
		buf := WriteVInt(nil, v)
		got, off, err := ReadVInt(buf, 0)
		if err != nil {
			t.Fatalf("ReadVInt(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("VInt round trip: wrote %d, read %d", v, got)
		}
		if off != len(buf) {
			t.Errorf("VInt(%d): wrote %d bytes, ReadVInt consumed %d", v, len(buf), off)
		}
		if len(buf) != VIntLen(v) {
			t.Errorf("VIntLen(%d) = %d, WriteVInt used %d", v, VIntLen(v), len(buf))
		}
	}
}

func TestVLongRoundTrip(t *testing.T) {
	values := []int64{0, 1, 127, 128, 1 << 40, -1, -(1 << 40), 1<<63 - 1, -1 << 63}
	for _, v := range values {
		buf := WriteVLong(nil, v)
		got, off, err := ReadVLong(buf, 0)
		if err != nil {
			t.Fatalf("ReadVLong(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("VLong round trip: wrote %d, read %d", v, got)
		}
		if off != len(buf) {
			t.Errorf("VLong(%d): wrote %d bytes, ReadVLong consumed %d", v, len(buf), off)
		}
	}
}

func TestReadVIntTooLong(t *testing.T) {
	buf := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	if _, _, err := ReadVInt(buf, 0); err != ErrVIntTooLong {
		t.Fatalf("expected ErrVIntTooLong, got %v", err)
	}
}

func TestVIntOffsetWithinLargerBuffer(t *testing.T) {
	var buf []byte
	buf = WriteVInt(buf, 42)
	split := len(buf)
	buf = WriteVInt(buf, 300)

	v1, off1, err := ReadVInt(buf, 0)
	if err != nil || v1 != 42 || off1 != split {
		t.Fatalf("first VInt: got (%d,%d,%v), want (42,%d,nil)", v1, off1, err, split)
	}
	v2, off2, err := ReadVInt(buf, split)
	if err != nil || v2 != 300 || off2 != len(buf) {
		t.Fatalf("second VInt: got (%d,%d,%v), want (300,%d,nil)", v2, off2, err, len(buf))
	}
}

func TestReadVIntTruncated(t *testing.T) {
	buf := []byte{0x80} // continuation bit set, but no following byte
	if _, _, err := ReadVInt(buf, 0); err == nil {
		t.Fatal("expected error reading truncated vint")
	}
}

func TestZigZagRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 2, -2, 1 << 40, -(1 << 40), 1<<63 - 1, -1 << 63}
	for _, v := range values {
		enc := ZigZagEncode(v)
		got := ZigZagDecode(enc)
		if got != v {
			t.Errorf("ZigZag round trip: wrote %d, got %d (encoded=%d)", v, got, enc)
		}
	}
	// Small magnitude values must encode to small unsigned values so
	// VInt/VLong encoding of the zig-zagged form stays compact.
	if ZigZagEncode(-1) != 1 {
		t.Errorf("ZigZagEncode(-1) = %d, want 1", ZigZagEncode(-1))
	}
	if ZigZagEncode(1) != 2 {
		t.Errorf("ZigZagEncode(1) = %d, want 2", ZigZagEncode(1))
	}
}

package frame

import (
	"bytes"
	"testing"
)

func TestBuildParseRoundTrip(t *testing.T) {
	in := New(0x05)
	if !in.AddByte(0x01) || !in.AddU16(500) || !in.AddU16(50) {
		t.Fatalf("payload append failed")
	}
	wire := Build(&in)
	if len(wire) != in.Len()+Overhead {
		t.Fatalf("wire length: got %d want %d", len(wire), in.Len()+Overhead)
	}

	out, status, consumed := Parse(wire)
	if status != ParseOK {
		t.Fatalf("parse status: %v", status)
	}
	if consumed != len(wire) {
		t.Fatalf("consumed: got %d want %d", consumed, len(wire))
	}
	if !out.Equal(&in) {
		t.Fatalf("frame mismatch: cmd=%#x payload=%v", out.Cmd, out.Payload())
	}
}

func TestBuildEmptyPayload(t *testing.T) {
	in := New(0x01)
	wire := Build(&in)
	if len(wire) != Overhead {
		t.Fatalf("wire length: got %d want %d", len(wire), Overhead)
	}
	if wire[0] != STX || wire[1] != 0 || wire[len(wire)-1] != ETX {
		t.Fatalf("bad framing bytes: % x", wire)
	}
}

func TestParseResyncSkipsGarbagePrefix(t *testing.T) {
	in := New(0x02)
	in.AddByte(0xAB)
	wire := Build(&in)
	garbage := []byte{0xFF, 0xAA, 0x55, 0x00}

	buf := append(append([]byte{}, garbage...), wire...)
	out, status, consumed := Parse(buf)
	if status != ParseOK {
		t.Fatalf("parse status: %v", status)
	}
	if consumed != len(garbage)+len(wire) {
		t.Fatalf("consumed: got %d want %d", consumed, len(garbage)+len(wire))
	}
	if !out.Equal(&in) {
		t.Fatalf("frame mismatch after resync")
	}
}

func TestParseGarbageOnlyConsumesEverything(t *testing.T) {
	buf := []byte{0xFF, 0xAA, 0x55, 0x00}
	_, status, consumed := Parse(buf)
	if status != ParseIncomplete {
		t.Fatalf("parse status: %v", status)
	}
	if consumed != len(buf) {
		t.Fatalf("consumed: got %d want %d", consumed, len(buf))
	}
}

func TestParseIncompleteWaitsAtSTX(t *testing.T) {
	in := New(0x05)
	in.AddU16(1234)
	wire := Build(&in)

	for cut := 1; cut < len(wire); cut++ {
		_, status, consumed := Parse(wire[:cut])
		if status != ParseIncomplete {
			t.Fatalf("cut=%d status: %v", cut, status)
		}
		if consumed != 0 {
			t.Fatalf("cut=%d consumed: got %d want 0", cut, consumed)
		}
	}
}

func TestParseOversizedLenSkipsOneByte(t *testing.T) {
	buf := []byte{STX, 200, 0x01, 0x00, ETX}
	_, status, consumed := Parse(buf)
	if status != ParseBadFormat {
		t.Fatalf("parse status: %v", status)
	}
	if consumed != 1 {
		t.Fatalf("consumed: got %d want 1", consumed)
	}
}

func TestParseMissingETXSkipsOneByte(t *testing.T) {
	in := New(0x01)
	wire := Build(&in)
	wire[len(wire)-1] = 0x00

	_, status, consumed := Parse(wire)
	if status != ParseBadFormat {
		t.Fatalf("parse status: %v", status)
	}
	if consumed != 1 {
		t.Fatalf("consumed: got %d want 1", consumed)
	}
}

func TestParseBadChecksumConsumesWholeSpan(t *testing.T) {
	in := New(0x03)
	in.AddBytes([]byte{1, 2, 3})
	wire := Build(&in)
	wire[len(wire)-2] ^= 0xFF

	_, status, consumed := Parse(wire)
	if status != ParseBadChecksum {
		t.Fatalf("parse status: %v", status)
	}
	if consumed != len(wire) {
		t.Fatalf("consumed: got %d want %d", consumed, len(wire))
	}
}

func TestChecksumDetectsEverySingleBitFlip(t *testing.T) {
	in := New(0x06)
	in.AddBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	wire := Build(&in)

	// LEN, CMD and PAYLOAD are covered by the CRC.
	covered := wire[1 : len(wire)-2]
	want := Checksum(covered)
	for i := range covered {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte{}, covered...)
			mutated[i] ^= 1 << bit
			if Checksum(mutated) == want {
				t.Fatalf("undetected bit flip at byte %d bit %d", i, bit)
			}
		}
	}
}

func TestChecksumKnownValues(t *testing.T) {
	cases := []struct {
		data []byte
		want byte
	}{
		{nil, 0x00},
		{[]byte{0x00}, 0x00},
		{[]byte{0x01}, 0x07},
		{[]byte{0xFF}, 0xF3},
	}
	for _, tc := range cases {
		if got := Checksum(tc.data); got != tc.want {
			t.Fatalf("crc(% x): got %#02x want %#02x", tc.data, got, tc.want)
		}
	}
}

func TestChecksumTableMatchesBitwiseDefinition(t *testing.T) {
	for b := 0; b < 256; b++ {
		crc := byte(b)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
		if got := Checksum([]byte{byte(b)}); got != crc {
			t.Fatalf("table entry %#02x: got %#02x want %#02x", b, got, crc)
		}
	}
}

func TestAddByteRejectsOverflowAndLeavesFrameUnchanged(t *testing.T) {
	f := New(0x01)
	for i := 0; i < MaxPayload; i++ {
		if !f.AddByte(byte(i)) {
			t.Fatalf("append %d failed below cap", i)
		}
	}
	before := append([]byte{}, f.Payload()...)
	if f.AddByte(0xEE) {
		t.Fatalf("append beyond cap succeeded")
	}
	if f.Len() != MaxPayload || !bytes.Equal(f.Payload(), before) {
		t.Fatalf("frame mutated by rejected append")
	}
}

func TestAddU16RejectsPartialFit(t *testing.T) {
	f := New(0x01)
	for i := 0; i < MaxPayload-1; i++ {
		f.AddByte(0)
	}
	if f.AddU16(0xBEEF) {
		t.Fatalf("u16 append with one byte left succeeded")
	}
	if f.Len() != MaxPayload-1 {
		t.Fatalf("partial write: len=%d", f.Len())
	}
}

func TestParseMaxPayloadFrame(t *testing.T) {
	in := New(0x03)
	data := make([]byte, MaxPayload)
	for i := range data {
		data[i] = byte(i)
	}
	if !in.AddBytes(data) {
		t.Fatalf("max payload append failed")
	}
	wire := Build(&in)
	if len(wire) != MaxSize {
		t.Fatalf("wire length: got %d want %d", len(wire), MaxSize)
	}

	out, status, consumed := Parse(wire)
	if status != ParseOK || consumed != MaxSize {
		t.Fatalf("status=%v consumed=%d", status, consumed)
	}
	if !bytes.Equal(out.Payload(), data) {
		t.Fatalf("payload mismatch")
	}
}

func TestParseBackToBackFrames(t *testing.T) {
	a := New(0x01)
	b := New(0x02)
	b.AddByte(0x42)
	buf := append(Build(&a), Build(&b)...)

	out1, status, consumed := Parse(buf)
	if status != ParseOK || out1.Cmd != 0x01 {
		t.Fatalf("first frame: status=%v cmd=%#x", status, out1.Cmd)
	}
	out2, status, consumed2 := Parse(buf[consumed:])
	if status != ParseOK || out2.Cmd != 0x02 {
		t.Fatalf("second frame: status=%v cmd=%#x", status, out2.Cmd)
	}
	if consumed+consumed2 != len(buf) {
		t.Fatalf("consumed total: %d want %d", consumed+consumed2, len(buf))
	}
}

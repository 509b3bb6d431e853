package frame

import (
	"bytes"
	"encoding/binary"
)

// Wire format: STX(1) LEN(1) CMD(1) PAYLOAD(LEN) CRC8(1) ETX(1).
// LEN counts payload bytes only; the CRC covers LEN, CMD and PAYLOAD.
const (
	STX byte = 0x02
	ETX byte = 0x03

	// MaxPayload bounds the payload of a single frame.
	MaxPayload = 64

	// Overhead is STX + LEN + CMD + CRC + ETX.
	Overhead = 5

	// MaxSize is the largest possible encoded frame.
	MaxSize = MaxPayload + Overhead
)

// Frame is one protocol message: a command opcode plus a bounded payload.
// It is a value type; frames are built fresh per parse or per response and
// never shared.
type Frame struct {
	Cmd uint8

	payload [MaxPayload]byte
	n       uint8
}

// New returns an empty frame carrying cmd.
func New(cmd uint8) Frame {
	return Frame{Cmd: cmd}
}

// Payload returns the occupied portion of the payload.
func (f *Frame) Payload() []byte {
	return f.payload[:f.n]
}

// Len returns the payload length in bytes.
func (f *Frame) Len() int {
	return int(f.n)
}

// AddByte appends one byte to the payload. It reports false and leaves the
// frame unchanged when the payload is already at MaxPayload.
func (f *Frame) AddByte(b byte) bool {
	if int(f.n) >= MaxPayload {
		return false
	}
	f.payload[f.n] = b
	f.n++
	return true
}

// AddU16 appends a big-endian 16-bit value.
func (f *Frame) AddU16(v uint16) bool {
	if int(f.n)+2 > MaxPayload {
		return false
	}
	binary.BigEndian.PutUint16(f.payload[f.n:], v)
	f.n += 2
	return true
}

// AddS16 appends a big-endian signed 16-bit value.
func (f *Frame) AddS16(v int16) bool {
	return f.AddU16(uint16(v))
}

// AddU32 appends a big-endian 32-bit value.
func (f *Frame) AddU32(v uint32) bool {
	if int(f.n)+4 > MaxPayload {
		return false
	}
	binary.BigEndian.PutUint32(f.payload[f.n:], v)
	f.n += 4
	return true
}

// AddBytes appends data to the payload. On insufficient space nothing is
// written.
func (f *Frame) AddBytes(data []byte) bool {
	if int(f.n)+len(data) > MaxPayload {
		return false
	}
	copy(f.payload[f.n:], data)
	f.n += uint8(len(data))
	return true
}

// Equal reports whether two frames carry the same command and payload.
func (f *Frame) Equal(other *Frame) bool {
	return f.Cmd == other.Cmd && bytes.Equal(f.Payload(), other.Payload())
}

// ParseStatus classifies the outcome of one Parse call.
type ParseStatus int

const (
	// ParseOK means a complete, checksum-valid frame was extracted.
	ParseOK ParseStatus = iota
	// ParseIncomplete means more bytes are needed; consumed covers any
	// garbage discarded while searching for STX.
	ParseIncomplete
	// ParseBadChecksum means the frame span was well formed but the CRC
	// did not match; the whole span is consumed.
	ParseBadChecksum
	// ParseBadFormat means the candidate frame was malformed; consumed
	// advances one byte past the rejected STX so the scan resumes.
	ParseBadFormat
)

func (s ParseStatus) String() string {
	switch s {
	case ParseOK:
		return "ok"
	case ParseIncomplete:
		return "incomplete"
	case ParseBadChecksum:
		return "bad-checksum"
	case ParseBadFormat:
		return "bad-format"
	default:
		return "unknown"
	}
}

// Parse scans buf for one frame. It always reports the number of bytes the
// caller must drop from the front of its accumulation buffer, whatever the
// outcome, so buffer advancement stays deterministic.
func Parse(buf []byte) (Frame, ParseStatus, int) {
	start := 0
	for start < len(buf) && buf[start] != STX {
		start++
	}
	if start >= len(buf) {
		// No STX anywhere; everything seen so far is garbage.
		return Frame{}, ParseIncomplete, start
	}

	// STX + LEN needed before the span size is known.
	if len(buf)-start < 2 {
		return Frame{}, ParseIncomplete, start
	}

	payloadLen := int(buf[start+1])
	if payloadLen > MaxPayload {
		// Skip this STX so the scan does not re-find it forever.
		return Frame{}, ParseBadFormat, start + 1
	}

	span := payloadLen + Overhead
	if len(buf)-start < span {
		return Frame{}, ParseIncomplete, start
	}

	if buf[start+span-1] != ETX {
		return Frame{}, ParseBadFormat, start + 1
	}

	// CRC covers LEN, CMD and PAYLOAD.
	crcData := buf[start+1 : start+3+payloadLen]
	if Checksum(crcData) != buf[start+span-2] {
		// Boundaries were sound, so the whole candidate is consumed.
		return Frame{}, ParseBadChecksum, start + span
	}

	f := New(buf[start+2])
	f.AddBytes(buf[start+3 : start+3+payloadLen])
	return f, ParseOK, start + span
}

// Build encodes f into its wire representation. The result is always
// f.Len()+Overhead bytes.
func Build(f *Frame) []byte {
	out := make([]byte, 0, f.Len()+Overhead)
	out = append(out, STX, byte(f.n), f.Cmd)
	out = append(out, f.Payload()...)
	out = append(out, Checksum(out[1:]), ETX)
	return out
}

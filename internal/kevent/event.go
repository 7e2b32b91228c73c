// Package kevent defines the wire format shared between the kernel tracing
// probes and this agent.
//
// Event mirrors struct event from the kernel side exactly. Both sides must
// agree on field order, width, and padding: the agent reads this layout
// directly off the ring buffer without any IDL or schema negotiation.
//
// C layout (288 bytes, no padding, little-endian):
//
//	[0..3]    type      int32
//	[4..7]    pid       uint32
//	[8..11]   ppid      uint32
//	[12..15]  uid       uint32
//	[16..31]  comm      char[16]
//	[32..287] filename  char[256]
package kevent

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// Type identifies the kind of system event captured by the kernel probe.
type Type int32

const (
	TypeExec   Type = 1
	TypeWrite  Type = 2
	TypeOpen   Type = 3
	TypeRename Type = 4
	TypeExit   Type = 5
	TypeUnlink Type = 6
)

// String returns a human-readable event type name.
func (t Type) String() string {
	switch t {
	case TypeExec:
		return "EXEC"
	case TypeWrite:
		return "WRITE"
	case TypeOpen:
		return "OPEN"
	case TypeRename:
		return "RENAME"
	case TypeExit:
		return "EXIT"
	case TypeUnlink:
		return "UNLINK"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(t))
	}
}

const (
	commLen     = 16
	filenameLen = 256

	// Size is the fixed size in bytes of a wire-format Event record.
	Size = 4 + 4 + 4 + 4 + commLen + filenameLen
)

// rawEvent mirrors the kernel's struct event for the size assertion below.
// It is never used directly for decoding; Decode reads fields explicitly so
// byte order is under our control regardless of host endianness.
type rawEvent struct {
	Type     int32
	PID      uint32
	PPID     uint32
	UID      uint32
	Comm     [commLen]byte
	Filename [filenameLen]byte
}

func init() {
	if sz := unsafe.Sizeof(rawEvent{}); sz != Size {
		panic(fmt.Sprintf(
			"kevent: rawEvent size mismatch: Go=%d bytes, expected=%d bytes", sz, Size))
	}
}

// Event is the decoded, Go-native form of a kernel event record.
type Event struct {
	Type     Type
	PID      uint32
	PPID     uint32
	UID      uint32
	Comm     string
	Filename string
}

// Decode parses a raw ring buffer record into an Event.
// raw must be at least Size bytes; any trailing bytes are ignored.
// Comm and Filename are NUL-truncated at the first zero byte.
func Decode(raw []byte) (Event, error) {
	if len(raw) < Size {
		return Event{}, fmt.Errorf("kevent: record too short: got %d bytes, want %d", len(raw), Size)
	}

	e := Event{
		Type: Type(int32(binary.LittleEndian.Uint32(raw[0:4]))),
		PID:  binary.LittleEndian.Uint32(raw[4:8]),
		PPID: binary.LittleEndian.Uint32(raw[8:12]),
		UID:  binary.LittleEndian.Uint32(raw[12:16]),
		Comm: cString(raw[16 : 16+commLen]),
	}
	e.Filename = cString(raw[16+commLen : 16+commLen+filenameLen])
	return e, nil
}

// Encode serialises an Event into its wire format. Used by test harnesses
// and the synthetic event generator; the kernel side never calls this.
func Encode(e Event) []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(e.Type))
	binary.LittleEndian.PutUint32(buf[4:8], e.PID)
	binary.LittleEndian.PutUint32(buf[8:12], e.PPID)
	binary.LittleEndian.PutUint32(buf[12:16], e.UID)
	copy(buf[16:16+commLen], e.Comm)
	copy(buf[16+commLen:16+commLen+filenameLen], e.Filename)
	return buf
}

func cString(b []byte) string {
	if i := indexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

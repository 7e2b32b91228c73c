package kevent_test

import (
	"testing"

	"github.com/ransom-agent/ransom-agentd/internal/kevent"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := kevent.Event{
		Type:     kevent.TypeWrite,
		PID:      1234,
		PPID:     1,
		UID:      0,
		Comm:     "bash",
		Filename: "/home/user/data.txt",
	}

	raw := kevent.Encode(e)
	if len(raw) != kevent.Size {
		t.Fatalf("Encode: got %d bytes, want %d", len(raw), kevent.Size)
	}

	got, err := kevent.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if got != e {
		t.Fatalf("Decode round-trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestDecodeTooShort(t *testing.T) {
	if _, err := kevent.Decode(make([]byte, kevent.Size-1)); err == nil {
		t.Fatal("expected error for short record, got nil")
	}
}

func TestTypeString(t *testing.T) {
	cases := map[kevent.Type]string{
		kevent.TypeExec:   "EXEC",
		kevent.TypeWrite:  "WRITE",
		kevent.TypeOpen:   "OPEN",
		kevent.TypeRename: "RENAME",
		kevent.TypeExit:   "EXIT",
		kevent.TypeUnlink: "UNLINK",
		kevent.Type(99):   "UNKNOWN(99)",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("Type(%d).String() = %q, want %q", typ, got, want)
		}
	}
}

func TestDecodeTruncatesAtNUL(t *testing.T) {
	e := kevent.Event{Type: kevent.TypeOpen, PID: 1, Comm: "sh", Filename: "/etc/passwd"}
	raw := kevent.Encode(e)
	got, err := kevent.Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Filename != "/etc/passwd" {
		t.Errorf("Filename = %q, want %q", got.Filename, "/etc/passwd")
	}
}

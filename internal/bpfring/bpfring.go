// Package bpfring opens the kernel-side ring buffer map that carries
// process/file events into user space and polls it for decoded events.
//
// This agent does not compile or attach its own BPF programs: the kernel
// probes that populate the ring buffer are an external collaborator,
// expected to have already pinned the "events" map under a bpffs mount
// (BPF_PIN_PATH, default /sys/fs/bpf/ransom-agentd) before the agent starts.
// Open only opens that pre-existing map; Reader.Read polls it.
package bpfring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
	"unsafe"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/ringbuf"
	"golang.org/x/sys/unix"

	"github.com/ransom-agent/ransom-agentd/internal/kevent"
)

const (
	// EventsMapName is the ring buffer map name the external collector pins.
	EventsMapName = "events"

	// MinKernelMajor and MinKernelMinor define the minimum supported kernel
	// for ring buffer map support.
	MinKernelMajor = 5
	MinKernelMinor = 8

	// pollDeadline bounds each ring buffer read so the poll loop can check
	// for shutdown without blocking indefinitely.
	pollDeadline = 100 * time.Millisecond
)

// ErrTimeout is returned by Reader.Read when no record arrived within the
// poll deadline. Callers should treat it as "try again", not as an error
// worth logging.
var ErrTimeout = errors.New("bpfring: read timeout")

// ErrMalformedEvent is returned by Reader.Read when a record was received
// but failed to decode (short read, bit flip, or an adversarial write to the
// pinned map). Callers should drop the record and keep polling — it is not a
// transport failure.
var ErrMalformedEvent = errors.New("bpfring: malformed event")

// Reader polls a pinned ring buffer map and decodes records into Events.
type Reader struct {
	m  *ebpf.Map
	rd *ringbuf.Reader
}

// Open performs the preflight checks and opens the pinned events map at
// pinPath (a directory on a bpffs mount, e.g. /sys/fs/bpf/ransom-agentd).
// Any failure here is fatal to agent startup.
func Open(pinPath string) (*Reader, error) {
	if err := checkKernelVersion(MinKernelMajor, MinKernelMinor); err != nil {
		return nil, fmt.Errorf("kernel version check failed: %w", err)
	}
	if err := checkBPFFS(pinPath); err != nil {
		return nil, fmt.Errorf("BPF filesystem check failed: %w", err)
	}

	mapPath := filepath.Join(pinPath, EventsMapName)
	m, err := ebpf.LoadPinnedMap(mapPath, nil)
	if err != nil {
		return nil, fmt.Errorf("load pinned map %q: %w", mapPath, err)
	}

	rd, err := ringbuf.NewReader(m)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("ringbuf.NewReader: %w", err)
	}

	return &Reader{m: m, rd: rd}, nil
}

// Read blocks for up to the poll deadline waiting for one ring buffer
// record, decodes it, and returns it. Returns ErrTimeout if nothing arrived
// in that window — the ingest loop uses this to check for shutdown between
// reads without a separate goroutine.
func (r *Reader) Read() (kevent.Event, error) {
	r.rd.SetDeadline(time.Now().Add(pollDeadline))
	record, err := r.rd.Read()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return kevent.Event{}, ErrTimeout
		}
		return kevent.Event{}, fmt.Errorf("unrecoverable ring buffer error: %w", err)
	}

	event, err := kevent.Decode(record.RawSample)
	if err != nil {
		return kevent.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return event, nil
}

// Close releases the ring buffer reader and the pinned map handle. It does
// not unpin the map — the external collector owns its lifecycle.
func (r *Reader) Close() error {
	var errs []error
	if err := r.rd.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.m.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// checkKernelVersion reads the running kernel version via uname(2) and
// verifies it meets the minimum requirement for ring buffer maps.
func checkKernelVersion(major, minor int) error {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return fmt.Errorf("uname failed: %w", err)
	}
	release := unix.ByteSliceToString((*[65]byte)(unsafe.Pointer(&uts.Release[0]))[:])

	var kMajor, kMinor, kPatch int
	if _, err := fmt.Sscanf(release, "%d.%d.%d", &kMajor, &kMinor, &kPatch); err != nil {
		return fmt.Errorf("failed to parse kernel version %q: %w", release, err)
	}

	if kMajor < major || (kMajor == major && kMinor < minor) {
		return fmt.Errorf("kernel %d.%d.%d < required %d.%d", kMajor, kMinor, kPatch, major, minor)
	}
	return nil
}

// checkBPFFS verifies that path is on a bpffs mount.
func checkBPFFS(path string) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return fmt.Errorf("statfs %s failed: %w", path, err)
	}
	const bpffsMagic = 0xcafe4a11
	if int64(stat.Type) != bpffsMagic {
		return fmt.Errorf("%s is not a bpffs mount (magic=0x%x, expected=0x%x). "+
			"Mount with: mount -t bpf bpf /sys/fs/bpf", path, stat.Type, bpffsMagic)
	}
	return nil
}

// Command ransom-simfeed is a standalone, flag-driven dev tool that
// generates synthetic kernel event records in the agent's 288-byte wire
// format, for exercising the decoder and scorer pipeline without a live
// kernel collector.
//
// It cannot write directly into a BPF ring buffer (that side is only ever
// populated by the kernel side); instead it appends encoded records to a
// plain file, which a test harness or a modified ingest.Loop source can
// read back with kevent.Decode.
//
// Usage:
//
//	ransom-simfeed -out events.bin -count 50 -pid 4242 -comm evil \
//	    -filename /home/user/DO_NOT_DELETE.txt -type write
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ransom-agent/ransom-agentd/internal/kevent"
)

func main() {
	out := flag.String("out", "events.bin", "Output file to append encoded events to")
	count := flag.Int("count", 1, "Number of events to emit")
	pid := flag.Int("pid", 4242, "Synthetic process ID")
	ppid := flag.Int("ppid", 1, "Synthetic parent process ID")
	uid := flag.Int("uid", 0, "Synthetic user ID")
	comm := flag.String("comm", "evil", "Synthetic process command name")
	filename := flag.String("filename", "", "Synthetic filename (meaning depends on -type)")
	typeName := flag.String("type", "write", "Event type: exec, write, open, rename, exit, unlink")
	flag.Parse()

	evtType, err := parseType(*typeName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	f, err := os.OpenFile(*out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open %q: %v\n", *out, err)
		os.Exit(1)
	}
	defer f.Close()

	e := kevent.Event{
		Type:     evtType,
		PID:      uint32(*pid),
		PPID:     uint32(*ppid),
		UID:      uint32(*uid),
		Comm:     *comm,
		Filename: *filename,
	}

	for i := 0; i < *count; i++ {
		if _, err := f.Write(kevent.Encode(e)); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: write: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Fprintf(os.Stderr, "wrote %d %s event(s) for pid=%d comm=%q to %s\n",
		*count, e.Type, *pid, *comm, *out)
}

func parseType(s string) (kevent.Type, error) {
	switch strings.ToLower(s) {
	case "exec":
		return kevent.TypeExec, nil
	case "write":
		return kevent.TypeWrite, nil
	case "open":
		return kevent.TypeOpen, nil
	case "rename":
		return kevent.TypeRename, nil
	case "exit":
		return kevent.TypeExit, nil
	case "unlink":
		return kevent.TypeUnlink, nil
	default:
		return 0, fmt.Errorf("unknown event type %q", s)
	}
}

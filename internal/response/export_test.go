package response

import "golang.org/x/sys/unix"

// SetKillFuncForTest overrides the syscall used to deliver signals, so tests
// can exercise the OutcomeFailed path without needing a real killable PID.
func SetKillFuncForTest(t *Terminator, fn func(pid int, sig int) error) {
	t.kill = func(pid int, sig unix.Signal) error { return fn(pid, int(sig)) }
}

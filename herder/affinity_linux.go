//go:build linux

package herder

import "golang.org/x/sys/unix"

// pinToCPU best-effort pins the calling goroutine's underlying OS thread to
// cpu. The caller must have already called runtime.LockOSThread, or the
// pin applies to whichever thread happens to be running it at the moment.
// Failures are silently ignored: affinity is an optimization hint, not a
// correctness requirement, and an unprivileged process may not be permitted
// to set it.
func pinToCPU(cpu int) {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	_ = unix.SchedSetaffinity(unix.Gettid(), &set)
}

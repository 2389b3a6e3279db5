//go:build !linux

package herder

// pinToCPU is a no-op on platforms without a CPU-affinity syscall exposed
// through golang.org/x/sys/unix; LockOSThread in the caller still gives a
// sticky, if unpinned, worker thread.
func pinToCPU(cpu int) {}

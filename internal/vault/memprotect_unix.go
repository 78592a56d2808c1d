//go:build linux || darwin

package vault

import "syscall"

// disableCoreDumps sets RLIMIT_CORE to 0 so unlocked credentials never land in a
// core file. Best effort.
func disableCoreDumps() {
	_ = syscall.Setrlimit(syscall.RLIMIT_CORE, &syscall.Rlimit{Cur: 0, Max: 0})
}

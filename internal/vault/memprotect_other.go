//go:build !linux && !darwin

package vault

func disableCoreDumps() {}

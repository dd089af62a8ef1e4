//go:build linux || darwin

package config

import "golang.org/x/sys/unix"

// RaiseOpenFileLimit sets the soft RLIMIT_NOFILE to limit, raising the
// hard limit as well when needed (which usually requires privileges).
func RaiseOpenFileLimit(limit uint64) error {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return err
	}
	rlim.Cur = limit
	if rlim.Max < limit {
		rlim.Max = limit
	}
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim)
}

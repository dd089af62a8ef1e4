//go:build !linux && !darwin

package config

import "errors"

// RaiseOpenFileLimit is not supported on this platform.
func RaiseOpenFileLimit(limit uint64) error {
	return errors.New("config: open-file-limit is not supported on this platform")
}

//go:build unix

package config

import (
	"os"

	"golang.org/x/sys/unix"
)

func lockConfig(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

func unlockConfig(f *os.File) {
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

//go:build unix

package linker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Reason classifies a link failure for reporting
func Reason(err error) string {
	switch {
	case errors.Is(err, unix.EXDEV):
		return "cross-device"
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return "permission denied"
	case errors.Is(err, unix.EEXIST):
		return "exists"
	case errors.Is(err, unix.EMLINK):
		return "too many links"
	case errors.Is(err, unix.ENOTSUP), errors.Is(err, unix.EOPNOTSUPP):
		return "unsupported"
	default:
		return "failed"
	}
}

// checkSameDevice reports EXDEV when a hard link from source into dir could
// not succeed. dir may not exist yet; its nearest existing ancestor is used.
func checkSameDevice(source, dir string) error {
	var src unix.Stat_t
	if err := unix.Stat(source, &src); err != nil {
		return fmt.Errorf("stat %s: %w", source, err)
	}
	for {
		var dst unix.Stat_t
		err := unix.Stat(dir, &dst)
		if err == nil {
			if src.Dev != dst.Dev {
				return &os.LinkError{Op: "link", Old: source, New: dir, Err: unix.EXDEV}
			}
			return nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("stat %s: %w", dir, err)
		}
		dir = parent
	}
}

//go:build !unix

package linker

import (
	"errors"
	"io/fs"
)

// Reason classifies a link failure for reporting
func Reason(err error) string {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	case errors.Is(err, fs.ErrExist):
		return "exists"
	default:
		return "failed"
	}
}

func checkSameDevice(source, dir string) error {
	return nil
}

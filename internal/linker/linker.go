package linker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yuya-takeyama/movenseed/internal/apperr"
)

// Mode selects the kind of link created
type Mode int

const (
	Symbolic Mode = iota
	Hard
)

func (m Mode) String() string {
	if m == Hard {
		return "hard"
	}
	return "symbolic"
}

// Outcome describes what Materialize did at the destination
type Outcome int

const (
	Created        Outcome = iota // new link, nothing was there
	Replaced                      // a dangling symlink was removed first
	AlreadyPresent                // a regular file is already reachable at dest
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Replaced:
		return "replaced"
	case AlreadyPresent:
		return "already present"
	default:
		return "unknown"
	}
}

type Options struct {
	Mode   Mode
	DryRun bool
}

// MakeLink creates a link at dest pointing to source. A hard link is made
// to the file behind source when source is itself a symlink.
func MakeLink(source, dest string, mode Mode) error {
	var err error
	if mode == Hard {
		target, rerr := filepath.EvalSymlinks(source)
		if rerr != nil {
			return linkError(source, dest, mode, &os.LinkError{Op: "link", Old: source, New: dest, Err: rerr})
		}
		err = os.Link(target, dest)
	} else {
		err = os.Symlink(source, dest)
	}
	if err != nil {
		return linkError(source, dest, mode, err)
	}
	return nil
}

// Materialize makes source reachable at dest. A regular file already at
// dest, directly or through a valid symlink, is never touched. A dangling
// symlink at dest is removed and replaced. Missing parent directories are
// created. With DryRun set nothing on disk changes.
func Materialize(source, dest string, opts Options) (Outcome, error) {
	info, err := os.Stat(dest)
	if err == nil {
		if info.Mode().IsRegular() {
			return AlreadyPresent, nil
		}
		return 0, apperr.New(apperr.KindLink,
			fmt.Sprintf("link %s -> %s", dest, source),
			fmt.Errorf("destination exists and is not a regular file (%s)", info.Mode().Type()))
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return 0, apperr.NewIO("stat "+dest, err)
	}

	outcome := Created
	if linfo, lerr := os.Lstat(dest); lerr == nil && linfo.Mode()&fs.ModeSymlink != 0 {
		outcome = Replaced
	}

	if opts.DryRun {
		if opts.Mode == Hard {
			if err := checkSameDevice(source, filepath.Dir(dest)); err != nil {
				var linkErr *os.LinkError
				if errors.As(err, &linkErr) {
					return 0, linkError(source, dest, opts.Mode, err)
				}
				return 0, apperr.NewIO("check device of "+source, err)
			}
		}
		return outcome, nil
	}

	if outcome == Replaced {
		if err := os.Remove(dest); err != nil {
			return 0, apperr.NewIO("remove stale link "+dest, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, apperr.NewIO("create directory for "+dest, err)
	}
	if err := MakeLink(source, dest, opts.Mode); err != nil {
		return 0, err
	}
	return outcome, nil
}

func linkError(source, dest string, mode Mode, err error) error {
	return apperr.New(apperr.KindLink,
		fmt.Sprintf("%s link %s -> %s (%s)", mode, dest, source, Reason(err)),
		err)
}

package fingerprint

import (
	"strconv"

	"github.com/yuya-takeyama/movenseed/internal/checksum"
	"github.com/yuya-takeyama/movenseed/internal/walker"
)

// Store holds the tables built for one reference root. A table is nil when
// its mode was disabled.
type Store struct {
	Root   string // canonical root the paths are relative to
	Sizes  *Table
	Hashes *Table
}

// ScanOptions controls which fingerprints Scan computes
type ScanOptions struct {
	Sizes    bool
	Hashes   bool
	Hasher   *checksum.Hasher // required when Hashes is set
	Excludes []string

	// OnError receives per-file and per-directory failures. The affected
	// file is left out of every table.
	OnError func(path string, err error)
}

// Scan fingerprints every regular file under root. The table files at the
// top of root are never fingerprinted, so scanning a root that already
// holds tables gives the same result as scanning it before they existed.
func Scan(root string, opts ScanOptions) (*Store, error) {
	excludes := append([]string{SizesFile, HashesFile}, opts.Excludes...)
	w, err := walker.NewWalker(root, excludes)
	if err != nil {
		return nil, err
	}
	w.OnError = opts.OnError

	store := &Store{Root: w.Root()}
	if opts.Sizes {
		store.Sizes = NewTable(KindSize)
	}
	if opts.Hashes {
		store.Hashes = NewTable(KindHash)
	}

	err = w.Walk(func(f walker.FileInfo) error {
		var digest string
		if opts.Hashes {
			sum, err := opts.Hasher.File(f.Path)
			if err != nil {
				if opts.OnError != nil {
					opts.OnError(f.Path, err)
				}
				return nil
			}
			digest = sum
		}
		if store.Sizes != nil {
			store.Sizes.Set(f.RelPath, strconv.FormatInt(f.Size, 10))
		}
		if store.Hashes != nil {
			store.Hashes.Set(f.RelPath, digest)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

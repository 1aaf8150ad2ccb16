// Package config holds the options shared by prework and postwork.
//
// Options are resolved once per run, defaults then the INI file then flags,
// and passed by value into every entry point.
package config

import (
	"github.com/yuya-takeyama/movenseed/internal/apperr"
	"github.com/yuya-takeyama/movenseed/internal/checksum"
	"github.com/yuya-takeyama/movenseed/internal/linker"
)

// Options is the resolved configuration of one run
type Options struct {
	Sizes     bool // match on file size
	Hashes    bool // match on content digest
	Algorithm string
	ChunkSize int

	Hard             bool // hard links instead of symbolic links
	MakeSubdirectory bool // multi-file manifests get their own directory
	DryRun           bool
	Excludes         []string

	Verbose bool
	Quiet   bool
}

// DefaultOptions returns the options used when neither a config file nor a
// flag says otherwise
func DefaultOptions() Options {
	return Options{
		Sizes:            true,
		Hashes:           true,
		Algorithm:        checksum.DefaultAlgorithm,
		ChunkSize:        checksum.DefaultChunkSize,
		MakeSubdirectory: true,
	}
}

// Validate rejects option combinations no run can satisfy
func (o Options) Validate() error {
	if !o.Sizes && !o.Hashes {
		return apperr.NewUsage("file size and file hash matching are both disabled")
	}
	if o.Hashes {
		if _, err := checksum.Lookup(o.Algorithm); err != nil {
			return apperr.New(apperr.KindUsage, "invalid hash algorithm", err)
		}
	}
	if o.ChunkSize < 0 {
		return apperr.NewUsage("chunk size must not be negative: %d", o.ChunkSize)
	}
	return nil
}

// Hasher builds the hasher for the configured algorithm and chunk size
func (o Options) Hasher() (*checksum.Hasher, error) {
	alg, err := checksum.Lookup(o.Algorithm)
	if err != nil {
		return nil, apperr.New(apperr.KindUsage, "invalid hash algorithm", err)
	}
	return checksum.NewHasher(alg, o.ChunkSize), nil
}

func (o Options) LinkMode() linker.Mode {
	if o.Hard {
		return linker.Hard
	}
	return linker.Symbolic
}

// LinkOptions returns the options handed to the link materializer
func (o Options) LinkOptions() linker.Options {
	return linker.Options{Mode: o.LinkMode(), DryRun: o.DryRun}
}

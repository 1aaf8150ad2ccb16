// Package prework builds the fingerprint tables of a reference tree, either
// by scanning it or from torrent manifests describing it.
package prework

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuya-takeyama/movenseed/internal/apperr"
	"github.com/yuya-takeyama/movenseed/internal/config"
	"github.com/yuya-takeyama/movenseed/internal/fingerprint"
	"github.com/yuya-takeyama/movenseed/internal/manifest"
	"github.com/yuya-takeyama/movenseed/internal/walker"
	"github.com/yuya-takeyama/movenseed/pkg/logger"
)

type Mode int

const (
	ModeScan     Mode = iota // fingerprint the files under each root
	ModeManifest             // take sizes from manifests for a single root
)

func (m Mode) String() string {
	if m == ModeManifest {
		return "manifest"
	}
	return "scan"
}

// SelectMode picks the prework mode from the arguments given
func SelectMode(heres, manifests []string) (Mode, error) {
	switch {
	case len(heres) == 1 && len(manifests) > 0:
		return ModeManifest, nil
	case len(heres) > 0 && len(manifests) == 0:
		return ModeScan, nil
	default:
		return 0, apperr.NewUsage("specify 1+ HEREs, or 1 HERE and 1+ torrent files")
	}
}

// TableWrite records one table file written
type TableWrite struct {
	Path    string
	Kind    fingerprint.Kind
	Append  bool
	Entries int
}

// Report collects what a prework run wrote
type Report struct {
	Mode       Mode
	Tables     []TableWrite
	FileErrors int // files left out of a scan because they could not be read
	Failed     int // roots or manifests that could not be processed
}

type Builder struct {
	logger     logger.Logger
	fileErrors int // files left out of scans so far
}

func NewBuilder(logger logger.Logger) *Builder {
	return &Builder{logger: logger}
}

// Run builds tables for every root or manifest. Argument errors are returned
// before anything is written. A failing root or manifest is logged and the
// rest still run; their errors are joined into the returned error.
func (b *Builder) Run(heres, manifests []string, opts config.Options) (*Report, error) {
	mode, err := SelectMode(heres, manifests)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	report := &Report{Mode: mode}
	var errs []error

	if mode == ModeManifest {
		if !opts.Sizes {
			b.logger.Debug("size matching is disabled and manifests carry only sizes: nothing to do")
			return report, nil
		}
		if opts.Hashes {
			b.logger.Debug("manifests carry no content hashes: hashes.mns is not written")
		}
		for _, path := range manifests {
			written, err := b.FromManifest(heres[0], path, opts)
			report.Tables = append(report.Tables, written...)
			if err != nil {
				b.logger.Error("prework", path, err)
				report.Failed++
				errs = append(errs, err)
			}
		}
		return report, errors.Join(errs...)
	}

	for _, here := range heres {
		before := b.fileErrors
		written, err := b.FromDirectory(here, opts)
		report.Tables = append(report.Tables, written...)
		report.FileErrors += b.fileErrors - before
		if err != nil {
			b.logger.Error("prework", here, err)
			report.Failed++
			errs = append(errs, err)
		}
	}
	return report, errors.Join(errs...)
}

// FromDirectory scans root and replaces its table files. Files that cannot
// be read are logged and left out of the tables.
func (b *Builder) FromDirectory(root string, opts config.Options) ([]TableWrite, error) {
	scanOpts := fingerprint.ScanOptions{
		Sizes:    opts.Sizes,
		Hashes:   opts.Hashes,
		Excludes: opts.Excludes,
	}
	if opts.Hashes {
		hasher, err := opts.Hasher()
		if err != nil {
			return nil, err
		}
		scanOpts.Hasher = hasher
	}

	scanOpts.OnError = func(path string, err error) {
		b.fileErrors++
		b.logger.Error("scan", path, err)
	}

	b.logger.Debug(fmt.Sprintf("scanning %s", root))
	store, err := fingerprint.Scan(root, scanOpts)
	if err != nil {
		return nil, apperr.NewIO("scan "+root, err)
	}

	var written []TableWrite
	for _, table := range []*fingerprint.Table{store.Sizes, store.Hashes} {
		if table == nil {
			continue
		}
		path, err := fingerprint.RebuildTable(store.Root, table)
		if err != nil {
			return written, err
		}
		b.logger.Table(path, "rebuild", table.Len())
		written = append(written, TableWrite{Path: path, Kind: table.Kind(), Entries: table.Len()})
	}
	return written, nil
}

// FromManifest writes the sizes listed in one manifest. A multi-file
// manifest replaces sizes.mns, under root/<name> when MakeSubdirectory is
// set. A single-file manifest appends to root/sizes.mns so several of them
// accumulate into one table.
func (b *Builder) FromManifest(root, manifestPath string, opts config.Options) ([]TableWrite, error) {
	if !opts.Sizes {
		return nil, nil
	}

	canonical, err := walker.Canonicalize(root)
	if err != nil {
		return nil, apperr.NewIO("resolve "+root, err)
	}
	if info, err := os.Stat(canonical); err != nil || !info.IsDir() {
		return nil, apperr.New(apperr.KindIO, "not a directory: "+root, err)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	table := m.SizeTable(false)

	var path string
	write := TableWrite{Kind: fingerprint.KindSize, Entries: table.Len()}
	if m.MultiFile {
		dir := canonical
		if opts.MakeSubdirectory {
			dir = filepath.Join(canonical, m.Name)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, apperr.NewIO("create "+dir, err)
			}
		}
		path, err = fingerprint.RebuildTable(dir, table)
		if err != nil {
			return nil, err
		}
		b.logger.Table(path, "rebuild", table.Len())
	} else {
		path, err = fingerprint.AppendToTable(canonical, table)
		if err != nil {
			return nil, err
		}
		write.Append = true
		b.logger.Table(path, "append", table.Len())
	}
	write.Path = path
	return []TableWrite{write}, nil
}

package postwork

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/yuya-takeyama/movenseed/internal/apperr"
	"github.com/yuya-takeyama/movenseed/internal/checksum"
	"github.com/yuya-takeyama/movenseed/internal/config"
	"github.com/yuya-takeyama/movenseed/internal/fingerprint"
	"github.com/yuya-takeyama/movenseed/internal/walker"
)

// Reference is a HERE tree with its fingerprint tables loaded. A table is
// nil when its mode is disabled.
type Reference struct {
	Root   string // canonical
	Sizes  *fingerprint.Table
	Hashes *fingerprint.Table
}

// LoadReference reads the tables of here for every enabled mode.
//
// Size-only matching refuses a table in which two paths share a size, since
// nothing could tell those files apart.
func LoadReference(here string, opts config.Options) (*Reference, error) {
	root, err := walker.Canonicalize(here)
	if err != nil {
		return nil, apperr.NewIO("resolve "+here, err)
	}
	ref := &Reference{Root: root}

	if opts.Sizes {
		if ref.Sizes, err = loadTable(root, fingerprint.KindSize); err != nil {
			return nil, err
		}
	}
	if opts.Hashes {
		if ref.Hashes, err = loadTable(root, fingerprint.KindHash); err != nil {
			return nil, err
		}
		alg, err := checksum.Lookup(opts.Algorithm)
		if err != nil {
			return nil, apperr.New(apperr.KindUsage, "invalid hash algorithm", err)
		}
		for _, e := range ref.Hashes.Entries() {
			if !checksum.ValidDigest(e.Value, alg) {
				return nil, apperr.NewIO(
					fmt.Sprintf("%s: %q is not a %s digest (entry %s)", filepath.Join(root, fingerprint.HashesFile), e.Value, alg.Name, e.Path),
					nil,
				)
			}
		}
	}

	if ref.Sizes != nil && ref.Hashes == nil {
		if dups := ref.Sizes.Duplicates(); len(dups) > 0 {
			return nil, ambiguousSizeError(dups)
		}
	}
	return ref, nil
}

func loadTable(root string, kind fingerprint.Kind) (*fingerprint.Table, error) {
	table, err := fingerprint.LoadTable(root, kind)
	if err != nil {
		return nil, err
	}
	for _, e := range table.Entries() {
		if !filepath.IsLocal(filepath.FromSlash(e.Path)) {
			return nil, apperr.NewIO(
				fmt.Sprintf("%s: path %q leaves the reference root", filepath.Join(root, kind.FileName()), e.Path),
				nil,
			)
		}
	}
	return table, nil
}

func ambiguousSizeError(dups map[string][]string) error {
	sizes := make([]string, 0, len(dups))
	for size := range dups {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool {
		a, _ := strconv.ParseInt(sizes[i], 10, 64)
		b, _ := strconv.ParseInt(sizes[j], 10, 64)
		return a < b
	})

	var b strings.Builder
	b.WriteString("files of non-unique size, enable hash matching to tell them apart:")
	for _, size := range sizes {
		fmt.Fprintf(&b, " %s bytes (%s);", size, strings.Join(dups[size], ", "))
	}
	return apperr.New(apperr.KindAmbiguousSize, strings.TrimSuffix(b.String(), ";"), nil)
}

// Stage is how far a candidate got through matching
type Stage int

const (
	NoMatch Stage = iota
	Matched
)

func (s Stage) String() string {
	if s == Matched {
		return "matched"
	}
	return "no match"
}

// Resolution lists the reference paths a candidate file matched, in table
// order. More than one path means the match was ambiguous and the caller
// takes them in order.
type Resolution struct {
	Stage  Stage
	Paths  []string
	Reason string // why a NoMatch was not matched
}

// Resolve matches a THERE file against the reference. With size matching
// enabled its size must appear in the size table before it is hashed; with
// hash matching enabled the digest decides, otherwise the size does.
func (r *Reference) Resolve(file walker.FileInfo, hasher *checksum.Hasher) (Resolution, error) {
	size := strconv.FormatInt(file.Size, 10)
	if r.Sizes != nil && !r.Sizes.ContainsValue(size) {
		return Resolution{Stage: NoMatch, Reason: "size"}, nil
	}

	var matches []fingerprint.Entry
	if r.Hashes != nil {
		digest, err := hasher.File(file.Path)
		if err != nil {
			return Resolution{}, err
		}
		matches = r.Hashes.Matches(digest)
		if len(matches) == 0 {
			return Resolution{Stage: NoMatch, Reason: "hash"}, nil
		}
	} else {
		matches = r.Sizes.Matches(size)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, m.Path)
	}
	return Resolution{Stage: Matched, Paths: paths}, nil
}

// Target returns the absolute HERE path for a table path
func (r *Reference) Target(relPath string) string {
	return filepath.Join(r.Root, filepath.FromSlash(relPath))
}

package fingerprint

import (
	"sort"
)

// Kind selects which fingerprint a table holds
type Kind int

const (
	KindSize Kind = iota
	KindHash
)

// Table file names, written inside the reference root
const (
	SizesFile  = "sizes.mns"
	HashesFile = "hashes.mns"
)

// FileName returns the name of the table file persisted for this kind
func (k Kind) FileName() string {
	if k == KindHash {
		return HashesFile
	}
	return SizesFile
}

func (k Kind) String() string {
	if k == KindHash {
		return "hash"
	}
	return "size"
}

// Entry maps a relative path to one fingerprint value
type Entry struct {
	Path  string
	Value string
}

// Table is an ordered mapping from relative path to fingerprint value.
//
// Insertion order is preserved and is the order Matches reports entries in.
// Setting a path that is already present replaces its value but keeps its
// original position.
type Table struct {
	kind    Kind
	entries []Entry
	byPath  map[string]int   // path -> position in entries
	byValue map[string][]int // value -> positions, ascending
}

// NewTable creates an empty table of the given kind
func NewTable(kind Kind) *Table {
	return &Table{
		kind:    kind,
		byPath:  make(map[string]int),
		byValue: make(map[string][]int),
	}
}

func (t *Table) Kind() Kind {
	return t.kind
}

// Len returns the number of distinct paths
func (t *Table) Len() int {
	return len(t.entries)
}

// Set records value for path
func (t *Table) Set(path, value string) {
	if pos, ok := t.byPath[path]; ok {
		old := t.entries[pos].Value
		if old == value {
			return
		}
		t.byValue[old] = removePosition(t.byValue[old], pos)
		if len(t.byValue[old]) == 0 {
			delete(t.byValue, old)
		}
		t.entries[pos].Value = value
		t.byValue[value] = insertPosition(t.byValue[value], pos)
		return
	}

	pos := len(t.entries)
	t.entries = append(t.entries, Entry{Path: path, Value: value})
	t.byPath[path] = pos
	t.byValue[value] = append(t.byValue[value], pos)
}

// Lookup returns the value recorded for path
func (t *Table) Lookup(path string) (string, bool) {
	pos, ok := t.byPath[path]
	if !ok {
		return "", false
	}
	return t.entries[pos].Value, true
}

// ContainsValue reports whether any path has the given value
func (t *Table) ContainsValue(value string) bool {
	return len(t.byValue[value]) > 0
}

// Matches returns every entry whose value equals value, in insertion order.
// Callers that take the first element get first-match-wins semantics.
func (t *Table) Matches(value string) []Entry {
	positions := t.byValue[value]
	if len(positions) == 0 {
		return nil
	}
	matches := make([]Entry, 0, len(positions))
	for _, pos := range positions {
		matches = append(matches, t.entries[pos])
	}
	return matches
}

// Entries returns a copy of all entries in insertion order
func (t *Table) Entries() []Entry {
	entries := make([]Entry, len(t.entries))
	copy(entries, t.entries)
	return entries
}

// Duplicates returns the values shared by more than one path, each with its
// paths in insertion order
func (t *Table) Duplicates() map[string][]string {
	dups := make(map[string][]string)
	for value, positions := range t.byValue {
		if len(positions) < 2 {
			continue
		}
		paths := make([]string, 0, len(positions))
		for _, pos := range positions {
			paths = append(paths, t.entries[pos].Path)
		}
		dups[value] = paths
	}
	return dups
}

func removePosition(positions []int, pos int) []int {
	i := sort.SearchInts(positions, pos)
	if i < len(positions) && positions[i] == pos {
		return append(positions[:i], positions[i+1:]...)
	}
	return positions
}

func insertPosition(positions []int, pos int) []int {
	i := sort.SearchInts(positions, pos)
	positions = append(positions, 0)
	copy(positions[i+1:], positions[i:])
	positions[i] = pos
	return positions
}

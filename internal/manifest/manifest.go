// Package manifest reads the file layout out of a bencoded torrent file.
//
// Only info.name, info.length, info.files[].path and info.files[].length are
// read. Trackers, piece hashes and every other key are ignored.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jackpal/bencode-go"
	"github.com/yuya-takeyama/movenseed/internal/apperr"
	"github.com/yuya-takeyama/movenseed/internal/fingerprint"
)

// File is one entry of a multi-file manifest
type File struct {
	Path   []string
	Length int64
}

// Manifest is the decoded layout. Single-file manifests have exactly one
// File whose Path is []string{Name}.
type Manifest struct {
	Name      string
	MultiFile bool
	Files     []File
}

// Entry is a relative path with its expected size
type Entry struct {
	Path string
	Size int64
}

// Load reads and decodes a manifest file
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.NewIO("read manifest "+path, err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Decode parses a bencoded manifest
func Decode(data []byte) (*Manifest, error) {
	raw, err := bencode.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, formatError("not a bencoded file", err)
	}
	top, ok := raw.(map[string]interface{})
	if !ok {
		return nil, formatError("top level is not a dictionary", nil)
	}
	info, ok := top["info"].(map[string]interface{})
	if !ok {
		return nil, formatError("missing info dictionary", nil)
	}

	name, hasName := info["name"].(string)
	if hasName {
		if err := checkSegment(name); err != nil {
			return nil, formatError("info.name", err)
		}
	}

	if rawFiles, ok := info["files"]; ok {
		return decodeMultiFile(name, hasName, rawFiles)
	}

	length, hasLength := info["length"].(int64)
	if !hasName || !hasLength {
		return nil, formatError("info has neither files nor name and length", nil)
	}
	if length < 0 {
		return nil, formatError("info.length is negative", nil)
	}
	return &Manifest{
		Name:  name,
		Files: []File{{Path: []string{name}, Length: length}},
	}, nil
}

func decodeMultiFile(name string, hasName bool, rawFiles interface{}) (*Manifest, error) {
	if !hasName {
		return nil, formatError("multi-file info has no name", nil)
	}
	list, ok := rawFiles.([]interface{})
	if !ok || len(list) == 0 {
		return nil, formatError("info.files is not a non-empty list", nil)
	}

	m := &Manifest{Name: name, MultiFile: true}
	for i, item := range list {
		dict, ok := item.(map[string]interface{})
		if !ok {
			return nil, formatError("info.files["+strconv.Itoa(i)+"] is not a dictionary", nil)
		}
		length, ok := dict["length"].(int64)
		if !ok || length < 0 {
			return nil, formatError("info.files["+strconv.Itoa(i)+"].length is missing or negative", nil)
		}
		segments, ok := dict["path"].([]interface{})
		if !ok || len(segments) == 0 {
			return nil, formatError("info.files["+strconv.Itoa(i)+"].path is not a non-empty list", nil)
		}
		path := make([]string, 0, len(segments))
		for _, s := range segments {
			segment, ok := s.(string)
			if !ok {
				return nil, formatError("info.files["+strconv.Itoa(i)+"].path has a non-string segment", nil)
			}
			if err := checkSegment(segment); err != nil {
				return nil, formatError("info.files["+strconv.Itoa(i)+"].path", err)
			}
			path = append(path, segment)
		}
		m.Files = append(m.Files, File{Path: path, Length: length})
	}
	return m, nil
}

// checkSegment keeps decoded paths strictly below the directory they are
// joined onto
func checkSegment(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("empty path segment")
	case s == "." || s == "..":
		return fmt.Errorf("path segment %q not allowed", s)
	case strings.ContainsAny(s, "/\x00"):
		return fmt.Errorf("path segment %q contains a separator", s)
	}
	return nil
}

func formatError(message string, cause error) error {
	return apperr.New(apperr.KindManifestFormat, message, cause)
}

// Entries returns the manifest's files as relative paths. For a multi-file
// manifest withRoot prefixes each path with the container name; a
// single-file manifest is always just its name.
func (m *Manifest) Entries(withRoot bool) []Entry {
	entries := make([]Entry, 0, len(m.Files))
	for _, f := range m.Files {
		path := strings.Join(f.Path, "/")
		if m.MultiFile && withRoot {
			path = m.Name + "/" + path
		}
		entries = append(entries, Entry{Path: path, Size: f.Length})
	}
	return entries
}

// SizeTable builds a size table from Entries(withRoot)
func (m *Manifest) SizeTable(withRoot bool) *fingerprint.Table {
	t := fingerprint.NewTable(fingerprint.KindSize)
	for _, e := range m.Entries(withRoot) {
		t.Set(e.Path, strconv.FormatInt(e.Size, 10))
	}
	return t
}

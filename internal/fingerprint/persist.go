package fingerprint

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuya-takeyama/movenseed/internal/apperr"
)

const maxLineSize = 1 << 20

// WriteTo writes the table as "<value>\t<path>\n" lines in insertion order
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for _, e := range t.entries {
		n, err := fmt.Fprintf(bw, "%s\t%s\n", e.Value, e.Path)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

// ReadTable parses table lines. The value ends at the first tab; blank lines
// are ignored. Size values must be non-negative integers.
func ReadTable(kind Kind, r io.Reader) (*Table, error) {
	t := NewTable(kind)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		value, path, ok := strings.Cut(line, "\t")
		if !ok || value == "" || path == "" {
			return nil, fmt.Errorf("line %d: expected <%s>\\t<path>", lineNo, kind)
		}
		if kind == KindSize {
			if size, err := strconv.ParseInt(value, 10, 64); err != nil || size < 0 {
				return nil, fmt.Errorf("line %d: invalid size %q", lineNo, value)
			}
		}
		t.Set(path, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// RebuildTable replaces the table file for t's kind inside dir
func RebuildTable(dir string, t *Table) (string, error) {
	return writeTable(dir, t, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

// AppendToTable adds t's lines to the end of the table file inside dir,
// creating it when absent. Existing lines are never rewritten.
func AppendToTable(dir string, t *Table) (string, error) {
	return writeTable(dir, t, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func writeTable(dir string, t *Table, flag int) (string, error) {
	path := filepath.Join(dir, t.Kind().FileName())
	file, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return path, apperr.NewIO("open "+path, err)
	}
	if _, err := t.WriteTo(file); err != nil {
		file.Close()
		return path, apperr.NewIO("write "+path, err)
	}
	if err := file.Close(); err != nil {
		return path, apperr.NewIO("close "+path, err)
	}
	return path, nil
}

// LoadTable reads the table file of the given kind from dir
func LoadTable(dir string, kind Kind) (*Table, error) {
	path := filepath.Join(dir, kind.FileName())
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.New(apperr.KindMissingTable, "could not find "+path, err)
		}
		return nil, apperr.NewIO("open "+path, err)
	}
	defer file.Close()

	t, err := ReadTable(kind, file)
	if err != nil {
		return nil, apperr.NewIO("read "+path, err)
	}
	return t, nil
}

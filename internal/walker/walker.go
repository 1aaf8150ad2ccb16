package walker

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileInfo represents a regular file found under the root
type FileInfo struct {
	Path    string // Absolute path, lexically under the canonical root
	RelPath string // Slash-separated path relative to the root
	Size    int64  // Size of the file behind any symlink
}

// Walker walks a directory tree depth-first with an explicit stack.
//
// Order is part of the contract: entries of a directory are taken in name
// order, its regular files are visited before any of its subdirectories,
// and subdirectories are descended in name order.
type Walker struct {
	root     string
	excludes []string

	// OnError receives directories that cannot be read. They are skipped and
	// the walk continues. When nil, such errors are ignored.
	OnError func(path string, err error)
}

// NewWalker creates a walker rooted at the canonical (absolute, symlink
// resolved) form of root
func NewWalker(root string, excludes []string) (*Walker, error) {
	canonical, err := Canonicalize(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", canonical)
	}

	return &Walker{
		root:     canonical,
		excludes: excludes,
	}, nil
}

// Canonicalize returns the absolute, symlink-resolved form of p
func Canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("get absolute path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	return resolved, nil
}

// Root returns the canonical root directory
func (w *Walker) Root() string {
	return w.root
}

type dirTask struct {
	path    string // absolute
	relPath string // slash-separated, "" for the root
}

// Walk calls fn for every regular file under the root. Symlinks are
// dereferenced: links to files are reported as files, links to directories
// are descended once per real directory, and dangling links are skipped.
// An error returned by fn stops the walk and is returned.
func (w *Walker) Walk(fn func(FileInfo) error) error {
	visited := map[string]bool{w.root: true}
	stack := []dirTask{{path: w.root}}

	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(task.path)
		if err != nil {
			if task.path == w.root {
				return fmt.Errorf("read root: %w", err)
			}
			w.reportError(task.path, err)
			continue
		}

		var subdirs []dirTask
		for _, entry := range entries {
			fullPath := filepath.Join(task.path, entry.Name())
			relPath := path.Join(task.relPath, entry.Name())

			// Stat follows symlinks; a dangling link fails here and is skipped.
			info, err := os.Stat(fullPath)
			if err != nil {
				continue
			}

			switch {
			case info.IsDir():
				if w.isExcluded(relPath, true) {
					continue
				}
				realPath, err := filepath.EvalSymlinks(fullPath)
				if err != nil {
					w.reportError(fullPath, err)
					continue
				}
				if visited[realPath] {
					continue
				}
				visited[realPath] = true
				subdirs = append(subdirs, dirTask{path: fullPath, relPath: relPath})
			case info.Mode().IsRegular():
				if w.isExcluded(relPath, false) {
					continue
				}
				if err := fn(FileInfo{
					Path:    fullPath,
					RelPath: relPath,
					Size:    info.Size(),
				}); err != nil {
					return err
				}
			}
		}

		// Push in reverse so the first subdirectory is popped first.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return nil
}

// Files walks the tree and returns every regular file in walk order
func (w *Walker) Files() ([]FileInfo, error) {
	var files []FileInfo
	err := w.Walk(func(f FileInfo) error {
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return files, nil
}

func (w *Walker) reportError(path string, err error) {
	if w.OnError != nil {
		w.OnError(path, err)
	}
}

// isExcluded checks if a path matches any exclude pattern. Patterns ending
// with "/" only match directories and prune everything below them.
func (w *Walker) isExcluded(relPath string, isDir bool) bool {
	for _, pattern := range w.excludes {
		if strings.HasSuffix(pattern, "/") {
			if !isDir {
				continue
			}
			pattern = strings.TrimSuffix(pattern, "/")
		}
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}

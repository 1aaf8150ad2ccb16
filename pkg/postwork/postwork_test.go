package postwork

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/yuya-takeyama/movenseed/internal/apperr"
	"github.com/yuya-takeyama/movenseed/internal/config"
	"github.com/yuya-takeyama/movenseed/internal/fingerprint"
	"github.com/yuya-takeyama/movenseed/internal/walker"
)

func makeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create parent directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file %s: %v", rel, err)
		}
	}
}

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := walker.Canonicalize(t.TempDir())
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	return dir
}

// prepareHere fingerprints files inside here, then removes them so that
// only the tables remain, as if the files had been moved away
func prepareHere(t *testing.T, here string, files map[string]string, opts config.Options) {
	t.Helper()
	makeTree(t, here, files)

	scanOpts := fingerprint.ScanOptions{Sizes: opts.Sizes, Hashes: opts.Hashes}
	if opts.Hashes {
		hasher, err := opts.Hasher()
		if err != nil {
			t.Fatalf("Hasher: %v", err)
		}
		scanOpts.Hasher = hasher
	}
	store, err := fingerprint.Scan(here, scanOpts)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, table := range []*fingerprint.Table{store.Sizes, store.Hashes} {
		if table == nil {
			continue
		}
		if _, err := fingerprint.RebuildTable(here, table); err != nil {
			t.Fatalf("RebuildTable: %v", err)
		}
	}
	for rel := range files {
		if err := os.Remove(filepath.Join(here, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("Remove: %v", err)
		}
	}
}

func writeTable(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func readLink(t *testing.T, path string) string {
	t.Helper()
	target, err := os.Readlink(path)
	if err != nil {
		t.Fatalf("Readlink(%s): %v", path, err)
	}
	return target
}

func actions(files []FileResult) []Action {
	var got []Action
	for _, f := range files {
		got = append(got, f.Action)
	}
	return got
}

func TestRunLinksMovedFiles(t *testing.T) {
	here := tempDir(t)
	there := tempDir(t)
	opts := config.DefaultOptions()

	prepareHere(t, here, map[string]string{
		"a.txt":   "abcd",
		"b/c.txt": "123456789",
	}, opts)
	makeTree(t, there, map[string]string{
		"x.txt":     "abcd",
		"y/z.bin":   "123456789",
		"other.txt": "unrelated!",
		"same.txt":  "wxyz", // same size as a.txt, different content
	})

	log := &mockLogger{}
	result, err := NewReconciler(log).Run([]string{here}, []string{there}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := readLink(t, filepath.Join(here, "a.txt")); got != filepath.Join(there, "x.txt") {
		t.Errorf("a.txt -> %s", got)
	}
	if got := readLink(t, filepath.Join(here, "b", "c.txt")); got != filepath.Join(there, "y", "z.bin") {
		t.Errorf("b/c.txt -> %s", got)
	}

	want := Summary{Linked: 2, Skipped: 2, BytesLinked: 13}
	if result.Summary != want {
		t.Errorf("Summary = %+v, want %+v", result.Summary, want)
	}
	if len(log.linkCalls) != 2 {
		t.Errorf("link calls = %+v", log.linkCalls)
	}

	reasons := map[string]string{}
	for _, s := range log.skipCalls {
		reasons[filepath.Base(s.source)] = s.reason
	}
	if reasons["other.txt"] != "no size match" || reasons["same.txt"] != "no hash match" {
		t.Errorf("skip reasons = %v", reasons)
	}
}

func TestRunHardLinks(t *testing.T) {
	here := tempDir(t)
	there := filepath.Join(here, "incoming")
	opts := config.DefaultOptions()
	opts.Hard = true

	prepareHere(t, here, map[string]string{"d/file.iso": "iso-bytes"}, opts)
	makeTree(t, there, map[string]string{"renamed.iso": "iso-bytes"})

	if _, err := NewReconciler(&mockLogger{}).Run([]string{here}, []string{there}, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	target, err := os.Lstat(filepath.Join(here, "d", "file.iso"))
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	source, _ := os.Stat(filepath.Join(there, "renamed.iso"))
	if target.Mode()&os.ModeSymlink != 0 || !os.SameFile(target, source) {
		t.Error("target should be a hard link to the source")
	}
}

func TestRunDoesNotOverwrite(t *testing.T) {
	here := tempDir(t)
	there := tempDir(t)
	opts := config.DefaultOptions()

	prepareHere(t, here, map[string]string{"a.txt": "abcd"}, opts)
	makeTree(t, here, map[string]string{"a.txt": "abcd"})
	makeTree(t, there, map[string]string{"x.txt": "abcd"})

	result, err := NewReconciler(&mockLogger{}).Run([]string{here}, []string{there}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	info, err := os.Lstat(filepath.Join(here, "a.txt"))
	if err != nil || info.Mode()&os.ModeSymlink != 0 {
		t.Fatalf("a.txt should stay a regular file: %v", err)
	}
	if got := actions(result.Roots[0].Files); !reflect.DeepEqual(got, []Action{ActionPresent}) {
		t.Errorf("actions = %v, want [present]", got)
	}
}

func TestRunReplacesDanglingLink(t *testing.T) {
	here := tempDir(t)
	there := tempDir(t)
	opts := config.DefaultOptions()

	prepareHere(t, here, map[string]string{"a.txt": "abcd"}, opts)
	if err := os.Symlink(filepath.Join(there, "gone.txt"), filepath.Join(here, "a.txt")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	makeTree(t, there, map[string]string{"x.txt": "abcd"})

	log := &mockLogger{}
	result, err := NewReconciler(log).Run([]string{here}, []string{there}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := readLink(t, filepath.Join(here, "a.txt")); got != filepath.Join(there, "x.txt") {
		t.Errorf("a.txt -> %s", got)
	}
	if result.Summary.Replaced != 1 || len(log.replaceCalls) != 1 {
		t.Errorf("Summary = %+v, replace calls = %v", result.Summary, log.replaceCalls)
	}
}

func TestRunFirstMatchInTableOrder(t *testing.T) {
	here := tempDir(t)
	there := tempDir(t)
	opts := config.DefaultOptions()

	digest := "81fe8bfe87576c3ecb22426f8e57847382917acf" // sha1("abcd")
	writeTable(t, here, fingerprint.SizesFile, "4\tz-first.txt\n4\ta-second.txt\n")
	writeTable(t, here, fingerprint.HashesFile, digest+"\tz-first.txt\n"+digest+"\ta-second.txt\n")
	makeTree(t, there, map[string]string{"x.txt": "abcd"})

	if _, err := NewReconciler(&mockLogger{}).Run([]string{here}, []string{there}, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(here, "z-first.txt")); err != nil {
		t.Errorf("first table entry should be linked: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(here, "a-second.txt")); !os.IsNotExist(err) {
		t.Error("only the first matching entry should be linked")
	}
}

func TestRunPresentMovesToNextEntry(t *testing.T) {
	here := tempDir(t)
	there := tempDir(t)
	opts := config.DefaultOptions()

	digest := "81fe8bfe87576c3ecb22426f8e57847382917acf"
	writeTable(t, here, fingerprint.SizesFile, "4\tfirst.txt\n4\tsecond.txt\n")
	writeTable(t, here, fingerprint.HashesFile, digest+"\tfirst.txt\n"+digest+"\tsecond.txt\n")
	makeTree(t, here, map[string]string{"first.txt": "abcd"})
	makeTree(t, there, map[string]string{"x.txt": "abcd"})

	result, err := NewReconciler(&mockLogger{}).Run([]string{here}, []string{there}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := actions(result.Roots[0].Files); !reflect.DeepEqual(got, []Action{ActionPresent, ActionLink}) {
		t.Errorf("actions = %v, want [present link]", got)
	}
	if got := readLink(t, filepath.Join(here, "second.txt")); got != filepath.Join(there, "x.txt") {
		t.Errorf("second.txt -> %s", got)
	}
}

func TestRunRefusesAmbiguousSizes(t *testing.T) {
	ambiguous := tempDir(t)
	fine := tempDir(t)
	there := tempDir(t)
	opts := config.DefaultOptions()
	opts.Hashes = false

	writeTable(t, ambiguous, fingerprint.SizesFile, "4\tone.txt\n4\ttwo.txt\n9\tthree.txt\n")
	writeTable(t, fine, fingerprint.SizesFile, "4\tonly.txt\n")
	makeTree(t, there, map[string]string{"x.txt": "abcd"})

	result, err := NewReconciler(&mockLogger{}).Run([]string{ambiguous, fine}, []string{there}, opts)
	if !apperr.Is(err, apperr.KindAmbiguousSize) {
		t.Fatalf("Run() error = %v, want ambiguous_size kind", err)
	}
	if !strings.Contains(err.Error(), "one.txt, two.txt") {
		t.Errorf("error should list the conflicting paths: %v", err)
	}
	for _, name := range []string{"one.txt", "two.txt"} {
		if _, err := os.Lstat(filepath.Join(ambiguous, name)); !os.IsNotExist(err) {
			t.Errorf("%s must not be created", name)
		}
	}
	if result.Roots[0].Err == nil {
		t.Error("ambiguous root should carry its error")
	}
	if got := readLink(t, filepath.Join(fine, "only.txt")); got != filepath.Join(there, "x.txt") {
		t.Errorf("other roots should still run, only.txt -> %s", got)
	}
}

func TestRunDryRun(t *testing.T) {
	here := tempDir(t)
	there := tempDir(t)
	opts := config.DefaultOptions()
	opts.DryRun = true

	prepareHere(t, here, map[string]string{"b/c.txt": "abcd"}, opts)
	makeTree(t, there, map[string]string{"x.txt": "abcd"})

	result, err := NewReconciler(&mockLogger{}).Run([]string{here}, []string{there}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Summary.Linked != 1 {
		t.Errorf("Summary = %+v, want one planned link", result.Summary)
	}
	if _, err := os.Lstat(filepath.Join(here, "b", "c.txt")); !os.IsNotExist(err) {
		t.Error("dry run must not create links")
	}
}

func TestRunMissingTable(t *testing.T) {
	here := tempDir(t)
	there := tempDir(t)
	writeTable(t, here, fingerprint.SizesFile, "4\ta.txt\n")

	_, err := NewReconciler(&mockLogger{}).Run([]string{here}, []string{there}, config.DefaultOptions())
	if !apperr.Is(err, apperr.KindMissingTable) {
		t.Errorf("Run() error = %v, want missing_table kind", err)
	}
}

func TestRunThereNotADirectory(t *testing.T) {
	here := tempDir(t)
	there := tempDir(t)
	opts := config.DefaultOptions()

	prepareHere(t, here, map[string]string{"a.txt": "abcd"}, opts)
	makeTree(t, there, map[string]string{"x.txt": "abcd"})
	notDir := filepath.Join(there, "x.txt")

	log := &mockLogger{}
	result, err := NewReconciler(log).Run([]string{here}, []string{notDir, there}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := actions(result.Roots[0].Files); !reflect.DeepEqual(got, []Action{ActionError, ActionLink}) {
		t.Errorf("actions = %v, want [error link]", got)
	}
	if op := result.Roots[0].Files[0].Op; op != "there" {
		t.Errorf("Op = %q, want there", op)
	}
	if len(log.errorCalls) != 1 || log.errorCalls[0].path != notDir {
		t.Errorf("error calls = %+v", log.errorCalls)
	}
}

func TestRunUsage(t *testing.T) {
	bothOff := config.DefaultOptions()
	bothOff.Sizes, bothOff.Hashes = false, false

	tests := []struct {
		name   string
		heres  []string
		theres []string
		opts   config.Options
	}{
		{"no there", []string{"h"}, nil, config.DefaultOptions()},
		{"no here", nil, []string{"t"}, config.DefaultOptions()},
		{"both modes disabled", []string{"h"}, []string{"t"}, bothOff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReconciler(&mockLogger{}).Run(tt.heres, tt.theres, tt.opts)
			if !apperr.IsUsage(err) {
				t.Errorf("Run() error = %v, want usage kind", err)
			}
		})
	}
}

func TestLoadReferenceValidation(t *testing.T) {
	tests := []struct {
		name   string
		hashes string
		modify func(*config.Options)
	}{
		{
			name:   "digest width does not match algorithm",
			hashes: "81fe8bfe87576c3ecb22426f8e57847382917acf\ta.txt\n",
			modify: func(o *config.Options) { o.Algorithm = "sha256" },
		},
		{
			name:   "digest is not hex",
			hashes: strings.Repeat("g", 40) + "\ta.txt\n",
			modify: func(o *config.Options) {},
		},
		{
			name:   "path leaves the root",
			hashes: "81fe8bfe87576c3ecb22426f8e57847382917acf\t../outside.txt\n",
			modify: func(o *config.Options) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			here := tempDir(t)
			writeTable(t, here, fingerprint.SizesFile, "4\ta.txt\n")
			writeTable(t, here, fingerprint.HashesFile, tt.hashes)

			opts := config.DefaultOptions()
			tt.modify(&opts)
			_, err := LoadReference(here, opts)
			if !apperr.Is(err, apperr.KindIO) {
				t.Errorf("LoadReference() error = %v, want io kind", err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	here := tempDir(t)
	writeTable(t, here, fingerprint.SizesFile, "4\ta.txt\n9\tb/c.txt\n")
	opts := config.DefaultOptions()
	opts.Hashes = false

	ref, err := LoadReference(here, opts)
	if err != nil {
		t.Fatalf("LoadReference: %v", err)
	}

	// A nil hasher is never consulted when hashing is off.
	got, err := ref.Resolve(walker.FileInfo{Path: "/nowhere", Size: 9}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Stage != Matched || !reflect.DeepEqual(got.Paths, []string{"b/c.txt"}) {
		t.Errorf("Resolve(9) = %+v", got)
	}

	got, err = ref.Resolve(walker.FileInfo{Path: "/nowhere", Size: 5}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Stage != NoMatch || got.Reason != "size" {
		t.Errorf("Resolve(5) = %+v", got)
	}
}

func TestRunHardLinksThroughSymlinkedCandidate(t *testing.T) {
	base := tempDir(t)
	here := filepath.Join(base, "here")
	there := filepath.Join(base, "there")
	opts := config.DefaultOptions()
	opts.Hard = true

	prepareHere(t, here, map[string]string{"a.txt": "abcd"}, opts)
	makeTree(t, base, map[string]string{"store/real.txt": "abcd"})
	if err := os.MkdirAll(there, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.Symlink(filepath.Join("..", "store", "real.txt"), filepath.Join(there, "l.txt")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	result, err := NewReconciler(&mockLogger{}).Run([]string{here}, []string{there}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := actions(result.Roots[0].Files); !reflect.DeepEqual(got, []Action{ActionLink}) {
		t.Fatalf("actions = %v, want [link]", got)
	}

	linked, err := os.Lstat(filepath.Join(here, "a.txt"))
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	stored, err := os.Stat(filepath.Join(base, "store", "real.txt"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if linked.Mode()&os.ModeSymlink != 0 || !os.SameFile(linked, stored) {
		t.Error("a.txt should be a hard link to the file behind the symlink")
	}
}

func TestRunHashOnly(t *testing.T) {
	here := tempDir(t)
	there := tempDir(t)
	opts := config.DefaultOptions()
	opts.Sizes = false

	prepareHere(t, here, map[string]string{
		"a.txt": "abcd",
		"b.txt": "wxyz",
	}, opts)
	if _, err := os.Stat(filepath.Join(here, fingerprint.SizesFile)); !os.IsNotExist(err) {
		t.Fatal("sizes.mns should not exist for a hash-only reference")
	}
	makeTree(t, there, map[string]string{"q.txt": "wxyz"})

	result, err := NewReconciler(&mockLogger{}).Run([]string{here}, []string{there}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := readLink(t, filepath.Join(here, "b.txt")); got != filepath.Join(there, "q.txt") {
		t.Errorf("b.txt -> %s", got)
	}
	if _, err := os.Lstat(filepath.Join(here, "a.txt")); !os.IsNotExist(err) {
		t.Error("a.txt has no matching file and must not be created")
	}
	if want := (Summary{Linked: 1, BytesLinked: 4}); result.Summary != want {
		t.Errorf("Summary = %+v, want %+v", result.Summary, want)
	}
}

func TestRunLinkFailureDoesNotStopWalk(t *testing.T) {
	here := tempDir(t)
	there := tempDir(t)
	opts := config.DefaultOptions()

	prepareHere(t, here, map[string]string{
		"d/e.txt": "abcd",
		"f.txt":   "123456789",
	}, opts)
	// A regular file where the directory d/ should be.
	if err := os.Remove(filepath.Join(here, "d")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	makeTree(t, here, map[string]string{"d": "blocker"})
	makeTree(t, there, map[string]string{
		"1.txt": "abcd",
		"2.txt": "123456789",
	})

	log := &mockLogger{}
	result, err := NewReconciler(log).Run([]string{here}, []string{there}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	files := result.Roots[0].Files
	if got := actions(files); !reflect.DeepEqual(got, []Action{ActionError, ActionLink}) {
		t.Fatalf("actions = %v, want [error link]", got)
	}
	if files[0].Op != "link" || files[0].Err == nil {
		t.Errorf("failed file = %+v", files[0])
	}
	if got := readLink(t, filepath.Join(here, "f.txt")); got != filepath.Join(there, "2.txt") {
		t.Errorf("f.txt -> %s", got)
	}
	if result.Summary.Failed != 1 || result.Summary.Linked != 1 {
		t.Errorf("Summary = %+v", result.Summary)
	}
	if len(log.errorCalls) != 1 || log.errorCalls[0].operation != "link" {
		t.Errorf("error calls = %+v", log.errorCalls)
	}
}

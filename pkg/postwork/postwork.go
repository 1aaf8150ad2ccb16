// Package postwork links relocated files back into a reference tree.
package postwork

import (
	"errors"
	"fmt"
	"os"

	"github.com/yuya-takeyama/movenseed/internal/apperr"
	"github.com/yuya-takeyama/movenseed/internal/checksum"
	"github.com/yuya-takeyama/movenseed/internal/config"
	"github.com/yuya-takeyama/movenseed/internal/linker"
	"github.com/yuya-takeyama/movenseed/internal/walker"
	"github.com/yuya-takeyama/movenseed/pkg/logger"
)

type Action string

const (
	ActionLink    Action = "link"    // new link created
	ActionReplace Action = "replace" // dangling link replaced
	ActionPresent Action = "present" // a file already sits at the target
	ActionSkip    Action = "skip"    // no reference entry matched
	ActionError   Action = "error"
)

// FileResult is one decision taken for a THERE file
type FileResult struct {
	Action Action
	Source string
	Target string
	Reason string
	Op     string // step that failed, set for ActionError: "there", "walk", "hash" or "link"
	Size   int64
	Err    error
}

// RootResult collects the decisions taken for one HERE. Err is set when the
// reference could not be loaded and nothing was attempted.
type RootResult struct {
	Here  string
	Err   error
	Files []FileResult
}

type Summary struct {
	Linked      int
	Replaced    int
	Present     int
	Skipped     int
	Failed      int
	BytesLinked int64
}

type Result struct {
	Roots   []RootResult
	Summary Summary
}

func (s *Summary) add(f FileResult) {
	switch f.Action {
	case ActionLink:
		s.Linked++
		s.BytesLinked += f.Size
	case ActionReplace:
		s.Replaced++
		s.BytesLinked += f.Size
	case ActionPresent:
		s.Present++
	case ActionSkip:
		s.Skipped++
	case ActionError:
		s.Failed++
	}
}

type Reconciler struct {
	logger logger.Logger
}

func NewReconciler(logger logger.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Run reconciles every THERE against every HERE. Per-file failures are
// recorded in the result and the walk goes on. A HERE whose reference cannot
// be loaded is skipped; those errors are joined into the returned error.
func (r *Reconciler) Run(heres, theres []string, opts config.Options) (*Result, error) {
	if len(heres) == 0 || len(theres) == 0 {
		return nil, apperr.NewUsage("postwork needs at least one HERE and one THERE")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var hasher *checksum.Hasher
	if opts.Hashes {
		h, err := opts.Hasher()
		if err != nil {
			return nil, err
		}
		hasher = h
	}

	result := &Result{}
	var errs []error
	for _, here := range heres {
		ref, err := LoadReference(here, opts)
		if err != nil {
			r.logger.Error("load", here, err)
			result.Roots = append(result.Roots, RootResult{Here: here, Err: err})
			errs = append(errs, fmt.Errorf("%s: %w", here, err))
			continue
		}

		root := RootResult{Here: ref.Root}
		for _, there := range theres {
			root.Files = append(root.Files, r.reconcileThere(ref, there, hasher, opts)...)
		}
		for _, f := range root.Files {
			result.Summary.add(f)
		}
		result.Roots = append(result.Roots, root)
	}
	return result, errors.Join(errs...)
}

func (r *Reconciler) reconcileThere(ref *Reference, there string, hasher *checksum.Hasher, opts config.Options) []FileResult {
	if info, err := os.Stat(there); err != nil || !info.IsDir() {
		err = apperr.NewIO(there+" is not a directory", err)
		r.logger.Error("postwork", there, err)
		return []FileResult{{Action: ActionError, Source: there, Reason: "not a directory", Op: "there", Err: err}}
	}

	w, err := walker.NewWalker(there, opts.Excludes)
	if err != nil {
		r.logger.Error("postwork", there, err)
		return []FileResult{{Action: ActionError, Source: there, Reason: "walk", Op: "walk", Err: apperr.NewIO("walk "+there, err)}}
	}

	var files []FileResult
	w.OnError = func(path string, err error) {
		r.logger.Error("walk", path, err)
		files = append(files, FileResult{Action: ActionError, Source: path, Reason: "unreadable directory", Op: "walk", Err: apperr.NewIO("read "+path, err)})
	}

	r.logger.Debug(fmt.Sprintf("reconciling %s against %s", w.Root(), ref.Root))
	err = w.Walk(func(f walker.FileInfo) error {
		files = append(files, r.reconcileFile(ref, f, hasher, opts)...)
		return nil
	})
	if err != nil {
		r.logger.Error("walk", w.Root(), err)
		files = append(files, FileResult{Action: ActionError, Source: w.Root(), Reason: "walk", Op: "walk", Err: apperr.NewIO("walk "+w.Root(), err)})
	}
	return files
}

// reconcileFile resolves one candidate and links it at the first matched
// path that is not already occupied
func (r *Reconciler) reconcileFile(ref *Reference, f walker.FileInfo, hasher *checksum.Hasher, opts config.Options) []FileResult {
	res, err := ref.Resolve(f, hasher)
	if err != nil {
		r.logger.Error("hash", f.Path, err)
		return []FileResult{{Action: ActionError, Source: f.Path, Reason: "hash", Op: "hash", Size: f.Size, Err: err}}
	}
	if res.Stage == NoMatch {
		reason := "no " + res.Reason + " match"
		r.logger.Skip(f.Path, reason)
		return []FileResult{{Action: ActionSkip, Source: f.Path, Reason: reason, Size: f.Size}}
	}

	var results []FileResult
	for _, rel := range res.Paths {
		target := ref.Target(rel)
		outcome, err := linker.Materialize(f.Path, target, opts.LinkOptions())
		if err != nil {
			r.logger.Error("link", target, err)
			return append(results, FileResult{Action: ActionError, Source: f.Path, Target: target, Reason: linkReason(err), Op: "link", Size: f.Size, Err: err})
		}

		switch outcome {
		case linker.AlreadyPresent:
			r.logger.Present(target)
			results = append(results, FileResult{Action: ActionPresent, Source: f.Path, Target: target, Reason: "already in HERE", Size: f.Size})
			continue
		case linker.Replaced:
			r.logger.Replace(f.Path, target)
			return append(results, FileResult{Action: ActionReplace, Source: f.Path, Target: target, Reason: "dangling link", Size: f.Size})
		default:
			r.logger.Link(f.Path, target)
			return append(results, FileResult{Action: ActionLink, Source: f.Path, Target: target, Reason: opts.LinkMode().String(), Size: f.Size})
		}
	}
	return results
}

func linkReason(err error) string {
	var linkErr *os.LinkError
	switch {
	case errors.As(err, &linkErr):
		return linker.Reason(err)
	case apperr.Is(err, apperr.KindLink):
		return "destination is not a regular file"
	default:
		return "io"
	}
}

package filesystem

import (
	"path/filepath"

	"emperror.dev/errors"
	"github.com/apex/log"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/pathkit/pathkit/metrics"
)

type deleter interface {
	DeleteIfExists(p string) (bool, error)
}

type cleanOptions struct {
	pattern   string
	maxDepth  int
	dirs      bool
	strict    bool
	protected *Protector
	deleter   deleter
}

type CleanOption func(o *cleanOptions)

// WithPattern sets the glob pattern files must match to be deleted. Defaults
// to MatchAll.
func WithPattern(pattern string) CleanOption {
	return func(o *cleanOptions) {
		o.pattern = pattern
	}
}

// WithCleanDepth limits how many directory levels below the root are cleaned.
func WithCleanDepth(depth int) CleanOption {
	return func(o *cleanOptions) {
		o.maxDepth = depth
	}
}

// WithDeleteDirectories also removes every directory below the root once its
// contents have been cleaned. Directories are not matched against the glob
// pattern, and any directory that still has contents is left in place.
func WithDeleteDirectories() CleanOption {
	return func(o *cleanOptions) {
		o.dirs = true
	}
}

// WithProtected excludes paths from the clean using gitignore syntax. Lines are
// matched against the path relative to the root being cleaned, so protecting a
// directory also protects everything inside of it.
func WithProtected(lines ...string) CleanOption {
	return func(o *cleanOptions) {
		o.protected = NewProtector(lines...)
	}
}

// WithStrict stops the clean at the first entry that cannot be deleted and
// returns that error, instead of continuing past it.
func WithStrict() CleanOption {
	return func(o *cleanOptions) {
		o.strict = true
	}
}

func withDeleter(d deleter) CleanOption {
	return func(o *cleanOptions) {
		o.deleter = d
	}
}

// CleanResult summarises what happened during a clean.
type CleanResult struct {
	// Deleted is the number of files and directories that were removed.
	Deleted int
	// Failed is the number of entries that matched but could not be removed.
	Failed int
	// Skipped is the number of entries whose attributes could not be read.
	Skipped int
	// Protected is the number of matching entries left alone because of the
	// protected path list.
	Protected int
}

// Clean deletes every file below root whose name matches the glob pattern, and
// optionally removes the emptied directories afterwards. Files are deleted as
// they are found; nothing is deferred. The root directory itself is never
// removed.
//
// Clean is best effort: an entry that cannot be read or deleted is logged,
// counted in the result and skipped, and the walk carries on. A nil error does
// not mean every matching file was removed, check CleanResult.Failed, or use
// WithStrict to stop at the first failure. An error is still returned if root
// is not a directory, the pattern is invalid, or a directory stream fails
// while it is being read.
func Clean(root string, opts ...CleanOption) (CleanResult, error) {
	o := cleanOptions{pattern: MatchAll, maxDepth: Unbounded, deleter: OS{}}
	for _, opt := range opts {
		opt(&o)
	}

	var res CleanResult
	if err := ValidatePattern(o.pattern); err != nil {
		return res, err
	}

	logger := log.WithField("subsystem", "filesystem").WithField("root", root)

	var strictErr error
	remove := func(p string, isDir bool) {
		ok, err := o.deleter.DeleteIfExists(p)
		if err != nil {
			if isDir && isDirectoryNotEmpty(err) {
				return
			}
			res.Failed++
			metrics.DeleteFailures.WithLabelValues(metrics.SourceClean).Inc()
			errorLogger(p, err).Warn("failed to delete entry while cleaning directory")
			if o.strict && strictErr == nil {
				strictErr = errors.WrapIf(err, "filesystem: clean: failed to delete entry")
			}
			return
		}
		if ok {
			res.Deleted++
			metrics.EntriesDeleted.WithLabelValues(metrics.SourceClean).Inc()
		}
	}

	w, err := Walk(
		root,
		WithMaxDepth(o.maxDepth),
		WithErrorHandler(func(p string, err error) {
			res.Skipped++
			errorLogger(p, err).Debug("skipping entry while cleaning directory")
		}),
		WithLeaveHandler(func(dir string, depth int) {
			if !o.dirs || depth == 0 || strictErr != nil {
				return
			}
			if o.protected.Matches(root, dir, true) {
				res.Protected++
				return
			}
			remove(dir, true)
		}),
	)
	if err != nil {
		return res, err
	}
	defer w.Close()

	for strictErr == nil && w.Next() {
		a := w.Attrs()
		if a.IsDir() {
			continue
		}
		p := w.Path()
		rel, err := filepath.Rel(root, p)
		if err != nil {
			rel = p
		}
		if ok, _ := MatchesGlob(rel, o.pattern); !ok {
			continue
		}
		if o.protected.Matches(root, p, false) {
			res.Protected++
			continue
		}
		remove(p, false)
	}

	if strictErr != nil {
		return res, strictErr
	}
	if err := w.Err(); err != nil {
		return res, err
	}
	logger.WithFields(log.Fields{
		"deleted":   res.Deleted,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
		"protected": res.Protected,
	}).Debug("finished cleaning directory")
	return res, nil
}

// Protector matches paths against a list of lines in gitignore syntax.
type Protector struct {
	gi *ignore.GitIgnore
}

// NewProtector compiles the given lines. If there are no lines nil is
// returned, which protects nothing.
func NewProtector(lines ...string) *Protector {
	if len(lines) == 0 {
		return nil
	}
	return &Protector{gi: ignore.CompileIgnoreLines(lines...)}
}

// Matches reports whether the path, taken relative to root, is protected.
func (pr *Protector) Matches(root string, p string, isDir bool) bool {
	if pr == nil {
		return false
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}
	return pr.gi.MatchesPath(rel)
}

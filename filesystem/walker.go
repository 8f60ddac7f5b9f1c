package filesystem

import (
	"iter"

	"emperror.dev/errors"

	"github.com/pathkit/pathkit/metrics"
)

// Unbounded can be passed as a maximum depth to walk every level of a tree.
const Unbounded = -1

// ErrorHandler is called for every entry the walker skips over. The error is
// always a filesystem Error; a symbolic link loop is reported with the
// ErrCodeCycle code.
type ErrorHandler func(path string, err error)

// LeaveHandler is called once every entry below an expanded directory has been
// visited and the directory handle has been closed.
type LeaveHandler func(dir string, depth int)

type walkOptions struct {
	maxDepth int
	follow   bool
	onError  ErrorHandler
	onLeave  LeaveHandler
}

type WalkOption func(o *walkOptions)

// WithMaxDepth limits how many directory levels below the root are expanded.
// Entries at the maximum depth are still returned, they are just not
// descended into. A depth of 0 returns only the root.
func WithMaxDepth(depth int) WalkOption {
	return func(o *walkOptions) {
		o.maxDepth = depth
	}
}

// WithFollowLinks resolves symbolic links while walking, descending into
// linked directories. Directories are tracked by identity while they are open
// so that a link back to an ancestor is reported instead of looping forever.
func WithFollowLinks() WalkOption {
	return func(o *walkOptions) {
		o.follow = true
	}
}

// WithErrorHandler sets the function called for entries that are skipped
// because their attributes could not be read, their directory could not be
// opened, or they would introduce a cycle.
func WithErrorHandler(fn ErrorHandler) WalkOption {
	return func(o *walkOptions) {
		o.onError = fn
	}
}

// WithLeaveHandler sets the function called after a directory has been
// completely visited.
func WithLeaveHandler(fn LeaveHandler) WalkOption {
	return func(o *walkOptions) {
		o.onLeave = fn
	}
}

// frame is a directory that is currently open on the traversal path.
type frame struct {
	children *Children
	depth    int
	key      string
}

// Walker lazily walks a directory tree depth first, returning each directory
// before its contents. It holds an open handle for every directory on the
// path between the root and the current entry, all of which are released when
// the walk ends, fails, or is closed.
//
// A Walker must only be consumed by a single goroutine.
type Walker struct {
	root  string
	opts  walkOptions
	stack []*frame

	rootAttrs Attrs
	started   bool
	done      bool

	path  string
	attrs Attrs
	depth int
	err   error
}

// Walk returns a walker for the tree rooted at the given directory. The root
// is validated immediately; nothing below it is read until Next is called.
func Walk(root string, opts ...WalkOption) (*Walker, error) {
	o := walkOptions{maxDepth: Unbounded}
	for _, opt := range opts {
		opt(&o)
	}
	a, err := requireDirectory(root)
	if err != nil {
		return nil, err
	}
	return &Walker{root: root, opts: o, rootAttrs: a}, nil
}

// Next advances the walker to the next entry. It returns false when the tree
// has been exhausted or a directory could not be read, in which case Err
// returns the traversal error.
func (w *Walker) Next() bool {
	if w.done {
		return false
	}
	if !w.started {
		w.started = true
		w.path, w.attrs, w.depth = w.root, w.rootAttrs, 0
		if w.expandable(0) {
			if err := w.push(w.root, 0, w.rootAttrs); err != nil {
				w.fail(err)
				return false
			}
		}
		return true
	}

	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]
		if !top.children.Next() {
			if err := top.children.Err(); err != nil {
				w.fail(err)
				return false
			}
			w.pop()
			continue
		}

		p := top.children.Path()
		a, err := ReadAttributes(p, w.opts.follow)
		if err != nil {
			w.skip(p, err)
			continue
		}

		depth := top.depth + 1
		if a.IsDir() && w.expandable(depth) {
			if w.opts.follow {
				if ancestor, ok := w.onPath(a.key); ok {
					w.skip(p, newCycleError(p, ancestor))
					continue
				}
			}
			if err := w.push(p, depth, a); err != nil {
				// The directory itself was readable, so it is still returned
				// even though its contents cannot be.
				w.skip(p, err)
			}
		}

		w.path, w.attrs, w.depth = p, a, depth
		return true
	}

	w.done = true
	w.path, w.attrs = "", Attrs{}
	return false
}

// Path returns the path of the current entry. The root is returned with the
// exact value that was passed to Walk, every other entry is joined onto it.
func (w *Walker) Path() string {
	return w.path
}

// Attrs returns the attributes read for the current entry.
func (w *Walker) Attrs() Attrs {
	return w.attrs
}

// Depth returns the number of levels between the root and the current entry.
func (w *Walker) Depth() int {
	return w.depth
}

// Err returns the traversal error that ended the walk early, if any.
func (w *Walker) Err() error {
	return w.err
}

// Close releases every directory handle still held by the walker. It is safe
// to call at any time, and more than once.
func (w *Walker) Close() error {
	w.done = true
	var err error
	for i := len(w.stack) - 1; i >= 0; i-- {
		if cerr := w.stack[i].children.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	w.stack = nil
	return err
}

// Seq returns the remaining entries as an iterator. Breaking out of the loop
// closes the walker. A traversal failure is yielded as the final element.
func (w *Walker) Seq() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer w.Close()
		for w.Next() {
			if !yield(w.path, nil) {
				return
			}
		}
		if w.err != nil {
			yield("", w.err)
		}
	}
}

func (w *Walker) expandable(depth int) bool {
	return w.opts.maxDepth < 0 || depth < w.opts.maxDepth
}

func (w *Walker) push(dir string, depth int, a Attrs) error {
	c, err := openChildren(dir)
	if err != nil {
		return err
	}
	w.stack = append(w.stack, &frame{children: c, depth: depth, key: a.key})
	return nil
}

// pop closes the directory on top of the stack before notifying the leave
// handler, so the handler is free to remove it.
func (w *Walker) pop() {
	top := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	_ = top.children.Close()
	if w.opts.onLeave != nil {
		w.opts.onLeave(top.children.Dir(), top.depth)
	}
}

// onPath returns the directory on the active traversal path with the given
// identity, if there is one.
func (w *Walker) onPath(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	for _, f := range w.stack {
		if f.key == key {
			return f.children.Dir(), true
		}
	}
	return "", false
}

func (w *Walker) skip(p string, err error) {
	var fserr *Error
	if !errors.As(err, &fserr) {
		err = newPathError(ErrCodeTraversal, p, err)
	}
	metrics.WalkEntriesSkipped.Inc()
	if w.opts.onError != nil {
		w.opts.onError(p, err)
		return
	}
	errorLogger(p, err).Debug("skipping entry that could not be visited")
}

func (w *Walker) fail(err error) {
	w.err = err
	w.path, w.attrs = "", Attrs{}
	_ = w.Close()
}

// Filter walks the tree rooted at the given directory and returns every entry
// for which the predicate returns true, including the root itself. Unlike
// Walk the whole tree is read before returning; if the walk fails no partial
// result is returned.
func Filter(root string, predicate func(path string) bool, maxDepth int) ([]string, error) {
	w, err := Walk(root, WithMaxDepth(maxDepth))
	if err != nil {
		return nil, err
	}
	defer w.Close()

	var out []string
	for w.Next() {
		if predicate(w.Path()) {
			out = append(out, w.Path())
		}
	}
	if err := w.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

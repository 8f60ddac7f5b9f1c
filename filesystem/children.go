package filesystem

import (
	"iter"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/karrick/godirwalk"
)

// Children is a lazy, single level listing of a directory. Entries are read
// from the operating system as Next is called, so a failure while reading the
// directory is only surfaced once the listing reaches it.
//
// The underlying directory handle is held open until the listing is exhausted,
// fails, or Close is called. Callers that stop early must call Close.
type Children struct {
	dir     string
	scanner dirScanner
	name    string
	err     error
	closed  bool
}

// dirScanner reads the entries of a single directory. Err and Close both
// release the directory handle.
type dirScanner interface {
	Scan() bool
	Name() string
	Err() error
	Close() error
}

// newScanner opens a directory for reading.
var newScanner = func(dir string) (dirScanner, error) {
	s, err := godirwalk.NewScanner(dir)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ChildrenOf opens the given directory for listing. The "." and ".." entries
// are never returned. An error is returned immediately if the path does not
// exist or is not a directory.
func ChildrenOf(dir string) (*Children, error) {
	if _, err := requireDirectory(dir); err != nil {
		return nil, err
	}
	return openChildren(dir)
}

func openChildren(dir string) (*Children, error) {
	s, err := newScanner(dir)
	if err != nil {
		if cerr := convertErrorType(err); IsErrorCode(cerr, ErrCodeNotExist) || IsErrorCode(cerr, ErrCodeNotDirectory) {
			return nil, cerr
		}
		return nil, newPathError(ErrCodeTraversal, dir, err)
	}
	return &Children{dir: dir, scanner: s}, nil
}

// Next advances to the next entry in the directory. It returns false once the
// directory has been fully read or an error occurred, at which point the
// directory handle has already been released.
func (c *Children) Next() bool {
	if c.closed {
		return false
	}
	if c.scanner.Scan() {
		c.name = c.scanner.Name()
		return true
	}
	// Err releases the directory handle held by the scanner.
	if err := c.scanner.Err(); err != nil {
		c.err = newPathError(ErrCodeTraversal, c.dir, err)
	}
	c.name = ""
	c.closed = true
	return false
}

// Name returns the base name of the current entry.
func (c *Children) Name() string {
	return c.name
}

// Path returns the current entry joined onto the directory being listed.
func (c *Children) Path() string {
	if c.name == "" {
		return ""
	}
	return filepath.Join(c.dir, c.name)
}

// Dir returns the directory being listed.
func (c *Children) Dir() string {
	return c.dir
}

// Err returns the error, if any, that stopped the listing early.
func (c *Children) Err() error {
	return c.err
}

// Close releases the directory handle. It is safe to call more than once and
// after the listing has been exhausted.
func (c *Children) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.name = ""
	if err := c.scanner.Close(); err != nil {
		return errors.WithStackIf(err)
	}
	return nil
}

// Seq returns the remaining entries as an iterator. Breaking out of the loop
// closes the listing. A traversal failure is yielded as the final element.
func (c *Children) Seq() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer c.Close()
		for c.Next() {
			if !yield(c.Path(), nil) {
				return
			}
		}
		if c.err != nil {
			yield("", c.err)
		}
	}
}

// Collect drains the listing into a slice. On failure no partial result is
// returned.
func (c *Children) Collect() ([]string, error) {
	defer c.Close()
	var out []string
	for c.Next() {
		out = append(out, c.Path())
	}
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

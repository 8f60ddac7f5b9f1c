package filesystem

import (
	"os"
	"path/filepath"
	"time"

	"emperror.dev/errors"
)

// Attrs is the basic set of attributes read for every entry visited during a
// traversal.
type Attrs struct {
	Name    string
	Size    int64
	Mode    os.FileMode
	ModTime time.Time

	// key identifies the underlying file independently of the path used to
	// reach it. Only populated when attributes were read following links.
	key string
}

// IsDir reports whether the entry is a directory. When attributes were read
// following symbolic links this is true for a link to a directory.
func (a Attrs) IsDir() bool {
	return a.Mode.IsDir()
}

// IsSymlink reports whether the entry itself is a symbolic link.
func (a Attrs) IsSymlink() bool {
	return a.Mode&os.ModeSymlink != 0
}

// IsRegular reports whether the entry is a regular file.
func (a Attrs) IsRegular() bool {
	return a.Mode.IsRegular()
}

// Key returns the identity of the file, or an empty string if none was
// resolved.
func (a Attrs) Key() string {
	return a.key
}

// ReadAttributes reads the basic attributes of the given path. If follow is
// true symbolic links are resolved and the identity key of the target is
// computed.
func ReadAttributes(p string, follow bool) (Attrs, error) {
	var st os.FileInfo
	var err error
	if follow {
		st, err = os.Stat(p)
	} else {
		st, err = os.Lstat(p)
	}
	if err != nil {
		return Attrs{}, convertErrorType(err)
	}
	a := Attrs{Name: st.Name(), Size: st.Size(), Mode: st.Mode(), ModTime: st.ModTime()}
	if follow {
		a.key = fileKey(p, st)
	}
	return a, nil
}

// Exists reports whether anything exists at the given path. A dangling
// symbolic link counts as existing.
func Exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

// IsDirectory reports whether the path exists and is a directory, following
// symbolic links.
func IsDirectory(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

// DeleteIfExists removes a single file, symbolic link or empty directory. The
// boolean return is false if nothing existed at the path. Directories are
// never removed recursively.
func DeleteIfExists(p string) (bool, error) {
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, errors.WithStackIf(err)
	}
	return true, nil
}

// requireDirectory returns an error unless the given path exists and is a
// directory.
func requireDirectory(p string) (Attrs, error) {
	a, err := ReadAttributes(p, true)
	if err != nil {
		if IsErrorCode(err, ErrCodeNotExist) {
			return Attrs{}, err
		}
		return Attrs{}, errors.WrapIf(err, "filesystem: failed to read attributes")
	}
	if !a.IsDir() {
		return Attrs{}, newPathError(ErrCodeNotDirectory, p, nil)
	}
	return a, nil
}

// OS exposes the host filesystem through the narrow set of operations other
// packages depend on.
type OS struct{}

func (OS) Exists(p string) bool {
	return Exists(p)
}

func (OS) IsDirectory(p string) bool {
	return IsDirectory(p)
}

func (OS) DeleteIfExists(p string) (bool, error) {
	return DeleteIfExists(p)
}

// canonicalKey resolves every symbolic link in the path and returns the
// absolute result.
func canonicalKey(p string) string {
	r, err := filepath.EvalSymlinks(p)
	if err != nil {
		return ""
	}
	if abs, err := filepath.Abs(r); err == nil {
		return abs
	}
	return r
}

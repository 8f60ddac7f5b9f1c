//go:build unix

package filesystem

import (
	iofs "io/fs"

	"emperror.dev/errors"
	"golang.org/x/sys/unix"
)

// convertErrorType converts raw path errors returned by the operating system
// into filesystem errors so that callers receive consistent error values. Any
// error that is not recognised is returned untouched.
func convertErrorType(err error) error {
	if err == nil {
		return nil
	}
	var pErr *iofs.PathError
	if !errors.As(err, &pErr) {
		return err
	}
	switch {
	// No such file or directory
	case errors.Is(pErr.Err, unix.ENOENT):
		return newPathError(ErrCodeNotExist, pErr.Path, err)
	// Not a directory
	case errors.Is(pErr.Err, unix.ENOTDIR):
		return newPathError(ErrCodeNotDirectory, pErr.Path, err)
	// Too many levels of symbolic links
	case errors.Is(pErr.Err, unix.ELOOP):
		return newCycleError(pErr.Path, "")
	}
	return err
}

// isDirectoryNotEmpty reports whether a removal failed only because the
// directory still has children in it.
func isDirectoryNotEmpty(err error) bool {
	return errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST)
}

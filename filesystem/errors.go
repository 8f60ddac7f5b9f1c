package filesystem

import (
	"fmt"
	"os"

	"emperror.dev/errors"
	"github.com/apex/log"
)

type ErrorCode string

const (
	ErrCodeNotExist     ErrorCode = "E_NOTEXIST"
	ErrCodeNotDirectory ErrorCode = "E_NOTDIR"
	ErrCodeTraversal    ErrorCode = "E_TRAVERSAL"
	ErrCodeCycle        ErrorCode = "E_CYCLE"
	ErrCodeBadPattern   ErrorCode = "E_BADPATTERN"
	ErrCodeUnknownError ErrorCode = "E_UNKNOWN"
)

// Error is the error type returned for every failure the filesystem package
// reports. Callers should inspect it with IsErrorCode or one of the Is*
// helpers rather than comparing messages.
type Error struct {
	code ErrorCode
	// The path that was being operated on when the error occurred.
	path string
	// For a cycle, the directory already open on the active path that the
	// offending entry resolves to.
	ancestor string
	err      error
}

// newFilesystemError returns a new error instance with a stack trace
// attached.
func newFilesystemError(code ErrorCode, err error) error {
	return errors.WithStackDepth(&Error{code: code, err: err}, 1)
}

// newPathError returns an error with the given code that is tied to a
// specific path on the disk.
func newPathError(code ErrorCode, path string, err error) error {
	return errors.WithStackDepth(&Error{code: code, path: path, err: err}, 1)
}

// newCycleError is reported when following symbolic links leads back into a
// directory that is already open on the current traversal path.
func newCycleError(path string, ancestor string) error {
	return errors.WithStackDepth(&Error{code: ErrCodeCycle, path: path, ancestor: ancestor}, 1)
}

// Code returns the ErrorCode for this specific error instance.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Path returns the path the error is associated with, if any.
func (e *Error) Path() string {
	return e.path
}

// Error returns a human-readable error string to identify the Error by.
func (e *Error) Error() string {
	switch e.code {
	case ErrCodeNotExist:
		return fmt.Sprintf("filesystem: path [%s] does not exist", e.path)
	case ErrCodeNotDirectory:
		return fmt.Sprintf("filesystem: path [%s] is not a directory", e.path)
	case ErrCodeTraversal:
		r := "<nil>"
		if e.err != nil {
			r = e.err.Error()
		}
		return fmt.Sprintf("filesystem: failed to traverse [%s]: %s", e.path, r)
	case ErrCodeCycle:
		if e.ancestor == "" {
			return fmt.Sprintf("filesystem: file system loop detected at [%s]", e.path)
		}
		return fmt.Sprintf("filesystem: file system loop detected at [%s], resolves to ancestor [%s]", e.path, e.ancestor)
	case ErrCodeBadPattern:
		return "filesystem: invalid glob pattern: " + e.err.Error()
	}
	if e.err == nil {
		return "filesystem: unhandled error type"
	}
	return "filesystem: an error occurred: " + e.err.Error()
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error {
	return e.err
}

// Is allows a not-exist error to be matched against os.ErrNotExist so callers
// that only know about the standard library still behave correctly.
func (e *Error) Is(target error) bool {
	return e.code == ErrCodeNotExist && target == os.ErrNotExist
}

// IsErrorCode checks if "err" is a filesystem Error type. If so, it will then
// drop in and check that the error code is the same as the provided ErrorCode
// passed in "code". A cycle is a specialised traversal failure, so it also
// matches ErrCodeTraversal.
func IsErrorCode(err error, code ErrorCode) bool {
	var fserr *Error
	if errors.As(err, &fserr) {
		if fserr.code == code {
			return true
		}
		return code == ErrCodeTraversal && fserr.code == ErrCodeCycle
	}
	return false
}

// IsNotFound reports whether the error indicates a missing path.
func IsNotFound(err error) bool {
	return IsErrorCode(err, ErrCodeNotExist)
}

// IsNotDirectory reports whether a directory was required but something else
// was found.
func IsNotDirectory(err error) bool {
	return IsErrorCode(err, ErrCodeNotDirectory)
}

// IsTraversalError reports whether the error was raised while advancing a
// traversal. This includes cycle errors.
func IsTraversalError(err error) bool {
	return IsErrorCode(err, ErrCodeTraversal)
}

// IsCycleError reports whether the error is a symbolic link loop.
func IsCycleError(err error) bool {
	return IsErrorCode(err, ErrCodeCycle)
}

// Generates an error logger instance with some basic information.
func errorLogger(path string, err error) *log.Entry {
	return log.WithField("subsystem", "filesystem").WithField("path", path).WithField("error", err)
}

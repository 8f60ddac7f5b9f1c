//go:build !unix

package filesystem

import (
	"os"
	"strings"

	"emperror.dev/errors"
)

func convertErrorType(err error) error {
	if err == nil {
		return nil
	}
	var pErr *os.PathError
	if errors.As(err, &pErr) && errors.Is(pErr.Err, os.ErrNotExist) {
		return newPathError(ErrCodeNotExist, pErr.Path, err)
	}
	return err
}

func isDirectoryNotEmpty(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not empty")
}

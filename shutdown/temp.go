package shutdown

import (
	"os"

	"emperror.dev/errors"
)

// TempDir creates a new temporary directory and registers it for deletion on
// shutdown. Anything created inside of it should be registered as well, or the
// directory will not be empty when the registry tries to remove it.
func (r *Registry) TempDir(dir, pattern string) (string, error) {
	name, err := os.MkdirTemp(dir, pattern)
	if err != nil {
		return "", errors.Wrap(err, "shutdown: failed to create temporary directory")
	}
	if err := r.Register(name); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

// TempFile creates a new temporary file, opened for reading and writing, and
// registers it for deletion on shutdown. The caller is responsible for closing
// the returned file.
func (r *Registry) TempFile(dir, pattern string) (*os.File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, errors.Wrap(err, "shutdown: failed to create temporary file")
	}
	if err := r.Register(f.Name()); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}
	return f, nil
}

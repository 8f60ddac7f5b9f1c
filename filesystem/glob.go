package filesystem

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchAll is the glob pattern that matches every name.
const MatchAll = "*"

// ValidatePattern returns an error if the glob pattern is malformed.
func ValidatePattern(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return newFilesystemError(ErrCodeBadPattern, doublestar.ErrBadPattern)
	}
	return nil
}

// MatchesGlob reports whether the path matches a shell style glob pattern. A
// pattern without a separator is matched against the base name of the path
// only, so "*.tmp" matches "a/b/c.tmp". A pattern with a separator is matched
// against the whole path, with "**" matching any number of directories.
func MatchesGlob(p string, pattern string) (bool, error) {
	name := filepath.ToSlash(p)
	if !strings.Contains(pattern, "/") {
		name = path.Base(name)
	}
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false, newFilesystemError(ErrCodeBadPattern, err)
	}
	return ok, nil
}

// HasChild reports whether the directory directly contains an entry matching
// the glob pattern. Nested directories are not searched.
func HasChild(dir string, pattern string) (bool, error) {
	p, err := firstChild(dir, pattern)
	if err != nil {
		return false, err
	}
	return p != "", nil
}

// FindByGlob returns the first entry directly inside the directory that
// matches the glob pattern, or a not-exist error if nothing matches.
func FindByGlob(dir string, pattern string) (string, error) {
	p, err := firstChild(dir, pattern)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", newPathError(ErrCodeNotExist, filepath.Join(dir, pattern), nil)
	}
	return p, nil
}

// FilterByGlob returns the paths that match the glob pattern, preserving their
// order.
func FilterByGlob(paths []string, pattern string) ([]string, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	var out []string
	for _, p := range paths {
		if ok, _ := MatchesGlob(p, pattern); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func firstChild(dir string, pattern string) (string, error) {
	if err := ValidatePattern(pattern); err != nil {
		return "", err
	}
	c, err := ChildrenOf(dir)
	if err != nil {
		return "", err
	}
	defer c.Close()
	for c.Next() {
		if ok, _ := MatchesGlob(c.Name(), pattern); ok {
			return c.Path(), nil
		}
	}
	return "", c.Err()
}

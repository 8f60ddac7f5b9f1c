package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesGlob(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"a/b/c.tmp", "*.tmp", true},
		{"c.tmp", "*.tmp", true},
		{"c.txt", "*.tmp", false},
		{"a/b/c.tmp", "a/**/*.tmp", true},
		{"a/c.tmp", "a/**/*.tmp", true},
		{"b/c.tmp", "a/**/*.tmp", false},
		{"a/b/c.tmp", "a/*.tmp", false},
		{"x/file.log", "*", true},
		{"file.1", "file.?", true},
		{"file.b", "file.[ab]", true},
		{"file.c", "file.[ab]", false},
		{"a.go", "*.{go,mod}", true},
	}
	for _, tc := range tests {
		t.Run(tc.pattern+" "+tc.path, func(t *testing.T) {
			ok, err := MatchesGlob(tc.path, tc.pattern)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestValidatePattern(t *testing.T) {
	assert.NoError(t, ValidatePattern(MatchAll))
	assert.NoError(t, ValidatePattern("**/*.tmp"))

	err := ValidatePattern("[")
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeBadPattern))
}

func TestFindByGlob(t *testing.T) {
	root := newTree()
	defer os.RemoveAll(root)

	t.Run("returns a matching child", func(t *testing.T) {
		p, err := FindByGlob(root, "*.txt")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "c.txt"), p)
	})

	t.Run("does not search nested directories", func(t *testing.T) {
		_, err := FindByGlob(root, "b1.txt")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("returns an error for a bad pattern", func(t *testing.T) {
		_, err := FindByGlob(root, "[")
		assert.True(t, IsErrorCode(err, ErrCodeBadPattern))
	})

	t.Run("returns an error for a missing directory", func(t *testing.T) {
		_, err := FindByGlob(filepath.Join(root, "missing"), "*")
		assert.True(t, IsNotFound(err))
	})
}

func TestHasChild(t *testing.T) {
	root := newTree()
	defer os.RemoveAll(root)

	ok, err := HasChild(root, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasChild(root, "*.tmp")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = HasChild(filepath.Join(root, "c.txt"), "*")
	assert.True(t, IsNotDirectory(err))
}

func TestFilterByGlob(t *testing.T) {
	out, err := FilterByGlob([]string{"a/x.tmp", "b.txt", "c.tmp"}, "*.tmp")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/x.tmp", "c.tmp"}, out)

	_, err = FilterByGlob([]string{"a"}, "[")
	assert.True(t, IsErrorCode(err, ErrCodeBadPattern))
}

package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	s, err := NewStore(filepath.Join(t.TempDir(), "profiles"))
	require.NoError(t, err)
	return s
}

func TestNewStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "profiles")

	s, err := NewStore(root)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(s.Root()))

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewStoreRequiresRoot(t *testing.T) {
	_, err := NewStore("  ")
	assert.Error(t, err)
}

func TestStoreEnsure(t *testing.T) {
	s := setupTestStore(t)

	path, created, err := s.Ensure("0123456789abcdef")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, filepath.Join(s.Root(), "0123456789abcdef"), path)
	assert.True(t, s.Exists("0123456789abcdef"))

	// second call finds the existing directory
	again, created, err := s.Ensure("0123456789abcdef")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, path, again)
}

func TestStoreEnsureKeepsContents(t *testing.T) {
	s := setupTestStore(t)

	path, _, err := s.Ensure("aaaa")
	require.NoError(t, err)

	marker := filepath.Join(path, "Local State")
	require.NoError(t, os.WriteFile(marker, []byte("{}"), 0644))

	_, _, err = s.Ensure("aaaa")
	require.NoError(t, err)

	_, err = os.Stat(marker)
	assert.NoError(t, err)
}

func TestStoreEnsureRejectsFile(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, os.WriteFile(s.Path("file"), []byte("x"), 0644))

	_, _, err := s.Ensure("file")
	assert.Error(t, err)
}

func TestStoreEnsureValidatesID(t *testing.T) {
	s := setupTestStore(t)

	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"dot", "."},
		{"parent", ".."},
		{"slash", "a/b"},
		{"backslash", `a\b`},
		{"null byte", "a\x00b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Ensure(tt.id)
			assert.Error(t, err)
		})
	}
}

func TestStoreList(t *testing.T) {
	s := setupTestStore(t)

	for _, id := range []string{"cccc", "aaaa", "bbbb"} {
		_, _, err := s.Ensure(id)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "stray.txt"), nil, 0644))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa", "bbbb", "cccc"}, ids)
}

func TestStorePathIsPure(t *testing.T) {
	s := setupTestStore(t)

	assert.Equal(t, filepath.Join(s.Root(), "abcd"), s.Path("abcd"))
	assert.False(t, s.Exists("abcd"))
}

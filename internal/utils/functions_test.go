package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
}

func TestResolveNameFree(t *testing.T) {
	dir := t.TempDir()
	name, err := ResolveName("file.tar.gz", dir)
	require.NoError(t, err)
	assert.Equal(t, "file.tar.gz", name)
}

func TestResolveNameCollisions(t *testing.T) {
	tests := []struct {
		desired  string
		existing []string
		want     string
	}{
		{"file.txt", []string{"file.txt"}, "file_1.txt"},
		{"file.txt", []string{"file.txt", "file_1.txt", "file_2.txt"}, "file_3.txt"},
		{"archive.tar.gz", []string{"archive.tar.gz"}, "archive.tar_1.gz"},
		{"README", []string{"README"}, "README_1"},
		{".bashrc", []string{".bashrc"}, ".bashrc_1"},
		{"file.txt", []string{"file.txt.metadl"}, "file_1.txt"},
		{"file.txt", []string{"file.txt", "file_1.txt.metadl"}, "file_2.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.desired, func(t *testing.T) {
			dir := t.TempDir()
			for _, name := range tt.existing {
				touch(t, dir, name)
			}
			got, err := ResolveName(tt.desired, dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveNameRepeatedNeverCollides(t *testing.T) {
	dir := t.TempDir()
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		name, err := ResolveName("data.bin", dir)
		require.NoError(t, err)
		assert.False(t, seen[name], "name %s returned twice", name)
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(statErr))
		seen[name] = true
		touch(t, dir, name)
	}
	assert.Len(t, seen, 10)
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	size, err := FileSize(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "five"), []byte("12345"), 0644))
	size, err = FileSize(filepath.Join(dir, "five"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), size)

	_, err = FileSize(dir)
	assert.Error(t, err)
}

func TestParseHeaderArgs(t *testing.T) {
	headers := ParseHeaderArgs([]string{"Authorization: Bearer abc", "X-Token:1:2", "broken"})
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer abc",
		"X-Token":       "1:2",
	}, headers)
}

package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlkit/pkg/fileutil"
)

func TestGetFileExtension(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/docs/page.html", want: "html"},
		{path: "/docs/archive.tar.gz", want: "gz"},
		{path: "/docs/page", want: ""},
		{path: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fileutil.GetFileExtension(tt.path), "path %q", tt.path)
	}
}

func TestEnsureDirCreatesNested(t *testing.T) {
	base := t.TempDir()

	require.Nil(t, fileutil.EnsureDir(base, "a", "b", "c"))

	info, err := os.Stat(filepath.Join(base, "a", "b", "c"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Idempotent on an existing directory.
	require.Nil(t, fileutil.EnsureDir(base, "a", "b", "c"))
}

func TestWriteFile(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")

	path, err := fileutil.WriteFile(base, "doc.md", []byte("content"))
	require.Nil(t, err)
	assert.Equal(t, filepath.Join(base, "doc.md"), path)

	read, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "content", string(read))
}

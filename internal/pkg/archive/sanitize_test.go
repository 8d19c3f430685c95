package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeArchivePath(t *testing.T) {
	cases := []struct {
		name        string
		basedir     string
		filepath    string
		expected    string
		expectedErr bool
	}{
		{
			name:     "absolute path",
			basedir:  "/workdir",
			filepath: "path/to/file",
			expected: "/workdir/path/to/file",
		},
		{
			name:     "relative to current path",
			basedir:  "./workdir",
			filepath: "path/to/file",
			expected: "workdir/path/to/file",
		},
		{
			name:     "filepath starts with '.'",
			basedir:  ".",
			filepath: "./path/to/file",
			expected: "path/to/file",
		},
		{
			name:     "non-tainted '..'",
			basedir:  "/workdir",
			filepath: "../workdir/path/to/file",
			expected: "/workdir/path/to/file",
		},
		{
			name:        "tainted '..'",
			basedir:     ".",
			filepath:    "../../../../../../../../../../../../etc/shadow",
			expectedErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SanitizeArchivePath(tc.basedir, tc.filepath)
			if tc.expectedErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestResolveInside(t *testing.T) {
	fs := afero.NewOsFs()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "configs/foo"), 0o755))
	require.NoError(t, os.Symlink("foo", filepath.Join(root, "configs/latest")))
	require.NoError(t, os.Symlink(".", filepath.Join(root, "self")))
	require.NoError(t, os.Symlink("loop", filepath.Join(root, "loop")))

	cases := []struct {
		name        string
		from        string
		path        string
		expected    string
		expectedErr bool
	}{
		{name: "plain path", from: root, path: "configs/foo", expected: filepath.Join(root, "configs/foo")},
		{name: "missing path", from: root, path: "configs/new/file", expected: filepath.Join(root, "configs/new/file")},
		{name: "symlink inside", from: root, path: "configs/latest/catalog.json", expected: filepath.Join(root, "configs/foo/catalog.json")},
		{name: "parent of a symlink is resolved physically", from: root, path: "self/self/configs", expected: filepath.Join(root, "configs")},
		{name: "relative to a subdirectory", from: filepath.Join(root, "configs"), path: "../configs/latest", expected: filepath.Join(root, "configs/foo")},
		{name: "dot dot after a symlink to the root", from: root, path: "self/..", expectedErr: true},
		{name: "dot dot", from: root, path: "../etc", expectedErr: true},
		{name: "absolute", from: root, path: "/etc", expectedErr: true},
		{name: "symlink loop", from: root, path: "loop/x", expectedErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveInside(fs, root, tc.from, tc.path)
			if tc.expectedErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

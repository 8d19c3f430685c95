// Package workspace owns the on-disk cache layout:
//
//	<root>/working-dir/<name>/<version>/manifest.json
//	<root>/working-dir/<name>/<version>/blobs/sha256/<hex>
//	<root>/working-dir/<name>/<version>/cache/
//
// The existence of blobs/sha256 and cache is the completion marker of the
// fetch and extract stages. Both are produced in a staging directory and
// renamed into place, so a marker never appears on partial success. The
// markers are advisory: concurrent runs against one working directory are
// not supported.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/openshift/operator-upgradepath/internal/pkg/consts"
)

const stagingPrefix = ".staging-"

// Layout resolves and queries cache paths below Root.
type Layout struct {
	Fs   afero.Fs
	Root string
}

func NewLayout(fs afero.Fs, root string) *Layout {
	return &Layout{Fs: fs, Root: root}
}

// WorkingDir is <root>/working-dir.
func (l *Layout) WorkingDir() string {
	return filepath.Join(l.Root, consts.WorkingDir)
}

// LogsDir is <root>/working-dir/logs.
func (l *Layout) LogsDir() string {
	return filepath.Join(l.WorkingDir(), consts.LogsDir)
}

func (l *Layout) CatalogDir(name, version string) string {
	return filepath.Join(l.WorkingDir(), name, version)
}

func (l *Layout) ManifestFile(name, version string) string {
	return filepath.Join(l.CatalogDir(name, version), consts.ManifestFile)
}

func (l *Layout) BlobsDir(name, version string) string {
	return filepath.Join(l.CatalogDir(name, version), consts.BlobsDir, consts.SHA256)
}

func (l *Layout) CacheDir(name, version string) string {
	return filepath.Join(l.CatalogDir(name, version), consts.CacheDir)
}

// BlobsComplete reports whether every blob of the catalog was fetched.
func (l *Layout) BlobsComplete(name, version string) bool {
	return l.isDir(l.BlobsDir(name, version))
}

// CacheComplete reports whether the catalog was fully extracted.
func (l *Layout) CacheComplete(name, version string) bool {
	return l.isDir(l.CacheDir(name, version))
}

func (l *Layout) isDir(path string) bool {
	ok, err := afero.DirExists(l.Fs, path)
	return err == nil && ok
}

// WriteManifest stores the raw manifest next to the catalog's blobs.
func (l *Layout) WriteManifest(name, version string, data []byte) error {
	path := l.ManifestFile(name, version)
	if err := l.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	return afero.WriteFile(l.Fs, path, data, 0o644)
}

// Stage returns a fresh staging directory that Commit renames to final.
// Leftovers of an earlier interrupted run are removed.
func (l *Layout) Stage(final string) (string, error) {
	parent := filepath.Dir(final)
	if err := l.Fs.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", parent, err)
	}
	staging := filepath.Join(parent, stagingPrefix+filepath.Base(final))
	if err := l.Fs.RemoveAll(staging); err != nil {
		return "", fmt.Errorf("clean %s: %w", staging, err)
	}
	if err := l.Fs.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", staging, err)
	}
	return staging, nil
}

// Commit publishes staging as final.
func (l *Layout) Commit(staging, final string) error {
	if err := l.Fs.Rename(staging, final); err != nil {
		return fmt.Errorf("commit %s: %w", final, err)
	}
	return nil
}

// Discard removes a staging directory after a failure.
func (l *Layout) Discard(staging string) {
	_ = l.Fs.RemoveAll(staging)
}

// Exists reports whether path exists on the layout's filesystem.
func (l *Layout) Exists(path string) bool {
	_, err := l.Fs.Stat(path)
	return !os.IsNotExist(err)
}

package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
	digest "github.com/opencontainers/go-digest"
	"github.com/spf13/afero"

	clog "github.com/openshift/operator-upgradepath/internal/pkg/log"
)

const (
	whiteoutPrefix = ".wh."
	whiteoutOpaque = ".wh..wh..opq"
)

type ExtractorInterface interface {
	ExtractLayers(blobDir, cacheDir string, layers []digest.Digest) error
}

// Extractor materializes gzip tar layer blobs into a merged tree. Symlinks
// are only created when Fs supports them.
type Extractor struct {
	Log clog.PluggableLoggerInterface
	Fs  afero.Fs
}

func NewExtractor(log clog.PluggableLoggerInterface, fs afero.Fs) *Extractor {
	return &Extractor{Log: log, Fs: fs}
}

// ExtractLayers applies the blobs named by layers, found in blobDir, to
// cacheDir in the given order. layers must be base layer first: a path
// written by a later layer replaces what earlier layers wrote, and
// whiteout entries remove lower content. Nothing is ever written outside
// cacheDir, including through symlinks extracted by earlier entries.
func (e *Extractor) ExtractLayers(blobDir, cacheDir string, layers []digest.Digest) error {
	if err := e.Fs.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache directory %s: %w", cacheDir, err)
	}
	for i, d := range layers {
		e.Log.Debug("extracting layer %d/%d %s", i+1, len(layers), d.Encoded())
		if err := e.extractLayer(filepath.Join(blobDir, d.Encoded()), cacheDir); err != nil {
			return &ExtractError{Layer: d, err: err}
		}
	}
	return nil
}

func (e *Extractor) extractLayer(blobPath, destDir string) error {
	f, err := e.Fs.Open(blobPath)
	if err != nil {
		return err
	}
	defer f.Close()

	tgz := archiver.NewTarGz()
	if err := tgz.Open(f, 0); err != nil {
		return err
	}
	defer tgz.Close()

	// paths written by this layer survive its own opaque whiteouts
	written := map[string]bool{}
	for {
		file, err := tgz.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("untar: Read() failed: %w", err)
		}
		hdr, ok := file.Header.(*tar.Header)
		if !ok {
			return fmt.Errorf("untar: unexpected header type %T", file.Header)
		}
		if err := e.apply(hdr, file, destDir, written); err != nil {
			return err
		}
	}
}

func (e *Extractor) apply(hdr *tar.Header, content io.Reader, destDir string, written map[string]bool) error {
	name := filepath.Clean(hdr.Name)
	if name == "." || name == string(os.PathSeparator) {
		return nil
	}
	base := filepath.Base(name)
	parent := filepath.Dir(name)

	switch {
	case base == whiteoutOpaque:
		return e.opaque(destDir, parent, written)
	case strings.HasPrefix(base, whiteoutPrefix):
		target, err := entryPath(e.Fs, destDir, filepath.Join(parent, strings.TrimPrefix(base, whiteoutPrefix)))
		if err != nil {
			return err
		}
		return e.Fs.RemoveAll(target)
	}

	filePath, err := entryPath(e.Fs, destDir, name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		if fi, err := lstat(e.Fs, filePath); err == nil && !fi.IsDir() {
			if err := e.Fs.Remove(filePath); err != nil {
				return err
			}
		}
		if err := e.Fs.MkdirAll(filePath, 0o755); err != nil {
			return fmt.Errorf("untar: Mkdir() failed: %w", err)
		}
	case tar.TypeReg:
		if err := e.Fs.RemoveAll(filePath); err != nil {
			return err
		}
		if err := writeFile(e.Fs, filePath, content, hdr.FileInfo().Mode().Perm()|0o600, hdr.Size); err != nil {
			return err
		}
	case tar.TypeSymlink:
		linker, ok := e.Fs.(afero.Linker)
		if !ok {
			e.Log.Debug("skipping symlink %s, the filesystem does not support links", hdr.Name)
			return nil
		}
		if _, err := resolveInside(e.Fs, destDir, filepath.Dir(filePath), hdr.Linkname); err != nil {
			e.Log.Debug("skipping symlink %s -> %s pointing outside the cache", hdr.Name, hdr.Linkname)
			return nil
		}
		if err := e.Fs.RemoveAll(filePath); err != nil {
			return err
		}
		if err := e.Fs.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return err
		}
		if err := linker.SymlinkIfPossible(hdr.Linkname, filePath); err != nil {
			return err
		}
	case tar.TypeLink:
		target, err := SanitizeArchivePath(destDir, hdr.Linkname)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(filepath.Clean(destDir), target)
		if err != nil {
			return err
		}
		if target, err = resolveInside(e.Fs, destDir, destDir, rel); err != nil {
			return err
		}
		if err := e.Fs.RemoveAll(filePath); err != nil {
			return err
		}
		if err := copyFile(e.Fs, target, filePath); err != nil {
			return err
		}
	default:
		e.Log.Trace("ignoring %s of type %q", hdr.Name, hdr.Typeflag)
		return nil
	}
	markWritten(written, destDir, filePath)
	return nil
}

// markWritten records filePath and its parents up to destDir.
func markWritten(written map[string]bool, destDir, filePath string) {
	root := filepath.Clean(destDir)
	for p := filePath; p != root && p != "." && p != string(os.PathSeparator); p = filepath.Dir(p) {
		written[p] = true
	}
}

// opaque clears what lower layers put in dir.
func (e *Extractor) opaque(destDir, dir string, written map[string]bool) error {
	dirPath, err := resolveInside(e.Fs, destDir, destDir, dir)
	if err != nil {
		return err
	}
	entries, err := afero.ReadDir(e.Fs, dirPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		p := filepath.Join(dirPath, entry.Name())
		if written[p] {
			continue
		}
		if err := e.Fs.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}

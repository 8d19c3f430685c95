package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// maxLinkHops bounds symlink resolution the way ELOOP does.
const maxLinkHops = 40

// SanitizeArchivePath checks for filepath traversal attacks when extracting archives.
// see https://github.com/securego/gosec/issues/324#issuecomment-935927967
func SanitizeArchivePath(dir, filePath string) (string, error) {
	v := filepath.Join(dir, filePath)
	// use absolute paths otherwise `.` needs special treatment after Clean
	absV, err := filepath.Abs(v)
	if err != nil {
		return "", fmt.Errorf("get absolute path for %q: %w", v, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("get absolute path for %q: %w", dir, err)
	}
	if strings.HasPrefix(absV, absDir+string(os.PathSeparator)) {
		return v, nil
	}
	return "", fmt.Errorf("content filepath is tainted: %s", v)
}

// entryPath maps an archive entry name to where it lands under dir once
// the symlinks already extracted into its parents are followed. The last
// component is not followed.
func entryPath(fsys afero.Fs, dir, name string) (string, error) {
	p, err := SanitizeArchivePath(dir, name)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(filepath.Clean(dir), p)
	if err != nil {
		return "", err
	}
	parent, err := resolveInside(fsys, dir, dir, filepath.Dir(rel))
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, filepath.Base(rel)), nil
}

// resolveInside walks path from the directory from, one component at a
// time, following the symlinks present in fsys, and returns the location
// it names. It fails as soon as a step leaves dir. from must be dir or a
// resolved directory below it.
func resolveInside(fsys afero.Fs, dir, from, path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("content filepath is tainted: %s", path)
	}
	root := filepath.Clean(dir)
	lstater, canLstat := fsys.(afero.Lstater)
	reader, canRead := fsys.(afero.LinkReader)

	cur := filepath.Clean(from)
	pending := strings.Split(filepath.ToSlash(path), "/")
	for hops := 0; len(pending) > 0; {
		comp := pending[0]
		pending = pending[1:]
		switch comp {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
		default:
			cur = filepath.Join(cur, comp)
		}
		if !within(root, cur) {
			return "", fmt.Errorf("content filepath is tainted: %s", path)
		}
		if !canLstat || !canRead {
			continue
		}
		fi, _, err := lstater.LstatIfPossible(cur)
		if err != nil || fi.Mode()&os.ModeSymlink == 0 {
			continue
		}
		if hops++; hops > maxLinkHops {
			return "", fmt.Errorf("too many levels of symbolic links: %s", path)
		}
		target, err := reader.ReadlinkIfPossible(cur)
		if err != nil {
			return "", err
		}
		if filepath.IsAbs(target) {
			return "", fmt.Errorf("content filepath is tainted: %s -> %s", cur, target)
		}
		cur = filepath.Dir(cur)
		pending = append(strings.Split(filepath.ToSlash(target), "/"), pending...)
	}
	return cur, nil
}

func within(root, p string) bool {
	return p == root || strings.HasPrefix(p, root+string(os.PathSeparator))
}

func lstat(fsys afero.Fs, name string) (os.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(name)
		return fi, err
	}
	return fsys.Stat(name)
}

// writeFile copies size bytes from a reader to a new file at filePath.
func writeFile(fsys afero.Fs, filePath string, reader io.Reader, perm os.FileMode, size int64) error {
	if err := fsys.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("unable to create parent directory for %s: %w", filePath, err)
	}

	f, err := fsys.OpenFile(filePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("unable to create file %s: %w", filePath, err)
	}
	defer f.Close()

	// copy contents in chunks to avoid gosec:G110 decompression bomb.
	const maxChunkSize = 2048
	for size > 0 {
		n, err := io.CopyN(f, reader, maxChunkSize)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("error copying file %s: %w", filePath, err)
		}
		size -= n
	}
	return nil
}

// copyFile materializes a hard link as an independent copy.
func copyFile(fsys afero.Fs, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("hard link to directory %s", src)
	}
	return writeFile(fsys, dst, in, fi.Mode().Perm(), fi.Size())
}

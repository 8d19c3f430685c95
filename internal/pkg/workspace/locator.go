package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// NotFoundError reports a directory or entity expected in a catalog.
type NotFoundError struct {
	What string
	In   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found in %s", e.What, e.In)
}

func (e *NotFoundError) Is(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

var errFound = errors.New("found")

// FindDir returns the first directory under root named target, walking
// depth first in lexical order.
func FindDir(fsys afero.Fs, root, target string) (string, error) {
	var found string
	err := afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != root && filepath.Base(path) == target {
			found = path
			return errFound
		}
		return nil
	})
	switch {
	case errors.Is(err, errFound):
		return found, nil
	case err != nil:
		return "", fmt.Errorf("walk %s: %w", root, err)
	default:
		return "", &NotFoundError{What: "directory " + target, In: root}
	}
}

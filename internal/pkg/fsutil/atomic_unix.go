//go:build !windows

package fsutil

import (
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := renameio.TempFile("", path)
	if err != nil {
		return err
	}
	defer f.Cleanup()

	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Chmod(perm); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}

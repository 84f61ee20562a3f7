//go:build windows

package fsutil

import (
	"os"
	"path/filepath"
)

// WriteFile replaces path with data through a temp file in the same directory.
// renameio does not build on Windows; os.Rename maps to MoveFileEx with
// MOVEFILE_REPLACE_EXISTING, which is as close as the platform gets.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

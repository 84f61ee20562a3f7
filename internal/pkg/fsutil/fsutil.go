package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/djherbis/times"
	"github.com/schollz/progressbar/v3"
)

// CopyPair is one source/destination pair for CopyAll.
type CopyPair struct {
	Src string
	Dst string
}

// CopyFile copies src to dst, creating parent directories. Permission bits and
// access/modification times follow the source.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	ts := times.Get(info)
	return os.Chtimes(dst, ts.AccessTime(), ts.ModTime())
}

// MoveFile renames src to dst, falling back to copy and remove when the rename
// crosses volumes.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// CopyAll copies every pair and draws a progress bar on w. It stops at the
// first failure and returns how many files were copied.
func CopyAll(w io.Writer, pairs []CopyPair, desc string) (int, error) {
	if len(pairs) == 0 {
		return 0, nil
	}

	bar := progressbar.NewOptions(len(pairs),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	copied := 0
	for _, p := range pairs {
		if err := CopyFile(p.Src, p.Dst); err != nil {
			return copied, fmt.Errorf("failed to copy %s: %w", p.Src, err)
		}
		copied++
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	return copied, nil
}

// FindUp returns the nearest directory at or above start that contains name.
func FindUp(start, name string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found above %s: %w", name, start, os.ErrNotExist)
		}
		dir = parent
	}
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsFile reports whether path is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// RemoveIfExists removes path and ignores a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

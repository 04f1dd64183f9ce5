// Package ioutils provides file system utilities for blastdbget.
//
// This package contains functions for:
//   - File copying and moving
//   - Scratch directory management
//   - Existence checks and best-effort removal
//   - Directory creation
//   - tar.gz extraction
package ioutils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// CopyFile copies a file from source to destination.
//
// The destination file is created with mode 0644 if it doesn't exist,
// or truncated if it does. The source file must exist and be readable.
//
// Example:
//
//	err := CopyFile("/data/nr.00.tar.gz", "/data/.scratch-123/nr.00.tar.gz")
func CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		return err
	}
	return destFile.Close()
}

// MoveFile renames src to dst, falling back to copy-and-delete when the two
// paths are on different file systems.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	info, statErr := os.Stat(src)
	if statErr != nil {
		return statErr
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("move %s across devices: not a regular file: %w", src, err)
	}

	if err := CopyFile(src, dst); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// RemoveFile deletes path if it exists. A missing file is not an error.
func RemoveFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveDir deletes dir and everything under it, ignoring errors.
func RemoveDir(dir string) {
	if dir == "" {
		return
	}
	_ = os.RemoveAll(dir)
}

// ScratchDir creates a fresh, uniquely named directory under parent.
// An empty parent means the system temporary directory.
//
// Example:
//
//	tmp, err := ScratchDir("/data/blastdb", ".download-*")
//	if err != nil {
//	    return err
//	}
//	defer RemoveDir(tmp)
func ScratchDir(parent, pattern string) (string, error) {
	if parent != "" {
		if err := EnsureDir(parent); err != nil {
			return "", err
		}
	}
	return os.MkdirTemp(parent, pattern)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// EnsureDirRetry is EnsureDir with up to tries attempts spaced by pause.
// Useful on network file systems that briefly refuse directory creation.
func EnsureDirRetry(path string, tries int, pause time.Duration) error {
	var err error
	for i := 0; i < tries || i == 0; i++ {
		if err = EnsureDir(path); err == nil {
			return nil
		}
		if i < tries-1 {
			time.Sleep(pause)
		}
	}
	return fmt.Errorf("create %s: %w", path, err)
}

// MoveNoClobber moves every entry of srcDir into dstDir, leaving any entry
// whose name already exists in dstDir untouched. It returns the names that
// were moved and the names that were skipped.
//
// Example:
//
//	moved, skipped, err := MoveNoClobber(scratch, "/data/blastdb")
func MoveNoClobber(srcDir, dstDir string) (moved, skipped []string, err error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, nil, err
	}

	for _, e := range entries {
		src := filepath.Join(srcDir, e.Name())
		dst := filepath.Join(dstDir, e.Name())

		if Exists(dst) {
			skipped = append(skipped, e.Name())
			continue
		}
		if err := MoveFile(src, dst); err != nil {
			return moved, skipped, fmt.Errorf("move %s: %w", e.Name(), err)
		}
		moved = append(moved, e.Name())
	}
	return moved, skipped, nil
}

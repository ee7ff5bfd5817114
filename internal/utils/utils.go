package utils

import (
	"os"
	"path/filepath"
	"strings"
)

const dirMode = 0o755

// EnsureDir creates a directory and its parents; an existing directory is fine
func EnsureDir(dirPath string) error {
	return os.MkdirAll(dirPath, dirMode)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// FileSize returns the size of a regular file, or 0 when it cannot be read
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

// Extension returns the lower-cased extension of a path without the dot
func Extension(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// AbsPath returns the absolute form of a path, falling back to the path itself
func AbsPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

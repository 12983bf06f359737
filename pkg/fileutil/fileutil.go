package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ubtue/ztsharvest/pkg/failure"
)

// GetFileExtension extracts the file extension from a path, or empty string if none
func GetFileExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	// Remove the leading dot
	return strings.TrimPrefix(ext, ".")
}

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	assetsDir := filepath.Join(targetPath...)
	if err := os.MkdirAll(assetsDir, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}

// TruncateAndWrite truncates path and writes content to it, matching the
// "truncate then write" update strategy used for files that are rewritten
// after every processed item (progress files, fingerprint sidecars).
// ENOSPC and other write failures are reported retryable so a caller may
// choose to pause and retry the write rather than lose progress.
func TruncateAndWrite(path string, content []byte) failure.ClassifiedError {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return &FileError{
			Message:   fmt.Sprintf("opening %s: %v", path, err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	defer f.Close()

	if _, err := f.Write(content); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("writing %s: %v", path, err),
			Retryable: true,
			Cause:     ErrCauseWriteError,
		}
	}
	return nil
}

// ReadIfExists reads path's content, returning (nil, nil) if the file does
// not exist yet, which is the normal state for a first run.
func ReadIfExists(path string) ([]byte, failure.ClassifiedError) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &FileError{
			Message:   fmt.Sprintf("reading %s: %v", path, err),
			Retryable: false,
			Cause:     ErrCauseReadError,
		}
	}
	return content, nil
}

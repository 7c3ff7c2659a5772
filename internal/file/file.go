package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const appDirPerm os.FileMode = 0o750

// EnsureDir creates the directory if it does not exist.
func EnsureDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("empty dir path")
	}
	if err := os.MkdirAll(dirPath, appDirPerm); err != nil { //nolint:gosec // app-owned data dir
		return fmt.Errorf("ensure dir: %w", err)
	}
	return nil
}

// WriteJSONAtomic marshals v and atomically replaces filename with the result.
func WriteJSONAtomic(filename string, v any) error {
	_, err := writeAtomic(filename, func(w io.Writer) (int64, error) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return 0, fmt.Errorf("encode json: %w", err)
		}
		return 0, nil
	})
	return err
}

// CopyAtomic streams reader into filename atomically and returns the number
// of bytes written.
func CopyAtomic(filename string, reader io.Reader) (int64, error) {
	return writeAtomic(filename, func(w io.Writer) (int64, error) {
		n, err := io.Copy(w, reader)
		if err != nil {
			return n, fmt.Errorf("copy to temp: %w", err)
		}
		return n, nil
	})
}

// writeAtomic writes through a temp file in the destination directory and
// renames it over filename once the data is synced.
func writeAtomic(filename string, fill func(io.Writer) (int64, error)) (int64, error) {
	if filename == "" {
		return 0, errors.New("empty filename")
	}
	dir := filepath.Dir(filename)
	if err := EnsureDir(dir); err != nil {
		return 0, err
	}
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	tmpName := tempFile.Name()
	abort := func(cause error) (int64, error) {
		_ = tempFile.Close()
		_ = os.Remove(tmpName)
		return 0, cause
	}

	n, err := fill(tempFile)
	if err != nil {
		return abort(err)
	}
	if err := tempFile.Sync(); err != nil {
		return abort(fmt.Errorf("sync temp: %w", err))
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("close temp: %w", err)
	}
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(filename); err == nil {
		_ = os.Remove(filename)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("rename temp: %w", err)
	}
	return n, nil
}

// RemoveAll deletes path and everything below it. A missing path is not an error.
func RemoveAll(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

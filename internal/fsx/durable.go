// Package fsx holds small filesystem helpers shared by the store, the
// vector index, the embedding cache, and the model downloader: the durable
// replace pattern (write to a sibling .tmp file, fsync, rename over the
// target) so a crash or cancellation never leaves a reader-visible partial
// file.
package fsx

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileDurable writes data to path using the durable replace pattern.
func WriteFileDurable(path string, data []byte, perm os.FileMode) error {
	return WriteDurable(path, perm, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// WriteDurable opens a temp file beside path, lets write fill it, fsyncs,
// and renames it over path. write must not retain f past its call.
func WriteDurable(path string, perm os.FileMode, write func(f *os.File) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if err = write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync %s: %w", tmpPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, path, err)
	}
	return nil
}

// Package writer persists files produced outside the database, such as table
// exports, using temp + atomic rename.
package writer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// WriteFileAtomic streams write's output to path. Readers of path see either the
// previous content or the complete new content, never a partial file.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}

	// Atomic replace
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp → %s: %w", path, err)
	}
	committed = true

	if info, err := os.Stat(path); err == nil {
		slog.Info("File saved successfully",
			slog.String("path", path),
			slog.Int64("bytes", info.Size()),
		)
	}
	return nil
}

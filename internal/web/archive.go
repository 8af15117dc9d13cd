// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// ZipDir writes every regular file under dir into a zip archive at dest,
// using slash-separated paths relative to dir. The archive is written to a
// temporary name and renamed into place.
func ZipDir(dir, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".archive-*.zip")
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := zip.NewWriter(tmp)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})
	if err != nil {
		zw.Close()
		tmp.Close()
		return fmt.Errorf("archiving %s: %w", dir, err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finishing archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// CleanOldArchives removes zip files in dir last modified more than
// retention ago and returns how many were removed.
func CleanOldArchives(dir string, retention time.Duration, logger *log.Logger) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-retention)
	cleaned := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(f); err != nil {
			logger.Warn("removing archive", "path", f, "err", err)
			continue
		}
		cleaned++
	}

	if cleaned > 0 {
		logger.Info("cleaned up old archives", "count", cleaned)
	}
	return cleaned, nil
}

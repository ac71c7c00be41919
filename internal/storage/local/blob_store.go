// Package local writes snapshots and reports under a directory on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory for snapshots and reports.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes artifacts below a base directory. Writes replace existing
// files atomically.
type BlobStore struct {
	baseDir string
}

// New creates the base directory if needed and checks that it is writable.
func New(cfg Config) (*BlobStore, error) {
	dir := strings.TrimSpace(cfg.BaseDir)
	if dir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	_ = probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return nil, fmt.Errorf("remove probe file: %w", err)
	}
	return &BlobStore{baseDir: filepath.Clean(dir)}, nil
}

// PutObject writes data to baseDir/objectPath and returns a file:// URI.
func (s *BlobStore) PutObject(_ context.Context, objectPath string, _ string, data io.Reader) (string, error) {
	target, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	if err := writeAtomic(dir, target, data); err != nil {
		return "", err
	}
	return "file://" + target, nil
}

// resolve maps objectPath under baseDir, rejecting paths that escape it.
func (s *BlobStore) resolve(objectPath string) (string, error) {
	if strings.TrimSpace(objectPath) == "" {
		return "", errors.New("path is required")
	}
	target := filepath.Join(s.baseDir, objectPath)
	if !strings.HasPrefix(target, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q", objectPath)
	}
	return target, nil
}

func writeAtomic(dir, target string, data io.Reader) error {
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		cleanup()
		return fmt.Errorf("move %s into place: %w", target, err)
	}
	return nil
}

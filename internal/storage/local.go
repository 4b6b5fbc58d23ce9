package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage stores files under a base directory. It backs both the upload
// temp directory and the local archive.
type LocalStorage struct {
	basePath string
	baseURL  string
}

func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "./archive"
	}
	s := &LocalStorage{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}
	if err := s.EnsureDir(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewTempStorage does not touch the filesystem; callers run EnsureDir per request.
func NewTempStorage(dir string) *LocalStorage {
	return &LocalStorage{basePath: dir}
}

func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// EnsureDir creates the base directory if needed. Safe to call repeatedly.
func (s *LocalStorage) EnsureDir() error {
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}

// FullPath resolves key inside the base directory and rejects keys that escape it.
func (s *LocalStorage) FullPath(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}

func (s *LocalStorage) Save(ctx context.Context, key string, reader io.Reader, contentType string) error {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.Remove(fullPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete is a no-op for missing files.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetSignedURL returns the public URL; local files cannot be signed.
func (s *LocalStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.baseURL == "" {
		return "/files/" + strings.TrimLeft(key, "/"), nil
	}
	return s.baseURL + "/" + strings.TrimLeft(key, "/"), nil
}

func (s *LocalStorage) GetSize(ctx context.Context, key string) (int64, error) {
	fullPath, err := s.FullPath(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrObjectNotFound
		}
		return 0, fmt.Errorf("failed to get file info: %w", err)
	}
	return info.Size(), nil
}

// RemoveOlderThan deletes regular files in the base directory (not recursive)
// whose modification time is before now-age, and returns how many were removed.
func (s *LocalStorage) RemoveOlderThan(ctx context.Context, age time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	cutoff := now.Add(-age)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.basePath, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

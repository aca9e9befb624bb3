package store

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemObjectStore keeps blobs as files under a base directory and
// maps keys to URLs below a public base (the API serves the directory on
// /blobs/). Keys are flat names; anything resolving outside the base
// directory is rejected.
type FilesystemObjectStore struct {
	basePath      string
	publicBaseURL string
}

func NewFilesystemObjectStore(basePath, publicBaseURL string) (*FilesystemObjectStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FilesystemObjectStore{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// BasePath returns the directory blobs are stored in, for the file server.
func (s *FilesystemObjectStore) BasePath() string {
	return s.basePath
}

func (s *FilesystemObjectStore) resolve(key string) (string, error) {
	full := filepath.Join(s.basePath, key)

	// Prevent path traversal
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if absFull == absBase || !strings.HasPrefix(absFull, absBase+string(os.PathSeparator)) {
		return "", os.ErrPermission
	}
	return full, nil
}

func (s *FilesystemObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir() && info.Size() > 0, nil
}

func (s *FilesystemObjectStore) URL(key string) string {
	return s.publicBaseURL + "/blobs/" + url.PathEscape(key)
}

func (s *FilesystemObjectStore) Upload(ctx context.Context, r io.Reader, key string) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	// Write to a temp name first so a half-written blob never shows up
	// under the final key.
	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create upload temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close blob %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("finalize blob %s: %w", key, err)
	}

	return s.URL(key), nil
}

// Package fs is the mandatory, authoritative local-disk chunk store. Chunk
// writes always complete here first; an optional S3 mirror (see
// chunkstore/s3) is fire-and-forget and never gates a response.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/photosync/backend/internal/pathlayout"
)

// Store is a filesystem-backed chunkstore.Store rooted at <cloud_root>/users.
type Store struct {
	usersRoot string
}

// New builds a Store rooted at usersRoot (cloud/users).
func New(usersRoot string) *Store {
	return &Store{usersRoot: usersRoot}
}

func (s *Store) chunksDir(tenantKey string, legacyKeys []string) (string, error) {
	tenantDir, err := pathlayout.EnsureTenantDir(s.usersRoot, tenantKey, legacyKeys)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(tenantDir, "chunks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chunks directory: %w", err)
	}
	return dir, nil
}

// Put implements chunkstore.Store.
func (s *Store) Put(_ context.Context, tenantKey string, legacyKeys []string, chunkID string, data []byte) (bool, error) {
	dir, err := s.chunksDir(tenantKey, legacyKeys)
	if err != nil {
		return false, err
	}
	path, err := pathlayout.SafeJoin(dir, chunkID)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err == nil {
		return true, nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return false, fmt.Errorf("write chunk: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("finalize chunk: %w", err)
	}
	return false, nil
}

// Get implements chunkstore.Store.
func (s *Store) Get(_ context.Context, tenantKey string, legacyKeys []string, chunkID string) ([]byte, error) {
	dir, err := s.chunksDir(tenantKey, legacyKeys)
	if err != nil {
		return nil, err
	}
	path, err := pathlayout.SafeJoin(dir, chunkID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, os.ErrNotExist
	}
	return data, err
}

// Exists implements chunkstore.Store.
func (s *Store) Exists(_ context.Context, tenantKey string, legacyKeys []string, chunkID string) (bool, error) {
	dir, err := s.chunksDir(tenantKey, legacyKeys)
	if err != nil {
		return false, err
	}
	path, err := pathlayout.SafeJoin(dir, chunkID)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Purge implements chunkstore.Store.
func (s *Store) Purge(_ context.Context, tenantKey string) error {
	dir, err := pathlayout.SafeJoin(s.usersRoot, tenantKey)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

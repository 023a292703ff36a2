// Package localfs keeps documents as JSON files under a data directory,
// one file per key.
package localfs

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/KinKeep/pkg/errors"
)

// Store maps key to <root>/<key>.json.
type Store struct {
	root string
}

// New returns a Store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./data"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create data directory").WithDetail(root)
	}
	return &Store{root: root}, nil
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

func (s *Store) pathFor(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.InvalidParam("empty key")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", errors.InvalidParam("invalid key").WithDetail(key)
	}
	return filepath.Join(s.root, key+".json"), nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.New(errors.ErrCodeDocumentNotFound, "key not found").WithDetail(key)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read file").WithDetail(path)
	}
	return raw, nil
}

// Put writes value to a temp file and renames it over the target, so a
// crash never leaves a half written document behind.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to replace file").WithDetail(path)
	}
	return nil
}

// Ping checks that the data directory is still there.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "data directory unavailable")
	}
	if !info.IsDir() {
		return errors.New(errors.ErrCodeStorageError, "data path is not a directory").WithDetail(s.root)
	}
	return nil
}

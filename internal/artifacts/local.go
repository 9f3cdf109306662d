package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore reads artifacts from a directory tree.
type LocalStore struct {
	root string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

// Backend returns "local".
func (s *LocalStore) Backend() string {
	return BackendLocal
}

// resolve keeps p inside the root.
func (s *LocalStore) resolve(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errEmptyPath
	}

	clean := path.Clean("/" + p)

	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Get reads the file at p.
func (s *LocalStore) Get(_ context.Context, p string) ([]byte, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", p, ErrArtifactNotFound)
		}

		return nil, fmt.Errorf("read %s: %w", p, err)
	}

	return data, nil
}

// Exists reports whether a regular file exists at p.
func (s *LocalStore) Exists(_ context.Context, p string) (bool, error) {
	full, err := s.resolve(p)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("stat %s: %w", p, err)
	}

	return info.Mode().IsRegular(), nil
}

// Check verifies the root directory exists.
func (s *LocalStore) Check(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("artifact root: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("artifact root %s is not a directory", s.root)
	}

	return nil
}

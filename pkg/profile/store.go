package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store lays out one browser user-data directory per session identifier
// under a single root. Directories are created on demand and never removed.
type Store struct {
	root string
}

// NewStore resolves root to an absolute path and makes sure it exists
func NewStore(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("profiles root is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profiles root: %w", err)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create profiles root: %w", err)
	}

	return &Store{root: abs}, nil
}

// Root returns the absolute profiles root
func (s *Store) Root() string {
	return s.root
}

// Path returns the directory for id without touching the filesystem
func (s *Store) Path(id string) string {
	return filepath.Join(s.root, id)
}

// Ensure creates the directory for id if it is missing. created reports
// whether this call made it.
func (s *Store) Ensure(id string) (path string, created bool, err error) {
	if err := validateID(id); err != nil {
		return "", false, err
	}

	path = s.Path(id)
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return "", false, fmt.Errorf("profile path %s is not a directory", path)
		}
		return path, false, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", false, fmt.Errorf("failed to stat profile: %w", err)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return "", false, fmt.Errorf("failed to create profile directory: %w", err)
	}
	return path, true, nil
}

// Exists reports whether a directory is present for id
func (s *Store) Exists(id string) bool {
	info, err := os.Stat(s.Path(id))
	return err == nil && info.IsDir()
}

// List returns the identifiers that have a directory on disk, sorted
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles root: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func validateID(id string) error {
	if id == "" {
		return errors.New("profile id is required")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." || strings.Contains(id, "\x00") {
		return fmt.Errorf("invalid profile id %q", id)
	}
	return nil
}

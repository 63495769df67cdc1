package shotstore

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for relative paths that would escape the store root.
var ErrInvalidPath = errors.New("invalid screenshot path")

// changesDir is the per-site directory holding before/after copies of changes.
const changesDir = "changes"

// Store lays screenshots out on disk:
//
//	<root>/<site>/<timestamp>.png
//	<root>/<site>/changes/<timestamp>_prev.png
//	<root>/<site>/changes/<timestamp>_curr.png
//
// Paths handed out are slash-separated and relative to root, so they double
// as the suffix of the public /static/screenshots/ URL.
type Store struct {
	root string
}

// New creates the root directory if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the directory served under /static/screenshots/.
func (s *Store) Root() string {
	return s.root
}

// Save writes a capture as <site>/<ts>.png and returns its relative path.
// An existing file with the same timestamp is replaced.
func (s *Store) Save(site, ts string, png []byte) (string, error) {
	rel := path.Join(site, ts+".png")
	if err := s.write(rel, png); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return rel, nil
}

// PreserveChange writes the before/after images of a change into
// <site>/changes/ and returns their relative paths.
func (s *Store) PreserveChange(site, ts string, prev, curr []byte) (prevCopy, currCopy string, err error) {
	prevCopy = path.Join(site, changesDir, ts+"_prev.png")
	currCopy = path.Join(site, changesDir, ts+"_curr.png")
	if err := s.write(prevCopy, prev); err != nil {
		return "", "", fmt.Errorf("preserve previous capture: %w", err)
	}
	if err := s.write(currCopy, curr); err != nil {
		return "", "", fmt.Errorf("preserve current capture: %w", err)
	}
	return prevCopy, currCopy, nil
}

// Read returns the bytes of a stored screenshot.
func (s *Store) Read(rel string) ([]byte, error) {
	abs, err := s.Abs(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(rel string) error {
	abs, err := s.Abs(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete screenshot: %w", err)
	}
	return nil
}

// RelFromURL maps a public screenshot URL back to a store-relative path.
func RelFromURL(publicURL, prefix string) (string, bool) {
	return strings.CutPrefix(publicURL, prefix)
}

// Abs resolves a relative path inside the store root.
func (s *Store) Abs(rel string) (string, error) {
	if rel == "" || path.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	cleaned := path.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *Store) write(rel string, data []byte) error {
	abs, err := s.Abs(rel)
	if err != nil {
		return err
	}
	return AtomicWriteFile(abs, data, 0o644)
}

// AtomicWriteFile writes data to a temp file in the target directory, syncs it
// and renames it over path, so readers never observe a partial file.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

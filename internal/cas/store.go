// Package cas implements a content-addressed blob store.
//
// Each blob is stored once under its lowercase-hex SHA-256 digest. Presence
// of a file implies its content: entries are write-once and never mutated.
// Writes go through a temp file and an atomic rename so that readers never
// observe a partial entry.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by [Store.Get] when no entry exists for a digest.
var ErrNotFound = errors.New("cas: entry not found")

// Store is a directory-backed content-addressed store. Safe for concurrent
// use: identical content hashes to the same path, and the rename step makes
// concurrent puts of the same blob converge on one file.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory is created on first Put.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Digest returns the lowercase hexadecimal SHA-256 of content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Put stores content and returns its digest. Idempotent: putting the same
// bytes twice yields the same digest and leaves at most one file behind.
func (s *Store) Put(content []byte) (string, error) {
	digest := Digest(content)
	path := filepath.Join(s.dir, digest)

	if _, err := os.Stat(path); err == nil {
		return digest, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("cas: mkdir %q: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, "put-*")
	if err != nil {
		return "", fmt.Errorf("cas: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("cas: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("cas: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("cas: rename: %w", err)
	}
	return digest, nil
}

// Get returns the content stored under digest, or [ErrNotFound].
func (s *Store) Get(digest string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, digest))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cas: read %q: %w", digest, err)
	}
	return data, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

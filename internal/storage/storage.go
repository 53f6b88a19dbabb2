// Package storage provides file-based JSON documents addressed by key paths.
//
// agx keeps two kinds of documents on disk: the project-local config under
// .agx/ and the per-turn chat transcripts under the project log directory.
// Both go through Storage so that every write is atomic.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
)

var (
	ErrNotFound = errors.New("not found")
)

// Storage provides file-based JSON storage rooted at a directory.
type Storage struct {
	basePath string
	mu       sync.Mutex
	locks    map[string]*FileLock
}

// New creates a new Storage instance.
func New(basePath string) *Storage {
	return &Storage{
		basePath: basePath,
		locks:    make(map[string]*FileLock),
	}
}

// Path returns the file path a key maps to.
func (s *Storage) Path(key []string) string {
	parts := append([]string{s.basePath}, key...)
	return filepath.Join(parts...) + ".json"
}

func (s *Storage) dir(key []string) string {
	parts := append([]string{s.basePath}, key...)
	return filepath.Join(parts...)
}

// Get decodes the document at key into v. Comments and trailing commas are
// tolerated; anything else that is not valid JSON is an error.
func (s *Storage) Get(ctx context.Context, key []string, v any) error {
	filePath := s.Path(key)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	return nil
}

// Put stores v as indented JSON at key, creating parent directories.
func (s *Storage) Put(ctx context.Context, key []string, v any) error {
	filePath := s.Path(key)

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	return s.lock(filePath).With(func() error {
		tmpPath := filePath + ".tmp"
		if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write temp file: %w", err)
		}
		if err := os.Rename(tmpPath, filePath); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to rename file: %w", err)
		}
		return nil
	})
}

// Delete removes the document at key. Deleting a missing document is not an error.
func (s *Storage) Delete(ctx context.Context, key []string) error {
	filePath := s.Path(key)

	return s.lock(filePath).With(func() error {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return nil
	})
}

// List returns the sorted names of documents and sub-directories under key.
func (s *Storage) List(ctx context.Context, key []string) ([]string, error) {
	entries, err := os.ReadDir(s.dir(key))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	items := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			items = append(items, name)
		} else if strings.HasSuffix(name, ".json") {
			items = append(items, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(items)

	return items, nil
}

// Exists checks if a document exists at key.
func (s *Storage) Exists(ctx context.Context, key []string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

func (s *Storage) lock(filePath string) *FileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[filePath]
	if !ok {
		lock = NewFileLock(filePath)
		s.locks[filePath] = lock
	}

	return lock
}

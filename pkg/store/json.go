package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// JSONFile is the fallback KV for devices without a writable SQLite
// path. The whole map lives in memory and every write replaces the file
// atomically through a sibling .tmp. An empty path never touches disk.
type JSONFile struct {
	FilePath string

	mu     sync.Mutex
	data   map[string]string
	closed bool
}

// NewJSONFile loads path if it exists.
func NewJSONFile(path string) (*JSONFile, error) {
	s := &JSONFile{FilePath: path, data: make(map[string]string)}

	raw, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return s, nil
}

// NewMemory returns a KV that is never written to disk.
func NewMemory() *JSONFile {
	return &JSONFile{data: make(map[string]string)}
}

// Get returns the value stored under key.
func (s *JSONFile) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}
	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores key and rewrites the file.
func (s *JSONFile) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.data[key] = value
	return s.saveLocked()
}

// Delete removes key and rewrites the file.
func (s *JSONFile) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.data, key)
	return s.saveLocked()
}

// Close marks the store closed.
func (s *JSONFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *JSONFile) saveLocked() error {
	if s.FilePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	dir := filepath.Dir(s.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	// Prefs hold contact details; keep them private to the user.
	tmp := s.FilePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.FilePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.FilePath, err)
	}
	return nil
}

func (s *JSONFile) load() ([]byte, error) {
	if s.FilePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.FilePath, err)
	}
	return data, nil
}

var _ KV = (*JSONFile)(nil)

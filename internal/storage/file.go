package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// errCorruptState marks a state file that exists but is not a JSON object
var errCorruptState = errors.New("failed to parse state file")

// File stores all entries as one JSON object on disk, e.g.
// ~/.config/petshop/default.json. Every call re-reads the file so that
// separate CLI invocations observe each other's writes.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a file-backed store. The file is created on first Set.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return "", err
	}

	value, ok := entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.loadForWrite()
	if err != nil {
		return err
	}

	entries[key] = value
	return f.save(entries)
}

func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.loadForWrite()
	if err != nil {
		return err
	}

	if _, ok := entries[key]; !ok {
		return nil
	}

	delete(entries, key)
	return f.save(entries)
}

// load reads the state file. A missing file is an empty store.
func (f *File) load() (map[string]string, error) {
	entries := make(map[string]string)

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) == 0 {
		return entries, nil
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w %s: %v", errCorruptState, f.path, err)
	}

	return entries, nil
}

// loadForWrite is load for Set and Remove. An unparseable file is moved
// aside to <path>.corrupt and the store starts over empty, so a logout can
// always reset it.
func (f *File) loadForWrite() (map[string]string, error) {
	entries, err := f.load()
	if !errors.Is(err, errCorruptState) {
		return entries, err
	}

	if err := os.Rename(f.path, f.path+".corrupt"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to move corrupt state file aside: %w", err)
	}
	return make(map[string]string), nil
}

func (f *File) save(entries map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write to a sibling file and rename so a crash never leaves half a file
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set state file permissions: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

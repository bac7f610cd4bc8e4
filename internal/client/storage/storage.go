package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSlots keeps the slots in a single JSON object on disk. Every
// mutation rewrites the whole file through a temp file and rename.
type FileSlots struct {
	path string
	mu   sync.Mutex
}

// NewFileSlots returns a FileSlots stored at path. The file and its
// directory are created on first write.
func NewFileSlots(path string) *FileSlots {
	return &FileSlots{path: path}
}

// Path returns the backing file path.
func (fs *FileSlots) Path() string {
	return fs.path
}

func (fs *FileSlots) load() (map[string]string, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read slots: %w", err)
	}
	slots := map[string]string{}
	if len(data) == 0 {
		return slots, nil
	}
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	return slots, nil
}

func (fs *FileSlots) save(slots map[string]string) error {
	if len(slots) == 0 {
		if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove slots: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".slots-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write slots: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close slots: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod slots: %w", err)
	}
	return os.Rename(tmp.Name(), fs.path)
}

// Get implements Slots.
func (fs *FileSlots) Get(_ context.Context, slot string) (string, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	slots, err := fs.load()
	if err != nil {
		return "", false, err
	}
	v, ok := slots[slot]
	return v, ok, nil
}

// Put implements Slots.
func (fs *FileSlots) Put(_ context.Context, values map[string]string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	slots, err := fs.load()
	if err != nil {
		// A corrupt file is replaced rather than blocking new writes.
		slots = map[string]string{}
	}
	for k, v := range values {
		slots[k] = v
	}
	return fs.save(slots)
}

// Delete implements Slots.
func (fs *FileSlots) Delete(_ context.Context, names ...string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	slots, err := fs.load()
	if err != nil {
		// Unreadable state is dropped entirely.
		return fs.save(nil)
	}
	for _, n := range names {
		delete(slots, n)
	}
	return fs.save(slots)
}

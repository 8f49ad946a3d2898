package storage

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process substrate without native watch support, so the
// scheduler falls back to polling on it. Tests use it to mutate a tree
// deterministically.
type Memory struct {
	mu     sync.RWMutex
	files  map[string]memFile
	dirs   map[string]time.Time
	denied map[string]bool
	now    func() time.Time
}

type memFile struct {
	data    []byte
	modTime time.Time
}

// NewMemory creates an empty in-memory substrate containing only "/".
func NewMemory() *Memory {
	return &Memory{
		files:  make(map[string]memFile),
		dirs:   map[string]time.Time{string(filepath.Separator): time.Now()},
		denied: make(map[string]bool),
		now:    time.Now,
	}
}

func (m *Memory) ReadFile(path string) ([]byte, error) {
	path = filepath.Clean(path)
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.deniedLocked(path) {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrPermission}
	}
	if _, ok := m.dirs[path]; ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fmt.Errorf("is a directory")}
	}
	f, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), f.data...), nil
}

// WriteFile stores data at path, creating parent directories.
func (m *Memory) WriteFile(path string, data []byte) error {
	path = filepath.Clean(path)
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dirs[path]; ok {
		return &fs.PathError{Op: "write", Path: path, Err: fmt.Errorf("is a directory")}
	}
	m.mkdirAllLocked(filepath.Dir(path))
	m.files[path] = memFile{data: append([]byte(nil), data...), modTime: m.now()}
	return nil
}

func (m *Memory) ListDirectory(path string) ([]Entry, error) {
	path = filepath.Clean(path)
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.deniedLocked(path) {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrPermission}
	}
	if _, ok := m.dirs[path]; !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}

	entries := make([]Entry, 0)
	for dir := range m.dirs {
		if dir != path && filepath.Dir(dir) == path {
			entries = append(entries, Entry{Name: filepath.Base(dir), IsDir: true})
		}
	}
	for file := range m.files {
		if filepath.Dir(file) == path {
			entries = append(entries, Entry{Name: filepath.Base(file)})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func (m *Memory) Stat(path string) (Info, error) {
	path = filepath.Clean(path)
	m.mu.RLock()
	defer m.mu.RUnlock()

	if modTime, ok := m.dirs[path]; ok {
		return Info{IsDir: true, ModTime: modTime}, nil
	}
	if f, ok := m.files[path]; ok {
		return Info{Size: int64(len(f.data)), ModTime: f.modTime}, nil
	}
	return Info{}, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
}

// MkdirAll creates path and its parents.
func (m *Memory) MkdirAll(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(filepath.Clean(path))
}

// Remove deletes a file or a directory subtree.
func (m *Memory) Remove(path string) {
	path = filepath.Clean(path)
	prefix := path + string(filepath.Separator)
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, path)
	delete(m.dirs, path)
	for file := range m.files {
		if strings.HasPrefix(file, prefix) {
			delete(m.files, file)
		}
	}
	for dir := range m.dirs {
		if strings.HasPrefix(dir, prefix) {
			delete(m.dirs, dir)
		}
	}
}

// Deny makes path (and everything below it) unreadable.
func (m *Memory) Deny(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[filepath.Clean(path)] = true
}

func (m *Memory) mkdirAllLocked(path string) {
	for {
		if _, ok := m.dirs[path]; ok {
			return
		}
		m.dirs[path] = m.now()
		parent := filepath.Dir(path)
		if parent == path {
			return
		}
		path = parent
	}
}

func (m *Memory) deniedLocked(path string) bool {
	for p := path; ; p = filepath.Dir(p) {
		if m.denied[p] {
			return true
		}
		if filepath.Dir(p) == p {
			return false
		}
	}
}

// Package storage abstracts the file substrate the tracker reads from.
// Every downstream component depends on Storage only; the concrete substrate
// (local disk or in-memory) is chosen once when the engine is constructed.
package storage

import (
	"errors"
	"io/fs"
	"time"
)

// Entry is one directory listing item.
type Entry struct {
	Name      string
	IsDir     bool
	IsSymlink bool
}

// Info is the subset of file metadata the tracker needs.
type Info struct {
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Storage is the capability set every substrate must provide.
type Storage interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	ListDirectory(path string) ([]Entry, error)
	Stat(path string) (Info, error)
}

// Op describes what happened to a watched path.
type Op uint8

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

func (o Op) String() string {
	switch {
	case o&OpCreate != 0:
		return "create"
	case o&OpWrite != 0:
		return "write"
	case o&OpRemove != 0:
		return "remove"
	case o&OpRename != 0:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is a single change notification delivered by a Watcher.
type Event struct {
	Path  string
	Op    Op
	IsDir bool
}

// WatchOptions controls how a watch is installed.
type WatchOptions struct {
	Recursive bool
	// Skip prunes directories (and ignores files) from a recursive watch.
	Skip func(path string, isDir bool) bool
}

// CancelFunc releases a watch. Calling it more than once is safe.
type CancelFunc func() error

// Watcher is implemented by substrates that can deliver native change
// notifications. Substrates without it are polled.
type Watcher interface {
	Watch(path string, opts WatchOptions, fn func(Event)) (CancelFunc, error)
}

// IsNotExist reports whether err means the path is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// SupportsWatch reports whether s can deliver native notifications.
func SupportsWatch(s Storage) bool {
	_, ok := s.(Watcher)
	return ok
}

package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/morozRed/cmdtrack/internal/fileutil"
)

// OS is the local-disk substrate. It supports native recursive watches.
type OS struct {
	logger *zap.Logger
}

// NewOS creates the local-disk substrate.
func NewOS(logger *zap.Logger) *OS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OS{logger: logger.Named("storage")}
}

func (s *OS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (s *OS) WriteFile(path string, data []byte) error {
	return fileutil.WriteIfChanged(path, data)
}

func (s *OS) ListDirectory(path string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, d := range dirEntries {
		entry := Entry{Name: d.Name(), IsDir: d.IsDir()}
		if d.Type()&os.ModeSymlink != 0 {
			entry.IsSymlink = true
			// Follow the link so linked directories are descended; a broken
			// link stays a plain entry and fails on read.
			if info, err := os.Stat(filepath.Join(path, d.Name())); err == nil {
				entry.IsDir = info.IsDir()
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *OS) Stat(path string) (Info, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	return Info{IsDir: info.IsDir(), Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Watch installs an fsnotify watch on path. With opts.Recursive every
// non-skipped subdirectory is added, including ones created later.
func (s *OS) Watch(path string, opts WatchOptions, fn func(Event)) (CancelFunc, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &osWatch{
		watcher: watcher,
		opts:    opts,
		fn:      fn,
		logger:  s.logger,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if err := w.add(path); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go w.run()
	return w.cancel, nil
}

type osWatch struct {
	watcher *fsnotify.Watcher
	opts    WatchOptions
	fn      func(Event)
	logger  *zap.Logger

	once    sync.Once
	done    chan struct{}
	stopped chan struct{}
}

func (w *osWatch) add(root string) error {
	if !w.opts.Recursive {
		return w.watcher.Add(root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Debug("skipping unreadable directory", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.opts.Skip != nil && w.opts.Skip(path, true) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (w *osWatch) run() {
	defer close(w.stopped)

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *osWatch) handle(event fsnotify.Event) {
	var op Op
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpWrite
	case event.Op&fsnotify.Remove != 0:
		op = OpRemove
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return // chmod
	}

	isDir := false
	if op == OpCreate || op == OpWrite {
		if info, err := os.Stat(event.Name); err == nil {
			isDir = info.IsDir()
		}
	}
	if w.opts.Skip != nil && w.opts.Skip(event.Name, isDir) {
		return
	}
	if isDir && op == OpCreate && w.opts.Recursive {
		if err := w.add(event.Name); err != nil {
			w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
		}
	}

	w.fn(Event{Path: event.Name, Op: op, IsDir: isDir})
}

func (w *osWatch) cancel() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		<-w.stopped
	})
	return err
}

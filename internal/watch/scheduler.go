// Package watch turns substrate change notifications, or periodic polling
// when none are available, into debounced tracker updates.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/morozRed/cmdtrack/internal/storage"
)

// Mode selects how changes are detected.
type Mode string

const (
	ModeNative Mode = "native"
	ModePoll   Mode = "poll"
	ModeOff    Mode = "off"
)

// ParseMode validates a configured mode string.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeNative, ModePoll, ModeOff:
		return Mode(value), nil
	case "":
		return ModeNative, nil
	default:
		return "", fmt.Errorf("unsupported watch mode %q (expected native, poll or off)", value)
	}
}

const (
	DefaultDebounce     = 100 * time.Millisecond
	DefaultPollInterval = 3 * time.Second
	DefaultAncestorHops = 2

	rescanKey = "\x00rescan"
)

// SignalFiles are project-level files whose change triggers a full rescan
// when seen in the root or a watched ancestor.
var SignalFiles = []string{
	".gitignore",
	".cmdtrackignore",
	".cmdtrack.yaml",
	"package.json",
	"pyproject.toml",
	"Cargo.toml",
	"go.mod",
	"Makefile",
}

// Handler receives debounced work. Errors matched by Options.Quiet are
// logged at debug level only.
type Handler interface {
	Apply(ctx context.Context, path string) error
	Rescan(ctx context.Context) error
}

// Options configures a Scheduler. Zero values select defaults.
type Options struct {
	Mode         Mode
	Debounce     time.Duration
	PollInterval time.Duration
	// AncestorHops is the number of parent directories watched for signal
	// files. Negative disables the ancestor watch.
	AncestorHops int
	// Skip prunes paths (absolute) from native watches.
	Skip func(path string, isDir bool) bool
	// Quiet reports handler errors that are expected during shutdown.
	Quiet  func(err error) bool
	Logger *zap.Logger
}

// Scheduler owns the watches, timers and goroutines of one tracking
// session.
type Scheduler struct {
	store   storage.Storage
	opts    Options
	logger  *zap.Logger
	signals map[string]bool

	mu        sync.Mutex
	running   bool
	mode      Mode
	cancel    context.CancelFunc
	watches   []storage.CancelFunc
	debouncer *Debouncer
	wg        sync.WaitGroup
}

func New(store storage.Storage, opts Options) *Scheduler {
	if opts.Mode == "" {
		opts.Mode = ModeNative
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.AncestorHops == 0 {
		opts.AncestorHops = DefaultAncestorHops
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	signals := make(map[string]bool, len(SignalFiles))
	for _, name := range SignalFiles {
		signals[name] = true
	}
	return &Scheduler{
		store:   store,
		opts:    opts,
		logger:  opts.Logger.Named("watch"),
		signals: signals,
	}
}

// Mode returns the detection mode in effect, which differs from the
// configured one when a native watch could not be installed.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins delivering changes under root to h. It fails if the
// scheduler is already running.
func (s *Scheduler) Start(ctx context.Context, root string, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.debouncer = NewDebouncer(s.opts.Debounce)
	s.watches = nil
	s.running = true
	s.mode = s.opts.Mode
	root = filepath.Clean(root)

	if s.mode == ModeOff {
		s.logger.Info("change detection disabled", zap.String("root", root))
		return nil
	}

	if s.mode == ModeNative {
		if err := s.watchNative(ctx, root, h); err != nil {
			s.logger.Warn("native watch unavailable, polling instead",
				zap.String("root", root),
				zap.Error(err),
			)
			s.mode = ModePoll
		}
	}
	if s.mode == ModePoll {
		s.wg.Add(1)
		go s.poll(ctx, h)
	}

	s.logger.Info("watching",
		zap.String("root", root),
		zap.String("mode", string(s.mode)),
		zap.Duration("debounce", s.opts.Debounce),
	)
	return nil
}

func (s *Scheduler) watchNative(ctx context.Context, root string, h Handler) error {
	watcher, ok := s.store.(storage.Watcher)
	if !ok {
		return errors.New("storage does not support watching")
	}

	cancel, err := watcher.Watch(root, storage.WatchOptions{Recursive: true, Skip: s.opts.Skip}, func(ev storage.Event) {
		s.dispatch(ctx, root, ev, h)
	})
	if err != nil {
		return err
	}
	s.watches = append(s.watches, cancel)

	dir := root
	for hop := 0; hop < s.opts.AncestorHops; hop++ {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
		cancel, err := watcher.Watch(dir, storage.WatchOptions{}, func(ev storage.Event) {
			if s.signals[filepath.Base(ev.Path)] {
				s.triggerRescan(ctx, h)
			}
		})
		if err != nil {
			s.logger.Debug("ancestor watch failed", zap.String("path", dir), zap.Error(err))
			break
		}
		s.watches = append(s.watches, cancel)
	}
	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, root string, ev storage.Event, h Handler) {
	if filepath.Dir(ev.Path) == root && s.signals[filepath.Base(ev.Path)] {
		s.triggerRescan(ctx, h)
		return
	}
	path := ev.Path
	s.debouncer.Trigger(path, func() {
		if err := h.Apply(ctx, path); err != nil {
			s.report("apply failed", path, err)
		}
	})
}

func (s *Scheduler) triggerRescan(ctx context.Context, h Handler) {
	s.debouncer.Trigger(rescanKey, func() {
		if err := h.Rescan(ctx); err != nil {
			s.report("rescan failed", "", err)
		}
	})
}

func (s *Scheduler) poll(ctx context.Context, h Handler) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Rescan(ctx); err != nil {
				s.report("poll rescan failed", "", err)
			}
		}
	}
}

func (s *Scheduler) report(msg, path string, err error) {
	if errors.Is(err, context.Canceled) || (s.opts.Quiet != nil && s.opts.Quiet(err)) {
		s.logger.Debug(msg, zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Warn(msg, zap.String("path", path), zap.Error(err))
}

// Flush runs pending debounced work immediately.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	d := s.debouncer
	s.mu.Unlock()
	if d != nil {
		d.Flush()
	}
}

// Stop releases every watch, timer and goroutine. It is safe to call more
// than once and on a scheduler that never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	watches := s.watches
	debouncer := s.debouncer
	s.watches = nil
	s.mu.Unlock()

	cancel()
	for _, release := range watches {
		if err := release(); err != nil {
			s.logger.Debug("failed to release watch", zap.Error(err))
		}
	}
	debouncer.Stop()
	s.wg.Wait()
	s.logger.Debug("stopped")
}

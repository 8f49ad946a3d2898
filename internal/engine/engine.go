// Package engine is the public surface of cmdtrack: it ties a storage
// substrate, the tracker, the change scheduler and the command registry
// into one tracking session per root.
//
// An Engine is constructed by the caller and passed around explicitly; there
// is no process-wide instance. All methods are safe for concurrent use.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/morozRed/cmdtrack/internal/config"
	"github.com/morozRed/cmdtrack/internal/graph"
	"github.com/morozRed/cmdtrack/internal/ignore"
	"github.com/morozRed/cmdtrack/internal/languages"
	"github.com/morozRed/cmdtrack/internal/parser"
	"github.com/morozRed/cmdtrack/internal/registry"
	"github.com/morozRed/cmdtrack/internal/state"
	"github.com/morozRed/cmdtrack/internal/storage"
	"github.com/morozRed/cmdtrack/internal/synth"
	"github.com/morozRed/cmdtrack/internal/tracker"
	"github.com/morozRed/cmdtrack/internal/watch"
)

// Options wires collaborators into an Engine. Nil fields get defaults: the
// default config, the local disk, exec-based runner and built-in templates.
type Options struct {
	Config     *config.Config
	Storage    storage.Storage
	Runner     synth.Runner
	Templates  *synth.Templates
	Classifier languages.Classifier
	Analyzer   synth.Analyzer
	Progress   func(done, total int, path string)
	Logger     *zap.Logger
}

type Engine struct {
	cfg        *config.Config
	store      storage.Storage
	registry   *registry.Registry
	synth      *synth.Synthesizer
	parsers    *parser.Registry
	classifier languages.Classifier
	progress   func(done, total int, path string)
	logger     *zap.Logger

	mu        sync.Mutex
	tracker   *tracker.Tracker
	scheduler *watch.Scheduler
}

func New(opts Options) *Engine {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewOS(opts.Logger)
	}
	if opts.Classifier == nil {
		opts.Classifier = languages.NewClassifier()
	}
	cfg := opts.Config

	binder := synth.NewBinder(opts.Storage, opts.Runner)
	if opts.Analyzer != nil {
		binder.Analyzer = opts.Analyzer
	}

	return &Engine{
		cfg:   cfg,
		store: opts.Storage,
		registry: registry.New(registry.Options{
			SuggestionLimit:     cfg.SuggestionLimit,
			SimilarityThreshold: cfg.SimilarityThreshold,
			ExecTimeout:         cfg.ExecTimeout,
			HistorySize:         cfg.HistorySize,
		}, opts.Logger),
		synth:      synth.New(opts.Templates, binder),
		parsers:    languages.NewDefaultRegistry(),
		classifier: opts.Classifier,
		progress:   opts.Progress,
		logger:     opts.Logger.Named("engine"),
	}
}

// StartTracking scans root and starts watching it. Calling it again for the
// same root is a no-op; a different root replaces the current session.
func (e *Engine) StartTracking(ctx context.Context, root string) error {
	root, err := e.resolve(root)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tracker != nil {
		if e.tracker.Root() == root {
			e.logger.Debug("already tracking", zap.String("root", root))
			return nil
		}
		e.stopLocked()
	}
	return e.startLocked(ctx, root)
}

// StopTracking ends the current session. Commands owned by tracked files
// are removed; user commands stay registered.
func (e *Engine) StopTracking() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// RestartTracking stops and starts again, on root or, when root is empty,
// on the current root. Ignore files and manifests are re-read.
func (e *Engine) RestartTracking(ctx context.Context, root string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if root == "" {
		if e.tracker == nil {
			return errors.New("not tracking")
		}
		root = e.tracker.Root()
	}
	root, err := e.resolve(root)
	if err != nil {
		return err
	}
	e.stopLocked()
	return e.startLocked(ctx, root)
}

func (e *Engine) startLocked(ctx context.Context, root string) error {
	info, err := e.store.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", tracker.ErrRootUnavailable, root, err)
	}
	if !info.IsDir {
		return fmt.Errorf("%w: %s is not a directory", tracker.ErrRootUnavailable, root)
	}

	t := tracker.New(root, e.store, e.registry, e.synth, tracker.Options{
		MaxDepth:    e.cfg.MaxDepth,
		ScanWorkers: e.cfg.ScanWorkers,
		Ignore:      e.matcher(root),
		Classifier:  e.classifier,
		Parsers:     e.parsers,
		Progress:    e.progress,
		Logger:      e.logger,
	})
	if err := t.Scan(ctx); err != nil {
		t.Close()
		return err
	}

	s := watch.New(e.store, watch.Options{
		Mode:         e.cfg.WatchMode(),
		Debounce:     e.cfg.Debounce,
		PollInterval: e.cfg.PollInterval,
		AncestorHops: ancestorHops(e.cfg.AncestorHops),
		Skip:         t.Ignored,
		Quiet: func(err error) bool {
			return errors.Is(err, tracker.ErrClosed)
		},
		Logger: e.logger,
	})
	if err := s.Start(context.WithoutCancel(ctx), root, &session{engine: e, tracker: t}); err != nil {
		t.Close()
		return fmt.Errorf("failed to start watching %s: %w", root, err)
	}

	e.tracker = t
	e.scheduler = s
	e.logger.Info("tracking started",
		zap.String("root", root),
		zap.Int("files", t.Len()),
		zap.Int("commands", e.registry.Len()),
		zap.String("watch", string(s.Mode())),
	)
	return nil
}

func (e *Engine) stopLocked() {
	if e.tracker == nil {
		return
	}
	root := e.tracker.Root()
	e.scheduler.Stop()
	e.tracker.Close()
	e.tracker = nil
	e.scheduler = nil
	e.logger.Info("tracking stopped", zap.String("root", root))
}

// matcher builds the ignore policy for root from the default names, the
// configured rules, .cmdtrackignore and, when enabled, .gitignore.
func (e *Engine) matcher(root string) *ignore.Matcher {
	rules := append([]string(nil), e.cfg.Ignore...)
	if data, err := e.store.ReadFile(filepath.Join(root, config.IgnoreFileName)); err == nil {
		rules = append(rules, config.ParseIgnoreLines(data)...)
	} else if !storage.IsNotExist(err) {
		e.logger.Warn("failed to read ignore file", zap.String("file", config.IgnoreFileName), zap.Error(err))
	}

	m := ignore.NewMatcher(ignore.DefaultNames, rules)
	if e.cfg.RespectGitignore {
		if data, err := e.store.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
			m = m.WithGitIgnore(config.ParseIgnoreLines(data))
		}
	}
	return m
}

func (e *Engine) resolve(root string) (string, error) {
	if root == "" {
		return "", errors.New("root path is required")
	}
	if filepath.IsAbs(root) {
		return filepath.Clean(root), nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	return abs, nil
}

// ancestorHops maps the config value, where 0 means disabled, onto the
// scheduler's convention, where 0 selects the default.
func ancestorHops(hops int) int {
	if hops <= 0 {
		return -1
	}
	return hops
}

// session feeds scheduler work into one tracker.
type session struct {
	engine  *Engine
	tracker *tracker.Tracker
}

func (s *session) Apply(ctx context.Context, path string) error {
	return s.tracker.Apply(ctx, path)
}

// Rescan re-reads ignore files before rescanning, since a change to them is
// what usually triggers a signal rescan.
func (s *session) Rescan(ctx context.Context) error {
	s.tracker.SetIgnore(s.engine.matcher(s.tracker.Root()))
	return s.tracker.Rescan(ctx)
}

func (e *Engine) current() *tracker.Tracker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker
}

// Rescan reconciles the current session with the substrate immediately.
func (e *Engine) Rescan(ctx context.Context) error {
	e.mu.Lock()
	t := e.tracker
	e.mu.Unlock()
	if t == nil {
		return errors.New("not tracking")
	}
	return (&session{engine: e, tracker: t}).Rescan(ctx)
}

// RegisterCommand adds a user command. User commands take precedence over
// synthesized ones of the same name and survive StopTracking.
func (e *Engine) RegisterCommand(name string, action registry.Action, description string, opts ...registry.Option) string {
	return e.registry.Register(name, action, description, opts...)
}

func (e *Engine) UnregisterCommand(name string) bool {
	return e.registry.Unregister(name)
}

// ExecuteCommand runs name with args. It never returns an error; failures
// and unknown names are reported in the Result.
func (e *Engine) ExecuteCommand(ctx context.Context, name string, args ...string) registry.Result {
	return e.registry.Execute(ctx, name, args...)
}

func (e *Engine) GetCommands(filter registry.Filter) []registry.Descriptor {
	return e.registry.List(filter)
}

func (e *Engine) SearchCommands(query string, limit int) []registry.Descriptor {
	return e.registry.Search(query, limit)
}

func (e *Engine) Suggest(query string, limit int) []string {
	return e.registry.Suggest(query, limit)
}

func (e *Engine) History() []registry.Result {
	return e.registry.History()
}

// GetTrackedFiles returns the tracked files sorted by path, or nil when not
// tracking.
func (e *Engine) GetTrackedFiles() []state.TrackedFile {
	t := e.current()
	if t == nil {
		return nil
	}
	return t.Files()
}

// Graph returns the dependency graph of the current session, or an empty
// graph when not tracking.
func (e *Engine) Graph() graph.Reader {
	t := e.current()
	if t == nil {
		return graph.NewGraph()
	}
	return t.Graph()
}

// Root returns the tracked root, empty when not tracking.
func (e *Engine) Root() string {
	t := e.current()
	if t == nil {
		return ""
	}
	return t.Root()
}

func (e *Engine) Tracking() bool {
	return e.current() != nil
}

// WatchMode returns the change detection mode in effect, empty when not
// tracking.
func (e *Engine) WatchMode() watch.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scheduler == nil {
		return ""
	}
	return e.scheduler.Mode()
}

// Flush applies pending debounced changes now.
func (e *Engine) Flush() {
	e.mu.Lock()
	s := e.scheduler
	e.mu.Unlock()
	if s != nil {
		s.Flush()
	}
}

// Close is StopTracking.
func (e *Engine) Close() {
	e.StopTracking()
}

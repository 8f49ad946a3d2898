// Package tracker keeps an in-memory view of a project tree and drives the
// command registry and dependency graph from it.
//
// Every mutating operation (Scan, Rescan, TrackFile, Apply, Close) runs under
// one operation mutex. File reads and analysis inside an operation run in
// parallel; their results are committed in path order once all reads finish,
// so a later operation never observes a half-applied batch.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/morozRed/cmdtrack/internal/fileutil"
	"github.com/morozRed/cmdtrack/internal/graph"
	"github.com/morozRed/cmdtrack/internal/ignore"
	"github.com/morozRed/cmdtrack/internal/languages"
	"github.com/morozRed/cmdtrack/internal/manifest"
	"github.com/morozRed/cmdtrack/internal/parser"
	"github.com/morozRed/cmdtrack/internal/registry"
	"github.com/morozRed/cmdtrack/internal/state"
	"github.com/morozRed/cmdtrack/internal/storage"
	"github.com/morozRed/cmdtrack/internal/synth"
)

var (
	// ErrRootUnavailable is returned when the root cannot be listed.
	ErrRootUnavailable = errors.New("root unavailable")
	// ErrClosed is returned by operations on a closed tracker.
	ErrClosed = errors.New("tracker closed")
)

const (
	DefaultMaxDepth    = 10
	DefaultScanWorkers = 8
)

// Options configures a Tracker. Zero values select defaults.
type Options struct {
	MaxDepth    int
	ScanWorkers int
	Ignore      *ignore.Matcher
	Classifier  languages.Classifier
	Parsers     *parser.Registry
	// Progress is called after each file read during scans. Calls are
	// serialized.
	Progress func(done, total int, path string)
	Logger   *zap.Logger
}

// Tracker owns the tracked file table.
type Tracker struct {
	root       string
	store      storage.Storage
	registry   *registry.Registry
	synth      *synth.Synthesizer
	graph      *graph.Graph
	matcher    atomic.Pointer[ignore.Matcher]
	classifier languages.Classifier
	parsers    *parser.Registry
	opts       Options
	logger     *zap.Logger

	opMu  sync.Mutex
	mu    sync.RWMutex // guards state for readers outside opMu
	state *state.State
	alive atomic.Bool
}

// New creates a tracker for root. Nothing is read until Scan.
func New(root string, store storage.Storage, reg *registry.Registry, synthesizer *synth.Synthesizer, opts Options) *Tracker {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.ScanWorkers <= 0 {
		opts.ScanWorkers = DefaultScanWorkers
	}
	if opts.Ignore == nil {
		opts.Ignore = ignore.NewMatcher(ignore.DefaultNames, nil)
	}
	if opts.Classifier == nil {
		opts.Classifier = languages.NewClassifier()
	}
	if opts.Parsers == nil {
		opts.Parsers = languages.NewDefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	t := &Tracker{
		root:       filepath.Clean(root),
		store:      store,
		registry:   reg,
		synth:      synthesizer,
		graph:      graph.NewGraph(),
		classifier: opts.Classifier,
		parsers:    opts.Parsers,
		opts:       opts,
		logger:     opts.Logger.Named("tracker"),
		state:      state.NewState(),
	}
	t.matcher.Store(opts.Ignore)
	t.alive.Store(true)
	return t
}

// SetIgnore swaps the ignore policy. It takes effect from the next
// operation; call Rescan to drop files the new policy excludes.
func (t *Tracker) SetIgnore(m *ignore.Matcher) {
	if m != nil {
		t.matcher.Store(m)
	}
}

// Ignored reports whether the absolute path is outside the root, ignored or
// too deep. It is safe to call from any goroutine.
func (t *Tracker) Ignored(path string, isDir bool) bool {
	rel, ok := t.rel(t.abs(path))
	if !ok {
		return true
	}
	return t.skip(rel, isDir)
}

func (t *Tracker) Root() string {
	return t.root
}

// Graph exposes the dependency graph read-only.
func (t *Tracker) Graph() graph.Reader {
	return t.graph
}

// Alive reports whether Close has not been called yet.
func (t *Tracker) Alive() bool {
	return t.alive.Load()
}

// Files returns every tracked file sorted by path.
func (t *Tracker) Files() []state.TrackedFile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Snapshot()
}

// File returns the tracked entry for path.
func (t *Tracker) File(path string) (state.TrackedFile, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Get(t.abs(path))
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Len()
}

// Scan forgets everything tracked so far and tracks every non-ignored file
// under the root.
func (t *Tracker) Scan(ctx context.Context) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	if !t.alive.Load() {
		return ErrClosed
	}
	start := time.Now()

	paths, err := t.discover(t.root)
	if err != nil {
		return err
	}
	batch, err := t.readAll(ctx, paths)
	if err != nil {
		return err
	}
	if !t.alive.Load() {
		return ErrClosed
	}

	t.mu.Lock()
	t.resetLocked()
	changed := t.commitLocked(batch, nil)
	t.mu.Unlock()

	t.logger.Info("scan complete",
		zap.String("root", t.root),
		zap.Int("files", len(paths)),
		zap.Int("tracked", len(changed)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Rescan rediscovers the tree. New files are tracked, known files are
// re-tracked only when their content differs, and files that were not
// rediscovered are removed together with their commands.
func (t *Tracker) Rescan(ctx context.Context) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	if !t.alive.Load() {
		return ErrClosed
	}
	return t.syncLocked(ctx, t.root)
}

// TrackFile reads path and replaces its entry. A read failure removes the
// path, and everything tracked below it, without returning an error.
func (t *Tracker) TrackFile(ctx context.Context, path string) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	if !t.alive.Load() {
		return ErrClosed
	}
	return t.trackFileLocked(ctx, t.abs(path))
}

// Apply handles one change notification for path.
func (t *Tracker) Apply(ctx context.Context, path string) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	if !t.alive.Load() {
		return ErrClosed
	}

	path = t.abs(path)
	rel, ok := t.rel(path)
	if !ok {
		return nil
	}
	if rel == "." {
		return t.syncLocked(ctx, t.root)
	}

	info, err := t.store.Stat(path)
	if err != nil {
		if !storage.IsNotExist(err) {
			t.logger.Debug("stat failed, treating as removed", zap.String("path", path), zap.Error(err))
		}
		t.removeUnder(path)
		return nil
	}
	if t.skip(rel, info.IsDir) {
		return nil
	}
	if info.IsDir {
		return t.syncLocked(ctx, path)
	}
	return t.trackFileLocked(ctx, path)
}

// Close discards all tracked files and their commands. Operations already
// waiting on the tracker return ErrClosed; results of an operation in
// flight are dropped.
func (t *Tracker) Close() {
	if !t.alive.CompareAndSwap(true, false) {
		return
	}
	t.opMu.Lock()
	defer t.opMu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	t.logger.Debug("tracker closed", zap.String("root", t.root))
}

func (t *Tracker) trackFileLocked(ctx context.Context, path string) error {
	rel, ok := t.rel(path)
	if !ok {
		return nil
	}
	if info, err := t.store.Stat(path); err == nil && info.IsDir {
		if t.skip(rel, true) {
			return nil
		}
		return t.syncLocked(ctx, path)
	}
	if t.skip(rel, false) {
		return nil
	}
	obs := t.observe(path, rel)
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.alive.Load() {
		return ErrClosed
	}
	if obs.err != nil {
		t.removeUnder(path)
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.commitLocked([]observation{obs}, nil)
	return nil
}

// syncLocked reconciles the subtree at dir with the substrate.
func (t *Tracker) syncLocked(ctx context.Context, dir string) error {
	paths, err := t.discover(dir)
	if err != nil {
		if dir != t.root && errors.Is(err, ErrRootUnavailable) {
			t.removeUnder(dir)
			return nil
		}
		return err
	}
	batch, err := t.readAll(ctx, paths)
	if err != nil {
		return err
	}
	if !t.alive.Load() {
		return ErrClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := t.state.DeletedFiles(dir, fileutil.ToSet(paths))

	fresh := batch[:0:0]
	for _, obs := range batch {
		switch {
		case obs.err != nil:
			removed = append(removed, obs.path)
		case t.state.HasChanged(obs.path, obs.content):
			fresh = append(fresh, obs)
		}
	}

	if len(fresh) == 0 && len(removed) == 0 {
		return nil
	}
	changed := t.commitLocked(fresh, removed)
	t.logger.Debug("rescan applied",
		zap.String("dir", dir),
		zap.Int("changed", len(changed)),
		zap.Int("removed", len(removed)),
	)
	return nil
}

func (t *Tracker) removeUnder(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if removed := t.state.RemoveUnder(path); len(removed) > 0 {
		t.commitLocked(nil, removed)
	}
}

// commitLocked stores observations, drops removed paths and brings naming
// keys, commands and graph edges up to date. It returns the paths whose
// commands were re-synthesized.
func (t *Tracker) commitLocked(batch []observation, removed []string) []string {
	now := time.Now()
	changed := make(map[string]bool, len(batch))

	// Paths may already be gone from state (RemoveUnder); their commands
	// and graph nodes still need dropping.
	for _, path := range removed {
		t.state.RemoveFile(path)
		t.registry.RemoveOwner(path)
		t.graph.Remove(path)
		t.logger.Debug("file removed", zap.String("path", path))
	}

	for _, obs := range batch {
		file := state.TrackedFile{
			Path:      obs.path,
			RelPath:   obs.rel,
			Language:  obs.language,
			Content:   obs.content,
			Hash:      fileutil.HashContent(obs.content),
			Size:      obs.info.Size,
			ModTime:   obs.info.ModTime,
			Symbols:   obs.symbols,
			Refs:      obs.refs,
			Manifest:  obs.manifest,
			TrackedAt: now,
		}
		if previous, ok := t.state.Get(obs.path); ok {
			file.Key = previous.Key
		}
		t.state.Set(file)
		t.graph.Update(obs.path, obs.rel, obs.language, obs.refs)
		changed[obs.path] = true
	}

	keys := assignKeys(t.state.Snapshot())
	files := t.state.Snapshot()
	fresh := make(map[string][]registry.Descriptor, len(changed))
	planned := make(map[string][]string, len(files))
	rels := make(map[string]string, len(files))
	for _, file := range files {
		rels[file.Path] = file.RelPath
		if key := keys[file.Path]; changed[file.Path] || file.Key != key {
			file.Key = key
			descriptors := t.synth.Synthesize(synthFile(t.root, file))
			fresh[file.Path] = descriptors
			file.Planned = descriptorNames(descriptors)
		}
		planned[file.Path] = file.Planned
	}
	names := disambiguate(planned, rels)

	resynthesized := make([]string, 0, len(fresh))
	for _, file := range files {
		descriptors, ok := fresh[file.Path]
		if !ok {
			if slices.Equal(file.Commands, names[file.Path]) {
				continue
			}
			// A name this file planned started or stopped colliding.
			descriptors = t.synth.Synthesize(synthFile(t.root, file))
		}
		file.Key = keys[file.Path]
		file.Planned = planned[file.Path]
		file.Commands = names[file.Path]
		for i := range descriptors {
			descriptors[i].Name = file.Commands[i]
		}
		t.registry.ReplaceOwner(file.Path, descriptors)
		t.state.Set(file)
		resynthesized = append(resynthesized, file.Path)
	}

	if len(batch) > 0 || len(removed) > 0 {
		t.graph.RebuildInverseEdges()
	}
	return resynthesized
}

func (t *Tracker) resetLocked() {
	for _, path := range t.state.Paths() {
		t.registry.RemoveOwner(path)
	}
	t.state = state.NewState()
	t.graph.Clear()
}

func descriptorNames(descriptors []registry.Descriptor) []string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	return names
}

func synthFile(root string, file state.TrackedFile) synth.File {
	return synth.File{
		Root:     root,
		Path:     file.Path,
		RelPath:  file.RelPath,
		Language: file.Language,
		Content:  file.Content,
		Key:      file.Key,
		Symbols:  file.Symbols,
		Manifest: file.Manifest,
	}
}

// observation is the result of reading and analyzing one file outside the
// state lock.
type observation struct {
	path     string
	rel      string
	content  []byte
	info     storage.Info
	language string
	symbols  []parser.Symbol
	refs     []string
	manifest *manifest.Manifest
	err      error
}

func (t *Tracker) observe(path, rel string) observation {
	obs := observation{path: path, rel: rel}
	content, err := t.store.ReadFile(path)
	if err != nil {
		if !storage.IsNotExist(err) {
			t.logger.Debug("read failed, treating as removed", zap.String("path", path), zap.Error(err))
		}
		obs.err = err
		return obs
	}
	obs.content = content
	if info, err := t.store.Stat(path); err == nil {
		obs.info = info
	} else {
		obs.info = storage.Info{Size: int64(len(content)), ModTime: time.Now()}
	}

	obs.language = t.classifier.Classify(path, content)
	if parsed, err := t.parsers.Parse(path, obs.language, content); err != nil {
		t.logger.Debug("symbol scan failed", zap.String("path", path), zap.Error(err))
	} else {
		obs.symbols = parsed.Symbols
	}
	obs.refs = languages.ExtractDependencies(content, obs.language)

	if manifest.IsManifest(path) {
		m, err := manifest.Parse(path, content)
		if err != nil {
			t.logger.Warn("skipping malformed manifest", zap.String("path", path), zap.Error(err))
		} else {
			obs.manifest = m
		}
	}
	return obs
}

// readAll observes paths with bounded parallelism. Results keep the order
// of paths.
func (t *Tracker) readAll(ctx context.Context, paths []string) ([]observation, error) {
	out := make([]observation, len(paths))
	var (
		progressMu sync.Mutex
		done       int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.ScanWorkers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rel, _ := t.rel(path)
			out[i] = t.observe(path, rel)
			if t.opts.Progress != nil {
				progressMu.Lock()
				done++
				t.opts.Progress(done, len(paths), rel)
				progressMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// discover lists every non-ignored file under dir within the depth limit,
// sorted. An unreadable dir is ErrRootUnavailable; unreadable
// subdirectories are logged and skipped.
func (t *Tracker) discover(dir string) ([]string, error) {
	entries, err := t.store.ListDirectory(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootUnavailable, dir, err)
	}

	var files []string
	var walk func(dir string, entries []storage.Entry)
	walk = func(dir string, entries []storage.Entry) {
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name)
			rel, ok := t.rel(path)
			if !ok || t.skip(rel, entry.IsDir) {
				continue
			}
			if !entry.IsDir {
				files = append(files, path)
				continue
			}
			if depth(rel)+1 > t.opts.MaxDepth {
				continue
			}
			children, err := t.store.ListDirectory(path)
			if err != nil {
				t.logger.Warn("skipping unreadable directory", zap.String("path", path), zap.Error(err))
				continue
			}
			walk(path, children)
		}
	}
	walk(dir, entries)
	return fileutil.SortedCopy(files), nil
}

// skip reports whether rel is ignored or deeper than MaxDepth.
func (t *Tracker) skip(rel string, isDir bool) bool {
	if depth(rel) > t.opts.MaxDepth {
		return true
	}
	return t.matcher.Load().ShouldIgnore(rel, isDir)
}

func (t *Tracker) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(t.root, path)
}

// rel returns the slash-separated path of path relative to the root, and
// false for paths outside it.
func (t *Tracker) rel(path string) (string, bool) {
	rel, err := filepath.Rel(t.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

func depth(rel string) int {
	return strings.Count(rel, "/")
}

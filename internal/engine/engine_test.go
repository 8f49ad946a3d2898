package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/morozRed/cmdtrack/internal/config"
	"github.com/morozRed/cmdtrack/internal/registry"
	"github.com/morozRed/cmdtrack/internal/state"
	"github.com/morozRed/cmdtrack/internal/storage"
	"github.com/morozRed/cmdtrack/internal/synth"
	"github.com/morozRed/cmdtrack/internal/tracker"
	"github.com/morozRed/cmdtrack/internal/watch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingRunner struct {
	mu    sync.Mutex
	calls []synth.Cmd
}

func (r *recordingRunner) Run(ctx context.Context, c synth.Cmd) (synth.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return synth.Output{Command: strings.Join(c.Argv, " "), Dir: c.Dir}, nil
}

func memoryEngine(t *testing.T, files map[string]string, mutate func(*config.Config)) (*Engine, *storage.Memory, *recordingRunner) {
	t.Helper()
	store := storage.NewMemory()
	store.MkdirAll("/proj")
	for rel, content := range files {
		require.NoError(t, store.WriteFile("/proj/"+rel, []byte(content)))
	}
	cfg := config.Default()
	cfg.Watch = string(watch.ModeOff)
	if mutate != nil {
		mutate(cfg)
	}
	runner := &recordingRunner{}
	e := New(Options{Config: cfg, Storage: store, Runner: runner})
	t.Cleanup(e.Close)
	return e, store, runner
}

func commandNames(e *Engine) []string {
	var out []string
	for _, d := range e.GetCommands(registry.Filter{}) {
		out = append(out, d.Name)
	}
	return out
}

func trackedRel(files []state.TrackedFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out
}

func TestScenarioEmptyTextAndJavaScript(t *testing.T) {
	e, _, _ := memoryEngine(t, map[string]string{
		"a.txt": "",
		"b.js":  "function foo(){}",
	}, nil)
	require.NoError(t, e.StartTracking(context.Background(), "/proj"))

	files := e.GetTrackedFiles()
	require.Len(t, files, 2)
	for _, file := range files {
		require.NotEmpty(t, file.Commands)
	}

	names := commandNames(e)
	require.Contains(t, names, "init-a")
	require.Contains(t, names, "call-b-foo")
	require.Contains(t, names, "open-b")
	for _, name := range names {
		require.False(t, strings.HasPrefix(name, "call-a-"), name)
	}
}

func TestScenarioManifestScript(t *testing.T) {
	e, _, runner := memoryEngine(t, map[string]string{
		"package.json": `{"name": "demo", "scripts": {"build": "tsc -p ."}, "dependencies": {"react": "^18.0.0"}}`,
	}, nil)
	require.NoError(t, e.StartTracking(context.Background(), "/proj"))

	require.Contains(t, commandNames(e), "npm-build")
	res := e.ExecuteCommand(context.Background(), "npm-build")
	require.True(t, res.Found)
	require.True(t, res.OK, res.Error)
	require.Len(t, runner.calls, 1)
	require.Equal(t, []string{"npm", "run", "build"}, runner.calls[0].Argv)
	require.Equal(t, "/proj", runner.calls[0].Dir)

	res = e.ExecuteCommand(context.Background(), "use-react")
	require.True(t, res.OK)
	require.Equal(t, synth.DependencyInfo{Name: "react", Manifest: "package.json", Kind: "npm"}, res.Value)
}

func TestIgnoredDirectoriesNeverTracked(t *testing.T) {
	e, _, _ := memoryEngine(t, map[string]string{
		".git/HEAD":                      "ref: refs/heads/main",
		".git/objects/ab/cdef":           "blob",
		"src/.git/nested/deeper/file.go": "package x",
		"src/main.go":                    "package main",
		"secret.key":                     "k",
		".cmdtrackignore":                "*.key\n",
	}, nil)
	require.NoError(t, e.StartTracking(context.Background(), "/proj"))

	require.Equal(t, []string{".cmdtrackignore", "src/main.go"}, trackedRel(e.GetTrackedFiles()))
}

func TestStartTrackingIsIdempotentAndSwitchesRoots(t *testing.T) {
	e, store, _ := memoryEngine(t, map[string]string{"a.txt": "a"}, nil)
	require.NoError(t, store.WriteFile("/other/z.txt", []byte("z")))
	ctx := context.Background()

	require.NoError(t, e.StartTracking(ctx, "/proj"))
	first := e.GetTrackedFiles()
	require.NoError(t, e.StartTracking(ctx, "/proj"))
	require.Equal(t, first, e.GetTrackedFiles())
	require.Equal(t, "/proj", e.Root())

	require.NoError(t, e.StartTracking(ctx, "/other"))
	require.Equal(t, "/other", e.Root())
	names := commandNames(e)
	require.Contains(t, names, "open-z")
	require.NotContains(t, names, "open-a")
}

func TestStartTrackingUnavailableRoot(t *testing.T) {
	e, store, _ := memoryEngine(t, nil, nil)
	err := e.StartTracking(context.Background(), "/missing")
	require.ErrorIs(t, err, tracker.ErrRootUnavailable)
	require.False(t, e.Tracking())

	require.NoError(t, store.WriteFile("/file.txt", []byte("x")))
	require.ErrorIs(t, e.StartTracking(context.Background(), "/file.txt"), tracker.ErrRootUnavailable)
}

func TestStopTrackingKeepsUserCommands(t *testing.T) {
	e, _, _ := memoryEngine(t, map[string]string{"a.txt": "a"}, nil)
	require.NoError(t, e.StartTracking(context.Background(), "/proj"))
	e.RegisterCommand("Deploy App", func(ctx context.Context, args ...string) (any, error) {
		return "deployed", nil
	}, "ship it")

	e.StopTracking()
	e.StopTracking()

	require.False(t, e.Tracking())
	require.Nil(t, e.GetTrackedFiles())
	require.Empty(t, e.Root())
	require.Equal(t, []string{"deploy-app"}, commandNames(e))
	res := e.ExecuteCommand(context.Background(), "deploy app")
	require.True(t, res.OK)
	require.Equal(t, "deployed", res.Value)
}

func TestNameNormalizationCollision(t *testing.T) {
	e, _, _ := memoryEngine(t, nil, nil)
	e.RegisterCommand("Open File", nil, "first")
	e.RegisterCommand("open-file", nil, "second")

	commands := e.GetCommands(registry.Filter{})
	require.Len(t, commands, 1)
	require.Equal(t, "open-file", commands[0].Name)
	require.Equal(t, "second", commands[0].Description)
}

func TestUserCommandShadowsSynthesized(t *testing.T) {
	e, _, _ := memoryEngine(t, map[string]string{"a.txt": "hello"}, nil)
	require.NoError(t, e.StartTracking(context.Background(), "/proj"))

	e.RegisterCommand("open-a", func(ctx context.Context, args ...string) (any, error) {
		return "custom", nil
	}, "custom open")
	res := e.ExecuteCommand(context.Background(), "open-a")
	require.Equal(t, "custom", res.Value)

	require.True(t, e.UnregisterCommand("open-a"))
	res = e.ExecuteCommand(context.Background(), "open-a")
	require.Equal(t, "hello", res.Value)
}

func TestFuzzySuggestions(t *testing.T) {
	e, _, _ := memoryEngine(t, map[string]string{"b.js": "function foo() {}"}, nil)
	require.NoError(t, e.StartTracking(context.Background(), "/proj"))

	res := e.ExecuteCommand(context.Background(), "call-b-fo")
	require.False(t, res.Found)
	require.ErrorIs(t, res.Err, registry.ErrNotFound)
	require.LessOrEqual(t, len(res.Suggestions), 5)
	require.Contains(t, res.Suggestions, "call-b-foo")

	hits := e.SearchCommands("foo", 3)
	require.NotEmpty(t, hits)
	require.Equal(t, "call-b-foo", hits[0].Name)
}

func TestRescanRemovesDeletedFilesAndEdges(t *testing.T) {
	e, store, _ := memoryEngine(t, map[string]string{
		"app.py":  "import util\n\ndef main():\n    util.go()\n",
		"util.py": "def go():\n    pass\n",
	}, nil)
	ctx := context.Background()
	require.NoError(t, e.StartTracking(ctx, "/proj"))
	require.Equal(t, []string{"/proj/app.py"}, e.Graph().Dependents("/proj/util.py"))

	before := commandNames(e)
	require.NoError(t, e.Rescan(ctx))
	require.Equal(t, before, commandNames(e))

	store.Remove("/proj/app.py")
	require.NoError(t, e.Rescan(ctx))
	require.Equal(t, []string{"util.py"}, trackedRel(e.GetTrackedFiles()))
	require.Empty(t, e.Graph().Dependents("/proj/util.py"))
	require.NotContains(t, commandNames(e), "open-app")
}

func TestPollingPicksUpChanges(t *testing.T) {
	e, store, _ := memoryEngine(t, map[string]string{"a.txt": "a"}, func(cfg *config.Config) {
		cfg.Watch = string(watch.ModeNative)
		cfg.PollInterval = 10 * time.Millisecond
	})
	require.NoError(t, e.StartTracking(context.Background(), "/proj"))
	require.Equal(t, watch.ModePoll, e.WatchMode())

	require.NoError(t, store.WriteFile("/proj/new.rb", []byte("def hello\nend\n")))
	require.Eventually(t, func() bool {
		_, ok := e.registry.Lookup("call-new-hello")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	e.StopTracking()
	require.Empty(t, e.WatchMode())
}

func TestNativeWatchTracksChanges(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	mustWrite("keep.go", "package keep\n")
	mustWrite("scratch.tmp", "tmp")

	cfg := config.Default()
	cfg.Debounce = 20 * time.Millisecond
	cfg.AncestorHops = 0
	e := New(Options{Config: cfg, Runner: &recordingRunner{}})
	defer e.Close()

	require.NoError(t, e.StartTracking(context.Background(), root))
	require.Equal(t, watch.ModeNative, e.WatchMode())
	require.Len(t, e.GetTrackedFiles(), 2)

	mustWrite("lib/helper.py", "def assist():\n    pass\n")
	require.Eventually(t, func() bool {
		_, ok := e.registry.Lookup("call-helper-assist")
		return ok
	}, 3*time.Second, 20*time.Millisecond)

	mustWrite(config.IgnoreFileName, "*.tmp\n")
	require.Eventually(t, func() bool {
		for _, f := range e.GetTrackedFiles() {
			if f.RelPath == "scratch.tmp" {
				return false
			}
		}
		return true
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(root, "keep.go")))
	require.Eventually(t, func() bool {
		_, ok := e.registry.Lookup("open-keep")
		return !ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestFailingCommandReportsResult(t *testing.T) {
	e, _, _ := memoryEngine(t, nil, nil)
	e.RegisterCommand("explode", func(ctx context.Context, args ...string) (any, error) {
		return nil, errors.New("kaboom")
	}, "")
	res := e.ExecuteCommand(context.Background(), "explode")
	require.True(t, res.Found)
	require.False(t, res.OK)
	require.Equal(t, "kaboom", res.Error)
	require.Len(t, e.History(), 1)
}

func TestRestartTracking(t *testing.T) {
	e, store, _ := memoryEngine(t, map[string]string{"a.txt": "a", "b.txt": "b"}, nil)
	ctx := context.Background()
	require.Error(t, e.RestartTracking(ctx, ""))
	require.NoError(t, e.StartTracking(ctx, "/proj"))

	require.NoError(t, store.WriteFile("/proj/.cmdtrackignore", []byte("b.txt\n")))
	require.NoError(t, e.RestartTracking(ctx, ""))
	require.Equal(t, []string{".cmdtrackignore", "a.txt"}, trackedRel(e.GetTrackedFiles()))
}

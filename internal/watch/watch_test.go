package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/morozRed/cmdtrack/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu      sync.Mutex
	applied []string
	rescans atomic.Int32
}

func (r *recorder) Apply(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, path)
	return nil
}

func (r *recorder) Rescan(ctx context.Context) error {
	r.rescans.Add(1)
	return nil
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.applied...)
}

func (r *recorder) sawPath(path string) bool {
	for _, p := range r.paths() {
		if p == path {
			return true
		}
	}
	return false
}

func TestDebouncerCoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 5; i++ {
		i := int32(i)
		d.Trigger("a.txt", func() {
			calls.Add(1)
			last.Store(i)
		})
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, int32(5), last.Load())
}

func TestDebouncerKeysAreIndependent(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	d.Trigger("a", func() { calls.Add(1) })
	d.Trigger("b", func() { calls.Add(1) })
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerCancelFlushStop(t *testing.T) {
	d := NewDebouncer(time.Hour)

	var calls atomic.Int32
	d.Trigger("cancelled", func() { calls.Add(100) })
	d.Cancel("cancelled")
	d.Trigger("flushed", func() { calls.Add(1) })
	require.Equal(t, 1, d.Pending())

	d.Flush()
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, 0, d.Pending())

	d.Trigger("dropped", func() { calls.Add(10) })
	d.Stop()
	d.Stop()
	d.Trigger("after-stop", func() { calls.Add(1000) })
	d.Flush()
	require.Equal(t, int32(1), calls.Load())
}

func TestParseMode(t *testing.T) {
	for _, value := range []string{"native", "poll", "off"} {
		mode, err := ParseMode(value)
		require.NoError(t, err)
		require.Equal(t, Mode(value), mode)
	}
	mode, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeNative, mode)

	_, err = ParseMode("inotify")
	require.Error(t, err)
}

func TestSchedulerFallsBackToPolling(t *testing.T) {
	store := storage.NewMemory()
	store.MkdirAll("/proj")
	rec := &recorder{}

	s := New(store, Options{PollInterval: 10 * time.Millisecond})
	require.NoError(t, s.Start(context.Background(), "/proj", rec))
	require.Equal(t, ModePoll, s.Mode())
	require.Error(t, s.Start(context.Background(), "/proj", rec))

	require.Eventually(t, func() bool { return rec.rescans.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
	require.False(t, s.Running())

	after := rec.rescans.Load()
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, after, rec.rescans.Load())
}

func TestSchedulerOffDeliversNothing(t *testing.T) {
	store := storage.NewMemory()
	rec := &recorder{}

	s := New(store, Options{Mode: ModeOff, PollInterval: 5 * time.Millisecond})
	require.NoError(t, s.Start(context.Background(), "/proj", rec))
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	require.Zero(t, rec.rescans.Load())
	require.Empty(t, rec.paths())
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := New(storage.NewMemory(), Options{})
	s.Stop()
	require.False(t, s.Running())
}

func TestSchedulerNativeWatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "skip"), 0o755))
	rec := &recorder{}

	s := New(storage.NewOS(nil), Options{
		Debounce:     20 * time.Millisecond,
		AncestorHops: -1,
		Skip: func(path string, isDir bool) bool {
			return filepath.Base(path) == "skip"
		},
	})
	require.NoError(t, s.Start(context.Background(), root, rec))
	defer s.Stop()
	require.Equal(t, ModeNative, s.Mode())

	file := filepath.Join(root, "main.go")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0o644))
	}
	require.Eventually(t, func() bool { return rec.sawPath(file) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte("{}"), 0o644))
	require.Eventually(t, func() bool { return rec.rescans.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "skip", "x.txt"), []byte("x"), 0o644))
	time.Sleep(80 * time.Millisecond)
	require.False(t, rec.sawPath(filepath.Join(root, "skip", "x.txt")))
	require.False(t, rec.sawPath(filepath.Join(root, "package.json")))
}

func TestSchedulerAncestorSignalWatch(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "project")
	require.NoError(t, os.MkdirAll(root, 0o755))

	rec := &recorder{}
	s := New(storage.NewOS(nil), Options{Debounce: 20 * time.Millisecond, AncestorHops: 1})
	require.NoError(t, s.Start(context.Background(), root, rec))
	defer s.Stop()
	require.Equal(t, ModeNative, s.Mode())

	notes := filepath.Join(parent, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("n"), 0o644))
	time.Sleep(80 * time.Millisecond)
	require.Zero(t, rec.rescans.Load())
	require.False(t, rec.sawPath(notes))

	require.NoError(t, os.WriteFile(filepath.Join(parent, "package.json"), []byte("{}"), 0o644))
	require.Eventually(t, func() bool { return rec.rescans.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, rec.paths())
}

func TestSchedulerAncestorWatchDisabled(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "project")
	require.NoError(t, os.MkdirAll(root, 0o755))

	rec := &recorder{}
	s := New(storage.NewOS(nil), Options{Debounce: 20 * time.Millisecond, AncestorHops: -1})
	require.NoError(t, s.Start(context.Background(), root, rec))

	require.NoError(t, os.WriteFile(filepath.Join(parent, "package.json"), []byte("{}"), 0o644))
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	require.Zero(t, rec.rescans.Load())
}

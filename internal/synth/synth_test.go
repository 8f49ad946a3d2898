package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/morozRed/cmdtrack/internal/manifest"
	"github.com/morozRed/cmdtrack/internal/parser"
	"github.com/morozRed/cmdtrack/internal/storage"
)

type fakeRunner struct {
	calls []Cmd
	err   error
}

func (r *fakeRunner) Run(ctx context.Context, c Cmd) (Output, error) {
	r.calls = append(r.calls, c)
	return Output{Command: strings.Join(c.Argv, " "), Dir: c.Dir}, r.err
}

func planNames(plans []Planned) []string {
	out := make([]string, 0, len(plans))
	for _, p := range plans {
		out = append(out, p.Name)
	}
	return out
}

func findPlan(t *testing.T, plans []Planned, name string) Planned {
	t.Helper()
	for _, p := range plans {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("plan %q not found in %v", name, planNames(plans))
	return Planned{}
}

func TestKeyFor(t *testing.T) {
	cases := map[string]string{
		"a.txt":              "a",
		"src/Main File.go":   "main-file",
		".env":               "env",
		"pkg/archive.tar.gz": "archive-tar",
	}
	for rel, want := range cases {
		if got := KeyFor(rel); got != want {
			t.Fatalf("KeyFor(%q) = %q, want %q", rel, got, want)
		}
	}
}

func TestPlanEmptyFileGetsInitOnly(t *testing.T) {
	plans := Plan(File{Root: "/p", Path: "/p/a.txt", RelPath: "a.txt", Language: "text"}, DefaultTemplates())
	names := planNames(plans)

	require.Contains(t, names, "init-a")
	require.Contains(t, names, "open-a")
	for _, name := range names {
		require.False(t, strings.HasPrefix(name, "call-"), "unexpected symbol command %s", name)
	}
}

func TestPlanSymbols(t *testing.T) {
	file := File{
		Root:     "/p",
		Path:     "/p/b.js",
		RelPath:  "b.js",
		Language: "javascript",
		Content:  []byte("function foo() {}\nconst x = 1\n"),
		Symbols: []parser.Symbol{
			{Name: "foo", Kind: parser.SymbolFunction, Line: 1},
			{Name: "x", Kind: parser.SymbolConstant, Line: 2},
			{Name: "foo", Kind: parser.SymbolFunction, Line: 1},
		},
	}
	plans := Plan(file, DefaultTemplates())
	names := planNames(plans)

	require.Contains(t, names, "call-b-foo")
	require.Contains(t, names, "check-b")
	require.NotContains(t, names, "init-b")
	require.NotContains(t, names, "call-b-x")

	seen := map[string]bool{}
	for _, name := range names {
		require.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}

	call := findPlan(t, plans, "call-b-foo")
	require.Equal(t, ActionInvokeSymbol, call.Kind)
	require.NotNil(t, call.Symbol)
	require.Equal(t, 1.2, call.Weight)
	require.Contains(t, call.Tags, "javascript")

	run := findPlan(t, plans, "run-b")
	require.Equal(t, []string{"node", "/p/b.js"}, run.Argv)
	require.Equal(t, "/p", run.Dir)
}

func TestPlanManifest(t *testing.T) {
	m := &manifest.Manifest{
		Kind:         manifest.KindNPM,
		Scripts:      []manifest.Script{{Name: "build", Command: "tsc"}},
		Dependencies: []string{"react"},
	}
	root := Plan(File{
		Root: "/p", Path: "/p/package.json", RelPath: "package.json",
		Language: "json", Content: []byte("{}"), Manifest: m,
	}, DefaultTemplates())
	names := planNames(root)
	require.Contains(t, names, "npm-build")
	require.Contains(t, names, "use-react")
	require.Contains(t, names, "validate-package")

	build := findPlan(t, root, "npm-build")
	require.Equal(t, []string{"npm", "run", "build"}, build.Argv)
	require.Equal(t, "/p", build.Dir)
	require.Equal(t, ActionRunScript, build.Kind)

	nested := Plan(File{
		Root: "/p", Path: "/p/web/app/package.json", RelPath: "web/app/package.json",
		Language: "json", Content: []byte("{}"), Manifest: m,
	}, DefaultTemplates())
	names = planNames(nested)
	require.Contains(t, names, "npm-web-app-build")
	require.Contains(t, names, "use-web-app-react")
	require.Equal(t, "/p/web/app", findPlan(t, nested, "npm-web-app-build").Dir)
}

func TestPlanIsPure(t *testing.T) {
	file := File{Root: "/p", Path: "/p/main.go", RelPath: "main.go", Language: "go", Content: []byte("package main\n")}
	first := Plan(file, DefaultTemplates())
	second := Plan(file, DefaultTemplates())
	require.Equal(t, planNames(first), planNames(second))
	require.Contains(t, planNames(first), "vet-main")
	require.Equal(t, []string{"go", "vet", "./."}, findPlan(t, first, "vet-main").Argv)
}

func newTestBinder(store storage.Storage, runner Runner, lookPath func(string) (string, error)) *Binder {
	b := NewBinder(store, runner)
	b.Editor = []string{"ed"}
	b.LookPath = lookPath
	return b
}

func found(string) (string, error) { return "/usr/bin/x", nil }

func missing(string) (string, error) { return "", errors.New("not found") }

func bindByName(t *testing.T, b *Binder, file File, name string) func(...string) (any, error) {
	t.Helper()
	for _, desc := range New(nil, b).Synthesize(file) {
		if desc.Name == name {
			require.Equal(t, file.Path, desc.Owner)
			return func(args ...string) (any, error) {
				return desc.Action(context.Background(), args...)
			}
		}
	}
	t.Fatalf("descriptor %q not synthesized", name)
	return nil
}

func TestBindOpenReturnsSnapshot(t *testing.T) {
	content := []byte("hello")
	file := File{Root: "/p", Path: "/p/a.txt", RelPath: "a.txt", Language: "text", Content: content}
	open := bindByName(t, newTestBinder(nil, &fakeRunner{}, found), file, "open-a")

	content[0] = 'j'
	value, err := open()
	require.NoError(t, err)
	require.Equal(t, "hello", value)
}

func TestBindExecute(t *testing.T) {
	runner := &fakeRunner{}
	file := File{Root: "/p", Path: "/p/src/b.js", RelPath: "src/b.js", Language: "javascript", Content: []byte("x()")}

	run := bindByName(t, newTestBinder(nil, runner, found), file, "run-b")
	_, err := run("--flag")
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	require.Equal(t, []string{"node", "/p/src/b.js", "--flag"}, runner.calls[0].Argv)
	require.Equal(t, "/p/src", runner.calls[0].Dir)

	run = bindByName(t, newTestBinder(nil, runner, missing), file, "run-b")
	_, err = run()
	require.ErrorIs(t, err, ErrNoInterpreter)

	text := File{Root: "/p", Path: "/p/a.txt", RelPath: "a.txt", Language: "text", Content: []byte("x")}
	run = bindByName(t, newTestBinder(nil, runner, found), text, "run-a")
	_, err = run()
	require.ErrorIs(t, err, ErrNoInterpreter)
	require.Len(t, runner.calls, 1)
}

func TestBindEditIsInteractive(t *testing.T) {
	runner := &fakeRunner{}
	file := File{Root: "/p", Path: "/p/a.txt", RelPath: "a.txt", Language: "text", Content: []byte("x")}
	edit := bindByName(t, newTestBinder(nil, runner, found), file, "edit-a")

	_, err := edit()
	require.NoError(t, err)
	require.Equal(t, []string{"ed", "/p/a.txt"}, runner.calls[0].Argv)
	require.True(t, runner.calls[0].Interactive)
}

func TestBindRunnerFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	file := File{Root: "/p", Path: "/p/main.go", RelPath: "main.go", Language: "go", Content: []byte("package main\n")}
	vet := bindByName(t, newTestBinder(nil, runner, found), file, "vet-main")

	_, err := vet()
	require.EqualError(t, err, "boom")
}

func TestBindInitialize(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.WriteFile("/p/a.txt", nil))
	file := File{Root: "/p", Path: "/p/a.txt", RelPath: "a.txt", Language: "text"}
	initialize := bindByName(t, newTestBinder(store, &fakeRunner{}, found), file, "init-a")

	value, err := initialize()
	require.NoError(t, err)
	require.Equal(t, "/p/a.txt", value)

	data, err := store.ReadFile("/p/a.txt")
	require.NoError(t, err)
	require.Equal(t, "a\n", string(data))

	_, err = initialize()
	require.Error(t, err)
}

func TestBindSymbolAndDependency(t *testing.T) {
	file := File{
		Root: "/p", Path: "/p/b.js", RelPath: "b.js", Language: "javascript", Content: []byte("function foo(a) {}"),
		Symbols: []parser.Symbol{{Name: "foo", Kind: parser.SymbolFunction, Signature: "foo(a)", Line: 1}},
	}
	call := bindByName(t, newTestBinder(nil, &fakeRunner{}, found), file, "call-b-foo")
	value, err := call("1")
	require.NoError(t, err)
	require.Equal(t, SymbolCall{Path: "/p/b.js", Symbol: "foo", Kind: "func", Signature: "foo(a)", Line: 1, Args: []string{"1"}}, value)

	pkg := File{
		Root: "/p", Path: "/p/package.json", RelPath: "package.json", Language: "json", Content: []byte("{}"),
		Manifest: &manifest.Manifest{Kind: manifest.KindNPM, Dependencies: []string{"react"}},
	}
	use := bindByName(t, newTestBinder(nil, &fakeRunner{}, found), pkg, "use-react")
	value, err = use()
	require.NoError(t, err)
	require.Equal(t, DependencyInfo{Name: "react", Manifest: "package.json", Kind: "npm"}, value)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		language string
		content  string
		ok       bool
	}{
		{"json", `{"a": 1}`, true},
		{"json", `{"a": }`, false},
		{"yaml", "a: 1\n---\nb: 2\n", true},
		{"yaml", "a: [1, 2\n", false},
		{"toml", "a = 1\n[b]\nc = \"d\"\n", true},
		{"toml", "= 1\n", false},
		{"text", "anything", false},
	}
	for _, tc := range cases {
		err := Validate(tc.language, []byte(tc.content))
		if tc.ok && err != nil {
			t.Fatalf("Validate(%s, %q) unexpected error: %v", tc.language, tc.content, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("Validate(%s, %q) expected error", tc.language, tc.content)
		}
	}
}

func TestLineAnalyzer(t *testing.T) {
	file := File{
		Path:     "/p/main.go",
		Language: "go",
		Content:  []byte("// TODO: split\n\nfunc main() {}\n"),
		Symbols:  []parser.Symbol{{Name: "main"}},
	}
	report, err := LineAnalyzer{}.Analyze(context.Background(), file)
	require.NoError(t, err)
	require.Equal(t, 3, report.Lines)
	require.Equal(t, 1, report.BlankLines)
	require.Equal(t, 1, report.CommentLines)
	require.Equal(t, 1, report.Markers["TODO"])
	require.Equal(t, 1, report.Symbols)
	require.Equal(t, 14, report.LongestLine)
}

func TestProbeInterpretersWithLookPath(t *testing.T) {
	presence := DetectLanguagePresence([]string{"go", "python", "text"})
	require.True(t, presence["go"])
	require.False(t, presence["ruby"])
	_, ok := presence["text"]
	require.False(t, ok)

	capabilities := ProbeInterpretersWithLookPath(presence, func(file string) (string, error) {
		if file == "go" {
			return "/usr/local/go/bin/go", nil
		}
		return "", errors.New("not found")
	})
	require.True(t, capabilities["go"].Available)
	require.Equal(t, "interpreter_not_found", capabilities["python"].Reason)
	require.Equal(t, "language_not_present", capabilities["ruby"].Reason)
}

func TestStarter(t *testing.T) {
	require.Equal(t, "package myutil\n", Starter("go", "my-util"))
	require.Equal(t, "notes\n", Starter("text", "notes"))
	require.Equal(t, "# settings\n", Starter("toml", "settings"))
	for language := range starters {
		require.NotEmpty(t, Starter(language, "x"), language)
	}
}

func TestBindInitializeWritesTOMLStarter(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.WriteFile("/p/settings.toml", nil))
	file := File{Root: "/p", Path: "/p/settings.toml", RelPath: "settings.toml", Language: "toml"}
	initialize := bindByName(t, newTestBinder(store, &fakeRunner{}, found), file, "init-settings")

	_, err := initialize()
	require.NoError(t, err)

	data, err := store.ReadFile("/p/settings.toml")
	require.NoError(t, err)
	require.Equal(t, "# settings\n", string(data))
}

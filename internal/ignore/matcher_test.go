package ignore

import "testing"

func TestMatcher_DefaultAndUserOverrides(t *testing.T) {
	m := NewMatcher(DefaultNames, []string{
		"vendor/**",
		"!vendor/keep/file.go",
		"*.tmp",
	})

	cases := []struct {
		path    string
		isDir   bool
		ignored bool
	}{
		{path: ".git", isDir: true, ignored: true},
		{path: ".git/config", isDir: false, ignored: true},
		{path: "deep/nested/.git/HEAD", isDir: false, ignored: true},
		{path: "node_modules/pkg/index.js", isDir: false, ignored: true},
		{path: "vendor/lib/a.go", isDir: false, ignored: true},
		{path: "vendor/keep/file.go", isDir: false, ignored: false},
		{path: "nested/cache.tmp", isDir: false, ignored: true},
		{path: "src/main.go", isDir: false, ignored: false},
		{path: "build", isDir: false, ignored: false},
		{path: "build", isDir: true, ignored: true},
		{path: ".", isDir: true, ignored: false},
	}

	for _, tc := range cases {
		got := m.ShouldIgnore(tc.path, tc.isDir)
		if got != tc.ignored {
			t.Fatalf("path %s: expected ignored=%v, got %v", tc.path, tc.ignored, got)
		}
	}
}

func TestMatcher_NegatedDirectoryRule(t *testing.T) {
	m := NewMatcher(nil, []string{
		"build/",
		"!build/include/",
	})

	if !m.ShouldIgnore("build/out/file.go", false) {
		t.Fatalf("expected build/out/file.go to be ignored")
	}
	if m.ShouldIgnore("build/include/file.go", false) {
		t.Fatalf("expected build/include/file.go to be included")
	}
}

func TestMatcher_GitIgnoreLines(t *testing.T) {
	m := NewMatcher([]string{".git"}, nil).WithGitIgnore([]string{
		"# generated",
		"*.log",
		"tmp/",
	})

	if !m.ShouldIgnore("server/debug.log", false) {
		t.Fatalf("expected *.log from .gitignore to be ignored")
	}
	if !m.ShouldIgnore("tmp", true) {
		t.Fatalf("expected tmp/ directory from .gitignore to be ignored")
	}
	if m.ShouldIgnore("server/main.go", false) {
		t.Fatalf("did not expect server/main.go to be ignored")
	}
}

func TestMatcher_DoubleStarMatchesZeroDirectories(t *testing.T) {
	rules := []string{"docs/**/draft.md"}
	fromRules := NewMatcher(nil, rules)
	fromGitIgnore := NewMatcher(nil, nil).WithGitIgnore(rules)

	cases := []struct {
		path    string
		ignored bool
	}{
		{path: "docs/draft.md", ignored: true},
		{path: "docs/a/b/draft.md", ignored: true},
		{path: "docs/final.md", ignored: false},
		{path: "notes/draft.md", ignored: false},
	}

	for _, tc := range cases {
		for name, m := range map[string]*Matcher{"rules": fromRules, "gitignore": fromGitIgnore} {
			if got := m.ShouldIgnore(tc.path, false); got != tc.ignored {
				t.Fatalf("%s: path %s: expected ignored=%v, got %v", name, tc.path, tc.ignored, got)
			}
		}
	}
}

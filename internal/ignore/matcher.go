package ignore

import (
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultNames are directory names pruned from every scan: VCS metadata,
// dependency caches and build output.
var DefaultNames = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	"bower_components",
	"vendor",
	"__pycache__",
	".venv",
	"venv",
	".tox",
	".mypy_cache",
	".pytest_cache",
	".next",
	".cache",
	"dist",
	"build",
	"target",
	"out",
	"coverage",
}

// Matcher applies gitignore rules with "last rule wins" behavior. Both the
// cmdtrack rules and the project's .gitignore are compiled by go-gitignore,
// so a pattern means the same thing in either file.
type Matcher struct {
	rules     *gitignore.GitIgnore
	gitignore *gitignore.GitIgnore
}

// NewMatcher builds a matcher from directory names and user-provided
// .cmdtrackignore lines. Names become directory rules and come first so
// user negation rules can override them.
func NewMatcher(names []string, userRules []string) *Matcher {
	lines := make([]string, 0, len(names)+len(userRules))
	for _, name := range names {
		name = strings.Trim(strings.TrimSpace(name), "/")
		if name == "" {
			continue
		}
		lines = append(lines, name+"/")
	}
	lines = append(lines, userRules...)
	return &Matcher{rules: gitignore.CompileIgnoreLines(lines...)}
}

// WithGitIgnore layers the project's .gitignore lines on top of the rules.
// Paths matched by either source are ignored.
func (m *Matcher) WithGitIgnore(lines []string) *Matcher {
	if len(lines) == 0 {
		return m
	}
	m.gitignore = gitignore.CompileIgnoreLines(lines...)
	return m
}

// ShouldIgnore returns true when relPath should be excluded.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = normalizePath(relPath)
	if relPath == "" || relPath == "." {
		return false
	}
	// Directory rules ("build/") only match with the trailing slash.
	if isDir {
		relPath += "/"
	}
	if m.rules.MatchesPath(relPath) {
		return true
	}
	return m.gitignore != nil && m.gitignore.MatchesPath(relPath)
}

func normalizePath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")
	return path
}

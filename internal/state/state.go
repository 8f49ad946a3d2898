package state

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/morozRed/cmdtrack/internal/manifest"
	"github.com/morozRed/cmdtrack/internal/parser"
)

// TrackedFile is the last successful observation of one file. Entries are
// replaced wholesale on change, never edited in place, so a snapshot handed
// out earlier stays consistent.
type TrackedFile struct {
	Path      string             `json:"path"`
	RelPath   string             `json:"rel_path"`
	Language  string             `json:"language"`
	Content   []byte             `json:"-"`
	Hash      string             `json:"hash"`
	Size      int64              `json:"size"`
	ModTime   time.Time          `json:"mod_time"`
	Key       string             `json:"key"`
	Symbols   []parser.Symbol    `json:"symbols,omitempty"`
	Refs      []string           `json:"refs,omitempty"`
	Manifest  *manifest.Manifest `json:"manifest,omitempty"`
	Commands  []string           `json:"commands"`
	// Planned holds the synthesized names before cross-file collisions were
	// resolved; Commands holds the registered ones.
	Planned   []string           `json:"-"`
	TrackedAt time.Time          `json:"tracked_at"`
}

// State is the tracker's in-memory file table. It is not safe for
// concurrent use; the tracker serializes access.
type State struct {
	Files map[string]TrackedFile
}

// NewState creates a new empty state
func NewState() *State {
	return &State{Files: make(map[string]TrackedFile)}
}

// Set replaces the entry for file.Path.
func (s *State) Set(file TrackedFile) {
	s.Files[file.Path] = file
}

func (s *State) Get(path string) (TrackedFile, bool) {
	file, ok := s.Files[path]
	return file, ok
}

// HasChanged reports whether content differs from the stored snapshot. An
// untracked path always counts as changed.
func (s *State) HasChanged(path string, content []byte) bool {
	file, ok := s.Files[path]
	if !ok {
		return true
	}
	return !bytes.Equal(file.Content, content)
}

// RemoveFile removes a file from state tracking
func (s *State) RemoveFile(path string) bool {
	if _, ok := s.Files[path]; !ok {
		return false
	}
	delete(s.Files, path)
	return true
}

// RemoveUnder removes path and every tracked file below it, returning the
// removed paths sorted.
func (s *State) RemoveUnder(path string) []string {
	removed := make([]string, 0)
	for file := range s.Files {
		if Within(path, file) {
			removed = append(removed, file)
		}
	}
	for _, file := range removed {
		delete(s.Files, file)
	}
	sort.Strings(removed)
	return removed
}

// DeletedFiles returns the tracked files under dir that are missing from
// currentFiles, sorted.
func (s *State) DeletedFiles(dir string, currentFiles map[string]bool) []string {
	deleted := make([]string, 0)
	for file := range s.Files {
		if Within(dir, file) && !currentFiles[file] {
			deleted = append(deleted, file)
		}
	}
	sort.Strings(deleted)
	return deleted
}

// Within reports whether path is dir or lies below it.
func Within(dir, path string) bool {
	sep := string(filepath.Separator)
	return path == dir || strings.HasPrefix(path, strings.TrimSuffix(dir, sep)+sep)
}

// Paths returns all tracked paths sorted.
func (s *State) Paths() []string {
	out := make([]string, 0, len(s.Files))
	for path := range s.Files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (s *State) Len() int {
	return len(s.Files)
}

// Snapshot returns every tracked file sorted by path. Slices inside the
// entries are shared and must be treated as read-only.
func (s *State) Snapshot() []TrackedFile {
	out := make([]TrackedFile, 0, len(s.Files))
	for _, path := range s.Paths() {
		out = append(out, s.Files[path])
	}
	return out
}

// Package registry stores command descriptors and dispatches executions.
//
// Names are normalized before every lookup so "Open File" and "open-file"
// address the same entry. Several owners may synthesize the same name; they
// are kept ordered by owner and the smallest one is visible, with user
// commands (empty owner) always taking precedence. Execute and List never
// mutate the command set.
package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/morozRed/cmdtrack/internal/search"
)

// ErrNotFound is reported in Result.Err when no command matches a name.
var ErrNotFound = errors.New("command not found")

// Action is the executable part of a command. Args are passed through from
// the caller untouched.
type Action func(ctx context.Context, args ...string) (any, error)

// Descriptor is one registered command.
type Descriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Kind        string   `json:"kind,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Weight      float64  `json:"weight,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	Action      Action   `json:"-"`
}

// Option customizes a descriptor registered through Register.
type Option func(*Descriptor)

func WithKind(kind string) Option {
	return func(d *Descriptor) { d.Kind = kind }
}

func WithCategories(categories ...string) Option {
	return func(d *Descriptor) { d.Categories = append(d.Categories, categories...) }
}

func WithTags(tags ...string) Option {
	return func(d *Descriptor) { d.Tags = append(d.Tags, tags...) }
}

func WithWeight(weight float64) Option {
	return func(d *Descriptor) { d.Weight = weight }
}

// Options tunes lookup and dispatch behavior.
type Options struct {
	SuggestionLimit     int
	SimilarityThreshold float64
	ExecTimeout         time.Duration
	HistorySize         int
}

// DefaultOptions returns the standard dispatcher settings.
func DefaultOptions() Options {
	return Options{
		SuggestionLimit:     5,
		SimilarityThreshold: 0.5,
		ExecTimeout:         30 * time.Second,
		HistorySize:         100,
	}
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string][]Descriptor
	index   *search.Index

	opts    Options
	logger  *zap.Logger
	history *history
}

// New creates an empty registry. A nil logger disables logging.
func New(opts Options, logger *zap.Logger) *Registry {
	defaults := DefaultOptions()
	if opts.SuggestionLimit <= 0 {
		opts.SuggestionLimit = defaults.SuggestionLimit
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = defaults.SimilarityThreshold
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaults.HistorySize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string][]Descriptor),
		opts:    opts,
		logger:  logger.Named("registry"),
		history: newHistory(opts.HistorySize),
	}
}

// Normalize lower-cases name and collapses every run of characters outside
// [a-z0-9] into a single "-", trimming separators at both ends.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Register adds or replaces a user command. It returns the normalized name,
// or "" when name normalizes to nothing.
func (r *Registry) Register(name string, action Action, description string, opts ...Option) string {
	d := Descriptor{Name: name, Description: description, Action: action, Weight: 1}
	for _, opt := range opts {
		opt(&d)
	}
	return r.Put(d)
}

// Put stores d under its normalized name. An existing entry with the same
// owner is replaced; entries from other owners are kept behind or ahead of
// it according to owner order.
func (r *Registry) Put(d Descriptor) string {
	d.Name = Normalize(d.Name)
	if d.Name == "" {
		return ""
	}
	if d.Weight <= 0 {
		d.Weight = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(d)
	r.index = nil
	return d.Name
}

func (r *Registry) putLocked(d Descriptor) {
	list := r.entries[d.Name]
	for i := range list {
		if list[i].Owner == d.Owner {
			list[i] = d
			return
		}
	}
	list = append(list, d)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Owner < list[j].Owner })
	r.entries[d.Name] = list
}

// Unregister removes the visible entry for name, promoting the next owner.
func (r *Registry) Unregister(name string) bool {
	name = Normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	list, ok := r.entries[name]
	if !ok {
		return false
	}
	if len(list) == 1 {
		delete(r.entries, name)
	} else {
		r.entries[name] = append([]Descriptor(nil), list[1:]...)
	}
	r.index = nil
	return true
}

// RemoveOwner drops every entry owned by owner and returns how many were
// removed. Shadowed entries of other owners become visible again.
func (r *Registry) RemoveOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeOwnerLocked(owner)
}

// ReplaceOwner atomically swaps all of owner's entries for descriptors.
func (r *Registry) ReplaceOwner(owner string, descriptors []Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeOwnerLocked(owner)
	for _, d := range descriptors {
		d.Owner = owner
		d.Name = Normalize(d.Name)
		if d.Name == "" {
			continue
		}
		if d.Weight <= 0 {
			d.Weight = 1
		}
		r.putLocked(d)
	}
	r.index = nil
}

func (r *Registry) removeOwnerLocked(owner string) int {
	removed := 0
	for name, list := range r.entries {
		kept := list[:0:0]
		for _, d := range list {
			if d.Owner == owner {
				removed++
				continue
			}
			kept = append(kept, d)
		}
		switch {
		case len(kept) == 0:
			delete(r.entries, name)
		case len(kept) != len(list):
			r.entries[name] = kept
		}
	}
	if removed > 0 {
		r.index = nil
	}
	return removed
}

// Clear removes every command, user commands included.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string][]Descriptor)
	r.index = nil
}

// Lookup returns the visible descriptor for name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	name = Normalize(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	list, ok := r.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	return list[0], true
}

// Len returns the number of visible command names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Names returns the sorted visible command names owned by owner.
func (r *Registry) Names(owner string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name, list := range r.entries {
		for _, d := range list {
			if d.Owner == owner {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Category string
	Tag      string
	Owner    string
	Search   string
}

// List returns the visible descriptors matching filter, sorted by name.
func (r *Registry) List(filter Filter) []Descriptor {
	needle := strings.ToLower(strings.TrimSpace(filter.Search))

	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.entries))
	for name, list := range r.entries {
		d := list[0]
		if filter.Category != "" && !containsFold(d.Categories, filter.Category) {
			continue
		}
		if filter.Tag != "" && !containsFold(d.Tags, filter.Tag) {
			continue
		}
		if filter.Owner != "" && d.Owner != filter.Owner {
			continue
		}
		if needle != "" && !strings.Contains(name, needle) && !strings.Contains(strings.ToLower(d.Description), needle) {
			continue
		}
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Search ranks visible commands against query with BM25 over name, tags,
// description and owner, falling back to typo-tolerant name matching.
func (r *Registry) Search(query string, limit int) []Descriptor {
	index := r.searchIndex()

	results := search.Search(index, query, limit)

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(results))
	for _, res := range results {
		if list, ok := r.entries[res.ID]; ok {
			out = append(out, list[0])
		}
	}
	return out
}

// searchIndex builds the BM25 index lazily; mutations drop it. The index is
// derived data, so rebuilding it does not change the command set.
func (r *Registry) searchIndex() *search.Index {
	r.mu.RLock()
	index := r.index
	r.mu.RUnlock()
	if index != nil {
		return index
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		return r.index
	}
	entries := make([]search.Entry, 0, len(r.entries))
	for name, list := range r.entries {
		d := list[0]
		entries = append(entries, search.Entry{
			ID:          name,
			Name:        name,
			Description: d.Description,
			Owner:       d.Owner,
			Tags:        append(append([]string(nil), d.Tags...), d.Categories...),
		})
	}
	r.index = search.Build(entries)
	return r.index
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

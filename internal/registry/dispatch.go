package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/morozRed/cmdtrack/internal/search"
)

// Result describes one Execute call. Execute never panics and never returns
// an error directly; failures are reported here.
type Result struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Found       bool          `json:"found"`
	OK          bool          `json:"ok"`
	Value       any           `json:"value,omitempty"`
	Err         error         `json:"-"`
	Error       string        `json:"error,omitempty"`
	Suggestions []string      `json:"suggestions,omitempty"`
	Duration    time.Duration `json:"duration"`
}

type outcome struct {
	value any
	err   error
}

// Execute runs the command registered under name with args. A missing name
// yields Found=false plus suggestions. The action runs on its own goroutine
// with panic recovery and the configured timeout; a timed-out action keeps
// running until it observes ctx but its result is discarded.
func (r *Registry) Execute(ctx context.Context, name string, args ...string) (res Result) {
	started := time.Now()
	res = Result{ID: uuid.New(), Name: Normalize(name)}
	defer func() {
		res.Duration = time.Since(started)
		if res.Err != nil {
			res.Error = res.Err.Error()
		}
		r.history.add(res)
	}()

	d, ok := r.Lookup(name)
	if !ok {
		res.Err = fmt.Errorf("%w: %s", ErrNotFound, name)
		res.Suggestions = r.Suggest(name, r.opts.SuggestionLimit)
		r.logger.Debug("command not found",
			zap.String("name", res.Name),
			zap.Strings("suggestions", res.Suggestions),
		)
		return res
	}
	res.Found = true

	if d.Action == nil {
		res.Err = fmt.Errorf("command %s has no action", d.Name)
		return res
	}

	if r.opts.ExecTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.ExecTimeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("command %s panicked: %v", d.Name, rec)}
			}
		}()
		value, err := d.Action(ctx, args...)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		res.Value = out.value
		res.Err = out.err
	case <-ctx.Done():
		res.Err = fmt.Errorf("command %s: %w", d.Name, ctx.Err())
	}

	res.OK = res.Err == nil
	if !res.OK {
		r.logger.Warn("command failed",
			zap.String("name", d.Name),
			zap.String("owner", d.Owner),
			zap.Error(res.Err),
		)
	}
	return res
}

type suggestion struct {
	name  string
	score float64
}

// Suggest returns up to limit visible names close to query. Names or
// descriptions containing the query rank first; the rest must reach the
// similarity threshold. Scores are scaled by each command's weight.
func (r *Registry) Suggest(query string, limit int) []string {
	needle := Normalize(query)
	if needle == "" {
		return nil
	}
	if limit <= 0 {
		limit = r.opts.SuggestionLimit
	}
	rawNeedle := strings.ToLower(strings.TrimSpace(query))

	r.mu.RLock()
	candidates := make([]suggestion, 0)
	for name, list := range r.entries {
		d := list[0]
		similarity := search.Similarity(needle, name)
		score := 0.0
		switch {
		case strings.Contains(name, needle) || strings.Contains(strings.ToLower(d.Description), rawNeedle):
			score = 1 + similarity
		case similarity >= r.opts.SimilarityThreshold:
			score = similarity
		default:
			continue
		}
		candidates = append(candidates, suggestion{name: name, score: score * d.Weight})
	}
	r.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

// History returns the retained executions, oldest first.
func (r *Registry) History() []Result {
	return r.history.snapshot()
}

// history is a fixed-size ring of past executions, kept apart from the
// command set so Execute never touches registry state.
type history struct {
	mu    sync.Mutex
	items []Result
	next  int
	full  bool
}

func newHistory(size int) *history {
	return &history{items: make([]Result, size)}
}

func (h *history) add(res Result) {
	res.Value = nil
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[h.next] = res
	h.next = (h.next + 1) % len(h.items)
	if h.next == 0 {
		h.full = true
	}
}

func (h *history) snapshot() []Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		return append([]Result(nil), h.items[:h.next]...)
	}
	out := make([]Result, 0, len(h.items))
	out = append(out, h.items[h.next:]...)
	return append(out, h.items[:h.next]...)
}

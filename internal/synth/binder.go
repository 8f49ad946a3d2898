package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/morozRed/cmdtrack/internal/registry"
	"github.com/morozRed/cmdtrack/internal/storage"
)

// ErrNoInterpreter is returned by run- commands when the file's language has
// no interpreter or the interpreter binary is not installed.
var ErrNoInterpreter = errors.New("no interpreter available")

// SymbolCall is the value returned by invoke-symbol commands.
type SymbolCall struct {
	Path      string   `json:"path"`
	Symbol    string   `json:"symbol"`
	Kind      string   `json:"kind"`
	Signature string   `json:"signature,omitempty"`
	Parent    string   `json:"parent,omitempty"`
	Line      int      `json:"line"`
	Args      []string `json:"args,omitempty"`
}

// DependencyInfo is the value returned by dependency-info commands.
type DependencyInfo struct {
	Name     string `json:"name"`
	Manifest string `json:"manifest"`
	Kind     string `json:"kind"`
}

// Binder attaches behavior to planned commands. Zero-valued fields fall back
// to defaults in NewBinder.
type Binder struct {
	Storage  storage.Storage
	Runner   Runner
	Analyzer Analyzer
	Editor   []string
	LookPath func(file string) (string, error)
}

// NewBinder returns a binder writing through store and shelling out through
// runner. A nil runner uses ExecRunner.
func NewBinder(store storage.Storage, runner Runner) *Binder {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Binder{
		Storage:  store,
		Runner:   runner,
		Analyzer: LineAnalyzer{},
		Editor:   DefaultEditor(),
		LookPath: exec.LookPath,
	}
}

// DefaultEditor reads $VISUAL, then $EDITOR, then falls back to vi.
func DefaultEditor() []string {
	for _, key := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(key)); len(fields) > 0 {
			return fields
		}
	}
	return []string{"vi"}
}

// Bind turns p into a registry descriptor owned by file.Path. The action
// closes over a private copy of the file snapshot.
func (b *Binder) Bind(file File, p Planned) registry.Descriptor {
	snapshot := file
	snapshot.Content = append([]byte(nil), file.Content...)

	return registry.Descriptor{
		Name:        p.Name,
		Description: p.Description,
		Kind:        string(p.Kind),
		Categories:  append([]string(nil), p.Categories...),
		Tags:        append([]string(nil), p.Tags...),
		Weight:      p.Weight,
		Owner:       file.Path,
		Action:      b.action(snapshot, p),
	}
}

func (b *Binder) action(file File, p Planned) registry.Action {
	switch p.Kind {
	case ActionOpen:
		return func(ctx context.Context, args ...string) (any, error) {
			return string(file.Content), nil
		}
	case ActionEdit:
		return func(ctx context.Context, args ...string) (any, error) {
			argv := append(append([]string(nil), b.Editor...), args...)
			argv = append(argv, file.Path)
			return b.Runner.Run(ctx, Cmd{Dir: file.Root, Argv: argv, Interactive: true})
		}
	case ActionExecute:
		return func(ctx context.Context, args ...string) (any, error) {
			if len(p.Argv) == 0 {
				return nil, fmt.Errorf("%w for %s", ErrNoInterpreter, languageOrText(file.Language))
			}
			if b.LookPath != nil {
				if _, err := b.LookPath(p.Argv[0]); err != nil {
					return nil, fmt.Errorf("%w: %s not found", ErrNoInterpreter, p.Argv[0])
				}
			}
			return b.Runner.Run(ctx, Cmd{Dir: p.Dir, Argv: append(append([]string(nil), p.Argv...), args...)})
		}
	case ActionAnalyze:
		return func(ctx context.Context, args ...string) (any, error) {
			return b.Analyzer.Analyze(ctx, file)
		}
	case ActionValidate:
		return func(ctx context.Context, args ...string) (any, error) {
			if err := Validate(file.Language, file.Content); err != nil {
				return nil, fmt.Errorf("%s: %w", file.RelPath, err)
			}
			return fmt.Sprintf("%s: valid %s", file.RelPath, file.Language), nil
		}
	case ActionShell, ActionRunScript:
		return func(ctx context.Context, args ...string) (any, error) {
			if len(p.Argv) == 0 {
				return nil, fmt.Errorf("command %s has no argv", p.Name)
			}
			return b.Runner.Run(ctx, Cmd{Dir: p.Dir, Argv: append(append([]string(nil), p.Argv...), args...)})
		}
	case ActionInvokeSymbol:
		return func(ctx context.Context, args ...string) (any, error) {
			call := SymbolCall{Path: file.Path, Args: args}
			if p.Symbol != nil {
				call.Symbol = p.Symbol.Name
				call.Kind = p.Symbol.Kind.String()
				call.Signature = p.Symbol.Signature
				call.Parent = p.Symbol.Parent
				call.Line = p.Symbol.Line
			}
			return call, nil
		}
	case ActionInitialize:
		return func(ctx context.Context, args ...string) (any, error) {
			return b.initialize(file)
		}
	case ActionDependencyInfo:
		return func(ctx context.Context, args ...string) (any, error) {
			info := DependencyInfo{Name: p.Dependency, Manifest: file.RelPath}
			if file.Manifest != nil {
				info.Kind = string(file.Manifest.Kind)
			}
			return info, nil
		}
	default:
		return func(ctx context.Context, args ...string) (any, error) {
			return nil, fmt.Errorf("unsupported action kind %q", p.Kind)
		}
	}
}

// initialize writes a starter body into a file that is still empty on the
// substrate. A file that gained content since synthesis is left alone.
func (b *Binder) initialize(file File) (string, error) {
	if b.Storage == nil {
		return "", errors.New("no storage configured")
	}
	current, err := b.Storage.ReadFile(file.Path)
	if err != nil && !storage.IsNotExist(err) {
		return "", fmt.Errorf("failed to read %s: %w", file.RelPath, err)
	}
	if len(bytes.TrimSpace(current)) > 0 {
		return "", fmt.Errorf("%s is no longer empty", file.RelPath)
	}
	if err := b.Storage.WriteFile(file.Path, []byte(Starter(file.Language, KeyFor(file.RelPath)))); err != nil {
		return "", fmt.Errorf("failed to initialize %s: %w", file.RelPath, err)
	}
	return file.Path, nil
}

var starters = map[string]string{
	"go":         "package {name}\n",
	"javascript": "'use strict';\n\nmodule.exports = {};\n",
	"typescript": "export {};\n",
	"python":     "def main():\n    pass\n\n\nif __name__ == \"__main__\":\n    main()\n",
	"ruby":       "# frozen_string_literal: true\n",
	"shell":      "#!/bin/sh\nset -eu\n",
	"rust":       "fn main() {}\n",
	"json":       "{}\n",
	"yaml":       "---\n",
	"toml":       "# {name}\n",
	"markdown":   "# {name}\n",
	"html":       "<!doctype html>\n<html>\n<head><title>{name}</title></head>\n<body></body>\n</html>\n",
}

// Starter returns the initial body for an empty file of language. Unknown
// languages get a one-line title.
func Starter(language, name string) string {
	body, ok := starters[language]
	if !ok {
		body = "{name}\n"
	}
	if language == "go" {
		name = strings.ReplaceAll(name, "-", "")
	}
	return strings.ReplaceAll(body, "{name}", name)
}

// Validate checks that content parses as language. Only json, yaml and
// toml are supported.
func Validate(language string, content []byte) error {
	switch language {
	case "json":
		var v any
		if err := json.Unmarshal(content, &v); err != nil {
			return fmt.Errorf("invalid json: %w", err)
		}
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(content))
		for {
			var node yaml.Node
			err := dec.Decode(&node)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("invalid yaml: %w", err)
			}
		}
	case "toml":
		var v map[string]any
		if err := toml.Unmarshal(content, &v); err != nil {
			return fmt.Errorf("invalid toml: %w", err)
		}
	default:
		return fmt.Errorf("no validator for %s", languageOrText(language))
	}
	return nil
}

func languageOrText(language string) string {
	if language == "" {
		return "text"
	}
	return language
}

// Synthesizer combines the pure planning step with a binder.
type Synthesizer struct {
	templates *Templates
	binder    *Binder
}

// New returns a synthesizer. A nil templates uses DefaultTemplates.
func New(templates *Templates, binder *Binder) *Synthesizer {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Synthesizer{templates: templates, binder: binder}
}

func (s *Synthesizer) Plan(file File) []Planned {
	return Plan(file, s.templates)
}

// Synthesize plans and binds every command for file.
func (s *Synthesizer) Synthesize(file File) []registry.Descriptor {
	plans := s.Plan(file)
	out := make([]registry.Descriptor, 0, len(plans))
	for _, p := range plans {
		out = append(out, s.binder.Bind(file, p))
	}
	return out
}

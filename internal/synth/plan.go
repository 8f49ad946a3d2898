package synth

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/morozRed/cmdtrack/internal/manifest"
	"github.com/morozRed/cmdtrack/internal/parser"
	"github.com/morozRed/cmdtrack/internal/registry"
)

const minSymbolLen = 2

// File is the synthesis input: one tracked file as last read.
type File struct {
	Root     string
	Path     string
	RelPath  string // slash-separated, relative to Root
	Language string
	Content  []byte
	Key      string
	Symbols  []parser.Symbol
	Manifest *manifest.Manifest
}

// Planned is a fully resolved command description with no behavior
// attached. Binder turns it into a registry descriptor.
type Planned struct {
	Name        string
	Description string
	Kind        ActionKind
	Argv        []string
	Dir         string
	Symbol      *parser.Symbol
	Script      string
	Dependency  string
	Categories  []string
	Tags        []string
	Weight      float64
}

// KeyFor returns the default naming key for a relative path: the normalized
// base name without extension.
func KeyFor(relPath string) string {
	base := path.Base(filepath.ToSlash(relPath))
	key := registry.Normalize(strings.TrimSuffix(base, path.Ext(base)))
	if key == "" {
		key = registry.Normalize(base)
	}
	return key
}

var scriptRunners = map[manifest.Kind]string{
	manifest.KindNPM:       "npm",
	manifest.KindPyProject: "py",
	manifest.KindCargo:     "cargo",
	manifest.KindMake:      "make",
}

// Plan resolves templates, symbols and manifest entries for file. It is a
// pure function of its inputs. Names are normalized and unique within the
// result; the first occurrence wins.
func Plan(file File, templates *Templates) []Planned {
	if file.Key == "" {
		file.Key = KeyFor(file.RelPath)
	}
	vars := placeholders(file)

	out := make([]Planned, 0, 8)
	seen := make(map[string]bool)
	add := func(tmpl Template, vars map[string]string, fill func(*Planned)) {
		p := Planned{
			Name:        registry.Normalize(expand(tmpl.Name, vars)),
			Description: expand(tmpl.Description, vars),
			Kind:        tmpl.Kind,
			Dir:         file.Root,
			Categories:  append([]string(nil), tmpl.Categories...),
			Weight:      tmpl.Weight,
		}
		if p.Name == "" || seen[p.Name] {
			return
		}
		seen[p.Name] = true
		if p.Weight <= 0 {
			p.Weight = 1
		}
		if len(tmpl.Argv) > 0 {
			p.Argv = make([]string, len(tmpl.Argv))
			for i, arg := range tmpl.Argv {
				p.Argv[i] = expand(arg, vars)
			}
		}
		if fill != nil {
			fill(&p)
		}
		if file.Language != "" {
			p.Tags = append(p.Tags, file.Language)
		}
		p.Tags = append(p.Tags, string(p.Kind))
		out = append(out, p)
	}

	for _, tmpl := range templates.For(file.Language) {
		var fill func(*Planned)
		if tmpl.Kind == ActionExecute {
			fill = func(p *Planned) {
				if argv, ok := Interpreter(file.Language); ok {
					p.Argv = append(argv, file.Path)
				}
				p.Dir = filepath.Dir(file.Path)
			}
		}
		add(tmpl, vars, fill)
	}

	if len(file.Content) == 0 {
		add(templates.Init, vars, nil)
		return out
	}

	for _, sym := range file.Symbols {
		symbolKey := registry.Normalize(sym.Name)
		if len(symbolKey) < minSymbolLen {
			continue
		}
		sym := sym
		symVars := with(vars, map[string]string{
			"{symbol}":     sym.Name,
			"{symbolkind}": sym.Kind.String(),
		})
		add(templates.Symbol, symVars, func(p *Planned) {
			p.Symbol = &sym
		})
	}

	if m := file.Manifest; m != nil {
		scope := ""
		if dir := path.Dir(file.RelPath); dir != "." && dir != "" {
			scope = registry.Normalize(dir) + "-"
		}
		dir := filepath.Dir(file.Path)

		if runner, ok := scriptRunners[m.Kind]; ok {
			for _, script := range m.Scripts {
				script := script
				scriptVars := with(vars, map[string]string{
					"{runner}": runner,
					"{scope}":  scope,
					"{script}": script.Name,
				})
				add(templates.Script, scriptVars, func(p *Planned) {
					p.Argv = scriptArgv(m.Kind, script)
					p.Dir = dir
					p.Script = script.Name
				})
			}
		}
		for _, dep := range m.Dependencies {
			dep := dep
			depVars := with(vars, map[string]string{
				"{scope}":      scope,
				"{dependency}": dep,
			})
			add(templates.Dependency, depVars, func(p *Planned) {
				p.Dependency = dep
			})
		}
	}
	return out
}

func scriptArgv(kind manifest.Kind, script manifest.Script) []string {
	switch kind {
	case manifest.KindNPM:
		return []string{"npm", "run", script.Name}
	case manifest.KindMake:
		return []string{"make", script.Name}
	case manifest.KindCargo:
		return strings.Fields(script.Command)
	default:
		// Python entry points are installed as console scripts named by the key.
		return []string{script.Name}
	}
}

func placeholders(file File) map[string]string {
	rel := filepath.ToSlash(file.RelPath)
	base := path.Base(rel)
	language := file.Language
	if language == "" {
		language = "text"
	}
	return map[string]string{
		"{file}":     base,
		"{base}":     strings.TrimSuffix(base, path.Ext(base)),
		"{ext}":      strings.TrimPrefix(path.Ext(base), "."),
		"{key}":      file.Key,
		"{path}":     file.Path,
		"{rel}":      rel,
		"{dir}":      path.Dir(rel),
		"{language}": language,
	}
}

func with(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func expand(pattern string, vars map[string]string) string {
	if !strings.Contains(pattern, "{") {
		return pattern
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(pattern)
}

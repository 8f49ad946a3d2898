// Package manifest reads project manifests (package.json, pyproject.toml,
// Cargo.toml, go.mod, Makefile) into scripts and declared dependencies.
package manifest

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/morozRed/cmdtrack/internal/fileutil"
)

// Kind identifies a manifest format.
type Kind string

const (
	KindNPM       Kind = "npm"
	KindPyProject Kind = "pyproject"
	KindCargo     Kind = "cargo"
	KindGoMod     Kind = "gomod"
	KindMake      Kind = "make"
)

// Script is one runnable entry declared by a manifest.
type Script struct {
	Name    string `json:"name"`
	Command string `json:"command"`
}

// Manifest is the parsed subset of a project manifest.
type Manifest struct {
	Kind         Kind     `json:"kind"`
	Path         string   `json:"path"`
	Scripts      []Script `json:"scripts,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

var fileKinds = map[string]Kind{
	"package.json":   KindNPM,
	"pyproject.toml": KindPyProject,
	"cargo.toml":     KindCargo,
	"go.mod":         KindGoMod,
	"makefile":       KindMake,
	"gnumakefile":    KindMake,
}

// KindOf reports the manifest kind for path, matched on its base name.
func KindOf(path string) (Kind, bool) {
	kind, ok := fileKinds[strings.ToLower(filepath.Base(path))]
	return kind, ok
}

// IsManifest reports whether path names a recognized manifest file.
func IsManifest(path string) bool {
	_, ok := KindOf(path)
	return ok
}

// Parse decodes content according to the manifest kind implied by path.
// Scripts are sorted by name; dependencies are sorted and deduplicated.
func Parse(path string, content []byte) (*Manifest, error) {
	kind, ok := KindOf(path)
	if !ok {
		return nil, fmt.Errorf("not a manifest: %s", path)
	}

	m := &Manifest{Kind: kind, Path: path}
	var err error
	switch kind {
	case KindNPM:
		err = parsePackageJSON(content, m)
	case KindPyProject:
		err = parsePyProject(content, m)
	case KindCargo:
		err = parseCargo(content, m)
	case KindGoMod:
		parseGoMod(content, m)
	case KindMake:
		parseMakefile(content, m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	sort.Slice(m.Scripts, func(i, j int) bool { return m.Scripts[i].Name < m.Scripts[j].Name })
	if len(m.Dependencies) > 0 {
		m.Dependencies = fileutil.SortedCopy(fileutil.DedupeStrings(m.Dependencies))
	}
	return m, nil
}

func parsePackageJSON(content []byte, m *Manifest) error {
	var pkg struct {
		Scripts              map[string]string `json:"scripts"`
		Dependencies         map[string]string `json:"dependencies"`
		DevDependencies      map[string]string `json:"devDependencies"`
		PeerDependencies     map[string]string `json:"peerDependencies"`
		OptionalDependencies map[string]string `json:"optionalDependencies"`
	}
	if err := json.Unmarshal(content, &pkg); err != nil {
		return err
	}

	for name, command := range pkg.Scripts {
		m.Scripts = append(m.Scripts, Script{Name: name, Command: command})
	}
	for _, deps := range []map[string]string{pkg.Dependencies, pkg.DevDependencies, pkg.PeerDependencies, pkg.OptionalDependencies} {
		for name := range deps {
			m.Dependencies = append(m.Dependencies, name)
		}
	}
	return nil
}

// requirementName matches the distribution name at the start of a PEP 508
// requirement such as "requests[socks]>=2.0; python_version>'3'".
var requirementName = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)

func parsePyProject(content []byte, m *Manifest) error {
	var doc struct {
		Project struct {
			Dependencies         []string            `toml:"dependencies"`
			OptionalDependencies map[string][]string `toml:"optional-dependencies"`
			Scripts              map[string]string   `toml:"scripts"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Scripts         map[string]any `toml:"scripts"`
				Dependencies    map[string]any `toml:"dependencies"`
				DevDependencies map[string]any `toml:"dev-dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(content, &doc); err != nil {
		return err
	}

	seen := make(map[string]struct{})
	addScript := func(name, target string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		m.Scripts = append(m.Scripts, Script{Name: name, Command: target})
	}
	for name, target := range doc.Project.Scripts {
		addScript(name, target)
	}
	for name, target := range doc.Tool.Poetry.Scripts {
		// Poetry allows a table form ({reference = "..."}); keep the key either way.
		ref, _ := target.(string)
		addScript(name, ref)
	}

	requirements := append([]string(nil), doc.Project.Dependencies...)
	for _, group := range doc.Project.OptionalDependencies {
		requirements = append(requirements, group...)
	}
	for _, req := range requirements {
		if match := requirementName.FindStringSubmatch(req); match != nil {
			m.Dependencies = append(m.Dependencies, match[1])
		}
	}
	for _, deps := range []map[string]any{doc.Tool.Poetry.Dependencies, doc.Tool.Poetry.DevDependencies} {
		for name := range deps {
			if strings.EqualFold(name, "python") {
				continue
			}
			m.Dependencies = append(m.Dependencies, name)
		}
	}
	return nil
}

func parseCargo(content []byte, m *Manifest) error {
	var doc struct {
		Dependencies      map[string]any `toml:"dependencies"`
		DevDependencies   map[string]any `toml:"dev-dependencies"`
		BuildDependencies map[string]any `toml:"build-dependencies"`
		Bin               []struct {
			Name string `toml:"name"`
		} `toml:"bin"`
	}
	if err := toml.Unmarshal(content, &doc); err != nil {
		return err
	}

	for _, deps := range []map[string]any{doc.Dependencies, doc.DevDependencies, doc.BuildDependencies} {
		for name := range deps {
			m.Dependencies = append(m.Dependencies, name)
		}
	}
	for _, bin := range doc.Bin {
		if bin.Name != "" {
			m.Scripts = append(m.Scripts, Script{Name: bin.Name, Command: "cargo run --bin " + bin.Name})
		}
	}
	return nil
}

func parseGoMod(content []byte, m *Manifest) {
	inRequire := false
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if idx := strings.Index(trimmed, "//"); idx != -1 {
			trimmed = strings.TrimSpace(trimmed[:idx])
		}

		switch {
		case strings.HasPrefix(trimmed, "require ("):
			inRequire = true
			continue
		case inRequire && trimmed == ")":
			inRequire = false
			continue
		}

		if inRequire || strings.HasPrefix(trimmed, "require ") {
			parts := strings.Fields(strings.TrimPrefix(trimmed, "require "))
			if len(parts) >= 2 {
				m.Dependencies = append(m.Dependencies, parts[0])
			}
		}
	}
}

var makeTarget = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_.-]*)\s*:(?:[^=]|$)`)

func parseMakefile(content []byte, m *Manifest) {
	seen := make(map[string]struct{})
	for _, line := range strings.Split(string(content), "\n") {
		match := makeTarget.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		name := match[1]
		if strings.Contains(name, "%") || strings.HasPrefix(name, ".") {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		m.Scripts = append(m.Scripts, Script{Name: name, Command: "make " + name})
	}
}

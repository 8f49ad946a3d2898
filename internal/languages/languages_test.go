package languages

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/morozRed/cmdtrack/internal/parser"
)

func TestClassifyByNameExtensionAndShebang(t *testing.T) {
	c := NewClassifier()
	cases := []struct {
		path    string
		content string
		want    string
	}{
		{path: "/repo/b.js", want: "javascript"},
		{path: "/repo/app/View.TSX", want: "typescript"},
		{path: "/repo/Makefile", want: "make"},
		{path: "/repo/go.mod", want: "gomod"},
		{path: "/repo/a.txt", want: Text},
		{path: "/repo/bin/tool", content: "#!/usr/bin/env python3\nprint(1)\n", want: "python"},
		{path: "/repo/bin/run", content: "#!/bin/bash\necho hi\n", want: "shell"},
		{path: "/repo/LICENSE", content: "MIT", want: Text},
	}

	for _, tc := range cases {
		if got := c.Classify(tc.path, []byte(tc.content)); got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestExtractDependencies(t *testing.T) {
	cases := []struct {
		name     string
		language string
		content  string
		want     []string
	}{
		{
			name:     "javascript",
			language: "javascript",
			content: `import { a } from './util'
import "./side-effect.css"
const fs = require('fs')
const lazy = () => import("./lazy")
export { b } from './util'
`,
			want: []string{"./util", "./side-effect.css", "fs", "./lazy"},
		},
		{
			name:     "go block and single",
			language: "go",
			content: `package main

import "fmt"

import (
	"os"
	alias "example.com/pkg/thing"
)

func main() { fmt.Println("not an import") }
`,
			want: []string{"fmt", "os", "example.com/pkg/thing"},
		},
		{
			name:     "python",
			language: "python",
			content:  "import os\nfrom pkg.util import helper\nimport pkg.models\n",
			want:     []string{"os", "pkg.util", "pkg.models"},
		},
		{
			name:     "ruby",
			language: "ruby",
			content:  "require 'json'\nrequire_relative \"lib/helper\"\n",
			want:     []string{"json", "lib/helper"},
		},
		{
			name:     "rust",
			language: "rust",
			content:  "use crate::store::Db;\nmod config;\nextern crate serde;\n",
			want:     []string{"crate::store::Db", "config", "serde"},
		},
		{
			name:     "c",
			language: "c",
			content:  "#include <stdio.h>\n#include \"util.h\"\n",
			want:     []string{"stdio.h", "util.h"},
		},
		{
			name:     "unknown language",
			language: Text,
			content:  "import nothing",
			want:     nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractDependencies([]byte(tc.content), tc.language)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestExtractDependenciesPastVeryLongLine(t *testing.T) {
	bundle := "var x=" + strings.Repeat("1+", 1<<20) + "1;"
	content := "import a from './first'\r\n" + bundle + "\nimport b from './after'\n"

	got := ExtractDependencies([]byte(content), "javascript")
	want := []string{"./first", "./after"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}

func TestJavaScriptParserFindsFunctionsAndClasses(t *testing.T) {
	file, err := NewJavaScriptParser().Parse("b.js", []byte(`function foo(){}

const handler = () => 1

class Widget {
  render() {}
}
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	got := symbolIndex(file.Symbols)
	if got["foo"] != parser.SymbolFunction {
		t.Fatalf("expected foo function, got %#v", file.Symbols)
	}
	if got["handler"] != parser.SymbolFunction {
		t.Fatalf("expected arrow function handler, got %#v", file.Symbols)
	}
	if got["Widget"] != parser.SymbolClass || got["render"] != parser.SymbolMethod {
		t.Fatalf("expected Widget class with render method, got %#v", file.Symbols)
	}
}

func TestGoParserKinds(t *testing.T) {
	file, err := NewGoParser().Parse("main.go", []byte(`package main

type Server struct{}

type Handler interface{ Serve() }

func (s *Server) Start() error { return nil }

func main() {}
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	got := symbolIndex(file.Symbols)
	want := map[string]parser.SymbolKind{
		"Server":  parser.SymbolStruct,
		"Handler": parser.SymbolInterface,
		"Start":   parser.SymbolMethod,
		"main":    parser.SymbolFunction,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}

func TestPythonParserNestsMethods(t *testing.T) {
	file, err := NewPythonParser().Parse("app.py", []byte(`class Service:
    def run(self):
        pass

def main():
    pass
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	for _, sym := range file.Symbols {
		if sym.Name == "run" && (sym.Kind != parser.SymbolMethod || sym.Parent != "Service") {
			t.Fatalf("expected run to be a method of Service, got %#v", sym)
		}
		if sym.Name == "main" && sym.Parent != "" {
			t.Fatalf("expected main at top level, got %#v", sym)
		}
	}
	if len(file.Symbols) != 3 {
		t.Fatalf("expected 3 symbols, got %#v", file.Symbols)
	}
}

func TestPatternParserShell(t *testing.T) {
	var shell *PatternParser
	for _, p := range patternParsers() {
		if p.Language() == "shell" {
			shell = p
		}
	}
	if shell == nil {
		t.Fatal("expected a shell pattern parser")
	}

	file, err := shell.Parse("deploy.sh", []byte("#!/bin/sh\nbuild() {\n  make\n}\nfunction release {\n  echo\n}\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got := symbolIndex(file.Symbols)
	if _, ok := got["build"]; !ok {
		t.Fatalf("expected build, got %#v", file.Symbols)
	}
	if _, ok := got["release"]; !ok {
		t.Fatalf("expected release, got %#v", file.Symbols)
	}
}

func TestDefaultRegistryCoversClassifierLanguages(t *testing.T) {
	r := NewDefaultRegistry()
	for _, lang := range []string{"go", "javascript", "typescript", "python", "ruby", "rust", "java", "shell"} {
		if _, ok := r.ParserFor(lang); !ok {
			t.Fatalf("expected parser for %s", lang)
		}
	}
}

func symbolIndex(symbols []parser.Symbol) map[string]parser.SymbolKind {
	out := make(map[string]parser.SymbolKind, len(symbols))
	for _, sym := range symbols {
		out[sym.Name] = sym.Kind
	}
	return out
}

func TestGoFixtureSymbolsAndImports(t *testing.T) {
	content, err := os.ReadFile(filepath.Join("testdata", "edge_cases.go"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	language := NewClassifier().Classify("edge_cases.go", content)
	if language != "go" {
		t.Fatalf("expected go, got %q", language)
	}
	file, err := NewDefaultRegistry().Parse("edge_cases.go", language, content)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	got := symbolIndex(file.Symbols)
	want := map[string]parser.SymbolKind{
		"Service":  parser.SymbolInterface,
		"Worker":   parser.SymbolStruct,
		"Run":      parser.SymbolMethod,
		"helper":   parser.SymbolFunction,
		"logStart": parser.SymbolFunction,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %#v, got %#v", want, got)
	}

	deps := ExtractDependencies(content, language)
	if !reflect.DeepEqual(deps, []string{"context", "fmt"}) {
		t.Fatalf("expected context and fmt imports, got %#v", deps)
	}
}

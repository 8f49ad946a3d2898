package languages

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/morozRed/cmdtrack/internal/parser"
)

const maxSignatureLen = 120

// declaration maps a tree-sitter node type to the symbol kind it declares.
// Every listed node exposes its identifier through the "name" field.
type declaration struct {
	kind      parser.SymbolKind
	container bool // symbols nested inside belong to this declaration
}

// TreeSitterParser extracts declarations with a tree-sitter grammar.
type TreeSitterParser struct {
	language   string
	extensions []string
	grammar    func(filename string) *sitter.Language
	decls      map[string]declaration
}

func (p *TreeSitterParser) Language() string {
	return p.language
}

func (p *TreeSitterParser) Extensions() []string {
	return p.extensions
}

func (p *TreeSitterParser) Parse(filename string, content []byte) (*parser.FileSymbols, error) {
	// Parsers are not safe for concurrent use, so each call gets its own.
	sp := sitter.NewParser()
	sp.SetLanguage(p.grammar(filename))

	tree, err := sp.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	result := &parser.FileSymbols{
		Path:     filename,
		Language: p.language,
		Symbols:  make([]parser.Symbol, 0),
	}
	p.walk(tree.RootNode(), content, "", result)
	return result, nil
}

func (p *TreeSitterParser) walk(node *sitter.Node, content []byte, parent string, result *parser.FileSymbols) {
	if node == nil {
		return
	}

	nodeType := node.Type()
	if decl, ok := p.decls[nodeType]; ok {
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			name := nameNode.Content(content)
			kind := decl.kind
			if kind == parser.SymbolFunction && parent != "" {
				kind = parser.SymbolMethod
			}
			if nodeType == "type_spec" {
				if typeNode := node.ChildByFieldName("type"); typeNode != nil && typeNode.Type() == "interface_type" {
					kind = parser.SymbolInterface
				}
			}
			result.Symbols = append(result.Symbols, parser.Symbol{
				Name:      name,
				Kind:      kind,
				Signature: signature(node, content),
				Parent:    parent,
				Line:      int(node.StartPoint().Row) + 1,
			})
			if decl.container {
				parent = name
			}
		}
	} else if nodeType == "variable_declarator" {
		// const handler = () => {} and friends
		nameNode := node.ChildByFieldName("name")
		valueNode := node.ChildByFieldName("value")
		if nameNode != nil && valueNode != nil && isFunctionValue(valueNode.Type()) {
			result.Symbols = append(result.Symbols, parser.Symbol{
				Name:      nameNode.Content(content),
				Kind:      parser.SymbolFunction,
				Signature: signature(node, content),
				Parent:    parent,
				Line:      int(node.StartPoint().Row) + 1,
			})
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		p.walk(node.NamedChild(i), content, parent, result)
	}
}

func isFunctionValue(nodeType string) bool {
	switch nodeType {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

func signature(node *sitter.Node, content []byte) string {
	text := node.Content(content)
	if idx := strings.IndexByte(text, '\n'); idx != -1 {
		text = text[:idx]
	}
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "{"))
	if len(text) > maxSignatureLen {
		text = text[:maxSignatureLen] + "..."
	}
	return text
}

func fixed(lang *sitter.Language) func(string) *sitter.Language {
	return func(string) *sitter.Language { return lang }
}

// NewGoParser creates a parser for Go source files
func NewGoParser() *TreeSitterParser {
	return &TreeSitterParser{
		language:   "go",
		extensions: []string{".go"},
		grammar:    fixed(golang.GetLanguage()),
		decls: map[string]declaration{
			"function_declaration": {kind: parser.SymbolFunction},
			"method_declaration":   {kind: parser.SymbolMethod},
			"type_spec":            {kind: parser.SymbolStruct},
		},
	}
}

var ecmaDecls = map[string]declaration{
	"function_declaration":           {kind: parser.SymbolFunction},
	"generator_function_declaration": {kind: parser.SymbolFunction},
	"class_declaration":              {kind: parser.SymbolClass, container: true},
	"abstract_class_declaration":     {kind: parser.SymbolClass, container: true},
	"interface_declaration":          {kind: parser.SymbolInterface},
	"enum_declaration":               {kind: parser.SymbolConstant},
	"method_definition":              {kind: parser.SymbolMethod},
}

// NewJavaScriptParser creates a parser for JavaScript source files
func NewJavaScriptParser() *TreeSitterParser {
	return &TreeSitterParser{
		language:   "javascript",
		extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		grammar:    fixed(javascript.GetLanguage()),
		decls:      ecmaDecls,
	}
}

// NewTypeScriptParser creates a parser for TypeScript and TSX source files
func NewTypeScriptParser() *TreeSitterParser {
	ts := typescript.GetLanguage()
	tsxLang := tsx.GetLanguage()
	return &TreeSitterParser{
		language:   "typescript",
		extensions: []string{".ts", ".tsx", ".mts", ".cts"},
		grammar: func(filename string) *sitter.Language {
			if strings.HasSuffix(strings.ToLower(filename), ".tsx") {
				return tsxLang
			}
			return ts
		},
		decls: ecmaDecls,
	}
}

// NewPythonParser creates a parser for Python source files
func NewPythonParser() *TreeSitterParser {
	return &TreeSitterParser{
		language:   "python",
		extensions: []string{".py", ".pyi"},
		grammar:    fixed(python.GetLanguage()),
		decls: map[string]declaration{
			"function_definition": {kind: parser.SymbolFunction},
			"class_definition":    {kind: parser.SymbolClass, container: true},
		},
	}
}

// NewRubyParser creates a parser for Ruby source files
func NewRubyParser() *TreeSitterParser {
	return &TreeSitterParser{
		language:   "ruby",
		extensions: []string{".rb", ".rake"},
		grammar:    fixed(ruby.GetLanguage()),
		decls: map[string]declaration{
			"method":           {kind: parser.SymbolFunction},
			"singleton_method": {kind: parser.SymbolMethod},
			"class":            {kind: parser.SymbolClass, container: true},
			"module":           {kind: parser.SymbolModule, container: true},
		},
	}
}

// NewRustParser creates a parser for Rust source files
func NewRustParser() *TreeSitterParser {
	return &TreeSitterParser{
		language:   "rust",
		extensions: []string{".rs"},
		grammar:    fixed(rust.GetLanguage()),
		decls: map[string]declaration{
			"function_item": {kind: parser.SymbolFunction},
			"struct_item":   {kind: parser.SymbolStruct},
			"enum_item":     {kind: parser.SymbolStruct},
			"trait_item":    {kind: parser.SymbolInterface},
			"mod_item":      {kind: parser.SymbolModule},
		},
	}
}

// NewJavaParser creates a parser for Java source files
func NewJavaParser() *TreeSitterParser {
	return &TreeSitterParser{
		language:   "java",
		extensions: []string{".java"},
		grammar:    fixed(java.GetLanguage()),
		decls: map[string]declaration{
			"class_declaration":     {kind: parser.SymbolClass, container: true},
			"interface_declaration": {kind: parser.SymbolInterface, container: true},
			"enum_declaration":      {kind: parser.SymbolStruct},
			"method_declaration":    {kind: parser.SymbolFunction},
		},
	}
}

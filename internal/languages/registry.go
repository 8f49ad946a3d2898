package languages

import "github.com/morozRed/cmdtrack/internal/parser"

// NewDefaultRegistry creates a registry with all supported language parsers
func NewDefaultRegistry() *parser.Registry {
	r := parser.NewRegistry()

	r.Register(NewGoParser())
	r.Register(NewJavaScriptParser())
	r.Register(NewTypeScriptParser())
	r.Register(NewPythonParser())
	r.Register(NewRubyParser())
	r.Register(NewRustParser())
	r.Register(NewJavaParser())
	for _, p := range patternParsers() {
		r.Register(p)
	}

	return r
}

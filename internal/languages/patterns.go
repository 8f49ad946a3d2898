package languages

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/morozRed/cmdtrack/internal/parser"
)

type symbolPattern struct {
	re   *regexp.Regexp
	kind parser.SymbolKind
}

// PatternParser is the best-effort line scanner for languages without a
// tree-sitter grammar. Each pattern captures the symbol name in group 1.
type PatternParser struct {
	language   string
	extensions []string
	patterns   []symbolPattern
}

func (p *PatternParser) Language() string {
	return p.language
}

func (p *PatternParser) Extensions() []string {
	return p.extensions
}

func (p *PatternParser) Parse(filename string, content []byte) (*parser.FileSymbols, error) {
	result := &parser.FileSymbols{
		Path:     filename,
		Language: p.language,
		Symbols:  make([]parser.Symbol, 0),
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		for _, pattern := range p.patterns {
			match := pattern.re.FindStringSubmatch(text)
			if len(match) < 2 {
				continue
			}
			result.Symbols = append(result.Symbols, parser.Symbol{
				Name:      match[1],
				Kind:      pattern.kind,
				Signature: signatureLine(text),
				Line:      line,
			})
			break
		}
	}
	// Overlong lines end the scan early; whatever was found stays valid.
	return result, nil
}

func signatureLine(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxSignatureLen {
		text = text[:maxSignatureLen] + "..."
	}
	return text
}

func newPatternParser(language string, extensions []string, patterns ...symbolPattern) *PatternParser {
	return &PatternParser{language: language, extensions: extensions, patterns: patterns}
}

func fn(expr string) symbolPattern {
	return symbolPattern{re: regexp.MustCompile(expr), kind: parser.SymbolFunction}
}

func class(expr string) symbolPattern {
	return symbolPattern{re: regexp.MustCompile(expr), kind: parser.SymbolClass}
}

// patternParsers covers common languages that ship without a grammar here.
func patternParsers() []*PatternParser {
	return []*PatternParser{
		newPatternParser("shell", []string{".sh", ".bash", ".zsh"},
			fn(`^\s*function\s+([A-Za-z_][\w-]*)`),
			fn(`^\s*([A-Za-z_][\w-]*)\s*\(\)\s*\{?`),
		),
		newPatternParser("php", []string{".php"},
			class(`^\s*(?:abstract\s+|final\s+)?class\s+(\w+)`),
			fn(`^\s*(?:(?:public|private|protected|static)\s+)*function\s+&?(\w+)`),
		),
		newPatternParser("kotlin", []string{".kt", ".kts"},
			class(`^\s*(?:\w+\s+)*(?:class|object|interface)\s+(\w+)`),
			fn(`^\s*(?:\w+\s+)*fun\s+(?:<[^>]*>\s*)?(?:\w+\.)?(\w+)\s*\(`),
		),
		newPatternParser("swift", []string{".swift"},
			class(`^\s*(?:\w+\s+)*(?:class|struct|protocol|enum|extension)\s+(\w+)`),
			fn(`^\s*(?:\w+\s+)*func\s+(\w+)`),
		),
		newPatternParser("lua", []string{".lua"},
			fn(`^\s*(?:local\s+)?function\s+(?:[\w.]+[.:])?(\w+)\s*\(`),
		),
		newPatternParser("perl", []string{".pl", ".pm"},
			fn(`^\s*sub\s+(\w+)`),
		),
		newPatternParser("c", []string{".c", ".h"},
			fn(`^[A-Za-z_][\w\s\*]*?\b([A-Za-z_]\w*)\s*\([^;]*\)\s*\{?\s*$`),
		),
		newPatternParser("cpp", []string{".cc", ".cpp", ".cxx", ".hpp", ".hh"},
			class(`^\s*(?:class|struct)\s+(\w+)[^;]*$`),
			fn(`^[A-Za-z_][\w\s\*&:<>,]*?\b([A-Za-z_]\w*)\s*\([^;]*\)\s*(?:const\s*)?\{?\s*$`),
		),
		newPatternParser("csharp", []string{".cs"},
			class(`^\s*(?:\w+\s+)*(?:class|interface|struct|record|enum)\s+(\w+)`),
			fn(`^\s*(?:(?:public|private|protected|internal|static|async|override|virtual)\s+)+[\w<>\[\],\s]+?\s+(\w+)\s*\(`),
		),
	}
}

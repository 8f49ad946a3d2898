package parser

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/morozRed/cmdtrack/internal/fileutil"
)

const defaultCacheSize = 4096

// LanguageParser defines the interface each language must implement
type LanguageParser interface {
	// Language returns the language tag (e.g., "go", "python")
	Language() string

	// Extensions returns file extensions this parser handles
	Extensions() []string

	// Parse extracts symbols from source code
	Parse(filename string, content []byte) (*FileSymbols, error)
}

// Registry holds all registered language parsers, keyed by language tag.
// Results are cached by language, extension and content hash so re-tracking
// identical content never re-parses.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]LanguageParser
	cache   *lru.Cache[string, []Symbol]
}

// NewRegistry creates a new parser registry
func NewRegistry() *Registry {
	cache, err := lru.New[string, []Symbol](defaultCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	return &Registry{
		parsers: make(map[string]LanguageParser),
		cache:   cache,
	}
}

// Register adds a language parser to the registry
func (r *Registry) Register(p LanguageParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.Language()] = p
}

// ParserFor returns the parser registered for a language tag.
func (r *Registry) ParserFor(language string) (LanguageParser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[language]
	return p, ok
}

// Languages returns the sorted language tags that have a parser.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.parsers))
	for lang := range r.parsers {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Parse extracts symbols for content already classified as language.
// Languages without a parser yield an empty result, not an error.
func (r *Registry) Parse(path, language string, content []byte) (*FileSymbols, error) {
	hash := fileutil.HashContent(content)
	result := &FileSymbols{Path: path, Language: language, Hash: hash}
	if len(content) == 0 {
		return result, nil
	}

	p, ok := r.ParserFor(language)
	if !ok {
		return result, nil
	}

	key := language + "|" + strings.ToLower(filepath.Ext(path)) + "|" + hash
	if symbols, ok := r.cache.Get(key); ok {
		result.Symbols = symbols
		return result, nil
	}

	parsed, err := p.Parse(path, content)
	if err != nil {
		return nil, err
	}
	symbols := normalizeSymbols(parsed.Symbols)
	r.cache.Add(key, symbols)
	result.Symbols = symbols
	return result, nil
}

func normalizeSymbols(values []Symbol) []Symbol {
	if len(values) == 0 {
		return nil
	}

	out := make([]Symbol, 0, len(values))
	for _, value := range values {
		value.Name = strings.TrimSpace(value.Name)
		value.Signature = strings.TrimSpace(value.Signature)
		if value.Name == "" {
			continue
		}
		out = append(out, value)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Name < out[j].Name
	})
	return out
}

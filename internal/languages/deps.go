package languages

import (
	"bytes"
	"regexp"
	"strings"
)

// importPatterns holds the lexical import patterns per language tag. Each
// pattern captures the raw reference in group 1.
var importPatterns = map[string][]*regexp.Regexp{
	"javascript": ecmaImports,
	"typescript": ecmaImports,
	"python": {
		regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\b`),
		regexp.MustCompile(`^\s*import\s+([\w.]+)`),
	},
	"go": {
		regexp.MustCompile(`^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`),
	},
	"ruby": {
		regexp.MustCompile(`^\s*require(?:_relative)?\s*\(?\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*load\s*\(?\s*['"]([^'"]+)['"]`),
	},
	"rust": {
		regexp.MustCompile(`^\s*(?:pub\s+)?use\s+([\w:]+)`),
		regexp.MustCompile(`^\s*extern\s+crate\s+(\w+)`),
		regexp.MustCompile(`^\s*(?:pub\s+)?mod\s+(\w+)\s*;`),
	},
	"java": {
		regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+)(?:\.\*)?\s*;`),
	},
	"kotlin": {
		regexp.MustCompile(`^\s*import\s+([\w.]+)`),
	},
	"c":   cIncludes,
	"cpp": cIncludes,
	"css": {
		regexp.MustCompile(`@import\s+(?:url\()?\s*['"]?([^'")\s;]+)`),
	},
	"scss": {
		regexp.MustCompile(`@(?:import|use|forward)\s+['"]([^'"]+)['"]`),
	},
	"html": {
		regexp.MustCompile(`<script[^>]+src\s*=\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`<link[^>]+href\s*=\s*['"]([^'"]+)['"]`),
	},
	"shell": {
		regexp.MustCompile(`^\s*(?:source|\.)\s+['"]?([^'"\s;]+)`),
	},
	"php": {
		regexp.MustCompile(`(?:require|include)(?:_once)?\s*\(?\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*use\s+([\w\\]+)`),
	},
}

var ecmaImports = []*regexp.Regexp{
	regexp.MustCompile(`\bimport\s+[^'"]*?\s+from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`\bexport\s+[^'"]*?\s+from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"]+)['"]\s*\)`),
}

var cIncludes = []*regexp.Regexp{
	regexp.MustCompile(`^\s*#\s*include\s+["<]([^">]+)[">]`),
}

var (
	goImportBlockStart = regexp.MustCompile(`^\s*import\s*\(\s*$`)
	goImportBlockLine  = regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"`)
)

// ExtractDependencies returns the raw import references found in content,
// in order of first appearance and without duplicates. The scan is lexical:
// references are not resolved and may not correspond to any file.
func ExtractDependencies(content []byte, language string) []string {
	patterns, ok := importPatterns[language]
	if !ok || len(content) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var refs []string
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return
		}
		if _, dup := seen[ref]; dup {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	// Lines are split without a length cap; minified bundles put the whole
	// file on one line.
	inGoBlock := false
	for _, raw := range bytes.Split(content, []byte("\n")) {
		line := string(bytes.TrimSuffix(raw, []byte("\r")))

		if language == "go" {
			if inGoBlock {
				if strings.HasPrefix(strings.TrimSpace(line), ")") {
					inGoBlock = false
				} else if match := goImportBlockLine.FindStringSubmatch(line); match != nil {
					add(match[1])
				}
				continue
			}
			if goImportBlockStart.MatchString(line) {
				inGoBlock = true
				continue
			}
		}

		for _, re := range patterns {
			for _, match := range re.FindAllStringSubmatch(line, -1) {
				if len(match) > 1 {
					add(match[1])
				}
			}
		}
	}
	return refs
}

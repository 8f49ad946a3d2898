package languages

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Text is the tag for files no rule recognizes.
const Text = "text"

// Classifier maps a (path, content) pair to a language tag.
type Classifier interface {
	Classify(path string, content []byte) string
}

// ExtensionClassifier classifies by well-known file names, then extension,
// then a shebang line.
type ExtensionClassifier struct {
	byName map[string]string
	byExt  map[string]string
}

// NewClassifier returns the default classifier.
func NewClassifier() *ExtensionClassifier {
	return &ExtensionClassifier{
		byName: map[string]string{
			"makefile":       "make",
			"gnumakefile":    "make",
			"dockerfile":     "dockerfile",
			"rakefile":       "ruby",
			"gemfile":        "ruby",
			"jenkinsfile":    "groovy",
			"cmakelists.txt": "cmake",
			"go.mod":         "gomod",
			"go.sum":         "gosum",
		},
		byExt: map[string]string{
			".go":       "go",
			".js":       "javascript",
			".jsx":      "javascript",
			".mjs":      "javascript",
			".cjs":      "javascript",
			".ts":       "typescript",
			".tsx":      "typescript",
			".mts":      "typescript",
			".cts":      "typescript",
			".py":       "python",
			".pyi":      "python",
			".rb":       "ruby",
			".rake":     "ruby",
			".rs":       "rust",
			".java":     "java",
			".kt":       "kotlin",
			".kts":      "kotlin",
			".swift":    "swift",
			".c":        "c",
			".h":        "c",
			".cc":       "cpp",
			".cpp":      "cpp",
			".cxx":      "cpp",
			".hpp":      "cpp",
			".hh":       "cpp",
			".cs":       "csharp",
			".php":      "php",
			".lua":      "lua",
			".pl":       "perl",
			".pm":       "perl",
			".sh":       "shell",
			".bash":     "shell",
			".zsh":      "shell",
			".json":     "json",
			".yaml":     "yaml",
			".yml":      "yaml",
			".toml":     "toml",
			".xml":      "xml",
			".html":     "html",
			".htm":      "html",
			".css":      "css",
			".scss":     "scss",
			".less":     "less",
			".md":       "markdown",
			".markdown": "markdown",
			".sql":      "sql",
			".proto":    "protobuf",
			".txt":      Text,
		},
	}
}

// Classify returns the language tag for path, falling back to Text.
func (c *ExtensionClassifier) Classify(path string, content []byte) string {
	base := strings.ToLower(filepath.Base(path))
	if lang, ok := c.byName[base]; ok {
		return lang
	}
	if lang, ok := c.byExt[strings.ToLower(filepath.Ext(base))]; ok {
		return lang
	}
	if lang := shebangLanguage(content); lang != "" {
		return lang
	}
	return Text
}

func shebangLanguage(content []byte) string {
	if !bytes.HasPrefix(content, []byte("#!")) {
		return ""
	}
	line := content
	if idx := bytes.IndexByte(content, '\n'); idx != -1 {
		line = content[:idx]
	}
	fields := strings.Fields(string(line[2:]))
	if len(fields) == 0 {
		return ""
	}
	interpreter := filepath.Base(fields[0])
	if interpreter == "env" && len(fields) > 1 {
		interpreter = fields[1]
	}

	switch {
	case interpreter == "node" || interpreter == "deno":
		return "javascript"
	case strings.HasPrefix(interpreter, "python"):
		return "python"
	case interpreter == "ruby":
		return "ruby"
	case interpreter == "perl":
		return "perl"
	case interpreter == "sh" || interpreter == "bash" || interpreter == "zsh":
		return "shell"
	}
	return ""
}

package synth

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"unicode/utf8"
)

// Report is the result of an analyze command.
type Report struct {
	Path         string         `json:"path"`
	Language     string         `json:"language"`
	Bytes        int            `json:"bytes"`
	Lines        int            `json:"lines"`
	BlankLines   int            `json:"blank_lines"`
	CommentLines int            `json:"comment_lines"`
	LongestLine  int            `json:"longest_line"`
	Markers      map[string]int `json:"markers,omitempty"` // TODO, FIXME, ...
	Symbols      int            `json:"symbols"`
}

// Analyzer produces a content-level report for one file.
type Analyzer interface {
	Analyze(ctx context.Context, file File) (Report, error)
}

// LineAnalyzer is the default Analyzer: line statistics and marker counts.
type LineAnalyzer struct{}

var markers = []string{"TODO", "FIXME", "HACK", "XXX"}

var commentPrefixes = map[string][]string{
	"go":         {"//"},
	"javascript": {"//", "/*", "*"},
	"typescript": {"//", "/*", "*"},
	"java":       {"//", "/*", "*"},
	"kotlin":     {"//", "/*", "*"},
	"swift":      {"//", "/*", "*"},
	"rust":       {"//"},
	"c":          {"//", "/*", "*"},
	"cpp":        {"//", "/*", "*"},
	"csharp":     {"//", "/*", "*"},
	"php":        {"//", "#", "/*", "*"},
	"python":     {"#"},
	"ruby":       {"#"},
	"shell":      {"#"},
	"perl":       {"#"},
	"yaml":       {"#"},
	"toml":       {"#"},
	"make":       {"#"},
	"lua":        {"--"},
	"sql":        {"--"},
}

func (LineAnalyzer) Analyze(ctx context.Context, file File) (Report, error) {
	report := Report{
		Path:     file.Path,
		Language: file.Language,
		Bytes:    len(file.Content),
		Symbols:  len(file.Symbols),
	}
	prefixes := commentPrefixes[file.Language]

	scanner := bufio.NewScanner(bytes.NewReader(file.Content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if report.Lines%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return report, err
			}
		}
		line := scanner.Text()
		report.Lines++
		if width := utf8.RuneCountInString(line); width > report.LongestLine {
			report.LongestLine = width
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			report.BlankLines++
			continue
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(trimmed, prefix) {
				report.CommentLines++
				break
			}
		}
		for _, marker := range markers {
			if strings.Contains(line, marker) {
				if report.Markers == nil {
					report.Markers = make(map[string]int)
				}
				report.Markers[marker]++
			}
		}
	}
	return report, scanner.Err()
}

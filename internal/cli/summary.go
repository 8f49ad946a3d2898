package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/morozRed/cmdtrack/internal/fileutil"
	"github.com/morozRed/cmdtrack/internal/synth"
)

type ScanSummary struct {
	Mode       string         `json:"mode"`
	RootPath   string         `json:"root_path"`
	ConfigFile string         `json:"config_file,omitempty"`
	Files      int            `json:"files"`
	Commands   int            `json:"commands"`
	Languages  map[string]int `json:"languages,omitempty"`
	Manifests  []string       `json:"manifests,omitempty"`
	Edges      int            `json:"edges"`
	DurationMS int64          `json:"duration_ms"`
}

type ImpactSummary struct {
	Mode     string              `json:"mode"`
	RootPath string              `json:"root_path"`
	Changed  []string            `json:"changed"`
	Impacted []string            `json:"impacted"`
	Reasons  map[string][]string `json:"reasons,omitempty"`
	Unknown  []string            `json:"unknown,omitempty"`
}

type DoctorSummary struct {
	Mode         string                      `json:"mode"`
	RootPath     string                      `json:"root_path"`
	ConfigFile   string                      `json:"config_file,omitempty"`
	IgnoreFile   bool                        `json:"ignore_file"`
	Healthy      bool                        `json:"healthy"`
	WatchMode    string                      `json:"watch_mode"`
	NativeWatch  bool                        `json:"native_watch"`
	Files        int                         `json:"files"`
	Commands     int                         `json:"commands"`
	Parsers      []string                    `json:"parsers"`
	Interpreters map[string]synth.Capability `json:"interpreters,omitempty"`
	Missing      []string                    `json:"missing,omitempty"`
	Suggestions  []string                    `json:"suggestions,omitempty"`
}

func PrintScanSummary(summary ScanSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(os.Stdout, summary)
	}

	fmt.Printf("%s complete in %dms\n", summary.Mode, summary.DurationMS)
	fmt.Printf("root: %s\n", summary.RootPath)
	if summary.ConfigFile != "" {
		fmt.Printf("config: %s\n", summary.ConfigFile)
	}
	fmt.Printf("files: tracked=%d edges=%d\n", summary.Files, summary.Edges)
	fmt.Printf("commands: %d\n", summary.Commands)
	if len(summary.Languages) > 0 {
		langs := make([]string, 0, len(summary.Languages))
		for lang := range summary.Languages {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		parts := make([]string, 0, len(langs))
		for _, lang := range langs {
			parts = append(parts, fmt.Sprintf("%s=%d", lang, summary.Languages[lang]))
		}
		fmt.Printf("languages: %s\n", strings.Join(parts, " "))
	}
	if len(summary.Manifests) > 0 {
		fmt.Printf("manifests (%d): %s\n", len(summary.Manifests), SummarizePaths(summary.Manifests, 8))
	}
	return nil
}

func PrintImpactSummary(summary ImpactSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(os.Stdout, summary)
	}

	fmt.Printf("impact: changed=%d impacted=%d\n", len(summary.Changed), len(summary.Impacted))
	for _, file := range summary.Impacted {
		reasons := summary.Reasons[file]
		if len(reasons) == 0 {
			fmt.Printf("  %s\n", file)
			continue
		}
		fmt.Printf("  %s <- %s\n", file, strings.Join(reasons, "; "))
	}
	if len(summary.Unknown) > 0 {
		fmt.Printf("not tracked (%d): %s\n", len(summary.Unknown), SummarizePaths(summary.Unknown, 8))
	}
	return nil
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}

func sortedUnique(values []string) []string {
	out := fileutil.DedupeStrings(values)
	sort.Strings(out)
	return out
}

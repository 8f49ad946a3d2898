package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/morozRed/cmdtrack/internal/fileutil"
	"github.com/morozRed/cmdtrack/internal/registry"
)

func RunScan(cmd *cobra.Command, args []string) error {
	start := time.Now()
	rootPath, err := resolveRoot(cmd, args)
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, rootPath, "", asJSON)
	if err != nil {
		return err
	}
	defer s.Close()

	summary := s.summarize("scan")
	summary.DurationMS = time.Since(start).Milliseconds()
	return PrintScanSummary(summary, asJSON)
}

func (s *session) summarize(mode string) ScanSummary {
	files := s.engine.GetTrackedFiles()
	summary := ScanSummary{
		Mode:       mode,
		RootPath:   s.root,
		ConfigFile: s.config.Source,
		Files:      len(files),
		Commands:   len(s.engine.GetCommands(registry.Filter{})),
		Languages:  make(map[string]int),
	}
	for _, file := range files {
		if file.Language != "" {
			summary.Languages[file.Language]++
		}
		if file.Manifest != nil {
			summary.Manifests = append(summary.Manifests, file.RelPath)
		}
	}
	for _, node := range s.engine.Graph().Nodes() {
		summary.Edges += len(node.Dependencies)
	}
	return summary
}

func RunFiles(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd, args)
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	asJSONL, err := OptionalBoolFlag(cmd, "jsonl", false)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, rootPath, "", asJSON || asJSONL)
	if err != nil {
		return err
	}
	defer s.Close()

	files := s.engine.GetTrackedFiles()
	if asJSONL {
		return writeJSONL(files)
	}
	if asJSON {
		return fileutil.PrintJSON(os.Stdout, files)
	}
	for _, file := range files {
		lang := file.Language
		if lang == "" {
			lang = "-"
		}
		fmt.Printf("%s\t%s\t%d\t%s\n", file.RelPath, lang, file.Size, strings.Join(file.Commands, ","))
	}
	return nil
}

func RunGraph(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd, args)
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	asJSONL, err := OptionalBoolFlag(cmd, "jsonl", false)
	if err != nil {
		return err
	}
	top, err := OptionalIntFlag(cmd, "top", 0)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, rootPath, "", asJSON || asJSONL)
	if err != nil {
		return err
	}
	defer s.Close()

	g := s.engine.Graph()
	nodes := g.Nodes()
	if top > 0 {
		nodes = g.TopNodes(top)
	}
	if asJSONL {
		return writeJSONL(nodes)
	}
	if asJSON {
		return fileutil.PrintJSON(os.Stdout, nodes)
	}
	for _, node := range nodes {
		fmt.Printf("%s (rank %.3f)\n", node.RelPath, node.PageRank)
		for _, dep := range node.Dependencies {
			fmt.Printf("  -> %s\n", relativeTo(rootPath, dep))
		}
		for _, dep := range node.Dependents {
			fmt.Printf("  <- %s\n", relativeTo(rootPath, dep))
		}
	}
	return nil
}

func RunImpact(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd, nil)
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, rootPath, "", asJSON)
	if err != nil {
		return err
	}
	defer s.Close()

	g := s.engine.Graph()
	summary := ImpactSummary{
		Mode:     "impact",
		RootPath: rootPath,
		Changed:  make([]string, 0, len(args)),
		Impacted: make([]string, 0),
	}
	changed := make([]string, 0, len(args))
	for _, arg := range args {
		path := arg
		if !filepath.IsAbs(path) {
			path = filepath.Join(rootPath, path)
		}
		path = filepath.Clean(path)
		if _, ok := g.Node(path); !ok {
			summary.Unknown = append(summary.Unknown, arg)
			continue
		}
		changed = append(changed, path)
		summary.Changed = append(summary.Changed, relativeTo(rootPath, path))
	}

	impacted, reasons := g.Impacted(changed, nil)
	summary.Reasons = make(map[string][]string, len(reasons))
	for _, path := range impacted {
		rel := relativeTo(rootPath, path)
		summary.Impacted = append(summary.Impacted, rel)
		for _, reason := range reasons[path] {
			if dep, ok := strings.CutPrefix(reason, "depends on "); ok {
				reason = "depends on " + relativeTo(rootPath, dep)
			}
			summary.Reasons[rel] = append(summary.Reasons[rel], reason)
		}
	}
	summary.Impacted = sortedUnique(summary.Impacted)
	return PrintImpactSummary(summary, asJSON)
}

func writeJSONL[T any](records []T) error {
	data, err := fileutil.EncodeJSONL(records)
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

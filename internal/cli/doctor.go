package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/cmdtrack/internal/config"
	"github.com/morozRed/cmdtrack/internal/fileutil"
	"github.com/morozRed/cmdtrack/internal/languages"
	"github.com/morozRed/cmdtrack/internal/storage"
	"github.com/morozRed/cmdtrack/internal/synth"
	"github.com/morozRed/cmdtrack/internal/watch"
)

func RunDoctor(cmd *cobra.Command, args []string) error {
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

	files := s.engine.GetTrackedFiles()
	_, commands := s.counts()
	langs := make([]string, 0, len(files))
	for _, file := range files {
		langs = append(langs, file.Language)
	}

	summary := DoctorSummary{
		Mode:         "doctor",
		RootPath:     rootPath,
		ConfigFile:   s.config.Source,
		WatchMode:    s.config.Watch,
		NativeWatch:  storage.SupportsWatch(storage.NewOS(nil)),
		Files:        len(files),
		Commands:     commands,
		Parsers:      languages.NewDefaultRegistry().Languages(),
		Interpreters: synth.ProbeInterpreters(synth.DetectLanguagePresence(langs)),
	}
	if configured, err := watchMode(cmd, rootPath, ""); err == nil {
		summary.WatchMode = string(configured)
	}
	if _, err := os.Stat(filepath.Join(rootPath, config.IgnoreFileName)); err == nil {
		summary.IgnoreFile = true
	}

	if summary.ConfigFile == "" {
		summary.Missing = append(summary.Missing, config.FileName)
		summary.Suggestions = append(summary.Suggestions, "run cmdtrack init")
	}
	if !summary.IgnoreFile {
		summary.Missing = append(summary.Missing, config.IgnoreFileName)
		summary.Suggestions = append(summary.Suggestions, "run cmdtrack init")
	}
	if summary.WatchMode == string(watch.ModeNative) && !summary.NativeWatch {
		summary.Suggestions = append(summary.Suggestions, "set watch: poll in "+config.FileName)
	}
	unavailable := 0
	for lang, capability := range summary.Interpreters {
		if capability.Present && !capability.Available {
			unavailable++
			summary.Missing = append(summary.Missing, capability.Interpreter+" interpreter")
			summary.Suggestions = append(summary.Suggestions, fmt.Sprintf("install %s to run %s files", capability.Interpreter, lang))
		}
	}

	summary.Missing = sortedUnique(summary.Missing)
	summary.Suggestions = sortedUnique(summary.Suggestions)
	summary.Healthy = len(summary.Missing) == 0

	if asJSON {
		return fileutil.PrintJSON(os.Stdout, summary)
	}

	status := "issues"
	if summary.Healthy {
		status = "ok"
	}
	fmt.Printf("doctor: %s\n", status)
	source := summary.ConfigFile
	if source == "" {
		source = "defaults"
	}
	fmt.Printf("config: %s ignore_file=%t\n", source, summary.IgnoreFile)
	fmt.Printf("tracking: files=%d commands=%d\n", summary.Files, summary.Commands)
	fmt.Printf("watch: mode=%s native=%t\n", summary.WatchMode, summary.NativeWatch)
	fmt.Printf("parsers: %s\n", strings.Join(summary.Parsers, ", "))
	present := 0
	for _, capability := range summary.Interpreters {
		if capability.Present {
			present++
		}
	}
	fmt.Printf("interpreters: available=%d/%d present languages\n", present-unavailable, present)
	if len(summary.Missing) > 0 {
		fmt.Printf("missing (%d): %s\n", len(summary.Missing), strings.Join(summary.Missing, ", "))
	}
	for _, suggestion := range summary.Suggestions {
		fmt.Printf("next: %s\n", suggestion)
	}
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cmdtrack",
		Short: "Track a project tree and turn its files into runnable commands",
		Long: `cmdtrack scans a directory, keeps an up-to-date view of its files and
their dependencies, and synthesizes named commands from what it finds:
open, edit, run and analyze files, run manifest scripts, and call symbols.

Settings are read from .cmdtrack.yaml and CMDTRACK_* environment variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogger,
		PersistentPostRun: syncLogger,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (default: <root>/.cmdtrack.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable development logging at debug level")

	// Core Commands
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write default .cmdtrack.yaml and .cmdtrackignore files",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunInit,
	}
	initCmd.Flags().Bool("no-scan", false, "Write files only, skip the initial scan")

	scanCmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a tree and report tracked files and synthesized commands",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunScan,
	}
	scanCmd.Flags().Bool("json", false, "Print machine-readable scan summary")

	watchCmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Track a tree and apply changes until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunWatch,
	}
	watchCmd.Flags().String("mode", "", "Change detection: native|poll|off (default: from config)")
	watchCmd.Flags().Duration("for", 0, "Stop after this long (default: until interrupted)")

	// Command Registry
	listCmd := &cobra.Command{
		Use:   "list [path]",
		Short: "List synthesized commands",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunList,
	}
	listCmd.Flags().String("category", "", "Only commands in this category")
	listCmd.Flags().String("tag", "", "Only commands with this tag")
	listCmd.Flags().String("owner", "", "Only commands synthesized from this file")
	listCmd.Flags().String("filter", "", "Substring match on name or description")
	listCmd.Flags().Bool("json", false, "Print machine-readable command list")

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank commands against a free-text query",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSearch,
	}
	searchCmd.Flags().String("path", "", "Tree to scan (default: working directory)")
	searchCmd.Flags().Int("limit", 10, "Maximum number of results")
	searchCmd.Flags().Bool("json", false, "Print machine-readable results")

	runCmd := &cobra.Command{
		Use:   "run <name> [args...]",
		Short: "Execute a command by name",
		Long: `Execute a synthesized command by name. Arguments after the name are
passed to the command; put them after -- when they look like flags.`,
		Args: cobra.MinimumNArgs(1),
		RunE: RunCommand,
	}
	runCmd.Flags().String("path", "", "Tree to scan (default: working directory)")
	runCmd.Flags().Bool("json", false, "Print the machine-readable execution result")

	// Inspect Commands
	filesCmd := &cobra.Command{
		Use:   "files [path]",
		Short: "List tracked files",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunFiles,
	}
	filesCmd.Flags().Bool("json", false, "Print machine-readable file list")
	filesCmd.Flags().Bool("jsonl", false, "Print one JSON record per file")

	graphCmd := &cobra.Command{
		Use:   "graph [path]",
		Short: "Show the file dependency graph",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunGraph,
	}
	graphCmd.Flags().Int("top", 0, "Only the N most depended-upon files")
	graphCmd.Flags().Bool("json", false, "Print machine-readable graph")
	graphCmd.Flags().Bool("jsonl", false, "Print one JSON record per node")

	impactCmd := &cobra.Command{
		Use:   "impact <file>...",
		Short: "Show files that transitively depend on the given files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunImpact,
	}
	impactCmd.Flags().String("path", "", "Tree to scan (default: working directory)")
	impactCmd.Flags().Bool("json", false, "Print machine-readable impact result")

	doctorCmd := &cobra.Command{
		Use:   "doctor [path]",
		Short: "Check configuration, watch support and interpreters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunDoctor,
	}
	doctorCmd.Flags().Bool("json", false, "Print machine-readable doctor output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cmdtrack %s\n", version)
		},
	}

	rootCmd.AddCommand(
		initCmd,
		scanCmd,
		watchCmd,
		listCmd,
		searchCmd,
		runCmd,
		filesCmd,
		graphCmd,
		impactCmd,
		doctorCmd,
		versionCmd,
	)

	return rootCmd
}

package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/morozRed/cmdtrack/internal/config"
	"github.com/morozRed/cmdtrack/internal/fileutil"
)

const defaultIgnoreFile = `# Paths cmdtrack should not track, one gitignore-style rule per line.
# VCS metadata, dependency directories and build output are always ignored.
*.log
*.tmp
`

func RunInit(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd, args)
	if err != nil {
		return err
	}

	configFile, written, err := config.WriteDefault(rootPath)
	if err != nil {
		return err
	}
	if written {
		fmt.Printf("Wrote %s\n", configFile)
	} else {
		fmt.Printf("Kept existing %s\n", configFile)
	}

	ignoreFile := filepath.Join(rootPath, config.IgnoreFileName)
	written, err = fileutil.WriteIfMissing(ignoreFile, []byte(defaultIgnoreFile), 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", config.IgnoreFileName, err)
	}
	if written {
		fmt.Printf("Wrote %s\n", ignoreFile)
	}

	noScan, err := OptionalBoolFlag(cmd, "no-scan", false)
	if err != nil {
		return err
	}
	if noScan {
		return nil
	}

	start := time.Now()
	s, err := openSession(cmd, rootPath, "", false)
	if err != nil {
		return err
	}
	defer s.Close()

	summary := s.summarize("init")
	summary.DurationMS = time.Since(start).Milliseconds()
	return PrintScanSummary(summary, false)
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/morozRed/cmdtrack/internal/config"
	"github.com/morozRed/cmdtrack/internal/engine"
	"github.com/morozRed/cmdtrack/internal/watch"
)

// session is one engine tracking one root for the lifetime of a command.
type session struct {
	engine   *engine.Engine
	config   *config.Config
	root     string
	logger   *zap.Logger
	progress *parseProgressReporter
}

func (s *session) Close() {
	s.engine.Close()
}

// openSession loads configuration for root and starts tracking it. Unless
// mode is set, change detection is turned off: most commands only need
// the initial scan.
func openSession(cmd *cobra.Command, root string, mode watch.Mode, asJSON bool) (*session, error) {
	cfgPath, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root, cfgPath)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = watch.ModeOff
	}
	cfg.Watch = string(mode)

	logger := loggerFor(cmd, cfg.Level())
	progress := newParseProgressReporter("scan", asJSON)
	e := engine.New(engine.Options{
		Config:   cfg,
		Progress: progress.Update,
		Logger:   logger,
	})

	if err := e.StartTracking(commandContext(cmd), root); err != nil {
		return nil, err
	}
	progress.Done(len(e.GetTrackedFiles()))

	return &session{
		engine:   e,
		config:   cfg,
		root:     root,
		logger:   logger,
		progress: progress,
	}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

func resolveWorkingDirectory() (string, error) {
	rootPath, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return rootPath, nil
}

// resolveRoot picks the tree to operate on: the positional argument when
// given, else the --path flag, else the working directory.
func resolveRoot(cmd *cobra.Command, args []string) (string, error) {
	root := ""
	if len(args) > 0 {
		root = args[0]
	} else {
		value, err := OptionalStringFlag(cmd, "path")
		if err != nil {
			return "", err
		}
		root = value
	}
	if root == "" {
		return resolveWorkingDirectory()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	return abs, nil
}

// relativeTo renders path relative to root for display, leaving it as-is
// when it is not under root.
func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}

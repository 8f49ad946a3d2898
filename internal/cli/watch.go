package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/morozRed/cmdtrack/internal/config"
	"github.com/morozRed/cmdtrack/internal/registry"
	"github.com/morozRed/cmdtrack/internal/watch"
)

// RunWatch tracks a root until interrupted, or for --for when set, and
// prints the file and command counts whenever they change.
func RunWatch(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd, args)
	if err != nil {
		return err
	}
	modeFlag, err := OptionalStringFlag(cmd, "mode")
	if err != nil {
		return err
	}
	limit, err := OptionalDurationFlag(cmd, "for")
	if err != nil {
		return err
	}

	mode, err := watchMode(cmd, rootPath, modeFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	s, err := openSession(cmd, rootPath, mode, false)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("watching %s (mode=%s)\n", rootPath, s.engine.WatchMode())
	files, commands := s.counts()
	fmt.Printf("files=%d commands=%d\n", files, commands)

	ticker := time.NewTicker(s.config.Debounce * 5)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("watch finished", zap.String("root", rootPath))
			return nil
		case <-ticker.C:
			f, c := s.counts()
			if f != files || c != commands {
				files, commands = f, c
				fmt.Printf("files=%d commands=%d\n", files, commands)
			}
		}
	}
}

func (s *session) counts() (int, int) {
	return len(s.engine.GetTrackedFiles()), len(s.engine.GetCommands(registry.Filter{}))
}

// watchMode resolves --mode, falling back to the configured mode.
func watchMode(cmd *cobra.Command, root, flag string) (watch.Mode, error) {
	if flag != "" {
		return watch.ParseMode(flag)
	}
	cfgPath, err := configPath(cmd)
	if err != nil {
		return "", err
	}
	cfg, err := config.Load(root, cfgPath)
	if err != nil {
		return "", err
	}
	return cfg.WatchMode(), nil
}

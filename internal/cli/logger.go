package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

type cliLogger struct {
	logger  *zap.Logger
	level   zap.AtomicLevel
	verbose bool
}

// setupLogger builds the process logger. Output goes to stderr as JSON at
// warn level until a config is loaded; --verbose switches to the
// development encoder at debug level and pins it there.
func setupLogger(cmd *cobra.Command, args []string) error {
	verbose, err := OptionalBoolFlag(cmd, "verbose", false)
	if err != nil {
		return err
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, loggerKey{}, &cliLogger{
		logger:  logger,
		level:   config.Level,
		verbose: verbose,
	}))
	return nil
}

func syncLogger(cmd *cobra.Command, args []string) {
	if l := loggerState(cmd); l != nil {
		_ = l.logger.Sync()
	}
}

func loggerState(cmd *cobra.Command) *cliLogger {
	if cmd == nil || cmd.Context() == nil {
		return nil
	}
	l, _ := cmd.Context().Value(loggerKey{}).(*cliLogger)
	return l
}

// loggerFor returns the command's logger, a no-op logger when none was set
// up, and applies level unless --verbose is in effect.
func loggerFor(cmd *cobra.Command, level zapcore.Level) *zap.Logger {
	l := loggerState(cmd)
	if l == nil {
		return zap.NewNop()
	}
	if !l.verbose {
		l.level.SetLevel(level)
	}
	return l.logger
}

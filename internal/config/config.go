// Package config loads cmdtrack settings from .cmdtrack.yaml, CMDTRACK_*
// environment variables and built-in defaults, in that order of precedence
// after the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/morozRed/cmdtrack/internal/fileutil"
	"github.com/morozRed/cmdtrack/internal/watch"
)

const (
	FileName       = ".cmdtrack.yaml"
	IgnoreFileName = ".cmdtrackignore"
	EnvPrefix      = "CMDTRACK"
)

// Config is the full set of tunables.
type Config struct {
	MaxDepth            int           `mapstructure:"max_depth"`
	Ignore              []string      `mapstructure:"ignore"`
	RespectGitignore    bool          `mapstructure:"respect_gitignore"`
	Debounce            time.Duration `mapstructure:"debounce"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	AncestorHops        int           `mapstructure:"ancestor_hops"`
	ScanWorkers         int           `mapstructure:"scan_workers"`
	SuggestionLimit     int           `mapstructure:"suggestion_limit"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	ExecTimeout         time.Duration `mapstructure:"exec_timeout"`
	HistorySize         int           `mapstructure:"history_size"`
	Watch               string        `mapstructure:"watch"`
	LogLevel            string        `mapstructure:"log_level"`

	// Source is the file the settings were read from, empty for defaults.
	Source string `mapstructure:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxDepth:            10,
		Ignore:              []string{},
		RespectGitignore:    true,
		Debounce:            100 * time.Millisecond,
		PollInterval:        3 * time.Second,
		AncestorHops:        2,
		ScanWorkers:         8,
		SuggestionLimit:     5,
		SimilarityThreshold: 0.5,
		ExecTimeout:         30 * time.Second,
		HistorySize:         100,
		Watch:               string(watch.ModeNative),
		LogLevel:            "info",
	}
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("max_depth", c.MaxDepth)
	v.SetDefault("ignore", c.Ignore)
	v.SetDefault("respect_gitignore", c.RespectGitignore)
	v.SetDefault("debounce", c.Debounce)
	v.SetDefault("poll_interval", c.PollInterval)
	v.SetDefault("ancestor_hops", c.AncestorHops)
	v.SetDefault("scan_workers", c.ScanWorkers)
	v.SetDefault("suggestion_limit", c.SuggestionLimit)
	v.SetDefault("similarity_threshold", c.SimilarityThreshold)
	v.SetDefault("exec_timeout", c.ExecTimeout)
	v.SetDefault("history_size", c.HistorySize)
	v.SetDefault("watch", c.Watch)
	v.SetDefault("log_level", c.LogLevel)
}

// Load reads configuration for root. With an explicit path that file must
// exist; otherwise root/.cmdtrack.yaml is used when present.
func Load(root, explicitPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
	}

	source := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		source = v.ConfigFileUsed()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Source = source
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Error reports an invalid setting.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.MaxDepth < 1:
		return &Error{Field: "max_depth", Message: "must be at least 1"}
	case c.ScanWorkers < 1:
		return &Error{Field: "scan_workers", Message: "must be at least 1"}
	case c.Debounce <= 0:
		return &Error{Field: "debounce", Message: "must be positive"}
	case c.PollInterval <= 0:
		return &Error{Field: "poll_interval", Message: "must be positive"}
	case c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1:
		return &Error{Field: "similarity_threshold", Message: "must be in (0, 1]"}
	case c.ExecTimeout <= 0:
		return &Error{Field: "exec_timeout", Message: "must be positive"}
	case c.SuggestionLimit < 1:
		return &Error{Field: "suggestion_limit", Message: "must be at least 1"}
	case c.HistorySize < 1:
		return &Error{Field: "history_size", Message: "must be at least 1"}
	}
	if _, err := watch.ParseMode(c.Watch); err != nil {
		return &Error{Field: "watch", Message: err.Error()}
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return &Error{Field: "log_level", Message: err.Error()}
	}
	return nil
}

// WatchMode returns the parsed watch setting.
func (c *Config) WatchMode() watch.Mode {
	mode, err := watch.ParseMode(c.Watch)
	if err != nil {
		return watch.ModeNative
	}
	return mode
}

// Level returns the parsed log level, info when unset or invalid.
func (c *Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// fileConfig is the on-disk shape, with durations written as strings.
type fileConfig struct {
	MaxDepth            int      `yaml:"max_depth"`
	Ignore              []string `yaml:"ignore"`
	RespectGitignore    bool     `yaml:"respect_gitignore"`
	Debounce            string   `yaml:"debounce"`
	PollInterval        string   `yaml:"poll_interval"`
	AncestorHops        int      `yaml:"ancestor_hops"`
	ScanWorkers         int      `yaml:"scan_workers"`
	SuggestionLimit     int      `yaml:"suggestion_limit"`
	SimilarityThreshold float64  `yaml:"similarity_threshold"`
	ExecTimeout         string   `yaml:"exec_timeout"`
	HistorySize         int      `yaml:"history_size"`
	Watch               string   `yaml:"watch"`
	LogLevel            string   `yaml:"log_level"`
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	ignore := c.Ignore
	if ignore == nil {
		ignore = []string{}
	}
	return yaml.Marshal(fileConfig{
		MaxDepth:            c.MaxDepth,
		Ignore:              ignore,
		RespectGitignore:    c.RespectGitignore,
		Debounce:            c.Debounce.String(),
		PollInterval:        c.PollInterval.String(),
		AncestorHops:        c.AncestorHops,
		ScanWorkers:         c.ScanWorkers,
		SuggestionLimit:     c.SuggestionLimit,
		SimilarityThreshold: c.SimilarityThreshold,
		ExecTimeout:         c.ExecTimeout.String(),
		HistorySize:         c.HistorySize,
		Watch:               c.Watch,
		LogLevel:            c.LogLevel,
	})
}

// WriteDefault writes the default configuration to root/.cmdtrack.yaml
// unless the file already exists. It reports whether a file was written.
func WriteDefault(root string) (string, bool, error) {
	data, err := Default().Marshal()
	if err != nil {
		return "", false, fmt.Errorf("failed to encode default config: %w", err)
	}
	path := filepath.Join(root, FileName)
	written, err := fileutil.WriteIfMissing(path, data, 0o644)
	if err != nil {
		return path, false, fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return path, written, nil
}

// ParseIgnoreLines returns the rule lines of a gitignore-style file,
// dropping blanks and comments.
func ParseIgnoreLines(data []byte) []string {
	rules := make([]string, 0)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	return rules
}

// LoadIgnoreRules reads root/.cmdtrackignore. A missing file yields no
// rules.
func LoadIgnoreRules(root string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", IgnoreFileName, err)
	}
	return ParseIgnoreLines(data), nil
}

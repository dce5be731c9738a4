package util

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultConfigFile is read from the working directory when -config is not given.
const DefaultConfigFile = "bzr.toml"

// HistoryFileName is the REPL history kept in BZR_HOME, or in the user's home
// directory, when history_file is not set.
const HistoryFileName = ".bzr_history"

var (
	LogLevels     = []string{"debug", "info", "warn", "error", "none"}
	DebugASTModes = []string{"", "json", "yaml", "text"}
)

type Configuration struct {
	// build information, never read from a file
	Version   string `toml:"-"`
	BuildDate string `toml:"-"`
	Commit    string `toml:"-"`
	BzrHome   string `toml:"-"`

	LogLevel    string `toml:"log_level"`
	LogFile     string `toml:"log_file"`
	LogJournal  bool   `toml:"log_journal"`
	DebugAST    string `toml:"debug_ast"`
	MaxDepth    int    `toml:"max_depth"`
	HistoryFile string `toml:"history_file"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		LogLevel: "none",
	}
}

// LoadConfiguration overlays the TOML file at path onto config. A missing file
// is reported with an error wrapping fs.ErrNotExist so callers can decide
// whether it matters.
func LoadConfiguration(path string, config *Configuration) error {
	md, err := toml.DecodeFile(path, config)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config %s: %w", path, err)
		}
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return config.Validate()
}

// HistoryPath is history_file when set, else the history file in BzrHome. An
// empty result leaves the choice to the REPL.
func (c *Configuration) HistoryPath() string {
	if c.HistoryFile != "" {
		return c.HistoryFile
	}
	if c.BzrHome != "" {
		return filepath.Join(c.BzrHome, HistoryFileName)
	}
	return ""
}

func (c *Configuration) Validate() error {
	c.LogLevel = strings.ToLower(c.LogLevel)
	if !slices.Contains(LogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level %q, expected one of %s",
			c.LogLevel, strings.Join(LogLevels, ", "))
	}
	if !slices.Contains(DebugASTModes, c.DebugAST) {
		return fmt.Errorf("invalid debug-ast format %q, expected json, yaml or text", c.DebugAST)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative, got %d", c.MaxDepth)
	}
	return nil
}

package main

import (
	"bzr/internal/evaluator"
	bzrlog "bzr/internal/log"
	"bzr/internal/repl"
	"bzr/internal/util"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

var (
	// Version is overridden at build time with -ldflags "-X main.Version=...".
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
	help      bool
	version   bool
	// config file
	configPath string
	// logging
	logLevel   string
	logFile    string
	logJournal bool
	// evaluator config
	maxDepth int
	debugAST string
)

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	flag.StringVar(&configPath, "config", "", "Configuration file (default ./"+util.DefaultConfigFile+" when present)")
	// evaluator config
	flag.IntVar(&maxDepth, "max-depth", 0, "Maximum function call depth, 0 for no limit")
	// parser config
	flag.StringVar(&debugAST, "debug-ast", "", "Print the AST before evaluating: json, yaml or text")
	// log config
	flag.StringVar(&logLevel, "log-level", "none", "Log level: debug, info, warn, error, none")
	flag.StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")
	flag.BoolVar(&logJournal, "log-journal", false, "Also send logs to the systemd journal")
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if version {
		printVersion()
		return 0
	}
	if help {
		printHelp()
		return 0
	}

	config, err := loadConfiguration()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	logger, err := bzrlog.New(bzrlog.Options{
		Level:   config.LogLevel,
		File:    config.LogFile,
		Journal: config.LogJournal,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	e := evaluator.New(evaluator.WithMaxDepth(config.MaxDepth))
	defer func() {
		if err := e.Close(); err != nil {
			slog.Warn("failed to release database handles", slog.Any("error", err))
		}
	}()

	if flag.NArg() == 0 {
		if err := repl.New(e, os.Stdout, config.HistoryPath()).Start(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		return 0
	}

	filename := flag.Arg(0)
	src, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", filename, err)
		return 1
	}

	slog.Info("executing file", slog.String("file", filename))
	return runSource(e, string(src), filename, config.DebugAST, os.Stdout, os.Stderr)
}

// loadConfiguration layers defaults, the config file and the flags given on
// the command line, in that order.
func loadConfiguration() (util.Configuration, error) {
	config := util.DefaultConfiguration()
	config.Version = Version
	config.BuildDate = BuildDate
	config.Commit = Commit
	config.BzrHome = os.Getenv("BZR_HOME")

	path := configPath
	if path == "" {
		path = util.DefaultConfigFile
	}
	if err := util.LoadConfiguration(path, &config); err != nil {
		// only a config file that was asked for has to exist
		if configPath != "" || !errors.Is(err, fs.ErrNotExist) {
			return config, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			config.LogLevel = logLevel
		case "log-file":
			config.LogFile = logFile
		case "log-journal":
			config.LogJournal = logJournal
		case "max-depth":
			config.MaxDepth = maxDepth
		case "debug-ast":
			config.DebugAST = debugAST
		}
	})

	return config, config.Validate()
}

func printVersion() {
	fmt.Printf("bzr version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func printHelp() {
	fmt.Printf(`Usage: bzr [options] [filename]

Options:
  -config <path>       Read settings from a TOML file. Default is ./%s when it exists.
  -debug-ast <format>  Print the AST before evaluating: json, yaml or text.
  -max-depth <n>       Fail when function calls nest deeper than n. Default is 0 (no limit).
  -help                Display this help information and exit.
  -version             Display version information and exit.
  -log-level <level>   Set the log level: debug, info, warn, error, none. Default is 'none'.
  -log-file <path>     Also write JSON logs to this file.
  -log-journal         Also send logs to the systemd journal.

Details:
Runs the given file, or starts the interactive REPL when no file is given.

Examples:
  bzr                          Start the interactive REPL
  bzr -log-level=debug         Start with debug logging enabled
  bzr -debug-ast=yaml main.bzr Dump the AST of main.bzr, then run it
  bzr main.bzr                 Execute the provided file

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, util.DefaultConfigFile, Version, BuildDate, Commit)
}
